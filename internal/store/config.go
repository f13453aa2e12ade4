package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"flow-analytics/internal/workitem"
)

// GetSettings returns the organisation settings, or nil when none are stored.
func (s *Store) GetSettings(ctx context.Context, orgID string) (*workitem.OrgSettings, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT settings_json FROM org_settings WHERE org_id = ?`), orgID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	var settings workitem.OrgSettings
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return nil, fmt.Errorf("decode settings of %s: %w", orgID, err)
	}
	return &settings, nil
}

// GetIfVisible returns the context when it exists in the organisation, nil otherwise.
func (s *Store) GetIfVisible(ctx context.Context, orgID, contextID string) (*workitem.ContextSettings, error) {
	var (
		cs      workitem.ContextSettings
		rolling sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, rolling_window_days FROM contexts WHERE org_id = ? AND id = ?`),
		orgID, contextID).Scan(&cs.ContextID, &cs.Name, &rolling)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query context: %w", err)
	}
	if rolling.Valid {
		days := int(rolling.Int64)
		cs.RollingWindowPeriodInDays = &days
	}
	return &cs, nil
}

// GetWorkItemTypes returns the configured work item types ordered by name.
func (s *Store) GetWorkItemTypes(ctx context.Context, orgID string) ([]workitem.WorkItemTypeConfig, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, name, level, sle_days FROM work_item_types WHERE org_id = ? ORDER BY name`), orgID)
	if err != nil {
		return nil, fmt.Errorf("query work item types: %w", err)
	}
	defer rows.Close()

	types := []workitem.WorkItemTypeConfig{}
	for rows.Next() {
		var (
			t     workitem.WorkItemTypeConfig
			level string
		)
		if err := rows.Scan(&t.ID, &t.Name, &level, &t.ServiceLevelExpectationInDays); err != nil {
			return nil, fmt.Errorf("scan work item type: %w", err)
		}
		t.Level = workitem.Level(level)
		types = append(types, t)
	}
	return types, rows.Err()
}

// GetCustomFieldConfigs returns the custom field mappings of the organisation.
func (s *Store) GetCustomFieldConfigs(ctx context.Context, orgID string) ([]workitem.CustomFieldConfig, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT datasource_field_name, display_name, tags_json FROM custom_field_configs WHERE org_id = ? ORDER BY datasource_field_name`), orgID)
	if err != nil {
		return nil, fmt.Errorf("query custom field configs: %w", err)
	}
	defer rows.Close()

	configs := []workitem.CustomFieldConfig{}
	for rows.Next() {
		var (
			cfg  workitem.CustomFieldConfig
			tags string
		)
		if err := rows.Scan(&cfg.DatasourceFieldName, &cfg.DisplayName, &tags); err != nil {
			return nil, fmt.Errorf("scan custom field config: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &cfg.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", cfg.DatasourceFieldName, err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
