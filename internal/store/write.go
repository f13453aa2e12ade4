package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"flow-analytics/internal/workitem"
)

// Dataset is everything stored for one organisation. It is what the generator produces and what
// Import loads.
type Dataset struct {
	OrgID         string                        `json:"orgId" yaml:"orgId"`
	Settings      *workitem.OrgSettings         `json:"settings,omitempty" yaml:"settings,omitempty"`
	Contexts      []workitem.ContextSettings    `json:"contexts,omitempty" yaml:"contexts,omitempty"`
	Types         []workitem.WorkItemTypeConfig `json:"types,omitempty" yaml:"types,omitempty"`
	Fields        []workitem.CustomFieldConfig  `json:"fields,omitempty" yaml:"fields,omitempty"`
	Items         []workitem.WorkItem           `json:"items" yaml:"items"`
	Snapshots     []workitem.Snapshot           `json:"snapshots" yaml:"snapshots"`
	Normalisation map[string]map[string]string  `json:"normalisation,omitempty" yaml:"normalisation,omitempty"`
}

// Import replaces the organisation's data with the dataset in one transaction.
func (s *Store) Import(ctx context.Context, d Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"work_items", "snapshots", "org_settings", "contexts", "work_item_types", "custom_field_configs", "normalisation"} {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM "+table+" WHERE org_id = ?"), d.OrgID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	steps := []func(context.Context, *sql.Tx, Dataset) error{
		s.insertItems, s.insertSnapshots, s.insertSettings, s.insertContexts, s.insertTypes, s.insertFields, s.insertNormalisation,
	}
	for _, step := range steps {
		if err := step(ctx, tx, d); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) insertItems(ctx context.Context, tx *sql.Tx, d Dataset) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO work_items (org_id, `+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare work items: %w", err)
	}
	defer stmt.Close()

	for _, w := range d.Items {
		fields := []byte("[]")
		if len(w.CustomFields) > 0 {
			if fields, err = json.Marshal(w.CustomFields); err != nil {
				return fmt.Errorf("encode custom fields of %s: %w", w.WorkItemID, err)
			}
		}
		_, err := stmt.ExecContext(ctx, d.OrgID, w.WorkItemID, w.Title, w.WorkItemTypeID, w.WorkItemType, string(w.Level),
			w.State, string(w.StateCategory), w.StateType, w.ClassOfService, w.ContextID, w.AssignedTo,
			formatTime(w.ArrivalDateTime), formatTime(w.CommitmentDateTime), formatTime(w.DepartureDateTime),
			formatTime(w.LastChangedDateTime), boolInt(w.Delayed), boolInt(w.Discarded), boolInt(w.Flagged), string(fields))
		if err != nil {
			return fmt.Errorf("insert work item %s: %w", w.WorkItemID, err)
		}
	}
	return nil
}

func (s *Store) insertSnapshots(ctx context.Context, tx *sql.Tx, d Dataset) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO snapshots
		(org_id, work_item_id, snapshot_at, state, state_category, state_type, flagged) VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare snapshots: %w", err)
	}
	defer stmt.Close()

	for _, snap := range d.Snapshots {
		_, err := stmt.ExecContext(ctx, d.OrgID, snap.WorkItemID, formatTime(&snap.SnapshotDate), snap.State,
			string(snap.StateCategory), snap.StateType, boolInt(snap.Flagged))
		if err != nil {
			return fmt.Errorf("insert snapshot of %s: %w", snap.WorkItemID, err)
		}
	}
	return nil
}

func (s *Store) insertSettings(ctx context.Context, tx *sql.Tx, d Dataset) error {
	if d.Settings == nil {
		return nil
	}
	payload, err := json.Marshal(d.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO org_settings (org_id, settings_json) VALUES (?, ?)`),
		d.OrgID, string(payload)); err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}

func (s *Store) insertContexts(ctx context.Context, tx *sql.Tx, d Dataset) error {
	for _, c := range d.Contexts {
		var rolling any
		if c.RollingWindowPeriodInDays != nil {
			rolling = *c.RollingWindowPeriodInDays
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO contexts (org_id, id, name, rolling_window_days) VALUES (?, ?, ?, ?)`),
			d.OrgID, c.ContextID, c.Name, rolling); err != nil {
			return fmt.Errorf("insert context %s: %w", c.ContextID, err)
		}
	}
	return nil
}

func (s *Store) insertTypes(ctx context.Context, tx *sql.Tx, d Dataset) error {
	for _, t := range d.Types {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO work_item_types (org_id, id, name, level, sle_days) VALUES (?, ?, ?, ?, ?)`),
			d.OrgID, t.ID, t.Name, string(t.Level), t.ServiceLevelExpectationInDays); err != nil {
			return fmt.Errorf("insert work item type %s: %w", t.ID, err)
		}
	}
	return nil
}

func (s *Store) insertFields(ctx context.Context, tx *sql.Tx, d Dataset) error {
	for _, f := range d.Fields {
		tags, err := json.Marshal(f.Tags)
		if err != nil {
			return fmt.Errorf("encode tags of %s: %w", f.DatasourceFieldName, err)
		}
		if f.Tags == nil {
			tags = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO custom_field_configs (org_id, datasource_field_name, display_name, tags_json) VALUES (?, ?, ?, ?)`),
			d.OrgID, f.DatasourceFieldName, f.DisplayName, string(tags)); err != nil {
			return fmt.Errorf("insert custom field config %s: %w", f.DatasourceFieldName, err)
		}
	}
	return nil
}

func (s *Store) insertNormalisation(ctx context.Context, tx *sql.Tx, d Dataset) error {
	for tag, names := range d.Normalisation {
		for id, name := range names {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO normalisation (org_id, tag, work_item_id, display_name) VALUES (?, ?, ?, ?)`),
				d.OrgID, tag, id, name); err != nil {
				return fmt.Errorf("insert normalisation %s/%s: %w", tag, id, err)
			}
		}
	}
	return nil
}
