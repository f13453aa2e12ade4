package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"flow-analytics/internal/filters"
	"flow-analytics/internal/workitem"
)

const itemColumns = `id, title, work_item_type_id, work_item_type, level, state, state_category, state_type,
	class_of_service, context_id, assigned_to, arrival_at, commitment_at, departure_at, last_changed_at,
	delayed, discarded, flagged, custom_fields_json`

// GetWorkItems returns the items currently in category that pass the criteria and options.
func (s *Store) GetWorkItems(ctx context.Context, orgID string, category workitem.StateCategory, c filters.Criteria, opts workitem.QueryOptions) ([]workitem.WorkItem, error) {
	return s.currentItems(ctx, orgID, category, c, "", opts)
}

// GetNormalisedWorkItems is GetWorkItems with the display name of the item's tag category attached.
func (s *Store) GetNormalisedWorkItems(ctx context.Context, orgID string, category workitem.StateCategory, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.WorkItem, error) {
	return s.currentItems(ctx, orgID, category, c, tag, opts)
}

// GetExtendedWorkItemsWithScenarios returns one tagged copy of each item per scenario it satisfies.
func (s *Store) GetExtendedWorkItemsWithScenarios(ctx context.Context, orgID string, scenarios []workitem.RetrievalScenario, c filters.Criteria, opts workitem.QueryOptions) ([]workitem.ExtendedWorkItem, error) {
	return s.scenarioItems(ctx, orgID, scenarios, c, "", opts)
}

// GetNormalisedExtendedWorkItemsWithScenarios is GetExtendedWorkItemsWithScenarios with display names attached.
func (s *Store) GetNormalisedExtendedWorkItemsWithScenarios(ctx context.Context, orgID string, scenarios []workitem.RetrievalScenario, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.ExtendedWorkItem, error) {
	return s.scenarioItems(ctx, orgID, scenarios, c, tag, opts)
}

func (s *Store) currentItems(ctx context.Context, orgID string, category workitem.StateCategory, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.WorkItem, error) {
	items, err := s.candidates(ctx, orgID, c, tag, "state_category = ?", string(category))
	if err != nil {
		return nil, err
	}
	scenario := workitem.ScenarioForCategory(category)
	out := make([]workitem.WorkItem, 0, len(items))
	for _, w := range items {
		if opts.Admits(w, scenario) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) scenarioItems(ctx context.Context, orgID string, scenarios []workitem.RetrievalScenario, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.ExtendedWorkItem, error) {
	for _, sc := range scenarios {
		if !sc.IsValid() {
			return nil, workitem.Violation("unknown retrieval scenario %q", sc)
		}
	}
	items, err := s.candidates(ctx, orgID, c, tag, "")
	if err != nil {
		return nil, err
	}
	out := make([]workitem.ExtendedWorkItem, 0, len(items))
	for _, sc := range scenarios {
		for _, w := range items {
			if sc.Matches(w, c.Period) && opts.Admits(w, sc) {
				out = append(out, workitem.ExtendedWorkItem{WorkItem: w, Scenario: sc})
			}
		}
	}
	return out, nil
}

// candidates loads the organisation's items narrowed by the criteria. The context restriction is pushed
// into SQL; everything else is judged on the decoded item.
func (s *Store) candidates(ctx context.Context, orgID string, c filters.Criteria, tag, where string, args ...any) ([]workitem.WorkItem, error) {
	query := "SELECT " + itemColumns + " FROM work_items WHERE org_id = ?"
	params := []any{orgID}
	if c.ContextID != "" {
		query += " AND context_id = ?"
		params = append(params, c.ContextID)
	}
	if where != "" {
		query += " AND " + where
		params = append(params, args...)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), params...)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	var items []workitem.WorkItem
	for rows.Next() {
		w, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		if c.Matches(w) {
			items = append(items, w)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read work items: %w", err)
	}

	if items, err = s.applyNormalisation(ctx, orgID, items, c.Normalisation); err != nil {
		return nil, err
	}
	if tag != "" {
		names, err := s.normalisedNames(ctx, orgID, tag)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].NormalisedDisplayName = names[items[i].WorkItemID]
		}
	}
	return items, nil
}

// applyNormalisation keeps the items whose category under every filtered tag is one of the wanted names.
func (s *Store) applyNormalisation(ctx context.Context, orgID string, items []workitem.WorkItem, wanted map[string][]string) ([]workitem.WorkItem, error) {
	for tag, values := range wanted {
		if len(values) == 0 {
			continue
		}
		names, err := s.normalisedNames(ctx, orgID, tag)
		if err != nil {
			return nil, err
		}
		kept := items[:0]
		for _, w := range items {
			name := names[w.WorkItemID]
			for _, v := range values {
				if name != "" && strings.EqualFold(name, v) {
					kept = append(kept, w)
					break
				}
			}
		}
		items = kept
	}
	return items, nil
}

func (s *Store) normalisedNames(ctx context.Context, orgID, tag string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT work_item_id, display_name FROM normalisation WHERE org_id = ? AND tag = ?`), orgID, tag)
	if err != nil {
		return nil, fmt.Errorf("query normalisation %q: %w", tag, err)
	}
	defer rows.Close()
	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan normalisation: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

func scanItem(rows *sql.Rows) (workitem.WorkItem, error) {
	var (
		w                                      workitem.WorkItem
		level, category                        string
		arrival, commitment, departure, change sql.NullString
		delayed, discarded, flagged            int
		fields                                 string
	)
	err := rows.Scan(&w.WorkItemID, &w.Title, &w.WorkItemTypeID, &w.WorkItemType, &level, &w.State, &category,
		&w.StateType, &w.ClassOfService, &w.ContextID, &w.AssignedTo, &arrival, &commitment, &departure, &change,
		&delayed, &discarded, &flagged, &fields)
	if err != nil {
		return w, fmt.Errorf("scan work item: %w", err)
	}
	w.Level = workitem.Level(level)
	w.StateCategory = workitem.StateCategory(category)
	w.Delayed, w.Discarded, w.Flagged = delayed != 0, discarded != 0, flagged != 0

	if w.ArrivalDateTime, err = parseTime(arrival); err != nil {
		return w, err
	}
	if w.CommitmentDateTime, err = parseTime(commitment); err != nil {
		return w, err
	}
	if w.DepartureDateTime, err = parseTime(departure); err != nil {
		return w, err
	}
	if w.LastChangedDateTime, err = parseTime(change); err != nil {
		return w, err
	}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &w.CustomFields); err != nil {
			return w, fmt.Errorf("decode custom fields of %s: %w", w.WorkItemID, err)
		}
	}
	return w, nil
}
