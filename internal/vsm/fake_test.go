package vsm

import (
	"context"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"flow-analytics/internal/filters"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"
)

// fakeStore evaluates scenarios in memory and counts calls per method.
type fakeStore struct {
	items      []workitem.WorkItem
	snapshots  []workitem.Snapshot
	cfd        []workitem.CFDRow
	times      map[string]workitem.ActiveQueueRow
	normalised map[string]string
	types      []workitem.WorkItemTypeConfig
	fields     []workitem.CustomFieldConfig
	settings   *workitem.OrgSettings
	infoErr    error

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeStore) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) GetWorkItems(ctx context.Context, orgID string, category workitem.StateCategory, c filters.Criteria, opts workitem.QueryOptions) ([]workitem.WorkItem, error) {
	f.count("GetWorkItems")
	out := []workitem.WorkItem{}
	for _, w := range f.items {
		if w.StateCategory == category && c.Matches(w) && opts.Admits(w, workitem.ScenarioForCategory(category)) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) GetExtendedWorkItemsWithScenarios(ctx context.Context, orgID string, scenarios []workitem.RetrievalScenario, c filters.Criteria, opts workitem.QueryOptions) ([]workitem.ExtendedWorkItem, error) {
	f.count("GetExtendedWorkItemsWithScenarios")
	out := []workitem.ExtendedWorkItem{}
	for _, s := range scenarios {
		for _, w := range f.items {
			if s.Matches(w, c.Period) && c.Matches(w) && opts.Admits(w, s) {
				out = append(out, workitem.ExtendedWorkItem{WorkItem: w, Scenario: s})
			}
		}
	}
	return out, nil
}

func (f *fakeStore) GetNormalisedWorkItems(ctx context.Context, orgID string, category workitem.StateCategory, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.WorkItem, error) {
	items, err := f.GetWorkItems(ctx, orgID, category, c, opts)
	for i := range items {
		items[i].NormalisedDisplayName = f.normalised[items[i].WorkItemID]
	}
	return items, err
}

func (f *fakeStore) GetNormalisedExtendedWorkItemsWithScenarios(ctx context.Context, orgID string, scenarios []workitem.RetrievalScenario, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.ExtendedWorkItem, error) {
	items, err := f.GetExtendedWorkItemsWithScenarios(ctx, orgID, scenarios, c, opts)
	for i := range items {
		items[i].NormalisedDisplayName = f.normalised[items[i].WorkItemID]
	}
	return items, err
}

func (f *fakeStore) GetDatabaseCFD(ctx context.Context, orgID string, c filters.Criteria) ([]workitem.CFDRow, error) {
	f.count("GetDatabaseCFD")
	return f.cfd, nil
}

func (f *fakeStore) GetTreatedSnapshots(ctx context.Context, orgID string, ids []string, until time.Time) ([]workitem.Snapshot, error) {
	f.count("GetTreatedSnapshots")
	out := []workitem.Snapshot{}
	for _, s := range f.snapshots {
		if slices.Contains(ids, s.WorkItemID) && !s.SnapshotDate.After(until) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetActiveAndQueueTime(ctx context.Context, orgID string, queries []workitem.TimeQuery) ([]workitem.ActiveQueueRow, error) {
	f.count("GetActiveAndQueueTime")
	var out []workitem.ActiveQueueRow
	for _, q := range queries {
		for _, id := range q.WorkItemIDs {
			if row, ok := f.times[id]; ok {
				row.BucketID = q.BucketID
				row.WorkItemID = id
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) GetSettings(ctx context.Context, orgID string) (*workitem.OrgSettings, error) {
	return f.settings, nil
}

func (f *fakeStore) GetWorkItemTypes(ctx context.Context, orgID string) ([]workitem.WorkItemTypeConfig, error) {
	return f.types, nil
}

func (f *fakeStore) GetCustomFieldConfigs(ctx context.Context, orgID string) ([]workitem.CustomFieldConfig, error) {
	return f.fields, nil
}

func (f *fakeStore) GetWidgetInformation(ctx context.Context, t widgetinfo.WidgetType) ([]widgetinfo.Information, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return []widgetinfo.Information{{Type: t, Name: string(t)}}, nil
}

var testNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, store *fakeStore, from, to, agg string) *Session {
	t.Helper()
	params := url.Values{}
	params.Set(filters.ParamLowerBoundary, from)
	params.Set(filters.ParamUpperBoundary, to)
	if agg != "" {
		params.Set(filters.ParamAggregation, agg)
	}
	sec := filters.StaticSecurity{Org: "org-1", PowerUser: true}
	f := filters.New(sec, store, params, filters.WithClock(func() time.Time { return testNow }))
	return NewSession(Deps{
		States:     store,
		Snapshots:  store,
		Settings:   store,
		Config:     store,
		WidgetInfo: store,
	}, f)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, h int) *time.Time {
	t := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return &t
}
