package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/workitem"
)

const org = "org-1"

func at(d, h int) *time.Time {
	t := time.Date(2024, 1, d, h, 0, 0, 0, time.UTC)
	return &t
}

func january() aggregation.Interval {
	return aggregation.NewInterval(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC))
}

func snap(id string, d, h int, state string, category workitem.StateCategory, stateType string) workitem.Snapshot {
	return workitem.Snapshot{WorkItemID: id, SnapshotDate: *at(d, h), State: state, StateCategory: category, StateType: stateType}
}

func fixture() Dataset {
	return Dataset{
		OrgID: org,
		Items: []workitem.WorkItem{
			{WorkItemID: "a", State: "Backlog", StateCategory: workitem.Proposed, ArrivalDateTime: at(5, 9), ClassOfService: "Standard"},
			{WorkItemID: "b", State: "Doing", StateCategory: workitem.InProgress, ArrivalDateTime: at(2, 9), CommitmentDateTime: at(10, 9), Flagged: true},
			{WorkItemID: "c", State: "Done", StateCategory: workitem.Completed, ArrivalDateTime: at(1, 9), CommitmentDateTime: at(2, 10),
				DepartureDateTime: at(3, 10), CustomFields: []workitem.CustomField{{Name: "Team", Value: "Blue"}}},
			{WorkItemID: "d", State: "Done", StateCategory: workitem.Completed, Discarded: true, ArrivalDateTime: at(1, 9), DepartureDateTime: at(15, 9)},
		},
		Snapshots: []workitem.Snapshot{
			snap("c", 1, 9, "Backlog", workitem.Proposed, workitem.StateTypeQueue),
			snap("c", 2, 10, "Doing", workitem.InProgress, workitem.StateTypeActive),
			snap("c", 2, 12, "Doing", workitem.InProgress, workitem.StateTypeActive),
			snap("c", 2, 22, "Review", workitem.InProgress, workitem.StateTypeQueue),
			snap("c", 3, 10, "Done", workitem.Completed, workitem.StateTypeQueue),
		},
		Normalisation: map[string]map[string]string{
			"demand": {"a": "Feature", "c": "Defect"},
		},
	}
}

func newFixtureStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Import(context.Background(), fixture()); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return s
}

func ids[T workitem.Itemer](items []T) []string {
	return workitem.IDs(items)
}

func TestGetExtendedWorkItemsWithScenarios(t *testing.T) {
	s := newFixtureStore(t)
	ctx := context.Background()
	c := filters.Criteria{OrgID: org, Period: january()}

	tests := []struct {
		name     string
		scenario workitem.RetrievalScenario
		opts     workitem.QueryOptions
		expected []string
	}{
		{"BecameCompletedSkipsDiscarded", workitem.BecameCompletedBetweenDates, workitem.QueryOptions{}, []string{"c"}},
		{"BecameCompletedWithDiscarded", workitem.BecameCompletedBetweenDates, workitem.QueryOptions{DisableDiscarded: true}, []string{"c", "d"}},
		{"BecameDiscarded", workitem.BecameDiscardedBetweenDates, workitem.QueryOptions{}, []string{"d"}},
		{"BecameWIP", workitem.BecameWIPBetweenDates, workitem.QueryOptions{}, []string{"b", "c"}},
		{"CurrentInventory", workitem.CurrentInventoryOnly, workitem.QueryOptions{}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetExtendedWorkItemsWithScenarios(ctx, org, []workitem.RetrievalScenario{tt.scenario}, c, tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, gotIDs)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, gotIDs)
				}
			}
			for _, it := range got {
				if it.Scenario != tt.scenario {
					t.Errorf("item %s tagged %s", it.WorkItemID, it.Scenario)
				}
			}
		})
	}
}

func TestGetExtendedWorkItemsWithScenarios_UnknownScenario(t *testing.T) {
	s := newFixtureStore(t)
	_, err := s.GetExtendedWorkItemsWithScenarios(context.Background(), org, []workitem.RetrievalScenario{"SOMETIME"}, filters.Criteria{Period: january()}, workitem.QueryOptions{})
	if !errors.Is(err, workitem.ErrContractViolation) {
		t.Errorf("expected contract violation, got %v", err)
	}
}

func TestGetWorkItems_DecodesColumns(t *testing.T) {
	s := newFixtureStore(t)
	ctx := context.Background()

	got, err := s.GetWorkItems(ctx, org, workitem.Completed, filters.Criteria{Period: january()}, workitem.QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].WorkItemID != "c" {
		t.Fatalf("expected only c, got %v", ids(got))
	}
	c := got[0]
	if !c.DepartureDateTime.Equal(*at(3, 10)) {
		t.Errorf("departure: got %v", c.DepartureDateTime)
	}
	if vals := c.CustomFieldValues("team"); len(vals) != 1 || vals[0] != "Blue" {
		t.Errorf("custom fields: got %v", c.CustomFields)
	}

	flagged := true
	wip, err := s.GetWorkItems(ctx, org, workitem.InProgress, filters.Criteria{Flagged: &flagged}, workitem.QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wip) != 1 || !wip[0].Flagged {
		t.Errorf("expected flagged b, got %v", wip)
	}

	none, err := s.GetWorkItems(ctx, "other-org", workitem.Proposed, filters.Criteria{}, workitem.QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected an empty non-nil slice, got %#v", none)
	}
}

func TestNormalisation(t *testing.T) {
	s := newFixtureStore(t)
	ctx := context.Background()

	backlog, err := s.GetNormalisedWorkItems(ctx, org, workitem.Proposed, filters.Criteria{}, "demand", workitem.QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backlog) != 1 || backlog[0].NormalisedDisplayName != "Feature" {
		t.Errorf("expected a as Feature, got %v", backlog)
	}

	c := filters.Criteria{Period: january(), Normalisation: map[string][]string{"demand": {"defect"}}}
	got, err := s.GetNormalisedExtendedWorkItemsWithScenarios(ctx, org,
		[]workitem.RetrievalScenario{workitem.BecameInventoryBetweenDates}, c, "demand", workitem.QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].WorkItemID != "c" || got[0].NormalisedDisplayName != "Defect" {
		t.Errorf("expected only c as Defect, got %v", got)
	}
}

func TestGetTreatedSnapshots_CollapsesRepeats(t *testing.T) {
	s := newFixtureStore(t)
	got, err := s.GetTreatedSnapshots(context.Background(), org, []string{"c"}, *at(31, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"Backlog", "Doing", "Review", "Done"}
	if len(got) != len(expected) {
		t.Fatalf("expected %d snapshots, got %d", len(expected), len(got))
	}
	for i, state := range expected {
		if got[i].State != state {
			t.Errorf("snapshot %d: expected %s, got %s", i, state, got[i].State)
		}
	}
	if !got[1].SnapshotDate.Equal(*at(2, 10)) {
		t.Errorf("expected the first Doing snapshot to be kept, got %v", got[1].SnapshotDate)
	}

	early, err := s.GetTreatedSnapshots(context.Background(), org, []string{"c"}, *at(2, 11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(early) != 2 {
		t.Errorf("expected 2 snapshots until Jan 2 11:00, got %d", len(early))
	}
}

func TestGetDatabaseCFD(t *testing.T) {
	s := newFixtureStore(t)
	c := filters.Criteria{
		Period:        aggregation.NewInterval(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 23, 59, 59, 0, time.UTC)),
		WorkItemTypes: nil,
	}
	rows, err := s.GetDatabaseCFD(context.Background(), org, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []workitem.CFDRow{
		{State: "Backlog", StateCategory: workitem.Proposed, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Count: 1},
		{State: "Review", StateCategory: workitem.InProgress, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Count: 1},
		{State: "Done", StateCategory: workitem.Completed, Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Count: 1},
	}
	if len(rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d: %v", len(expected), len(rows), rows)
	}
	for i, e := range expected {
		r := rows[i]
		if r.State != e.State || r.StateCategory != e.StateCategory || !r.Date.Equal(e.Date) || r.Count != e.Count {
			t.Errorf("row %d: expected %+v, got %+v", i, e, r)
		}
	}
}

func TestGetActiveAndQueueTime(t *testing.T) {
	s := newFixtureStore(t)
	queries := []workitem.TimeQuery{
		{BucketID: "total", WorkItemIDs: []string{"c", "a"}, End: *at(5, 0)},
		{BucketID: "0", WorkItemIDs: []string{"c"}, IncludeArrival: true, End: *at(5, 0)},
		{BucketID: "1", WorkItemIDs: []string{"c"}, End: *at(2, 16)},
	}
	rows, err := s.GetActiveAndQueueTime(context.Background(), org, queries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a has no history and produces no row.
	expected := []workitem.ActiveQueueRow{
		{BucketID: "total", WorkItemID: "c", ActiveTimeInSeconds: 12 * 3600, WaitingTimeInSeconds: 12 * 3600},
		{BucketID: "0", WorkItemID: "c", ActiveTimeInSeconds: 12 * 3600, WaitingTimeInSeconds: 37 * 3600},
		{BucketID: "1", WorkItemID: "c", ActiveTimeInSeconds: 6 * 3600, WaitingTimeInSeconds: 0},
	}
	if len(rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d: %v", len(expected), len(rows), rows)
	}
	for i, e := range expected {
		if rows[i] != e {
			t.Errorf("row %d: expected %+v, got %+v", i, e, rows[i])
		}
	}
}

func TestConfigReaders(t *testing.T) {
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if settings, err := s.GetSettings(ctx, org); err != nil || settings != nil {
		t.Fatalf("expected no settings, got %v, %v", settings, err)
	}
	if cs, err := s.GetIfVisible(ctx, org, "board-1"); err != nil || cs != nil {
		t.Fatalf("expected no context, got %v, %v", cs, err)
	}

	stale := 7
	rolling := 30
	d := Dataset{
		OrgID:    org,
		Settings: &workitem.OrgSettings{StaledItemTeamLevelNumberOfDays: &stale},
		Contexts: []workitem.ContextSettings{{ContextID: "board-1", Name: "Board", RollingWindowPeriodInDays: &rolling}},
		Types: []workitem.WorkItemTypeConfig{
			{ID: "2", Name: "Story", Level: workitem.LevelTeam, ServiceLevelExpectationInDays: 10},
			{ID: "1", Name: "Bug", Level: workitem.LevelTeam, ServiceLevelExpectationInDays: 5},
		},
		Fields: []workitem.CustomFieldConfig{{DatasourceFieldName: "cf_1", DisplayName: "Blocked reason", Tags: []string{workitem.TagBlockedReason}}},
	}
	if err := s.Import(ctx, d); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	settings, err := s.GetSettings(ctx, org)
	if err != nil || settings == nil || settings.StaledItemTeamLevelNumberOfDays == nil || *settings.StaledItemTeamLevelNumberOfDays != 7 {
		t.Errorf("settings not read back: %+v, %v", settings, err)
	}
	cs, err := s.GetIfVisible(ctx, org, "board-1")
	if err != nil || cs == nil || cs.RollingWindowPeriodInDays == nil || *cs.RollingWindowPeriodInDays != 30 {
		t.Errorf("context not read back: %+v, %v", cs, err)
	}
	types, err := s.GetWorkItemTypes(ctx, org)
	if err != nil || len(types) != 2 || types[0].Name != "Bug" || types[1].ServiceLevelExpectationInDays != 10 {
		t.Errorf("types not read back in name order: %+v, %v", types, err)
	}
	fields, err := s.GetCustomFieldConfigs(ctx, org)
	if err != nil || len(fields) != 1 || !fields[0].HasTag(workitem.TagBlockedReason) {
		t.Errorf("custom fields not read back: %+v, %v", fields, err)
	}

	// Import replaces what was there.
	if err := s.Import(ctx, Dataset{OrgID: org}); err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if types, _ := s.GetWorkItemTypes(ctx, org); len(types) != 0 {
		t.Errorf("expected types to be cleared, got %v", types)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flow.db")
	s, err := Open(context.Background(), "", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = s.Close()

	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Error("expected unsupported driver error")
	}
	if _, err := Open(context.Background(), DriverSQLite, " "); err == nil {
		t.Error("expected missing dsn error")
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b IN (?,?)"); got != "a = $1 AND b IN ($2,$3)" {
		t.Errorf("postgres rebind: got %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind: got %q", got)
	}
}
