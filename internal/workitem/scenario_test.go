package workitem

import (
	"testing"
	"time"

	"flow-analytics/internal/aggregation"
)

func TestRetrievalScenario_Matches(t *testing.T) {
	period := aggregation.Interval{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
	}

	backlogSinceJanuary := WorkItem{StateCategory: Proposed, ArrivalDateTime: day(2024, 1, 5)}
	startedInFeb := WorkItem{StateCategory: InProgress, ArrivalDateTime: day(2024, 1, 5), CommitmentDateTime: day(2024, 2, 10)}
	doneInJan := WorkItem{StateCategory: Completed, ArrivalDateTime: day(2023, 12, 1), CommitmentDateTime: day(2024, 1, 2), DepartureDateTime: day(2024, 1, 20)}
	doneInFeb := WorkItem{StateCategory: Completed, ArrivalDateTime: day(2024, 1, 1), CommitmentDateTime: day(2024, 1, 15), DepartureDateTime: day(2024, 2, 14)}
	discardedInFeb := WorkItem{StateCategory: Completed, Discarded: true, ArrivalDateTime: day(2024, 1, 1), DepartureDateTime: day(2024, 2, 3)}
	arrivesInMarch := WorkItem{StateCategory: Proposed, ArrivalDateTime: day(2024, 3, 2)}

	tests := []struct {
		name     string
		scenario RetrievalScenario
		item     WorkItem
		expected bool
	}{
		{"CurrentInventory", CurrentInventoryOnly, backlogSinceJanuary, true},
		{"CurrentInventoryRejectsWIP", CurrentInventoryOnly, startedInFeb, false},
		{"CurrentWIP", CurrentWIPOnly, startedInFeb, true},
		{"CurrentCompleted", CurrentCompletedOnly, doneInFeb, true},
		{"WasInventoryStillWaiting", WasInventoryBetweenDates, backlogSinceJanuary, true},
		{"WasInventoryUntilCommitment", WasInventoryBetweenDates, startedInFeb, true},
		{"WasInventoryLeftBefore", WasInventoryBetweenDates, doneInJan, false},
		{"WasInventoryArrivesLater", WasInventoryBetweenDates, arrivesInMarch, false},
		{"WasWIPStartedInside", WasWIPBetweenDates, startedInFeb, true},
		{"WasWIPSpanningStart", WasWIPBetweenDates, doneInFeb, true},
		{"WasWIPFinishedBefore", WasWIPBetweenDates, doneInJan, false},
		{"BecameInventory", BecameInventoryBetweenDates, arrivesInMarch, false},
		{"BecameWIP", BecameWIPBetweenDates, startedInFeb, true},
		{"BecameWIPBefore", BecameWIPBetweenDates, doneInFeb, false},
		{"BecameCompleted", BecameCompletedBetweenDates, doneInFeb, true},
		{"BecameDiscarded", BecameDiscardedBetweenDates, discardedInFeb, true},
		{"BecameDiscardedRejectsDelivered", BecameDiscardedBetweenDates, doneInFeb, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scenario.Matches(tt.item, period); got != tt.expected {
				t.Errorf("%s.Matches() = %v, want %v", tt.scenario, got, tt.expected)
			}
		})
	}
}

func TestWasInStateAt(t *testing.T) {
	w := WorkItem{ArrivalDateTime: day(2024, 1, 1), CommitmentDateTime: day(2024, 1, 10), DepartureDateTime: day(2024, 1, 20)}
	tests := []struct {
		at       *time.Time
		category StateCategory
		expected bool
	}{
		{day(2024, 1, 5), Proposed, true},
		{day(2024, 1, 5), InProgress, false},
		{day(2024, 1, 10), InProgress, true},
		{day(2024, 1, 19), InProgress, true},
		{day(2024, 1, 20), InProgress, false},
		{day(2024, 1, 20), Completed, true},
		{day(2023, 12, 31), Proposed, false},
	}
	for _, tt := range tests {
		if got := w.WasInStateAt(tt.category, *tt.at); got != tt.expected {
			t.Errorf("WasInStateAt(%s, %v) = %v, want %v", tt.category, tt.at.Format("2006-01-02"), got, tt.expected)
		}
	}
}

func TestGroupByScenario(t *testing.T) {
	items := []ExtendedWorkItem{
		{WorkItem: WorkItem{WorkItemID: "a"}, Scenario: CurrentWIPOnly},
		{WorkItem: WorkItem{WorkItemID: "b"}, Scenario: BecameCompletedBetweenDates},
		{WorkItem: WorkItem{WorkItemID: "c"}, Scenario: CurrentWIPOnly},
	}
	grouped := GroupByScenario(items)
	if len(grouped[CurrentWIPOnly]) != 2 || len(grouped[BecameCompletedBetweenDates]) != 1 {
		t.Errorf("unexpected grouping: %+v", grouped)
	}
}

func TestEventsWithDuration(t *testing.T) {
	until := *day(2024, 1, 10)
	snaps := []Snapshot{
		{WorkItemID: "1", SnapshotDate: *day(2024, 1, 5), State: "Review", StateType: StateTypeQueue},
		{WorkItemID: "1", SnapshotDate: *day(2024, 1, 1), State: "Dev", StateType: StateTypeActive},
	}
	events := EventsWithDuration(snaps, until)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].State != "Dev" || events[0].Duration != 4*24*time.Hour {
		t.Errorf("first event = %s/%v, want Dev/96h", events[0].State, events[0].Duration)
	}
	if events[1].Duration != 5*24*time.Hour {
		t.Errorf("last event should run until the cut-off, got %v", events[1].Duration)
	}
}

func TestQueryOptions_Admits(t *testing.T) {
	yes := true
	delayed := WorkItem{StateCategory: Proposed, Delayed: true}
	discarded := WorkItem{StateCategory: Completed, Discarded: true}
	plain := WorkItem{StateCategory: Proposed}

	tests := []struct {
		name     string
		opts     QueryOptions
		item     WorkItem
		scenario RetrievalScenario
		expected bool
	}{
		{"DelayedExcludedFromInventory", QueryOptions{}, delayed, CurrentInventoryOnly, false},
		{"DelayedKeptWhenDisabled", QueryOptions{DisableDelayed: true}, delayed, CurrentInventoryOnly, true},
		{"OnlyDelayed", QueryOptions{IsDelayed: &yes}, plain, CurrentInventoryOnly, false},
		{"OnlyDelayedMatch", QueryOptions{IsDelayed: &yes}, delayed, WasInventoryBetweenDates, true},
		{"DiscardedExcludedFromCompletion", QueryOptions{}, discarded, BecameCompletedBetweenDates, false},
		{"DiscardedKeptWhenDisabled", QueryOptions{DisableDiscarded: true}, discarded, CurrentCompletedOnly, true},
		{"DiscardedScenarioUnaffected", QueryOptions{}, discarded, BecameDiscardedBetweenDates, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Admits(tt.item, tt.scenario); got != tt.expected {
				t.Errorf("Admits() = %v, want %v", got, tt.expected)
			}
		})
	}
}
