package workitem

import (
	"fmt"
	"strconv"
	"time"

	"flow-analytics/internal/aggregation"
)

// RetrievalScenario names a temporal query mode: current state, state at some point in a range,
// or a transition within a range.
type RetrievalScenario string

const (
	CurrentInventoryOnly        RetrievalScenario = "CURRENT_INVENTORY_ONLY"
	CurrentWIPOnly              RetrievalScenario = "CURRENT_WIP_ONLY"
	CurrentCompletedOnly        RetrievalScenario = "CURRENT_COMPLETED_ONLY"
	WasInventoryBetweenDates    RetrievalScenario = "WAS_INVENTORY_BETWEEN_DATES"
	WasWIPBetweenDates          RetrievalScenario = "WAS_WIP_BETWEEN_DATES"
	BecameInventoryBetweenDates RetrievalScenario = "BECAME_INVENTORY_BETWEEN_DATES"
	BecameWIPBetweenDates       RetrievalScenario = "BECAME_WIP_BETWEEN_DATES"
	BecameCompletedBetweenDates RetrievalScenario = "BECAME_COMPLETED_BETWEEN_DATES"
	BecameDiscardedBetweenDates RetrievalScenario = "BECAME_DISCARDED_BETWEEN_DATES"
)

// Scenarios lists every supported scenario.
var Scenarios = []RetrievalScenario{
	CurrentInventoryOnly,
	CurrentWIPOnly,
	CurrentCompletedOnly,
	WasInventoryBetweenDates,
	WasWIPBetweenDates,
	BecameInventoryBetweenDates,
	BecameWIPBetweenDates,
	BecameCompletedBetweenDates,
	BecameDiscardedBetweenDates,
}

// ScenarioForCategory maps a state category to its "current" scenario.
func ScenarioForCategory(c StateCategory) RetrievalScenario {
	switch c {
	case Proposed:
		return CurrentInventoryOnly
	case InProgress:
		return CurrentWIPOnly
	default:
		return CurrentCompletedOnly
	}
}

// IsValid reports whether s is a known scenario.
func (s RetrievalScenario) IsValid() bool {
	for _, known := range Scenarios {
		if s == known {
			return true
		}
	}
	return false
}

// Matches evaluates the scenario against an item's milestones and the period. The closed period
// [Start, End] is used for every "between dates" scenario. Delayed and discarded exclusions are
// applied separately by QueryOptions.Admits.
func (s RetrievalScenario) Matches(w WorkItem, period aggregation.Interval) bool {
	switch s {
	case CurrentInventoryOnly:
		return w.StateCategory == Proposed
	case CurrentWIPOnly:
		return w.StateCategory == InProgress
	case CurrentCompletedOnly:
		return w.StateCategory == Completed
	case WasInventoryBetweenDates:
		if w.ArrivalDateTime == nil || w.ArrivalDateTime.After(period.End) {
			return false
		}
		left := w.CommitmentDateTime
		if left == nil {
			left = w.DepartureDateTime
		}
		return left == nil || !left.Before(period.Start)
	case WasWIPBetweenDates:
		if w.CommitmentDateTime == nil || w.CommitmentDateTime.After(period.End) {
			return false
		}
		return w.DepartureDateTime == nil || !w.DepartureDateTime.Before(period.Start)
	case BecameInventoryBetweenDates:
		return within(w.ArrivalDateTime, period)
	case BecameWIPBetweenDates:
		return within(w.CommitmentDateTime, period)
	case BecameCompletedBetweenDates:
		return w.StateCategory == Completed && within(w.DepartureDateTime, period)
	case BecameDiscardedBetweenDates:
		return w.Discarded && within(w.DepartureDateTime, period)
	}
	return false
}

// WasInStateAt reports whether the item occupied category c at instant t, judged from its milestones.
func (w WorkItem) WasInStateAt(c StateCategory, t time.Time) bool {
	arrived := w.ArrivalDateTime != nil && !w.ArrivalDateTime.After(t)
	committed := w.CommitmentDateTime != nil && !w.CommitmentDateTime.After(t)
	departed := w.DepartureDateTime != nil && !w.DepartureDateTime.After(t)
	switch c {
	case Proposed:
		return arrived && !committed && !departed
	case InProgress:
		return committed && !departed
	case Completed:
		return departed
	}
	return false
}

func within(t *time.Time, period aggregation.Interval) bool {
	return t != nil && period.Contains(*t)
}

// ExtendedWorkItem is a work item tagged with the scenario that retrieved it. An item that satisfies
// several requested scenarios is returned once per scenario.
type ExtendedWorkItem struct {
	WorkItem
	Scenario RetrievalScenario `json:"scenario"`
}

// GroupByScenario splits tagged items into one list per scenario.
func GroupByScenario(items []ExtendedWorkItem) map[RetrievalScenario][]ExtendedWorkItem {
	grouped := make(map[RetrievalScenario][]ExtendedWorkItem)
	for _, it := range items {
		grouped[it.Scenario] = append(grouped[it.Scenario], it)
	}
	return grouped
}

// Plain strips the scenario tag.
func Plain(items []ExtendedWorkItem) []WorkItem {
	out := make([]WorkItem, len(items))
	for i, it := range items {
		out[i] = it.WorkItem
	}
	return out
}

// QueryOptions tune how the state query layer treats delayed and discarded items. By default delayed
// items are left out of inventory and discarded items out of completion.
type QueryOptions struct {
	IsDelayed        *bool `json:"isDelayed,omitempty"`
	DisableDelayed   bool  `json:"disableDelayed,omitempty"`
	DisableDiscarded bool  `json:"disableDiscarded,omitempty"`
}

// String is a stable form used in cache keys.
func (o QueryOptions) String() string {
	delayed := "any"
	if o.IsDelayed != nil {
		delayed = strconv.FormatBool(*o.IsDelayed)
	}
	return fmt.Sprintf("delayed=%s;disableDelayed=%t;disableDiscarded=%t", delayed, o.DisableDelayed, o.DisableDiscarded)
}

// Admits applies the delayed and discarded rules to an item retrieved for scenario s.
func (o QueryOptions) Admits(w WorkItem, s RetrievalScenario) bool {
	if o.IsDelayed != nil {
		if w.Delayed != *o.IsDelayed {
			return false
		}
	} else if !o.DisableDelayed && w.Delayed && s.isInventory() {
		return false
	}
	if !o.DisableDiscarded && w.Discarded && s.isCompletion() {
		return false
	}
	return true
}

func (s RetrievalScenario) isInventory() bool {
	return s == CurrentInventoryOnly || s == WasInventoryBetweenDates || s == BecameInventoryBetweenDates
}

func (s RetrievalScenario) isCompletion() bool {
	return s == CurrentCompletedOnly || s == BecameCompletedBetweenDates
}
