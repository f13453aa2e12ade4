package vsm

import (
	"strings"
	"time"

	"flow-analytics/internal/stats"
	"flow-analytics/internal/workitem"
)

func boolPtr(b bool) *bool {
	return &b
}

// sleIndex resolves a work item's service level expectation by type id, then by type name.
type sleIndex map[string]int

func newSLEIndex(types []workitem.WorkItemTypeConfig) sleIndex {
	idx := make(sleIndex, 2*len(types))
	for _, t := range types {
		if t.ServiceLevelExpectationInDays <= 0 {
			continue
		}
		if t.ID != "" {
			idx["id:"+t.ID] = t.ServiceLevelExpectationInDays
		}
		if t.Name != "" {
			idx["name:"+strings.ToLower(t.Name)] = t.ServiceLevelExpectationInDays
		}
	}
	return idx
}

func (idx sleIndex) lookup(w workitem.WorkItem) (int, bool) {
	if days, ok := idx["id:"+w.WorkItemTypeID]; ok && w.WorkItemTypeID != "" {
		return days, true
	}
	days, ok := idx["name:"+strings.ToLower(w.WorkItemType)]
	return days, ok && w.WorkItemType != ""
}

// isAboveSLE compares lead time for departed items and age for the rest.
func (idx sleIndex) isAboveSLE(w workitem.WorkItem, now time.Time) bool {
	sle, ok := idx.lookup(w)
	if !ok {
		return false
	}
	if w.DepartureDateTime != nil {
		return w.LeadTimeInWholeDays() > sle
	}
	return w.AgeInWholeDays(now) > sle
}

// staleThreshold falls back to the team threshold for items without a known level.
func staleThreshold(thresholds map[workitem.Level]int, level workitem.Level) int {
	if days, ok := thresholds[level]; ok {
		return days
	}
	return thresholds[workitem.LevelTeam]
}

func isStale(w workitem.WorkItem, thresholds map[workitem.Level]int, now time.Time) bool {
	return w.StateCategory == workitem.InProgress && staleAt(w, thresholds, now)
}

// staleAt judges staleness at a given date without looking at the current state.
func staleAt(w workitem.WorkItem, thresholds map[workitem.Level]int, at time.Time) bool {
	return w.DaysSinceLastChange(at) > float64(staleThreshold(thresholds, w.Level))
}

func leadTimes[T workitem.Itemer](items []T) []int {
	out := make([]int, 0, len(items))
	for _, it := range items {
		if lt := it.Item().LeadTimeInWholeDays(); lt > 0 {
			out = append(out, lt)
		}
	}
	return out
}

// ages measures every item from its start until at.
func ages[T workitem.Itemer](items []T, at time.Time) []int {
	out := make([]int, 0, len(items))
	for _, it := range items {
		if start := it.Item().StartDateTime(); start != nil {
			out = append(out, workitem.WholeDaysBetween(*start, at))
		}
	}
	return out
}

func p85(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	return stats.PercentileDiscrete(values, 0.85)
}

// weeksIn is the length of the period in weeks, never less than one.
func weeksIn(from, to time.Time) float64 {
	weeks := to.Sub(from).Hours() / (24 * 7)
	if weeks < 1 {
		return 1
	}
	return weeks
}

// countReasons tallies values, using fallback for items without one.
func countReasons(reasons map[string]int, values []string, fallback string) {
	if len(values) == 0 {
		reasons[fallback]++
		return
	}
	for _, v := range values {
		reasons[v]++
	}
}
