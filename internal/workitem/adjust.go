package workitem

import "flow-analytics/internal/aggregation"

// DateAdjuster snaps an item's dates to the start of their aggregation unit.
type DateAdjuster func(WorkItem) WorkItem

// GetWorkItemDateAdjuster returns a pure transform that truncates the three milestone dates, plus
// customKey when given, to the start of their aggregation unit. Missing dates stay missing.
func GetWorkItemDateAdjuster(key aggregation.Key, customKey string) DateAdjuster {
	fields := []string{ArrivalDate, CommitmentDate, DepartureDate}
	if customKey != "" && customKey != ArrivalDate && customKey != CommitmentDate && customKey != DepartureDate {
		fields = append(fields, customKey)
	}
	return func(w WorkItem) WorkItem {
		out := w
		for _, f := range fields {
			date, err := w.DateOf(f)
			if err != nil || date == nil || date.IsZero() {
				continue
			}
			snapped := aggregation.StartOf(*date, key)
			out.SetDate(f, &snapped)
		}
		out.CustomFields = append([]CustomField(nil), w.CustomFields...)
		return out
	}
}

// AdjustAll applies the adjuster to every item.
func (a DateAdjuster) AdjustAll(items []WorkItem) []WorkItem {
	out := make([]WorkItem, len(items))
	for i, it := range items {
		out[i] = a(it)
	}
	return out
}
