package vsm

import (
	"context"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/stats"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"
)

// ProductivityResult is the weekly throughput health response.
type ProductivityResult struct {
	stats.Productivity

	Weeks      []time.Time              `json:"weeks"`
	Labels     []string                 `json:"labels"`
	WidgetInfo []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// Productivity counts completed items per calendar week over the period and judges the current week
// against the others. The current week is the last one when the period ends on a week boundary, otherwise
// the last week is partial and the one before it is judged.
func (s *Session) Productivity(ctx context.Context) (*ProductivityResult, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.scenarioItemsFor(ctx, c, "", workitem.QueryOptions{}, workitem.BecameCompletedBetweenDates)
	if err != nil {
		return nil, err
	}

	weeks := aggregation.GenerateDateArray(c.Period, aggregation.Week)
	res := &ProductivityResult{
		Weeks:  weeks,
		Labels: make([]string, len(weeks)),
	}
	index := make(map[int64]int, len(weeks))
	for i, w := range weeks {
		index[w.Unix()] = i
		res.Labels[i] = aggregation.Label(w, aggregation.Week)
	}

	// Departures are snapped to the Monday of their week in the period's location.
	loc := c.Period.Start.Location()
	completed := workitem.Plain(items)
	for i, w := range completed {
		if w.DepartureDateTime != nil {
			d := w.DepartureDateTime.In(loc)
			completed[i].DepartureDateTime = &d
		}
	}
	weekly := make([]float64, len(weeks))
	for _, w := range workitem.GetWorkItemDateAdjuster(aggregation.Week, "").AdjustAll(completed) {
		if w.DepartureDateTime == nil {
			continue
		}
		if i, ok := index[w.DepartureDateTime.Unix()]; ok {
			weekly[i]++
		}
	}

	res.Productivity = stats.AnalyzeProductivity(weekly, currentWeekIndex(c.Period, len(weekly)), res.Labels)
	res.WidgetInfo = s.widgetInformation(ctx, widgetinfo.Productivity)
	return res, nil
}

func currentWeekIndex(period aggregation.Interval, weeks int) int {
	if weeks == 0 {
		return -1
	}
	end := period.End
	if !end.Before(aggregation.EndOf(end, aggregation.Week)) || weeks == 1 {
		return weeks - 1
	}
	return weeks - 2
}
