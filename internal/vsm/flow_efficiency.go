package vsm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/stats"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	"golang.org/x/sync/errgroup"
)

// ArrivalMode decides whether time spent before commitment counts towards flow efficiency.
type ArrivalMode string

const (
	IncludeArrival ArrivalMode = "include"
	ExcludeArrival ArrivalMode = "exclude"
)

// ParseArrivalMode defaults to ExcludeArrival.
func ParseArrivalMode(s string) ArrivalMode {
	if ArrivalMode(s) == IncludeArrival {
		return IncludeArrival
	}
	return ExcludeArrival
}

const totalBucket = "total"

// FlowEfficiencyDonut is the active/waiting split over the whole period. Times are in hours.
type FlowEfficiencyDonut struct {
	ActiveTime         float64 `json:"activeTime"`
	WaitingTime        float64 `json:"waitingTime"`
	ActiveTimeInHours  string  `json:"activeTimeInHours"`
	WaitingTimeInHours string  `json:"waitingTimeInHours"`
	EfficiencyPercent  float64 `json:"efficiencyPercent"`
	NumberOfWorkItems  int     `json:"numberOfWorkItems"`
}

// FlowEfficiencyPoint is the active/waiting split of one bucket.
type FlowEfficiencyPoint struct {
	DateStart         time.Time `json:"dateStart"`
	DateEnd           time.Time `json:"dateEnd"`
	ActiveTime        float64   `json:"activeTime"`
	WaitingTime       float64   `json:"waitingTime"`
	EfficiencyPercent float64   `json:"efficiencyPercent"`
	NumberOfWorkItems int       `json:"numberOfWorkItems"`
}

// FlowEfficiencyView is one category and arrival mode combination.
type FlowEfficiencyView struct {
	StateCategory workitem.StateCategory `json:"stateCategory"`
	Arrival       ArrivalMode            `json:"arrival"`
	Donut         FlowEfficiencyDonut    `json:"donut"`
	Series        []FlowEfficiencyPoint  `json:"series"`
}

// FlowEfficiencyResult holds the four views of the widget.
type FlowEfficiencyResult struct {
	Aggregation aggregation.Key          `json:"aggregation"`
	Views       []FlowEfficiencyView     `json:"views"`
	WidgetInfo  []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// FlowEfficiency computes the donut and series for in-progress and completed items, each with and without
// time before commitment. The four views are computed concurrently.
func (s *Session) FlowEfficiency(ctx context.Context) (*FlowEfficiencyResult, error) {
	s.filters.SetSafeAggregation()

	type combo struct {
		category workitem.StateCategory
		arrival  ArrivalMode
	}
	combos := []combo{
		{workitem.InProgress, IncludeArrival},
		{workitem.InProgress, ExcludeArrival},
		{workitem.Completed, IncludeArrival},
		{workitem.Completed, ExcludeArrival},
	}

	views := make([]FlowEfficiencyView, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	for i, cb := range combos {
		g.Go(func() error {
			v, err := s.flowEfficiencyView(gctx, cb.arrival, cb.category, true)
			if err != nil {
				return err
			}
			views[i] = *v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &FlowEfficiencyResult{
		Aggregation: s.filters.Aggregation(),
		Views:       views,
		WidgetInfo:  s.widgetInformation(ctx, widgetinfo.FlowEfficiency),
	}, nil
}

// FlowEfficiencyDonut returns only the period totals for one combination.
func (s *Session) FlowEfficiencyDonut(ctx context.Context, arrival ArrivalMode, category workitem.StateCategory) (FlowEfficiencyDonut, error) {
	v, err := s.flowEfficiencyView(ctx, arrival, category, false)
	if err != nil {
		return FlowEfficiencyDonut{}, err
	}
	return v.Donut, nil
}

func (s *Session) flowEfficiencyView(ctx context.Context, arrival ArrivalMode, category workitem.StateCategory, withSeries bool) (*FlowEfficiencyView, error) {
	if category != workitem.InProgress && category != workitem.Completed {
		return nil, workitem.Violation("flow efficiency is not defined for %s items", category)
	}
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	include := arrival == IncludeArrival

	scenario := workitem.BecameCompletedBetweenDates
	if category == workitem.InProgress {
		scenario = workitem.WasWIPBetweenDates
	}
	items, err := s.scenarioItemsFor(ctx, c, "", workitem.QueryOptions{}, scenario)
	if err != nil {
		return nil, err
	}

	// 1. One query per bucket, plus the whole period, tagged by bucket id
	var (
		bounds  []aggregation.Interval
		queries []workitem.TimeQuery
	)
	totalIDs := idsInState(items, category, c.Period.End)
	if len(totalIDs) > 0 {
		queries = append(queries, workitem.TimeQuery{BucketID: totalBucket, WorkItemIDs: totalIDs, IncludeArrival: include, End: c.Period.End})
	}
	if withSeries {
		bounds = aggregation.Bounds(c.Period, s.filters.Aggregation())
		for i, ids := range bucketIDs(items, category, bounds) {
			if len(ids) == 0 {
				continue
			}
			queries = append(queries, workitem.TimeQuery{BucketID: strconv.Itoa(i), WorkItemIDs: ids, IncludeArrival: include, End: bounds[i].End})
		}
	}

	var rows []workitem.ActiveQueueRow
	if len(queries) > 0 {
		rows, err = s.deps.Snapshots.GetActiveAndQueueTime(ctx, s.orgID(), queries)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch active and queue time: %w", err)
		}
	}

	// 2. Redistribute rows to their bucket
	totals := make(map[string]*timeSplit, len(queries))
	for _, q := range queries {
		totals[q.BucketID] = &timeSplit{}
	}
	for _, r := range rows {
		split, ok := totals[r.BucketID]
		if !ok {
			return nil, workitem.Violation("active and queue row for unknown bucket %q", r.BucketID)
		}
		split.add(r)
	}

	view := &FlowEfficiencyView{StateCategory: category, Arrival: arrival, Series: []FlowEfficiencyPoint{}}
	if t, ok := totals[totalBucket]; ok {
		view.Donut = t.donut()
	} else {
		view.Donut = timeSplit{}.donut()
	}
	for i, b := range bounds {
		point := FlowEfficiencyPoint{DateStart: b.Start, DateEnd: b.End}
		if t, ok := totals[strconv.Itoa(i)]; ok {
			point.ActiveTime = hours(t.active)
			point.WaitingTime = hours(t.waiting)
			point.EfficiencyPercent = efficiency(t.active, t.waiting)
			point.NumberOfWorkItems = len(t.items)
		}
		view.Series = append(view.Series, point)
	}
	return view, nil
}

// idsInState returns completed items, or items still in progress at end.
func idsInState(items []workitem.ExtendedWorkItem, category workitem.StateCategory, end time.Time) []string {
	var picked []workitem.ExtendedWorkItem
	for _, it := range items {
		if category == workitem.Completed || it.WasInStateAt(workitem.InProgress, end) {
			picked = append(picked, it)
		}
	}
	return workitem.IDs(picked)
}

// bucketIDs assigns completed items by departure and in-progress items to every bucket whose end finds
// them still in progress. A departure exactly at the start of the first bucket belongs to it.
func bucketIDs(items []workitem.ExtendedWorkItem, category workitem.StateCategory, bounds []aggregation.Interval) [][]string {
	out := make([][]string, len(bounds))
	for i, b := range bounds {
		var picked []workitem.ExtendedWorkItem
		for _, it := range items {
			if category == workitem.Completed {
				d := it.DepartureDateTime
				if d != nil && (d.After(b.Start) || (i == 0 && d.Equal(b.Start))) && !d.After(b.End) {
					picked = append(picked, it)
				}
			} else if it.WasInStateAt(workitem.InProgress, b.End) {
				picked = append(picked, it)
			}
		}
		out[i] = workitem.IDs(picked)
	}
	return out
}

type timeSplit struct {
	active  float64
	waiting float64
	items   map[string]bool
}

func (t *timeSplit) add(r workitem.ActiveQueueRow) {
	if t.items == nil {
		t.items = make(map[string]bool)
	}
	t.active += r.ActiveTimeInSeconds
	t.waiting += r.WaitingTimeInSeconds
	t.items[r.WorkItemID] = true
}

func (t timeSplit) donut() FlowEfficiencyDonut {
	return FlowEfficiencyDonut{
		ActiveTime:         hours(t.active),
		WaitingTime:        hours(t.waiting),
		ActiveTimeInHours:  stats.FormatHours(t.active),
		WaitingTimeInHours: stats.FormatHours(t.waiting),
		EfficiencyPercent:  efficiency(t.active, t.waiting),
		NumberOfWorkItems:  len(t.items),
	}
}

func hours(seconds float64) float64 {
	return stats.Round(seconds/3600, 2)
}

func efficiency(active, waiting float64) float64 {
	if active+waiting == 0 {
		return 0
	}
	return stats.Round(active/(active+waiting)*100, 2)
}
