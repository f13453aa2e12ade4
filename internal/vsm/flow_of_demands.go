package vsm

import (
	"context"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/stats"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	"golang.org/x/sync/errgroup"
)

// DemandPoint counts the movements through the system in one bucket.
type DemandPoint struct {
	DateStart   time.Time `json:"dateStart"`
	DateEnd     time.Time `json:"dateEnd"`
	Arrivals    int       `json:"arrivals"`
	Commitments int       `json:"commitments"`
	Departures  int       `json:"departures"`
	Discarded   int       `json:"discarded"`
}

// DemandTotals are the period totals and the current populations.
type DemandTotals struct {
	Arrivals    int `json:"arrivals"`
	Commitments int `json:"commitments"`
	Departures  int `json:"departures"`
	Discarded   int `json:"discarded"`
	Inventory   int `json:"inventory"`
	WIP         int `json:"wip"`
}

// FlowOfDemandsResult is the flow of demands response.
type FlowOfDemandsResult struct {
	Aggregation             aggregation.Key          `json:"aggregation"`
	Totals                  DemandTotals             `json:"totals"`
	DemandOverCapacity      int                      `json:"demandOverCapacityPercent"`
	DemandOverCapacityLight stats.TrafficLight       `json:"demandOverCapacityLight"`
	Aggregated              []DemandPoint            `json:"aggregated"`
	WidgetInfo              []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// FlowOfDemands compares what entered the system with what left it, per bucket and in total. Demand is
// arrivals and capacity is departures.
func (s *Session) FlowOfDemands(ctx context.Context) (*FlowOfDemandsResult, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}

	var (
		moved     []workitem.ExtendedWorkItem
		inventory []workitem.WorkItem
		wip       []workitem.WorkItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.scenarioItemsFor(gctx, c, "", workitem.QueryOptions{},
			workitem.BecameInventoryBetweenDates,
			workitem.BecameWIPBetweenDates,
			workitem.BecameCompletedBetweenDates,
			workitem.BecameDiscardedBetweenDates,
		)
		moved = items
		return err
	})
	g.Go(func() error {
		items, err := s.StateItems(gctx, workitem.Proposed, workitem.QueryOptions{})
		inventory = items
		return err
	})
	g.Go(func() error {
		items, err := s.StateItems(gctx, workitem.InProgress, workitem.QueryOptions{})
		wip = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grouped := workitem.GroupByScenario(moved)
	totals := DemandTotals{
		Arrivals:    len(grouped[workitem.BecameInventoryBetweenDates]),
		Commitments: len(grouped[workitem.BecameWIPBetweenDates]),
		Departures:  len(grouped[workitem.BecameCompletedBetweenDates]),
		Discarded:   len(grouped[workitem.BecameDiscardedBetweenDates]),
		Inventory:   len(inventory),
		WIP:         len(wip),
	}

	key := s.filters.Aggregation()
	bounds := aggregation.Bounds(c.Period, key)
	points := make([]DemandPoint, len(bounds))
	for i, b := range bounds {
		points[i] = DemandPoint{DateStart: b.Start, DateEnd: b.End}
	}
	series := []struct {
		scenario workitem.RetrievalScenario
		field    string
		count    func(*DemandPoint, int)
	}{
		{workitem.BecameInventoryBetweenDates, workitem.ArrivalDate, func(p *DemandPoint, n int) { p.Arrivals = n }},
		{workitem.BecameWIPBetweenDates, workitem.CommitmentDate, func(p *DemandPoint, n int) { p.Commitments = n }},
		{workitem.BecameCompletedBetweenDates, workitem.DepartureDate, func(p *DemandPoint, n int) { p.Departures = n }},
		{workitem.BecameDiscardedBetweenDates, workitem.DepartureDate, func(p *DemandPoint, n int) { p.Discarded = n }},
	}
	for _, sr := range series {
		buckets, err := aggregation.SeparateWorkItemsInIntervalBuckets(grouped[sr.scenario], c.Period, key, sr.field)
		if err != nil {
			return nil, err
		}
		for i, b := range buckets {
			sr.count(&points[i], len(b.WorkItemList))
		}
	}

	pct, light := stats.DemandOverCapacityLight(float64(totals.Arrivals), float64(totals.Departures))
	return &FlowOfDemandsResult{
		Aggregation:             key,
		Totals:                  totals,
		DemandOverCapacity:      pct,
		DemandOverCapacityLight: light,
		Aggregated:              points,
		WidgetInfo:              s.widgetInformation(ctx, widgetinfo.FlowOfDemands),
	}, nil
}
