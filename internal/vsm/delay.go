package vsm

import (
	"context"
	"time"

	"flow-analytics/internal/stats"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	"golang.org/x/sync/errgroup"
)

// Reason labels for items without a recorded reason.
const (
	NoBlockedReason   = "No reason given"
	NoDiscardedReason = "No reason given"
)

// StaleWork is the in-progress work that stopped moving.
type StaleWork struct {
	Count      int                    `json:"count"`
	WIP        int                    `json:"wip"`
	Percent    float64                `json:"percent"`
	Light      stats.TrafficLight     `json:"light"`
	Thresholds map[workitem.Level]int `json:"thresholds"`
	Items      []workitem.WorkItem    `json:"items"`
}

// Blockers is the in-progress work that is blocked.
type Blockers struct {
	Count   int                 `json:"count"`
	Light   stats.TrafficLight  `json:"light"`
	Reasons map[string]int      `json:"reasons"`
	Items   []workitem.WorkItem `json:"items"`
}

// DelayedItems are backlog items explicitly postponed.
type DelayedItems struct {
	Count int                 `json:"count"`
	Items []workitem.WorkItem `json:"items"`
}

// DiscardedItems are items removed from the system during the period.
type DiscardedItems struct {
	Count               int                 `json:"count"`
	ActiveTimeInSeconds float64             `json:"activeTimeInSeconds"`
	ActiveTimeInHours   string              `json:"activeTimeInHours"`
	Reasons             map[string]int      `json:"reasons"`
	Items               []workitem.WorkItem `json:"items"`
}

// WIPExcess is the work in progress expressed in weeks of throughput.
type WIPExcess struct {
	WIP              int                `json:"wip"`
	WeeklyThroughput float64            `json:"weeklyThroughput"`
	Weeks            float64            `json:"weeks"`
	Light            stats.TrafficLight `json:"light"`
}

// FlowDebt compares how old the current work is with how long past work took.
type FlowDebt struct {
	WIPAgeP85   float64            `json:"wipAgeP85"`
	LeadTimeP85 float64            `json:"leadTimeP85"`
	Ratio       float64            `json:"ratio"`
	Light       stats.TrafficLight `json:"light"`
}

// DemandVsCapacity compares arrivals with departures over the period.
type DemandVsCapacity struct {
	Demand   int                `json:"demand"`
	Capacity int                `json:"capacity"`
	Percent  int                `json:"demandOverCapacityPercent"`
	Light    stats.TrafficLight `json:"light"`
}

// SourcesOfDelayResult is the sources of delay and waste response.
type SourcesOfDelayResult struct {
	Stale                StaleWork                `json:"staleWork"`
	Blockers             Blockers                 `json:"blockers"`
	Delayed              DelayedItems             `json:"delayedItems"`
	DiscardedBeforeStart DiscardedItems           `json:"discardedBeforeStart"`
	DiscardedAfterStart  DiscardedItems           `json:"discardedAfterStart"`
	WIPExcess            WIPExcess                `json:"wipExcess"`
	FlowDebt             FlowDebt                 `json:"flowDebt"`
	DemandVsCapacity     DemandVsCapacity         `json:"demandVsCapacity"`
	WidgetInfo           []widgetinfo.Information `json:"widgetInfo,omitempty"`

	IndicatorInfo map[widgetinfo.WidgetType][]widgetinfo.Information `json:"indicatorInfo,omitempty"`
}

var delayIndicators = []widgetinfo.WidgetType{
	widgetinfo.StaleWork,
	widgetinfo.Blockers,
	widgetinfo.DelayedItems,
	widgetinfo.DiscardedBeforeStart,
	widgetinfo.DiscardedAfterStart,
	widgetinfo.WIPExcess,
	widgetinfo.FlowDebt,
	widgetinfo.DemandVsCapacity,
}

// SourcesOfDelay classifies current and recent work into the waste indicators, each with a traffic light.
func (s *Session) SourcesOfDelay(ctx context.Context) (*SourcesOfDelayResult, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var (
		wip      []workitem.WorkItem
		delayed  []workitem.WorkItem
		moved    []workitem.ExtendedWorkItem
		configs  []workitem.CustomFieldConfig
		discards discardSplit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.StateItems(gctx, workitem.InProgress, workitem.QueryOptions{})
		wip = items
		return err
	})
	g.Go(func() error {
		items, err := s.StateItems(gctx, workitem.Proposed, workitem.QueryOptions{IsDelayed: boolPtr(true), DisableDelayed: true})
		delayed = items
		return err
	})
	g.Go(func() error {
		items, err := s.scenarioItemsFor(gctx, c, "", workitem.QueryOptions{},
			workitem.BecameInventoryBetweenDates,
			workitem.BecameCompletedBetweenDates,
		)
		moved = items
		return err
	})
	g.Go(func() error {
		cfg, err := s.CustomFieldConfigs(gctx)
		configs = cfg
		return err
	})
	g.Go(func() error {
		split, err := s.discarded(gctx)
		discards = split
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	thresholds := s.StaleThresholds(ctx)
	grouped := workitem.GroupByScenario(moved)
	completed := grouped[workitem.BecameCompletedBetweenDates]
	arrived := grouped[workitem.BecameInventoryBetweenDates]

	res := &SourcesOfDelayResult{
		Stale:    StaleWork{WIP: len(wip), Thresholds: thresholds, Items: []workitem.WorkItem{}},
		Blockers: Blockers{Reasons: map[string]int{}, Items: []workitem.WorkItem{}},
		Delayed:  DelayedItems{Count: len(delayed), Items: make([]workitem.WorkItem, 0, len(delayed))},
	}

	// 1. Stale and blocked work in progress
	for _, w := range wip {
		if isStale(w, thresholds, now) {
			w.IsStale = true
			res.Stale.Items = append(res.Stale.Items, w)
		}
		reasons := fieldValues(w, configs, workitem.TagBlockedReason)
		if w.Flagged || len(reasons) > 0 {
			w.IsBlocked = true
			countReasons(res.Blockers.Reasons, reasons, NoBlockedReason)
			res.Blockers.Items = append(res.Blockers.Items, w)
		}
	}
	res.Stale.Count = len(res.Stale.Items)
	res.Stale.Percent, res.Stale.Light = stats.StaleWorkLight(res.Stale.Count, len(wip))
	res.Blockers.Count = len(res.Blockers.Items)
	res.Blockers.Light = stats.BlockersLight(res.Blockers.Count, len(wip))

	// 2. Delayed backlog
	for _, w := range delayed {
		w.IsDelayed = true
		res.Delayed.Items = append(res.Delayed.Items, w)
	}

	// 3. Discarded work
	res.DiscardedBeforeStart = discards.summary(discards.before, configs, false)
	res.DiscardedAfterStart = discards.summary(discards.after, configs, true)

	// 4. WIP excess and flow debt
	weekly := stats.Round(float64(len(completed))/weeksIn(c.Period.Start, c.Period.End), 2)
	res.WIPExcess = WIPExcess{WIP: len(wip), WeeklyThroughput: weekly}
	res.WIPExcess.Weeks, res.WIPExcess.Light = stats.WIPExcessLight(len(wip), weekly)

	res.FlowDebt = FlowDebt{WIPAgeP85: p85(ages(wip, now)), LeadTimeP85: p85(leadTimes(completed))}
	res.FlowDebt.Ratio, res.FlowDebt.Light = stats.FlowDebtLight(res.FlowDebt.WIPAgeP85, res.FlowDebt.LeadTimeP85)

	// 5. Demand against capacity
	res.DemandVsCapacity = DemandVsCapacity{Demand: len(arrived), Capacity: len(completed)}
	res.DemandVsCapacity.Percent, res.DemandVsCapacity.Light = stats.DemandOverCapacityLight(float64(len(arrived)), float64(len(completed)))

	res.WidgetInfo = s.widgetInformation(ctx, widgetinfo.SourcesOfDelay)
	res.IndicatorInfo = make(map[widgetinfo.WidgetType][]widgetinfo.Information, len(delayIndicators))
	for _, t := range delayIndicators {
		if info := s.widgetInformation(ctx, t); len(info) > 0 {
			res.IndicatorInfo[t] = info
		}
	}
	return res, nil
}

type discardSplit struct {
	before       []workitem.WorkItem
	after        []workitem.WorkItem
	activeByItem map[string]time.Duration
}

func (d discardSplit) summary(items []workitem.WorkItem, configs []workitem.CustomFieldConfig, withActiveTime bool) DiscardedItems {
	out := DiscardedItems{Count: len(items), Reasons: map[string]int{}, Items: make([]workitem.WorkItem, 0, len(items))}
	for _, w := range items {
		countReasons(out.Reasons, fieldValues(w, configs, workitem.TagDiscardedReason), NoDiscardedReason)
		if withActiveTime {
			out.ActiveTimeInSeconds += d.activeByItem[w.WorkItemID].Seconds()
		}
		out.Items = append(out.Items, w)
	}
	out.ActiveTimeInHours = stats.FormatHours(out.ActiveTimeInSeconds)
	return out
}

// discarded splits the items discarded during the period by whether work had started. The split reads each
// item's state history: an item that ever entered an in-progress state was discarded after start, and its
// time in active states is accumulated. Items without history fall back to their commitment date.
func (s *Session) discarded(ctx context.Context) (discardSplit, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return discardSplit{}, err
	}
	items, err := s.scenarioItemsFor(ctx, c, "", workitem.QueryOptions{DisableDiscarded: true}, workitem.BecameDiscardedBetweenDates)
	if err != nil {
		return discardSplit{}, err
	}
	snaps, err := s.Snapshots(ctx, workitem.IDs(items), c.Period.End)
	if err != nil {
		return discardSplit{}, err
	}
	history := workitem.GroupSnapshots(snaps)

	split := discardSplit{
		before:       []workitem.WorkItem{},
		after:        []workitem.WorkItem{},
		activeByItem: make(map[string]time.Duration),
	}
	for _, it := range items {
		w := it.WorkItem
		end := c.Period.End
		if w.DepartureDateTime != nil {
			end = *w.DepartureDateTime
		}
		started := w.CommitmentDateTime != nil
		if events := workitem.EventsWithDuration(history[w.WorkItemID], end); len(events) > 0 {
			started = false
			var active time.Duration
			for _, e := range events {
				if e.StateCategory == workitem.InProgress {
					started = true
				}
				if e.StateType == workitem.StateTypeActive {
					active += e.Duration
				}
			}
			split.activeByItem[w.WorkItemID] = active
		}
		if started {
			w.IsDiscardedAfter = true
			split.after = append(split.after, w)
		} else {
			w.IsDiscardedBefore = true
			split.before = append(split.before, w)
		}
	}
	return split, nil
}
