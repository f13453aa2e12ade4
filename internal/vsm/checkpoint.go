package vsm

import (
	"context"
	"fmt"
	"slices"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/stats"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	"golang.org/x/sync/errgroup"
)

// CheckpointMetrics are the flow metrics measured over one checkpoint window.
type CheckpointMetrics struct {
	Arrivals         float64 `json:"arrivals"`
	Throughput       float64 `json:"throughput"`
	LeadTimeP85      float64 `json:"leadTimeP85"`
	WIP              float64 `json:"wip"`
	WIPAgeP85        float64 `json:"wipAgeP85"`
	FlowEfficiency   float64 `json:"flowEfficiency"`
	FlowDebt         float64 `json:"flowDebt"`
	StalePercent     float64 `json:"stalePercent"`
	TargetMetAverage float64 `json:"targetMetAverage"`
}

// Checkpoint is one window between two checkpoint dates.
type Checkpoint struct {
	DateStart time.Time          `json:"dateStart"`
	DateEnd   time.Time          `json:"dateEnd"`
	Metrics   CheckpointMetrics  `json:"metrics"`
	Delta     *CheckpointMetrics `json:"delta,omitempty"`
}

// PerformanceCheckpointResult is the performance checkpoint response.
type PerformanceCheckpointResult struct {
	Checkpoints []Checkpoint             `json:"checkpoints"`
	WidgetInfo  []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// PerformanceCheckpoints measures the windows between consecutive checkpoint dates. The filter period
// bounds are used as checkpoints when fewer than two are given. Windows are computed concurrently and each
// one after the first carries its change against the previous window.
func (s *Session) PerformanceCheckpoints(ctx context.Context, checkpoints []time.Time) (*PerformanceCheckpointResult, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	windows := checkpointWindows(checkpoints, c.Period, s.filters.Timezone)

	out := make([]Checkpoint, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			m, err := s.checkpointMetrics(gctx, c.WithPeriod(w))
			if err != nil {
				return fmt.Errorf("checkpoint %s: %w", w.End.Format(time.DateOnly), err)
			}
			out[i] = Checkpoint{DateStart: w.Start, DateEnd: w.End, Metrics: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := 1; i < len(out); i++ {
		d := out[i].Metrics.minus(out[i-1].Metrics)
		out[i].Delta = &d
	}

	return &PerformanceCheckpointResult{
		Checkpoints: out,
		WidgetInfo:  s.widgetInformation(ctx, widgetinfo.PerformanceCheckpoint),
	}, nil
}

// checkpointWindows sorts and dedupes the checkpoints by day and pairs consecutive ones. Each window
// starts at the beginning of its first day and ends at the end of its last day.
func checkpointWindows(checkpoints []time.Time, period aggregation.Interval, loc *time.Location) []aggregation.Interval {
	var days []time.Time
	for _, cp := range checkpoints {
		if cp.IsZero() {
			continue
		}
		days = append(days, aggregation.StartOf(cp.In(loc), aggregation.Day))
	}
	if len(days) < 2 {
		local := period.In(loc)
		days = append(days, aggregation.StartOf(local.Start, aggregation.Day), aggregation.StartOf(local.End, aggregation.Day))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })
	if len(days) < 2 {
		return []aggregation.Interval{aggregation.NewInterval(days[0], aggregation.EndOf(days[0], aggregation.Day))}
	}

	windows := make([]aggregation.Interval, 0, len(days)-1)
	for i := 1; i < len(days); i++ {
		start := days[i-1]
		if i > 1 {
			start = aggregation.Advance(days[i-1], 1, aggregation.Day)
		}
		windows = append(windows, aggregation.NewInterval(start, aggregation.EndOf(days[i], aggregation.Day)))
	}
	return windows
}

func (s *Session) checkpointMetrics(ctx context.Context, c filters.Criteria) (CheckpointMetrics, error) {
	items, err := s.scenarioItemsFor(ctx, c, "", workitem.QueryOptions{},
		workitem.BecameInventoryBetweenDates,
		workitem.BecameCompletedBetweenDates,
		workitem.WasWIPBetweenDates,
	)
	if err != nil {
		return CheckpointMetrics{}, err
	}
	grouped := workitem.GroupByScenario(items)
	completed := grouped[workitem.BecameCompletedBetweenDates]
	end := c.Period.End

	var wip []workitem.ExtendedWorkItem
	for _, it := range grouped[workitem.WasWIPBetweenDates] {
		if it.WasInStateAt(workitem.InProgress, end) {
			wip = append(wip, it)
		}
	}

	m := CheckpointMetrics{
		Arrivals:    float64(len(grouped[workitem.BecameInventoryBetweenDates])),
		Throughput:  float64(len(completed)),
		LeadTimeP85: p85(leadTimes(completed)),
		WIP:         float64(len(wip)),
		WIPAgeP85:   p85(ages(wip, end)),
	}
	m.FlowDebt, _ = stats.FlowDebtLight(m.WIPAgeP85, m.LeadTimeP85)

	thresholds := s.StaleThresholds(ctx)
	stale := 0
	for _, it := range wip {
		if staleAt(it.WorkItem, thresholds, end) {
			stale++
		}
	}
	m.StalePercent, _ = stats.StaleWorkLight(stale, len(wip))

	if ids := workitem.IDs(completed); len(ids) > 0 {
		rows, err := s.deps.Snapshots.GetActiveAndQueueTime(ctx, s.orgID(), []workitem.TimeQuery{{BucketID: totalBucket, WorkItemIDs: ids, End: end}})
		if err != nil {
			return CheckpointMetrics{}, fmt.Errorf("failed to fetch active and queue time: %w", err)
		}
		var split timeSplit
		for _, r := range rows {
			split.add(r)
		}
		m.FlowEfficiency = efficiency(split.active, split.waiting)
	}

	types, err := s.WorkItemTypes(ctx)
	if err != nil {
		return CheckpointMetrics{}, err
	}
	m.TargetMetAverage = stats.AverageTargetMet(targetMetByType(workitem.Plain(completed), types))
	return m, nil
}

func (m CheckpointMetrics) minus(prev CheckpointMetrics) CheckpointMetrics {
	return CheckpointMetrics{
		Arrivals:         m.Arrivals - prev.Arrivals,
		Throughput:       m.Throughput - prev.Throughput,
		LeadTimeP85:      stats.Round(m.LeadTimeP85-prev.LeadTimeP85, 2),
		WIP:              m.WIP - prev.WIP,
		WIPAgeP85:        stats.Round(m.WIPAgeP85-prev.WIPAgeP85, 2),
		FlowEfficiency:   stats.Round(m.FlowEfficiency-prev.FlowEfficiency, 2),
		FlowDebt:         stats.Round(m.FlowDebt-prev.FlowDebt, 2),
		StalePercent:     stats.Round(m.StalePercent-prev.StalePercent, 2),
		TargetMetAverage: stats.Round(m.TargetMetAverage-prev.TargetMetAverage, 2),
	}
}
