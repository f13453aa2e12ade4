package vsm

import (
	"context"
	"fmt"
	"slices"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"
)

// CFDPoint is the population of one state at one date.
type CFDPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// CFDSeries is the daily population of one state.
type CFDSeries struct {
	State         string                 `json:"state"`
	StateCategory workitem.StateCategory `json:"stateCategory"`
	Points        []CFDPoint             `json:"points"`
}

// CFDResult is the cumulative flow diagram response.
type CFDResult struct {
	Aggregation aggregation.Key          `json:"aggregation"`
	Dates       []time.Time              `json:"dates"`
	States      []CFDSeries              `json:"states"`
	Categories  []CFDSeries              `json:"categories"`
	WidgetInfo  []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// CFD builds one series per state from the daily snapshot counts. Days without a row count zero, except
// for completed states, which carry the previous day forward because the snapshot source omits unchanged
// completed rows. A state reported under two categories is a contract violation.
func (s *Session) CFD(ctx context.Context) (*CFDResult, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Snapshots.GetDatabaseCFD(ctx, s.orgID(), c)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cfd rows: %w", err)
	}

	loc := s.filters.Timezone
	days := aggregation.GenerateDateArray(c.Period, aggregation.Day)

	// 1. Group rows by state
	type stateRows struct {
		category workitem.StateCategory
		counts   map[time.Time]int
	}
	byState := make(map[string]*stateRows)
	var order []string
	for _, r := range rows {
		if r.State == "" {
			return nil, workitem.Violation("cfd row without state on %s", r.Date.Format(time.DateOnly))
		}
		sr, ok := byState[r.State]
		if !ok {
			sr = &stateRows{category: r.StateCategory, counts: make(map[time.Time]int)}
			byState[r.State] = sr
			order = append(order, r.State)
		} else if sr.category != r.StateCategory {
			return nil, workitem.Violation("state %q reported as both %s and %s", r.State, sr.category, r.StateCategory)
		}
		day := aggregation.StartOf(r.Date.In(loc), aggregation.Day)
		sr.counts[day] += r.Count
	}

	// 2. Order states through the lifecycle, keeping first appearance within a category
	slices.SortStableFunc(order, func(a, b string) int {
		return byState[a].category.Order() - byState[b].category.Order()
	})

	// 3. Assemble the daily series
	states := make([]CFDSeries, 0, len(order))
	for _, state := range order {
		sr := byState[state]
		states = append(states, CFDSeries{
			State:         state,
			StateCategory: sr.category,
			Points:        fillDaily(days, sr.counts, sr.category == workitem.Completed),
		})
	}

	// 4. Resample when a coarser aggregation was asked for
	key := s.filters.Aggregation()
	dates := days
	if key != aggregation.Day {
		dates = aggregation.GenerateDateArray(c.Period, key)
		for i := range states {
			states[i].Points = resample(states[i].Points, c.Period, key)
		}
	}

	return &CFDResult{
		Aggregation: key,
		Dates:       dates,
		States:      states,
		Categories:  sumByCategory(states),
		WidgetInfo:  s.widgetInformation(ctx, widgetinfo.CFD),
	}, nil
}

// fillDaily lays counts over days. With forwardFill a missing day repeats the previous day's count.
func fillDaily(days []time.Time, counts map[time.Time]int, forwardFill bool) []CFDPoint {
	points := make([]CFDPoint, len(days))
	for i, d := range days {
		count, ok := counts[d]
		if !ok && forwardFill && i > 0 {
			count = points[i-1].Count
		}
		points[i] = CFDPoint{Date: d, Count: count}
	}
	return points
}

// resample keeps, per bucket, the population on the last day of the bucket.
func resample(daily []CFDPoint, period aggregation.Interval, key aggregation.Key) []CFDPoint {
	bounds := aggregation.Bounds(period, key)
	out := make([]CFDPoint, len(bounds))
	j := 0
	for i, b := range bounds {
		out[i] = CFDPoint{Date: b.Start}
		for j < len(daily) && daily[j].Date.Before(b.End) {
			out[i].Count = daily[j].Count
			j++
		}
	}
	return out
}

func sumByCategory(states []CFDSeries) []CFDSeries {
	var out []CFDSeries
	for _, category := range workitem.StateCategories {
		var sum []CFDPoint
		for _, st := range states {
			if st.StateCategory != category {
				continue
			}
			if sum == nil {
				sum = make([]CFDPoint, len(st.Points))
				for i, p := range st.Points {
					sum[i].Date = p.Date
				}
			}
			for i, p := range st.Points {
				sum[i].Count += p.Count
			}
		}
		if sum != nil {
			out = append(out, CFDSeries{State: string(category), StateCategory: category, Points: sum})
		}
	}
	return out
}
