package filters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flow-analytics/internal/aggregation"

	"github.com/rs/zerolog/log"
)

// DefaultRollingWindowDays is the last link of the rolling window chain.
const DefaultRollingWindowDays = 30

// ErrInvalidDatePeriod is returned when no date period can be derived at all.
var ErrInvalidDatePeriod = errors.New("Invalid date period filter")

var boundaryLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z07:00",
}

// parseBoundary reads a boundary date in loc. The second result is false when the value is absent or unparseable.
func parseBoundary(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range boundaryLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc), true
		}
	}
	log.Debug().Str("value", raw).Msg("Unparseable date boundary, ignoring")
	return time.Time{}, false
}

func endOfDay(t time.Time) time.Time {
	return aggregation.EndOf(t, aggregation.Day)
}

// DatePeriod resolves the analysis interval. Explicit boundaries win (lower snapped to start of day, upper to
// end of day); a missing upper becomes now and a missing lower is derived from the rolling window.
// Inverted ranges are swapped. The result is memoized for the lifetime of the filters.
func (f *QueryFilters) DatePeriod(ctx context.Context) (aggregation.Interval, error) {
	f.mu.RLock()
	if f.period != nil {
		p := *f.period
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	loc := f.Timezone
	lower, hasLower := parseBoundary(f.params.Get(ParamLowerBoundary), loc)
	upper, hasUpper := parseBoundary(f.params.Get(ParamUpperBoundary), loc)

	end := f.Now()
	if hasUpper {
		end = endOfDay(upper)
	}

	var start time.Time
	if hasLower {
		start = aggregation.StartOf(lower, aggregation.Day)
	} else {
		days, err := f.RollingWindow(ctx)
		if err != nil {
			return aggregation.Interval{}, fmt.Errorf("%w: %v", ErrInvalidDatePeriod, err)
		}
		start = aggregation.StartOf(end.AddDate(0, 0, -days), aggregation.Day)
	}

	if start.IsZero() || end.IsZero() {
		return aggregation.Interval{}, ErrInvalidDatePeriod
	}

	period := aggregation.NewInterval(start, end)

	f.mu.Lock()
	f.period = &period
	f.mu.Unlock()
	return period, nil
}

// rollingWindowLookup is one fallible link in the rolling window chain. A nil result means "no value here".
type rollingWindowLookup struct {
	name   string
	lookup func(ctx context.Context) (*int, error)
}

// RollingWindow tries the context setting, then the organisation setting, then the hard-coded default.
// A failing or empty link is logged and skipped.
func (f *QueryFilters) RollingWindow(ctx context.Context) (int, error) {
	chain := []rollingWindowLookup{
		{name: "context", lookup: f.contextRollingWindow},
		{name: "organisation", lookup: f.organisationRollingWindow},
		{name: "default", lookup: func(context.Context) (*int, error) {
			d := DefaultRollingWindowDays
			return &d, nil
		}},
	}
	return resolveRollingWindow(ctx, f.orgID, chain)
}

func resolveRollingWindow(ctx context.Context, orgID string, chain []rollingWindowLookup) (int, error) {
	for _, link := range chain {
		days, err := link.lookup(ctx)
		if err != nil {
			log.Warn().Err(err).Str("org", orgID).Str("source", link.name).Msg("Rolling window lookup failed, trying next source")
			continue
		}
		if days == nil || *days <= 0 {
			continue
		}
		log.Debug().Str("org", orgID).Str("source", link.name).Int("days", *days).Msg("Rolling window resolved")
		return *days, nil
	}
	return 0, errors.New("no rolling window source returned a value")
}

func (f *QueryFilters) contextRollingWindow(ctx context.Context) (*int, error) {
	contextID := f.ContextID()
	if contextID == "" || f.contexts == nil {
		return nil, nil
	}
	settings, err := f.contexts.GetIfVisible(ctx, f.orgID, contextID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, nil
	}
	return settings.RollingWindowPeriodInDays, nil
}

func (f *QueryFilters) organisationRollingWindow(ctx context.Context) (*int, error) {
	if f.settings == nil {
		return nil, nil
	}
	settings, err := f.settings.GetSettings(ctx, f.orgID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, nil
	}
	return settings.RollingWindowPeriodInDays, nil
}

// SafeAggregationFor returns the minimum granularity for a range:
// up to 3 months week, up to 12 months month, up to 24 months quarter, beyond that year.
func SafeAggregationFor(start, end time.Time) aggregation.Key {
	switch {
	case !end.After(start.AddDate(0, 3, 0)):
		return aggregation.Week
	case !end.After(start.AddDate(0, 12, 0)):
		return aggregation.Month
	case !end.After(start.AddDate(0, 24, 0)):
		return aggregation.Quarter
	default:
		return aggregation.Year
	}
}

// SetSafeAggregation widens the aggregation to bound the number of buckets for long explicit ranges.
// Only the explicit boundaries are considered; when either is missing nothing changes. It takes effect once.
func (f *QueryFilters) SetSafeAggregation() {
	f.safeOnce.Do(func() {
		lower, hasLower := parseBoundary(f.params.Get(ParamLowerBoundary), f.Timezone)
		upper, hasUpper := parseBoundary(f.params.Get(ParamUpperBoundary), f.Timezone)
		if !hasLower || !hasUpper {
			return
		}
		start := aggregation.StartOf(lower, aggregation.Day)
		end := aggregation.StartOf(upper, aggregation.Day)
		if start.After(end) {
			start, end = end, start
		}
		safe := SafeAggregationFor(start, end)

		f.mu.Lock()
		defer f.mu.Unlock()
		widened := aggregation.Coarser(f.aggregation, safe)
		if widened != f.aggregation {
			log.Debug().Str("org", f.orgID).Str("from", string(f.aggregation)).Str("to", string(widened)).Msg("Aggregation widened for long range")
		}
		f.aggregation = widened
	})
}
