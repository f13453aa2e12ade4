package aggregation

import (
	"fmt"
	"time"
)

// Key is a time-bucketing granularity.
type Key string

const (
	Day     Key = "day"
	Week    Key = "week"
	Month   Key = "month"
	Quarter Key = "quarter"
	Year    Key = "year"
)

// Keys lists every granularity from finest to coarsest.
var Keys = []Key{Day, Week, Month, Quarter, Year}

// Parse returns the matching Key, or Day when the input is not an exact match.
func Parse(input string) Key {
	for _, k := range Keys {
		if string(k) == input {
			return k
		}
	}
	return Day
}

// Rank orders keys from finest (0) to coarsest.
func (k Key) Rank() int {
	for i, candidate := range Keys {
		if candidate == k {
			return i
		}
	}
	return 0
}

// Coarser returns whichever of a and b has the wider granularity.
func Coarser(a, b Key) Key {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Interval is an immutable timezone-aware [Start, End] range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds an interval, swapping the bounds when they are inverted.
func NewInterval(start, end time.Time) Interval {
	if start.After(end) {
		start, end = end, start
	}
	return Interval{Start: start, End: end}
}

// IsValid reports whether both bounds are set and ordered.
func (i Interval) IsValid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && !i.Start.After(i.End)
}

// Contains reports whether t lies in the closed interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// In returns the interval expressed in loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// StartOf truncates t to the beginning of its aggregation unit in t's location.
// Weeks start on Monday.
func StartOf(t time.Time, key Key) time.Time {
	if t.IsZero() {
		return t
	}
	switch key {
	case Year:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	case Quarter:
		month := ((int(t.Month())-1)/3)*3 + 1
		return time.Date(t.Year(), time.Month(month), 1, 0, 0, 0, 0, t.Location())
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case Week:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday -> 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
	default: // day
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// EndOf returns the last nanosecond of t's aggregation unit.
func EndOf(t time.Time, key Key) time.Time {
	if t.IsZero() {
		return t
	}
	return Advance(StartOf(t, key), 1, key).Add(-time.Nanosecond)
}

// Duration is a calendar-aware amount of aggregation units. A month is not a fixed number of days,
// so it is expressed as a (years, months, days) triple applied with AddDate.
type Duration struct {
	Years  int
	Months int
	Days   int
}

// GetTimeDuration maps n units of key to a calendar duration.
func GetTimeDuration(n int, key Key) Duration {
	switch key {
	case Year:
		return Duration{Years: n}
	case Quarter:
		return Duration{Months: 3 * n}
	case Month:
		return Duration{Months: n}
	case Week:
		return Duration{Days: 7 * n}
	default:
		return Duration{Days: n}
	}
}

// AddTo applies the duration to t.
func (d Duration) AddTo(t time.Time) time.Time {
	return t.AddDate(d.Years, d.Months, d.Days)
}

// Advance moves t forward by n units of key.
func Advance(t time.Time, n int, key Key) time.Time {
	return GetTimeDuration(n, key).AddTo(t)
}

// unitsBetween counts whole calendar units from a to b, rounding a partial unit up.
func unitsBetween(a, b time.Time, key Key) int {
	if !b.After(a) {
		return 0
	}
	var n int
	switch key {
	case Year:
		n = b.Year() - a.Year()
	case Quarter:
		n = ((b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())) / 3
	case Month:
		n = (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	case Week:
		n = int(b.Sub(a).Hours() / (24 * 7))
	default:
		n = int(b.Sub(a).Hours() / 24)
	}
	if n < 0 {
		n = 0
	}
	for Advance(a, n, key).Before(b) {
		n++
	}
	return n
}

// GenerateDateArray returns the ordered bucket start times covering the interval, each truncated to the
// start of its aggregation unit. A trailing bucket whose start lies after the interval end is dropped.
func GenerateDateArray(interval Interval, key Key) []time.Time {
	if interval.Start.IsZero() || interval.End.IsZero() {
		return nil
	}
	if interval.Start.After(interval.End) {
		interval = NewInterval(interval.Start, interval.End)
	}

	first := StartOf(interval.Start, key)
	count := unitsBetween(first, interval.End, key)
	if count == 0 {
		count = 1
	}

	dates := make([]time.Time, 0, count+1)
	for i := 0; i <= count; i++ {
		dates = append(dates, Advance(first, i, key))
	}

	// Extra check: the rounding above can produce one bucket too many when the interval length
	// is not an exact multiple of the unit.
	for len(dates) > 1 && dates[len(dates)-1].After(interval.End) {
		dates = dates[:len(dates)-1]
	}
	return dates
}

// Label returns a human-readable label for a bucket start (e.g. "Jan 2024", "2024-W01", "2024-Q1").
func Label(t time.Time, key Key) string {
	switch key {
	case Year:
		return t.Format("2006")
	case Quarter:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case Month:
		return t.Format("Jan 2006")
	case Week:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return t.Format("2006-01-02")
	}
}
