package aggregation

import (
	"time"
)

// Dated is implemented by records that expose named timestamp fields.
// DateOf returns nil for a missing date and an error when field does not name a timestamp.
type Dated interface {
	DateOf(field string) (*time.Time, error)
}

// Bucket groups the items whose date falls in (DateStart, DateEnd]. The first bucket of a
// series is also closed at its start.
type Bucket[T any] struct {
	DateStart    time.Time `json:"dateStart"`
	DateEnd      time.Time `json:"dateEnd"`
	WorkItemList []T       `json:"workItemList"`
}

// Bounds returns contiguous (start, end) pairs for the buckets covering the interval. Each end equals
// the next bucket's start so that open-start/closed-end membership never double counts. Only the
// first bucket also holds its own start.
func Bounds(interval Interval, key Key) []Interval {
	dates := GenerateDateArray(interval, key)
	bounds := make([]Interval, len(dates))
	for i, start := range dates {
		end := Advance(start, 1, key)
		if i+1 < len(dates) {
			end = dates[i+1]
		}
		bounds[i] = Interval{Start: start, End: end}
	}
	return bounds
}

// SeparateWorkItemsInIntervalBuckets partitions items into the interval's buckets using
// dateStart < itemDate <= dateEnd, with the first bucket also taking itemDate == dateStart so that
// an item at the interval start is counted. Items without the date, or outside every bucket, are left out.
// It fails when dateField does not hold a timestamp, which is a programming error in the caller.
func SeparateWorkItemsInIntervalBuckets[T Dated](items []T, interval Interval, key Key, dateField string) ([]Bucket[T], error) {
	bounds := Bounds(interval, key)
	buckets := make([]Bucket[T], len(bounds))
	for i, b := range bounds {
		buckets[i] = Bucket[T]{DateStart: b.Start, DateEnd: b.End, WorkItemList: []T{}}
	}

	for _, item := range items {
		date, err := item.DateOf(dateField)
		if err != nil {
			return nil, err
		}
		if date == nil || date.IsZero() {
			continue
		}
		idx := findBucket(bounds, *date)
		if idx >= 0 {
			buckets[idx].WorkItemList = append(buckets[idx].WorkItemList, item)
		}
	}
	return buckets, nil
}

// findBucket does a binary search over contiguous bounds. Returns -1 if out of range.
func findBucket(bounds []Interval, t time.Time) int {
	if len(bounds) > 0 && t.Equal(bounds[0].Start) {
		return 0
	}
	lo, hi := 0, len(bounds)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		b := bounds[mid]
		switch {
		case !t.After(b.Start):
			hi = mid - 1
		case t.After(b.End):
			lo = mid + 1
		default:
			return mid
		}
	}
	return -1
}
