package workitem

import (
	"slices"
	"time"
)

// Snapshot is one recorded state change of a work item.
type Snapshot struct {
	WorkItemID    string        `json:"workItemId"`
	SnapshotDate  time.Time     `json:"snapshotDate"`
	State         string        `json:"state"`
	StateCategory StateCategory `json:"stateCategory"`
	StateType     string        `json:"stateType"`
	Flagged       bool          `json:"flagged,omitempty"`
}

// Event is a snapshot together with how long the item stayed in that state.
type Event struct {
	Snapshot
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// EventsWithDuration turns one item's snapshot history into contiguous intervals. Each event lasts until the
// next snapshot; the last one lasts until `until`. Snapshots are sorted chronologically first.
func EventsWithDuration(snapshots []Snapshot, until time.Time) []Event {
	if len(snapshots) == 0 {
		return nil
	}
	sorted := slices.Clone(snapshots)
	slices.SortStableFunc(sorted, func(a, b Snapshot) int {
		return a.SnapshotDate.Compare(b.SnapshotDate)
	})

	events := make([]Event, 0, len(sorted))
	for i, s := range sorted {
		end := until
		if i+1 < len(sorted) {
			end = sorted[i+1].SnapshotDate
		}
		if end.Before(s.SnapshotDate) {
			end = s.SnapshotDate
		}
		events = append(events, Event{
			Snapshot: s,
			Start:    s.SnapshotDate,
			End:      end,
			Duration: end.Sub(s.SnapshotDate),
		})
	}
	return events
}

// GroupSnapshots partitions snapshots by work item id.
func GroupSnapshots(snapshots []Snapshot) map[string][]Snapshot {
	grouped := make(map[string][]Snapshot)
	for _, s := range snapshots {
		grouped[s.WorkItemID] = append(grouped[s.WorkItemID], s)
	}
	return grouped
}

// CFDRow is a per-day population count for one state.
type CFDRow struct {
	State         string        `json:"state"`
	StateCategory StateCategory `json:"stateCategory"`
	Date          time.Time     `json:"date"`
	Count         int           `json:"count"`
}

// TimeQuery asks for active and waiting time of a set of items up to End. BucketID tags every returned row
// so that one combined query can serve many buckets.
type TimeQuery struct {
	BucketID       string    `json:"bucketId"`
	WorkItemIDs    []string  `json:"workItemIds"`
	IncludeArrival bool      `json:"includeArrival"`
	End            time.Time `json:"end"`
}

// ActiveQueueRow is the active/waiting split of one item within one bucket.
type ActiveQueueRow struct {
	BucketID             string  `json:"bucketId"`
	WorkItemID           string  `json:"workItemId"`
	ActiveTimeInSeconds  float64 `json:"activeTimeInSeconds"`
	WaitingTimeInSeconds float64 `json:"waitingTimeInSeconds"`
}
