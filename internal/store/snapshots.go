package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/workitem"
)

// GetTreatedSnapshots returns the state history of the given items up to until, ordered by item and date.
// Consecutive snapshots that repeat the same state are collapsed into the first.
func (s *Store) GetTreatedSnapshots(ctx context.Context, orgID string, ids []string, until time.Time) ([]workitem.Snapshot, error) {
	out := []workitem.Snapshot{}
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT work_item_id, snapshot_at, state, state_category, state_type, flagged
		FROM snapshots WHERE org_id = ? AND snapshot_at <= ? AND work_item_id IN (` + placeholders(len(ids)) + `)
		ORDER BY work_item_id, snapshot_at`
	args := make([]any, 0, len(ids)+2)
	args = append(args, orgID, formatTime(&until))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap         workitem.Snapshot
			at, category string
			flagged      int
		)
		if err := rows.Scan(&snap.WorkItemID, &at, &snap.State, &category, &snap.StateType, &flagged); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.SnapshotDate, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parse snapshot date %q: %w", at, err)
		}
		snap.StateCategory = workitem.StateCategory(category)
		snap.Flagged = flagged != 0

		if n := len(out); n > 0 && out[n-1].WorkItemID == snap.WorkItemID && out[n-1].State == snap.State {
			continue
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	return out, nil
}

// GetDatabaseCFD counts, for every day of the period, how many filtered items sat in each state at the end of
// that day. Rows for completed states are only emitted on days where the count changes, so readers must carry
// the previous value forward. Other states are emitted whenever their count is positive.
func (s *Store) GetDatabaseCFD(ctx context.Context, orgID string, c filters.Criteria) ([]workitem.CFDRow, error) {
	items, err := s.candidates(ctx, orgID, c, "", "")
	if err != nil {
		return nil, err
	}
	snaps, err := s.GetTreatedSnapshots(ctx, orgID, workitem.IDs(items), c.Period.End)
	if err != nil {
		return nil, err
	}
	history := workitem.GroupSnapshots(snaps)

	type stateKey struct {
		state    string
		category workitem.StateCategory
	}
	rows := []workitem.CFDRow{}
	ids := workitem.IDs(items)
	known := make(map[stateKey]bool)
	lastCount := make(map[stateKey]int)
	var order []stateKey
	for _, day := range aggregation.GenerateDateArray(c.Period, aggregation.Day) {
		dayEnd := aggregation.EndOf(day, aggregation.Day)
		counts := make(map[stateKey]int)
		for _, id := range ids {
			if snap, ok := stateAt(history[id], dayEnd); ok {
				k := stateKey{snap.State, snap.StateCategory}
				counts[k]++
				if !known[k] {
					known[k] = true
					order = append(order, k)
				}
			}
		}
		for _, k := range order {
			n := counts[k]
			if k.category == workitem.Completed {
				if prev, seen := lastCount[k]; seen && prev == n {
					continue
				}
				lastCount[k] = n
			} else if n == 0 {
				continue
			}
			rows = append(rows, workitem.CFDRow{State: k.state, StateCategory: k.category, Date: day, Count: n})
		}
	}
	return rows, nil
}

// stateAt returns the latest snapshot taken on or before ts. History is sorted chronologically.
func stateAt(history []workitem.Snapshot, ts time.Time) (workitem.Snapshot, bool) {
	var (
		current workitem.Snapshot
		found   bool
	)
	for _, snap := range history {
		if snap.SnapshotDate.After(ts) {
			break
		}
		current, found = snap, true
	}
	return current, found
}

// GetActiveAndQueueTime splits each queried item's time until the query end into active and waiting time.
// Time spent before commitment is only counted when the query includes arrival. Time after departure is
// never counted. Every returned row carries the BucketID of the query it answers.
func (s *Store) GetActiveAndQueueTime(ctx context.Context, orgID string, queries []workitem.TimeQuery) ([]workitem.ActiveQueueRow, error) {
	out := []workitem.ActiveQueueRow{}
	if len(queries) == 0 {
		return out, nil
	}
	var ids []string
	var latest time.Time
	seen := make(map[string]bool)
	for _, q := range queries {
		if q.End.After(latest) {
			latest = q.End
		}
		for _, id := range q.WorkItemIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	snaps, err := s.GetTreatedSnapshots(ctx, orgID, ids, latest)
	if err != nil {
		return nil, err
	}
	history := workitem.GroupSnapshots(snaps)

	for _, q := range queries {
		for _, id := range q.WorkItemIDs {
			upTo := slices.DeleteFunc(slices.Clone(history[id]), func(snap workitem.Snapshot) bool {
				return snap.SnapshotDate.After(q.End)
			})
			if len(upTo) == 0 {
				continue
			}
			row := workitem.ActiveQueueRow{BucketID: q.BucketID, WorkItemID: id}
			for _, e := range workitem.EventsWithDuration(upTo, q.End) {
				if e.StateCategory == workitem.Completed {
					continue
				}
				if e.StateCategory == workitem.Proposed && !q.IncludeArrival {
					continue
				}
				if e.StateType == workitem.StateTypeActive {
					row.ActiveTimeInSeconds += e.Duration.Seconds()
				} else {
					row.WaitingTimeInSeconds += e.Duration.Seconds()
				}
			}
			out = append(out, row)
		}
	}
	return out, nil
}
