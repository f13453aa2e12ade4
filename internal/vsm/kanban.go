package vsm

import (
	"context"
	"slices"

	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	"golang.org/x/sync/errgroup"
)

// KanbanCard is one item on the board.
type KanbanCard struct {
	workitem.WorkItem
	AgeInDays int `json:"ageInDays"`
}

// KanbanColumn holds the items currently in one state.
type KanbanColumn struct {
	State         string                 `json:"state"`
	StateCategory workitem.StateCategory `json:"stateCategory"`
	Count         int                    `json:"count"`
	AgeP85        float64                `json:"ageP85"`
	Cards         []KanbanCard           `json:"cards"`
}

// KanbanResult is the board response.
type KanbanResult struct {
	Columns    []KanbanColumn           `json:"columns"`
	WidgetInfo []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// Kanban lays out the backlog, the work in progress and the items completed in the period by state.
// Columns follow the lifecycle and, within a category, the order states were first seen. Cards are sorted
// oldest first and carry their demand classification.
func (s *Session) Kanban(ctx context.Context) (*KanbanResult, error) {
	now := s.now()

	var (
		backlog   []workitem.WorkItem
		wip       []workitem.WorkItem
		completed []workitem.ExtendedWorkItem
		configs   []workitem.CustomFieldConfig
		types     []workitem.WorkItemTypeConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.NormalisedStateItems(gctx, workitem.Proposed, DemandNormalisationTag, workitem.QueryOptions{DisableDelayed: true})
		backlog = items
		return err
	})
	g.Go(func() error {
		items, err := s.NormalisedStateItems(gctx, workitem.InProgress, DemandNormalisationTag, workitem.QueryOptions{})
		wip = items
		return err
	})
	g.Go(func() error {
		items, err := s.NormalisedScenarioItems(gctx, DemandNormalisationTag, workitem.QueryOptions{}, workitem.BecameCompletedBetweenDates)
		completed = items
		return err
	})
	g.Go(func() error {
		cfg, err := s.CustomFieldConfigs(gctx)
		configs = cfg
		return err
	})
	g.Go(func() error {
		t, err := s.WorkItemTypes(gctx)
		types = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	thresholds := s.StaleThresholds(ctx)
	sle := newSLEIndex(types)

	all := make([]workitem.WorkItem, 0, len(backlog)+len(wip)+len(completed))
	all = append(all, backlog...)
	all = append(all, wip...)
	all = append(all, workitem.Plain(completed)...)

	byState := make(map[string]*KanbanColumn)
	var order []string
	for _, w := range all {
		w.IsDelayed = w.Delayed
		w.IsStale = isStale(w, thresholds, now)
		w.IsBlocked = w.StateCategory == workitem.InProgress && (w.Flagged || len(fieldValues(w, configs, workitem.TagBlockedReason)) > 0)
		w.IsAboveSle = w.StateCategory != workitem.Proposed && sle.isAboveSLE(w, now)
		w.IsUnassigned = w.AssignedTo == ""

		col, ok := byState[w.State]
		if !ok {
			col = &KanbanColumn{State: w.State, StateCategory: w.StateCategory, Cards: []KanbanCard{}}
			byState[w.State] = col
			order = append(order, w.State)
		}
		age := 0
		if w.StateCategory != workitem.Proposed {
			age = w.AgeInWholeDays(now)
		}
		col.Cards = append(col.Cards, KanbanCard{WorkItem: w, AgeInDays: age})
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return byState[a].StateCategory.Order() - byState[b].StateCategory.Order()
	})
	columns := make([]KanbanColumn, 0, len(order))
	for _, state := range order {
		col := byState[state]
		slices.SortStableFunc(col.Cards, func(a, b KanbanCard) int { return b.AgeInDays - a.AgeInDays })
		col.Count = len(col.Cards)
		if col.StateCategory == workitem.InProgress {
			cardAges := make([]int, len(col.Cards))
			for i, card := range col.Cards {
				cardAges[i] = card.AgeInDays
			}
			col.AgeP85 = p85(cardAges)
		}
		columns = append(columns, *col)
	}

	return &KanbanResult{
		Columns:    columns,
		WidgetInfo: s.widgetInformation(ctx, widgetinfo.Kanban),
	}, nil
}
