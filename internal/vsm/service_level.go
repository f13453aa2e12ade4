package vsm

import (
	"context"
	"slices"
	"strings"

	"flow-analytics/internal/stats"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	"golang.org/x/sync/errgroup"
)

// ServiceLevelResult is the target met response.
type ServiceLevelResult struct {
	Types            []stats.TargetMet        `json:"types"`
	AverageTargetMet float64                  `json:"averageTargetMet"`
	WidgetInfo       []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// ServiceLevel reports, per work item type with a service level expectation, the share of items completed
// in the period within it, and the average over the types that completed anything.
func (s *Session) ServiceLevel(ctx context.Context) (*ServiceLevelResult, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}

	var (
		completed []workitem.ExtendedWorkItem
		types     []workitem.WorkItemTypeConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.scenarioItemsFor(gctx, c, "", workitem.QueryOptions{}, workitem.BecameCompletedBetweenDates)
		completed = items
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

	rows := targetMetByType(workitem.Plain(completed), types)
	return &ServiceLevelResult{
		Types:            rows,
		AverageTargetMet: stats.AverageTargetMet(rows),
		WidgetInfo:       s.widgetInformation(ctx, widgetinfo.ServiceLevel),
	}, nil
}

// targetMetByType builds one row per configured type with an expectation, sorted by type name. Items match
// their type by id, or by name when the id is missing.
func targetMetByType(items []workitem.WorkItem, types []workitem.WorkItemTypeConfig) []stats.TargetMet {
	rows := make([]stats.TargetMet, 0, len(types))
	for _, t := range types {
		if t.ServiceLevelExpectationInDays <= 0 {
			continue
		}
		var lts []int
		for _, w := range items {
			sameType := w.WorkItemTypeID != "" && w.WorkItemTypeID == t.ID
			if w.WorkItemTypeID == "" {
				sameType = strings.EqualFold(w.WorkItemType, t.Name)
			}
			if sameType {
				lts = append(lts, w.LeadTimeInWholeDays())
			}
		}
		within, pct := stats.CalculateTargetMet(lts, t.ServiceLevelExpectationInDays)
		rows = append(rows, stats.TargetMet{
			WorkItemTypeID: t.ID,
			WorkItemType:   t.Name,
			SLEInDays:      t.ServiceLevelExpectationInDays,
			Completed:      len(lts),
			WithinSLE:      within,
			Percent:        pct,
		})
	}
	slices.SortStableFunc(rows, func(a, b stats.TargetMet) int { return strings.Compare(a.WorkItemType, b.WorkItemType) })
	return rows
}
