package vsm

import (
	"context"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"
)

// DemandNormalisationTag is the normalisation category that classifies demand (value, failure, ...).
const DemandNormalisationTag = "demand"

// Labels used when an item carries no classification.
const (
	UnclassifiedLabel  = "Unclassified"
	UncategorisedLabel = "Uncategorised"
)

// Perspective is the slice of the system a distribution looks at.
type Perspective string

const (
	PerspectiveInventory Perspective = "inventory"
	PerspectiveWIP       Perspective = "wip"
	PerspectiveCompleted Perspective = "completed"
)

// HistoricalPoint is one bucket of a distribution's history.
type HistoricalPoint struct {
	DateStart time.Time      `json:"dateStart"`
	DateEnd   time.Time      `json:"dateEnd"`
	Values    map[string]int `json:"values"`
}

// DistributionView is the distribution of one perspective.
type DistributionView struct {
	Perspective  Perspective       `json:"perspective"`
	Distribution map[string]int    `json:"distribution"`
	Historical   []HistoricalPoint `json:"historical"`
}

// DistributionResult is the response of the distribution widgets.
type DistributionResult struct {
	Aggregation aggregation.Key          `json:"aggregation"`
	Views       []DistributionView       `json:"views"`
	WidgetInfo  []widgetinfo.Information `json:"widgetInfo,omitempty"`
}

// ClassOfService distributes items by class of service.
func (s *Session) ClassOfService(ctx context.Context) (*DistributionResult, error) {
	return s.distribution(ctx, "", widgetinfo.ClassOfService, func(w workitem.WorkItem) string {
		if w.ClassOfService == "" {
			return UnclassifiedLabel
		}
		return w.ClassOfService
	})
}

// DemandDistribution distributes items by their normalised demand type.
func (s *Session) DemandDistribution(ctx context.Context) (*DistributionResult, error) {
	return s.distribution(ctx, DemandNormalisationTag, widgetinfo.DemandDistribution, func(w workitem.WorkItem) string {
		if w.NormalisedDisplayName == "" {
			return UncategorisedLabel
		}
		return w.NormalisedDisplayName
	})
}

type perspectiveSource struct {
	perspective Perspective
	scenario    workitem.RetrievalScenario
	category    workitem.StateCategory
	dateField   string
}

// perspectiveSources follows the date analysis option: "was" looks at who occupied a state during the
// period, "became" at who entered it.
func perspectiveSources(option filters.DateAnalysisOption) []perspectiveSource {
	if option == filters.AnalysisBecame {
		return []perspectiveSource{
			{PerspectiveInventory, workitem.BecameInventoryBetweenDates, workitem.Proposed, workitem.ArrivalDate},
			{PerspectiveWIP, workitem.BecameWIPBetweenDates, workitem.InProgress, workitem.CommitmentDate},
			{PerspectiveCompleted, workitem.BecameCompletedBetweenDates, workitem.Completed, workitem.DepartureDate},
		}
	}
	return []perspectiveSource{
		{PerspectiveInventory, workitem.WasInventoryBetweenDates, workitem.Proposed, ""},
		{PerspectiveWIP, workitem.WasWIPBetweenDates, workitem.InProgress, ""},
		{PerspectiveCompleted, workitem.BecameCompletedBetweenDates, workitem.Completed, workitem.DepartureDate},
	}
}

func (s *Session) distribution(ctx context.Context, tag string, wt widgetinfo.WidgetType, label func(workitem.WorkItem) string) (*DistributionResult, error) {
	c, err := s.criteria(ctx)
	if err != nil {
		return nil, err
	}
	sources := perspectiveSources(s.filters.DateAnalysisOption)
	scenarios := make([]workitem.RetrievalScenario, len(sources))
	for i, src := range sources {
		scenarios[i] = src.scenario
	}
	items, err := s.NormalisedScenarioItems(ctx, tag, workitem.QueryOptions{}, scenarios...)
	if err != nil {
		return nil, err
	}
	grouped := workitem.GroupByScenario(items)

	key := s.filters.Aggregation()
	views := make([]DistributionView, 0, len(sources))
	for _, src := range sources {
		list := grouped[src.scenario]
		view := DistributionView{
			Perspective:  src.perspective,
			Distribution: countBy(list, label),
		}
		view.Historical, err = historical(list, c.Period, key, src, label)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	return &DistributionResult{
		Aggregation: key,
		Views:       views,
		WidgetInfo:  s.widgetInformation(ctx, wt),
	}, nil
}

func countBy(items []workitem.ExtendedWorkItem, label func(workitem.WorkItem) string) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		counts[label(it.WorkItem)]++
	}
	return counts
}

// historical buckets by the entry date when there is one, otherwise by who was in the state at each bucket end.
func historical(items []workitem.ExtendedWorkItem, period aggregation.Interval, key aggregation.Key, src perspectiveSource, label func(workitem.WorkItem) string) ([]HistoricalPoint, error) {
	if src.dateField != "" {
		buckets, err := aggregation.SeparateWorkItemsInIntervalBuckets(items, period, key, src.dateField)
		if err != nil {
			return nil, err
		}
		points := make([]HistoricalPoint, len(buckets))
		for i, b := range buckets {
			points[i] = HistoricalPoint{DateStart: b.DateStart, DateEnd: b.DateEnd, Values: countBy(b.WorkItemList, label)}
		}
		return points, nil
	}

	bounds := aggregation.Bounds(period, key)
	points := make([]HistoricalPoint, len(bounds))
	for i, b := range bounds {
		values := make(map[string]int)
		for _, it := range items {
			if it.WasInStateAt(src.category, b.End) {
				values[label(it.WorkItem)]++
			}
		}
		points[i] = HistoricalPoint{DateStart: b.Start, DateEnd: b.End, Values: values}
	}
	return points, nil
}
