package vsm

import (
	"context"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/memo"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StateQuerier retrieves work items by current state or by temporal scenario. Implementations return an
// empty slice, never nil, when nothing matches.
type StateQuerier interface {
	GetWorkItems(ctx context.Context, orgID string, category workitem.StateCategory, c filters.Criteria, opts workitem.QueryOptions) ([]workitem.WorkItem, error)
	GetExtendedWorkItemsWithScenarios(ctx context.Context, orgID string, scenarios []workitem.RetrievalScenario, c filters.Criteria, opts workitem.QueryOptions) ([]workitem.ExtendedWorkItem, error)
	GetNormalisedWorkItems(ctx context.Context, orgID string, category workitem.StateCategory, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.WorkItem, error)
	GetNormalisedExtendedWorkItemsWithScenarios(ctx context.Context, orgID string, scenarios []workitem.RetrievalScenario, c filters.Criteria, tag string, opts workitem.QueryOptions) ([]workitem.ExtendedWorkItem, error)
}

// SnapshotQuerier retrieves state history.
type SnapshotQuerier interface {
	GetDatabaseCFD(ctx context.Context, orgID string, c filters.Criteria) ([]workitem.CFDRow, error)
	GetTreatedSnapshots(ctx context.Context, orgID string, workItemIDs []string, until time.Time) ([]workitem.Snapshot, error)
	GetActiveAndQueueTime(ctx context.Context, orgID string, queries []workitem.TimeQuery) ([]workitem.ActiveQueueRow, error)
}

// ConfigProvider returns per-organisation configuration the engines read.
type ConfigProvider interface {
	GetWorkItemTypes(ctx context.Context, orgID string) ([]workitem.WorkItemTypeConfig, error)
	GetCustomFieldConfigs(ctx context.Context, orgID string) ([]workitem.CustomFieldConfig, error)
}

// WidgetInfoProvider returns descriptive text for a widget.
type WidgetInfoProvider interface {
	GetWidgetInformation(ctx context.Context, t widgetinfo.WidgetType) ([]widgetinfo.Information, error)
}

// Deps are the collaborators a Session reads from. WidgetInfo is optional.
type Deps struct {
	States     StateQuerier
	Snapshots  SnapshotQuerier
	Settings   filters.SettingsProvider
	Config     ConfigProvider
	WidgetInfo WidgetInfoProvider
}

// Session is the calculation context of one request. Every cache lives and dies with it.
type Session struct {
	id      string
	deps    Deps
	filters *filters.QueryFilters
	log     zerolog.Logger

	scenarios    *memo.Cache[[]workitem.ExtendedWorkItem]
	normalised   *memo.Cache[[]workitem.ExtendedWorkItem]
	states       *memo.Cache[[]workitem.WorkItem]
	settings     *memo.Cache[workitem.OrgSettings]
	types        *memo.Cache[[]workitem.WorkItemTypeConfig]
	customFields *memo.Cache[[]workitem.CustomFieldConfig]
	snapshots    *memo.Cache[[]workitem.Snapshot]
}

// NewSession creates a request-scoped session over the given filters.
func NewSession(deps Deps, f *filters.QueryFilters) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		deps:    deps,
		filters: f,
		log:     log.With().Str("session", id).Str("org", f.OrgID()).Logger(),

		scenarios:    memo.New[[]workitem.ExtendedWorkItem]("scenario"),
		normalised:   memo.New[[]workitem.ExtendedWorkItem]("normalised"),
		states:       memo.New[[]workitem.WorkItem]("state"),
		settings:     memo.New[workitem.OrgSettings]("settings"),
		types:        memo.New[[]workitem.WorkItemTypeConfig]("work-item-types"),
		customFields: memo.New[[]workitem.CustomFieldConfig]("custom-fields"),
		snapshots:    memo.New[[]workitem.Snapshot]("snapshots"),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Filters returns the request filters.
func (s *Session) Filters() *filters.QueryFilters {
	return s.filters
}

func (s *Session) orgID() string {
	return s.filters.OrgID()
}

func (s *Session) now() time.Time {
	return s.filters.Now()
}

// period resolves the filter date period.
func (s *Session) period(ctx context.Context) (aggregation.Interval, error) {
	return s.filters.DatePeriod(ctx)
}

// widgetInformation fetches descriptive text. A failure is logged and yields nothing.
func (s *Session) widgetInformation(ctx context.Context, t widgetinfo.WidgetType) []widgetinfo.Information {
	if s.deps.WidgetInfo == nil {
		return nil
	}
	info, err := s.deps.WidgetInfo.GetWidgetInformation(ctx, t)
	if err != nil {
		s.log.Warn().Err(err).Str("widget", string(t)).Msg("Widget information unavailable")
		return nil
	}
	return info
}
