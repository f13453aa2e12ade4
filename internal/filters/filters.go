package filters

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/workitem"

	"github.com/rs/zerolog/log"
)

// Query-string parameter names.
const (
	ParamLowerBoundary      = "departureDateLowerBoundary"
	ParamUpperBoundary      = "departureDateUpperBoundary"
	ParamTimezone           = "timezone"
	ParamAggregation        = "aggregation"
	ParamDateAnalysisOption = "dateAnalysisOption"
	ParamContextID          = "contextId"
	ParamWorkItemTypes      = "workItemTypes"
	ParamWorkItemLevels     = "workItemLevels"
	ParamClassesOfService   = "classOfServices"
	ParamCustomFields       = "customFields"
	ParamNormalisation      = "normalization"
	ParamFlagged            = "flagged"
)

// DateAnalysisOption selects "was X between dates" or "became X between dates" semantics.
type DateAnalysisOption string

const (
	AnalysisWas    DateAnalysisOption = "was"
	AnalysisBecame DateAnalysisOption = "became"
)

// SettingsProvider returns organisation settings.
type SettingsProvider interface {
	GetSettings(ctx context.Context, orgID string) (*workitem.OrgSettings, error)
}

// ContextProvider returns a context's settings when the context is visible, nil otherwise.
type ContextProvider interface {
	GetIfVisible(ctx context.Context, orgID, contextID string) (*workitem.ContextSettings, error)
}

// Security is the caller's identity.
type Security interface {
	Organisation() string
	IsPowerUser() bool
	IsAdminUser() bool
	AllowedContextIDs() []string
	IsContextAccessControlEnabled() bool
}

// QueryFilters is the canonical per-request filter context. It is built once from the query string,
// widened at most once by SetSafeAggregation, and then only read.
type QueryFilters struct {
	orgID    string
	params   url.Values
	security Security
	settings SettingsProvider
	contexts ContextProvider
	now      func() time.Time

	Timezone           *time.Location
	DateAnalysisOption DateAnalysisOption
	WorkItemTypes      []string
	WorkItemLevels     []string
	ClassesOfService   []string
	CustomFields       map[string][]string
	Normalisation      map[string][]string
	Flagged            *bool

	mu          sync.RWMutex
	aggregation aggregation.Key
	safeOnce    sync.Once
	period      *aggregation.Interval
}

// Option customises a QueryFilters at construction.
type Option func(*QueryFilters)

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(f *QueryFilters) { f.now = now }
}

// WithContextProvider sets the context visibility service.
func WithContextProvider(p ContextProvider) Option {
	return func(f *QueryFilters) { f.contexts = p }
}

// New resolves raw query parameters into a filter context. Unparseable parameters fall back to defaults.
func New(sec Security, settings SettingsProvider, params url.Values, opts ...Option) *QueryFilters {
	if params == nil {
		params = url.Values{}
	}
	f := &QueryFilters{
		params:   params,
		security: sec,
		settings: settings,
		now:      time.Now,
	}
	if sec != nil {
		f.orgID = sec.Organisation()
	}
	for _, opt := range opts {
		opt(f)
	}

	f.Timezone = parseTimezone(params.Get(ParamTimezone))
	f.aggregation = aggregation.Parse(params.Get(ParamAggregation))
	f.DateAnalysisOption = parseDateAnalysisOption(params.Get(ParamDateAnalysisOption))
	f.WorkItemTypes = ParseList(params[ParamWorkItemTypes])
	f.WorkItemLevels = ParseList(params[ParamWorkItemLevels])
	f.ClassesOfService = ParseList(params[ParamClassesOfService])
	f.CustomFields = ParseCustomFields(params.Get(ParamCustomFields))
	f.Normalisation = ParseNormalisation(params.Get(ParamNormalisation))
	f.Flagged = ParseFlagged(params[ParamFlagged])
	return f
}

// OrgID is the organisation the filters were built for.
func (f *QueryFilters) OrgID() string {
	return f.orgID
}

// Now returns the current instant in the filter timezone.
func (f *QueryFilters) Now() time.Time {
	return f.now().In(f.Timezone)
}

// Aggregation returns the current bucketing granularity.
func (f *QueryFilters) Aggregation() aggregation.Key {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.aggregation
}

// ContextID returns the requested context, or "" when the caller may not see it: not a power user,
// access control enabled for the org, and the context missing from the caller's allow-list.
func (f *QueryFilters) ContextID() string {
	id := strings.TrimSpace(f.params.Get(ParamContextID))
	if id == "" || f.security == nil {
		return id
	}
	if f.security.IsPowerUser() || !f.security.IsContextAccessControlEnabled() {
		return id
	}
	for _, allowed := range f.security.AllowedContextIDs() {
		if allowed == id {
			return id
		}
	}
	log.Debug().Str("org", f.orgID).Str("contextId", id).Msg("Context not in allow-list, ignoring context filter")
	return ""
}

// Criteria resolves the date period and snapshots every filter value into a plain Criteria.
func (f *QueryFilters) Criteria(ctx context.Context) (Criteria, error) {
	period, err := f.DatePeriod(ctx)
	if err != nil {
		return Criteria{}, err
	}
	return Criteria{
		OrgID:            f.orgID,
		Period:           period,
		ContextID:        f.ContextID(),
		WorkItemTypes:    f.WorkItemTypes,
		WorkItemLevels:   f.WorkItemLevels,
		ClassesOfService: f.ClassesOfService,
		CustomFields:     f.CustomFields,
		Normalisation:    f.Normalisation,
		Flagged:          f.Flagged,
	}, nil
}

func parseTimezone(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Debug().Str("timezone", name).Msg("Unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

func parseDateAnalysisOption(s string) DateAnalysisOption {
	if DateAnalysisOption(strings.ToLower(strings.TrimSpace(s))) == AnalysisBecame {
		return AnalysisBecame
	}
	return AnalysisWas
}
