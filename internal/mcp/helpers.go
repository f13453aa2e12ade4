package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"flow-analytics/internal/aggregation"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/vsm"
)

// WidgetArgs are the filters every widget tool accepts. They map one to one onto the query parameters of
// QueryFilters, so unparseable values degrade to defaults instead of failing the call.
type WidgetArgs struct {
	OrgID              string   `json:"org_id,omitempty" jsonschema:"Organisation id. Defaults to the configured organisation."`
	From               string   `json:"from,omitempty" jsonschema:"Lower date boundary (YYYY-MM-DD). Defaults to the rolling window before 'to'."`
	To                 string   `json:"to,omitempty" jsonschema:"Upper date boundary (YYYY-MM-DD). Defaults to now."`
	Timezone           string   `json:"timezone,omitempty" jsonschema:"IANA timezone used for day boundaries, e.g. Europe/Berlin. Defaults to UTC."`
	Aggregation        string   `json:"aggregation,omitempty" jsonschema:"Bucket size: day, week, month, quarter or year."`
	DateAnalysisOption string   `json:"date_analysis_option,omitempty" jsonschema:"'was' (state held at some point in the period) or 'became' (transition inside the period)."`
	ContextID          string   `json:"context_id,omitempty" jsonschema:"Board or aggregation of boards to restrict to."`
	WorkItemTypes      []string `json:"work_item_types,omitempty" jsonschema:"Work item type ids or names."`
	WorkItemLevels     []string `json:"work_item_levels,omitempty" jsonschema:"Portfolio, Team or Individual Contributor."`
	ClassesOfService   []string `json:"classes_of_service,omitempty" jsonschema:"Classes of service, e.g. Expedite."`
	CustomFields       string   `json:"custom_fields,omitempty" jsonschema:"Comma separated field#value pairs."`
	Normalisation      string   `json:"normalisation,omitempty" jsonschema:"Comma separated tag#category pairs."`
	Flagged            []string `json:"flagged,omitempty" jsonschema:"yes, no, or both for no restriction."`
}

// Params renders the arguments as the query parameters QueryFilters parses.
func (a WidgetArgs) Params() url.Values {
	params := url.Values{}
	set := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	set(filters.ParamLowerBoundary, a.From)
	set(filters.ParamUpperBoundary, a.To)
	set(filters.ParamTimezone, a.Timezone)
	set(filters.ParamAggregation, a.Aggregation)
	set(filters.ParamDateAnalysisOption, a.DateAnalysisOption)
	set(filters.ParamContextID, a.ContextID)
	set(filters.ParamCustomFields, a.CustomFields)
	set(filters.ParamNormalisation, a.Normalisation)
	for key, values := range map[string][]string{
		filters.ParamWorkItemTypes:    a.WorkItemTypes,
		filters.ParamWorkItemLevels:   a.WorkItemLevels,
		filters.ParamClassesOfService: a.ClassesOfService,
		filters.ParamFlagged:          a.Flagged,
	} {
		if len(values) > 0 {
			params[key] = values
		}
	}
	return params
}

func (a WidgetArgs) widget() WidgetArgs { return a }

// ResponseContext describes what a result was computed over.
type ResponseContext struct {
	OrgID       string               `json:"orgId"`
	SessionID   string               `json:"sessionId"`
	Period      aggregation.Interval `json:"period"`
	Aggregation aggregation.Key      `json:"aggregation"`
	ContextID   string               `json:"contextId,omitempty"`
}

// Response is the envelope of every tool result.
type Response struct {
	Context  ResponseContext `json:"context"`
	Data     any             `json:"data"`
	Chart    string          `json:"chart,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// WrapResponse attaches the session context and any warnings about dropped filters to a result.
func WrapResponse(ctx context.Context, session *vsm.Session, args WidgetArgs, data any, chart string) Response {
	f := session.Filters()
	res := Response{
		Context: ResponseContext{
			OrgID:       f.OrgID(),
			SessionID:   session.ID(),
			Aggregation: f.Aggregation(),
			ContextID:   f.ContextID(),
		},
		Data:  data,
		Chart: chart,
	}
	if period, err := f.DatePeriod(ctx); err == nil {
		res.Context.Period = period
	}
	if args.ContextID != "" && res.Context.ContextID == "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("context %q is not visible to this identity; results cover every context", args.ContextID))
	}
	if args.Aggregation != "" && string(res.Context.Aggregation) != args.Aggregation {
		res.Warnings = append(res.Warnings, fmt.Sprintf("aggregation %q was resolved as %q for this period", args.Aggregation, res.Context.Aggregation))
	}
	return res
}

func formatResult(data any) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(out), nil
}
