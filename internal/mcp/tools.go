package mcp

import (
	"context"
	"fmt"
	"time"

	"flow-analytics/internal/visuals"
	"flow-analytics/internal/vsm"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// DonutArgs select one flow efficiency view.
type DonutArgs struct {
	WidgetArgs
	Arrival       string `json:"arrival,omitempty" jsonschema:"'include' counts time before commitment, 'exclude' (default) does not."`
	StateCategory string `json:"state_category,omitempty" jsonschema:"'completed' (default) or 'inprogress'."`
}

// CheckpointArgs list the checkpoint dates of a performance comparison.
type CheckpointArgs struct {
	WidgetArgs
	Checkpoints []string `json:"checkpoints,omitempty" jsonschema:"Checkpoint dates (YYYY-MM-DD). With fewer than two, the period bounds are used."`
}

// WidgetInfoArgs name a widget.
type WidgetInfoArgs struct {
	WidgetType string `json:"widget_type" jsonschema:"Widget type, e.g. cfd or flow-efficiency."`
}

type widgetInput interface {
	widget() WidgetArgs
}

func (s *Server) registerTools(srv *sdk.Server) {
	addWidgetTool(s, srv, "analyze_cfd",
		"Cumulative flow diagram: population of every state per day, resampled to the requested aggregation, with per-category totals.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.CFD(ctx)
			if err != nil {
				return nil, "", err
			}
			return res, visuals.GenerateCFDChart(res), nil
		})

	addWidgetTool(s, srv, "analyze_flow_efficiency",
		"Flow efficiency (active time over active plus waiting time) for completed and in-progress work, with and without pre-commitment time, as donuts and time series. Aggregation is widened to keep the series readable.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.FlowEfficiency(ctx)
			return res, "", err
		})

	addWidgetTool(s, srv, "analyze_flow_efficiency_donut",
		"A single flow efficiency donut for one state category and arrival mode.",
		func(ctx context.Context, session *vsm.Session, in DonutArgs) (any, string, error) {
			category := workitem.Completed
			if in.StateCategory != "" {
				c, ok := workitem.ParseStateCategory(in.StateCategory)
				if !ok || c == workitem.Proposed {
					return nil, "", fmt.Errorf("unsupported state category %q: use completed or inprogress", in.StateCategory)
				}
				category = c
			}
			res, err := session.FlowEfficiencyDonut(ctx, vsm.ParseArrivalMode(in.Arrival), category)
			return res, "", err
		})

	addWidgetTool(s, srv, "analyze_flow_of_demands",
		"Arrivals, commitments, departures and discards per bucket, current inventory and WIP, and the demand over capacity rating.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.FlowOfDemands(ctx)
			if err != nil {
				return nil, "", err
			}
			return res, visuals.GenerateDemandChart(res), nil
		})

	addWidgetTool(s, srv, "analyze_class_of_service",
		"Distribution of inventory, WIP and completed work by class of service, with the history per bucket.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.ClassOfService(ctx)
			return res, "", err
		})

	addWidgetTool(s, srv, "analyze_demand_distribution",
		"Distribution of inventory, WIP and completed work by normalised demand category, with the history per bucket.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.DemandDistribution(ctx)
			return res, "", err
		})

	addWidgetTool(s, srv, "analyze_sources_of_delay",
		"Sources of delay and waste: stale work, blockers, delayed items, discarded work before and after start, WIP excess, flow debt and demand vs capacity, each with a traffic light.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.SourcesOfDelay(ctx)
			return res, "", err
		})

	addWidgetTool(s, srv, "analyze_performance_checkpoints",
		"Flow metrics per window between consecutive checkpoint dates, with the change against the previous window.",
		func(ctx context.Context, session *vsm.Session, in CheckpointArgs) (any, string, error) {
			loc := session.Filters().Timezone
			dates := make([]time.Time, 0, len(in.Checkpoints))
			for _, raw := range in.Checkpoints {
				d, err := time.ParseInLocation(time.DateOnly, raw, loc)
				if err != nil {
					return nil, "", fmt.Errorf("invalid checkpoint %q: %w", raw, err)
				}
				dates = append(dates, d)
			}
			res, err := session.PerformanceCheckpoints(ctx, dates)
			return res, "", err
		})

	addWidgetTool(s, srv, "analyze_kanban_board",
		"Current board: one column per state with cards flagged as stale, blocked, delayed, above SLE or unassigned, and the P85 age of each in-progress column.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.Kanban(ctx)
			return res, "", err
		})

	addWidgetTool(s, srv, "analyze_productivity",
		"Weekly throughput, median, trend, rolling average and the performance band of the current week against the others.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.Productivity(ctx)
			if err != nil {
				return nil, "", err
			}
			return res, visuals.GenerateThroughputChart(res), nil
		})

	addWidgetTool(s, srv, "analyze_service_level",
		"Share of work completed within its service level expectation, per work item type and on average.",
		func(ctx context.Context, session *vsm.Session, _ WidgetArgs) (any, string, error) {
			res, err := session.ServiceLevel(ctx)
			return res, "", err
		})

	sdk.AddTool(srv, &sdk.Tool{
		Name:        "get_widget_information",
		Description: "Explains what a widget shows, why it matters and how to read it.",
	}, func(ctx context.Context, _ *sdk.CallToolRequest, in WidgetInfoArgs) (*sdk.CallToolResult, any, error) {
		t, ok := widgetinfo.ParseWidgetType(in.WidgetType)
		if !ok {
			return nil, nil, fmt.Errorf("unknown widget type %q, available: %v", in.WidgetType, widgetinfo.WidgetTypes)
		}
		if s.widgetInfo == nil {
			return nil, nil, fmt.Errorf("widget information is not configured")
		}
		info, err := s.widgetInfo.GetWidgetInformation(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		return textResult(info)
	})
}

// addWidgetTool registers a tool that computes a widget on a fresh session. The chart returned by run is
// dropped unless charts are enabled.
func addWidgetTool[In widgetInput](s *Server, srv *sdk.Server, name, description string, run func(context.Context, *vsm.Session, In) (any, string, error)) {
	sdk.AddTool(srv, &sdk.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdk.CallToolRequest, in In) (*sdk.CallToolResult, any, error) {
			args := in.widget()
			session := s.Session(args)
			logger := log.With().Str("tool", name).Str("session", session.ID()).Str("org", session.Filters().OrgID()).Logger()
			start := time.Now()

			data, chart, err := run(ctx, session, in)
			if err != nil {
				logger.Error().Err(err).Msg("Tool failed")
				return nil, nil, err
			}
			if !s.cfg.EnableMermaidCharts {
				chart = ""
			}
			logger.Info().Dur("elapsed", time.Since(start)).Msg("Tool completed")
			return textResult(WrapResponse(ctx, session, args, data, chart))
		})
}

func textResult(data any) (*sdk.CallToolResult, any, error) {
	text, err := formatResult(data)
	if err != nil {
		return nil, nil, err
	}
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: text}}}, nil, nil
}

// CallTool runs one tool through an in-process client session, exactly as a remote client would.
func (s *Server) CallTool(ctx context.Context, version, name string, args map[string]any) (string, error) {
	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	ss, err := s.MCP(version).Connect(ctx, serverTransport, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start server session: %w", err)
	}
	defer ss.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "flow-analytics-cli", Version: version}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		return "", fmt.Errorf("failed to connect client: %w", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	text := ""
	for _, c := range res.Content {
		if tc, ok := c.(*sdk.TextContent); ok {
			text += tc.Text
		}
	}
	if res.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}
