package mcp

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"flow-analytics/internal/config"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/store"
	"flow-analytics/internal/widgetinfo"
	"flow-analytics/internal/workitem"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const testOrg = "acme"

func day(d int) *time.Time {
	t := time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func newTestServer(t *testing.T, cfg *config.AppConfig) *Server {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	completed := func(id string, commit, depart int) workitem.WorkItem {
		return workitem.WorkItem{
			WorkItemID: id, WorkItemTypeID: "story", WorkItemType: "Story", State: "Done",
			StateCategory: workitem.Completed, ArrivalDateTime: day(1), CommitmentDateTime: day(commit), DepartureDateTime: day(depart),
		}
	}
	err = st.Import(context.Background(), store.Dataset{
		OrgID: testOrg,
		Types: []workitem.WorkItemTypeConfig{{ID: "story", Name: "Story", Level: workitem.LevelTeam, ServiceLevelExpectationInDays: 10}},
		Items: []workitem.WorkItem{
			completed("c1", 1, 3),
			completed("c2", 2, 10),
			completed("c3", 2, 17),
			{WorkItemID: "w1", WorkItemTypeID: "story", State: "Doing", StateCategory: workitem.InProgress, ArrivalDateTime: day(20), CommitmentDateTime: day(22)},
		},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if cfg == nil {
		cfg = &config.AppConfig{DefaultOrgID: testOrg, PowerUser: true}
	}
	info, err := widgetinfo.Default()
	if err != nil {
		t.Fatalf("widget catalogue failed: %v", err)
	}
	s := NewServer(cfg, st, info)
	s.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func january() map[string]any {
	return map[string]any{"from": "2024-01-01", "to": "2024-01-31"}
}

func decode(t *testing.T, text string) (Response, map[string]any) {
	t.Helper()
	var res Response
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, text)
	}
	data, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %T", res.Data)
	}
	return res, data
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	ss, err := s.MCP("test").Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect failed: %v", err)
	}
	defer ss.Close()
	cs, err := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "test"}, nil).Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	defer cs.Close()

	res, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"analyze_cfd", "analyze_flow_efficiency", "analyze_flow_efficiency_donut", "analyze_flow_of_demands",
		"analyze_class_of_service", "analyze_demand_distribution", "analyze_sources_of_delay",
		"analyze_performance_checkpoints", "analyze_kanban_board", "analyze_productivity",
		"analyze_service_level", "get_widget_information",
	} {
		if !slices.Contains(names, want) {
			t.Errorf("tool %s not registered, got %v", want, names)
		}
	}
}

func TestCallTool_Productivity(t *testing.T) {
	tests := []struct {
		name      string
		charts    bool
		wantChart bool
	}{
		{"charts disabled", false, false},
		{"charts enabled", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &config.AppConfig{DefaultOrgID: testOrg, PowerUser: true, EnableMermaidCharts: tt.charts})
			text, err := s.CallTool(context.Background(), "test", "analyze_productivity", january())
			if err != nil {
				t.Fatalf("CallTool failed: %v", err)
			}
			res, data := decode(t, text)

			if res.Context.OrgID != testOrg {
				t.Errorf("expected org %s, got %s", testOrg, res.Context.OrgID)
			}
			if res.Context.SessionID == "" {
				t.Error("expected a session id")
			}
			weekly, _ := data["weekly"].([]any)
			if len(weekly) != 5 {
				t.Fatalf("expected 5 weeks, got %v", data["weekly"])
			}
			total := 0.0
			for _, w := range weekly {
				total += w.(float64)
			}
			if total != 3 {
				t.Errorf("expected 3 completions, got %v", total)
			}
			if got := strings.Contains(res.Chart, "```mermaid"); got != tt.wantChart {
				t.Errorf("chart present = %v, want %v", got, tt.wantChart)
			}
		})
	}
}

func TestCallTool_ServiceLevel(t *testing.T) {
	s := newTestServer(t, nil)
	text, err := s.CallTool(context.Background(), "test", "analyze_service_level", january())
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !strings.Contains(text, `"serviceLevelExpectationInDays": 10`) {
		t.Errorf("expected the Story SLE in the response:\n%s", text)
	}
}

func TestCallTool_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"invalid checkpoint", "analyze_performance_checkpoints", map[string]any{"checkpoints": []string{"2024-01-01", "soon"}}, "invalid checkpoint"},
		{"proposed donut", "analyze_flow_efficiency_donut", map[string]any{"state_category": "proposed"}, "unsupported state category"},
		{"unknown widget", "get_widget_information", map[string]any{"widget_type": "pie"}, "unknown widget type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(ctx, "test", tt.tool, tt.args)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestCallTool_WidgetInformation(t *testing.T) {
	s := newTestServer(t, nil)
	text, err := s.CallTool(context.Background(), "test", "get_widget_information", map[string]any{"widget_type": "CFD"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !strings.Contains(text, "cfd") {
		t.Errorf("expected cfd information, got:\n%s", text)
	}
}

func TestWrapResponse_Warnings(t *testing.T) {
	cfg := &config.AppConfig{DefaultOrgID: testOrg, ContextAccessControl: true, AllowedContextIDs: []string{"board-1"}}
	s := newTestServer(t, cfg)
	ctx := context.Background()

	args := WidgetArgs{From: "2024-01-01", To: "2024-01-31", ContextID: "board-2", Aggregation: "fortnight"}
	session := s.Session(args)
	res := WrapResponse(ctx, session, args, nil, "")

	if res.Context.ContextID != "" {
		t.Errorf("expected hidden context to be dropped, got %q", res.Context.ContextID)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], "board-2") || !strings.Contains(res.Warnings[1], "fortnight") {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	allowed := WidgetArgs{From: "2024-01-01", To: "2024-01-31", ContextID: "board-1", Aggregation: "week"}
	res = WrapResponse(ctx, s.Session(allowed), allowed, nil, "")
	if len(res.Warnings) != 0 || res.Context.ContextID != "board-1" {
		t.Errorf("expected visible context without warnings, got %+v", res)
	}
	if !res.Context.Period.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected period start %v", res.Context.Period.Start)
	}
}

func TestWidgetArgs_Params(t *testing.T) {
	args := WidgetArgs{
		From:          "2024-01-01",
		Aggregation:   "month",
		WorkItemTypes: []string{"story", "bug"},
		Flagged:       []string{"yes"},
		CustomFields:  "Team#Blue",
	}
	params := args.Params()

	tests := []struct {
		key      string
		expected []string
	}{
		{filters.ParamLowerBoundary, []string{"2024-01-01"}},
		{filters.ParamAggregation, []string{"month"}},
		{filters.ParamWorkItemTypes, []string{"story", "bug"}},
		{filters.ParamFlagged, []string{"yes"}},
		{filters.ParamCustomFields, []string{"Team#Blue"}},
		{filters.ParamUpperBoundary, nil},
		{filters.ParamWorkItemLevels, nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := params[tt.key]; !slices.Equal(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
