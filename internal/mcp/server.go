// Package mcp exposes the widget engines as Model Context Protocol tools.
package mcp

import (
	"context"
	"time"

	"flow-analytics/internal/config"
	"flow-analytics/internal/filters"
	"flow-analytics/internal/vsm"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Store is every collaborator the tools read from.
type Store interface {
	vsm.StateQuerier
	vsm.SnapshotQuerier
	vsm.ConfigProvider
	filters.SettingsProvider
	filters.ContextProvider
}

// Server holds the state shared by every tool call. Each call gets its own Session.
type Server struct {
	cfg        *config.AppConfig
	store      Store
	widgetInfo vsm.WidgetInfoProvider
	now        func() time.Time
}

// NewServer creates a new MCP server.
func NewServer(cfg *config.AppConfig, store Store, widgetInfo vsm.WidgetInfoProvider) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		widgetInfo: widgetInfo,
		now:        time.Now,
	}
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP(version string) *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: "flow-analytics", Version: version}, nil)
	s.registerTools(srv)
	return srv
}

// Start serves the tools over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Start(ctx context.Context, version string) error {
	log.Info().Msg("MCP Server starting stdio transport")
	return s.MCP(version).Run(ctx, &sdk.StdioTransport{})
}

// Session builds the request-scoped calculation context for one tool call.
func (s *Server) Session(args WidgetArgs) *vsm.Session {
	f := filters.New(s.cfg.Security(args.OrgID), s.store, args.Params(),
		filters.WithContextProvider(s.store),
		filters.WithClock(s.now))
	return vsm.NewSession(vsm.Deps{
		States:     s.store,
		Snapshots:  s.store,
		Settings:   s.store,
		Config:     s.store,
		WidgetInfo: s.widgetInfo,
	}, f)
}
