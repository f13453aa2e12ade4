package commands

import (
	"context"
	"fmt"

	"flow-analytics/internal/config"
	"flow-analytics/internal/logging"
	"flow-analytics/internal/mcp"
	"flow-analytics/internal/store"
	"flow-analytics/internal/widgetinfo"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "flow-analytics",
	Short: "Flow metrics for work item data, served over MCP",
	Long: `An MCP Server that computes flow metrics (cumulative flow, flow efficiency, demand, service level,
productivity and sources of delay) from work item snapshots stored in SQLite or PostgreSQL.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("database", cfg.Database.Driver).
			Msg("flow-analytics starting")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		server, closeStore, err := openServer(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		return server.Start(cmd.Context(), Version)
	},
}

// openServer wires the configured store and widget catalogue into an MCP server.
func openServer(ctx context.Context) (*mcp.Server, func(), error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	info, err := widgetinfo.Load(cfg.WidgetInfoDir)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to load widget information: %w", err)
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
	return mcp.NewServer(cfg, st, info), closeStore, nil
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(widgetCmd, importCmd)
}
