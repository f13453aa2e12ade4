package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flow-analytics/cmd/mockgen/engine"
	"flow-analytics/internal/logging"
	"flow-analytics/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg      engine.GeneratorConfig
	outFile  string
	driver   string
	database string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "mockgen",
	Short: "Generate synthetic work item datasets",
	Long: `Generates work items and state snapshots for a chosen scenario and writes them as a YAML or JSON
dataset, optionally importing them straight into a database.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = logging.New(verbose, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Now = time.Now()
		if outFile == "" {
			outFile = filepath.Join(".cache", cfg.OrgID+".yaml")
		}

		log.Info().
			Str("scenario", cfg.Scenario).
			Str("distribution", cfg.Distribution).
			Int("count", cfg.Count).
			Str("out", outFile).
			Msg("Generating dataset")

		d := engine.Generate(cfg)
		if err := store.WriteDataset(outFile, d); err != nil {
			return err
		}

		if database != "" {
			if err := importDataset(cmd.Context(), d); err != nil {
				return err
			}
		}
		log.Info().Int("items", len(d.Items)).Int("snapshots", len(d.Snapshots)).Msg("Done")
		return nil
	},
}

func importDataset(ctx context.Context, d store.Dataset) error {
	st, err := store.Open(ctx, driver, database)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Import(ctx, d); err != nil {
		return fmt.Errorf("import into %s: %w", driver, err)
	}
	log.Info().Str("driver", driver).Str("org", d.OrgID).Msg("Dataset imported")
	return nil
}

func main() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfg.Scenario, "scenario", "mild", "Scenario to generate: mild, chaos, drift")
	flags.StringVar(&cfg.Distribution, "distribution", "uniform", "Distribution to use: uniform, weibull")
	flags.IntVar(&cfg.Count, "count", 200, "Number of work items to generate")
	flags.StringVar(&cfg.OrgID, "org", "default", "Organisation id of the dataset")
	flags.Uint64Var(&cfg.Seed, "seed", 0, "Random seed (0 seeds from the clock)")
	flags.StringVar(&outFile, "out", "", "Dataset file, .yaml or .json (default .cache/<org>.yaml)")
	flags.StringVar(&driver, "driver", store.DriverSQLite, "Database driver for --db: sqlite or postgres")
	flags.StringVar(&database, "db", "", "Database to import the dataset into (sqlite path or postgres URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
