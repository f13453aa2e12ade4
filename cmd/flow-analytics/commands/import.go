package commands

import (
	"fmt"

	"flow-analytics/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Load dataset files into the configured database",
	Long: `Loads YAML or JSON datasets (as written by mockgen) into the configured database. Each file replaces
all stored data of its organisation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, path := range args {
			d, err := store.ReadDataset(path)
			if err != nil {
				return err
			}
			if err := st.Import(cmd.Context(), d); err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			log.Info().
				Str("file", path).
				Str("org", d.OrgID).
				Int("items", len(d.Items)).
				Int("snapshots", len(d.Snapshots)).
				Msg("Dataset imported")
		}
		return nil
	},
}
