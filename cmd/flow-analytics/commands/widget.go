package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// widgetFlags maps CLI flags onto tool argument names. Only flags set on the command line are sent, so a
// tool never receives arguments it does not declare.
var widgetFlags = []struct {
	flag, arg, usage string
	list             bool
}{
	{"org", "org_id", "organisation id", false},
	{"from", "from", "lower date boundary (YYYY-MM-DD)", false},
	{"to", "to", "upper date boundary (YYYY-MM-DD)", false},
	{"timezone", "timezone", "IANA timezone for day boundaries", false},
	{"aggregation", "aggregation", "day, week, month, quarter or year", false},
	{"date-analysis", "date_analysis_option", "was or became", false},
	{"context", "context_id", "board or aggregation of boards", false},
	{"type", "work_item_types", "work item type id or name", true},
	{"level", "work_item_levels", "work item level", true},
	{"class-of-service", "classes_of_service", "class of service", true},
	{"custom-fields", "custom_fields", "comma separated field#value pairs", false},
	{"normalisation", "normalisation", "comma separated tag#category pairs", false},
	{"flagged", "flagged", "yes, no or both", true},
	{"arrival", "arrival", "include or exclude pre-commitment time (flow efficiency donut)", false},
	{"state-category", "state_category", "completed or inprogress (flow efficiency donut)", false},
	{"checkpoint", "checkpoints", "checkpoint date (performance checkpoints)", true},
	{"widget-type", "widget_type", "widget type (get_widget_information)", false},
}

var widgetCmd = &cobra.Command{
	Use:   "widget <tool>",
	Short: "Run one tool and print its JSON response",
	Long: `Runs a single MCP tool, e.g. analyze_cfd or analyze_productivity, against the configured database
through an in-process client and prints the response.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolArgs := map[string]any{}
		flags := cmd.Flags()
		for _, f := range widgetFlags {
			if !flags.Changed(f.flag) {
				continue
			}
			var (
				value any
				err   error
			)
			if f.list {
				value, err = flags.GetStringSlice(f.flag)
			} else {
				value, err = flags.GetString(f.flag)
			}
			if err != nil {
				return err
			}
			toolArgs[f.arg] = value
		}

		server, closeStore, err := openServer(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		log.Debug().Str("tool", args[0]).Interface("args", toolArgs).Msg("Calling tool")
		out, err := server.CallTool(cmd.Context(), Version, args[0], toolArgs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	for _, f := range widgetFlags {
		if f.list {
			widgetCmd.Flags().StringSlice(f.flag, nil, f.usage)
		} else {
			widgetCmd.Flags().String(f.flag, "", f.usage)
		}
	}
}
