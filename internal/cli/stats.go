package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show instruction and rule counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, err := rootOpts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(out, "Database:      %s (%s)\n", cfg.DatabaseURL, cfg.DBType)
			fmt.Fprintf(out, "Instructions:  %d\n", stats.Instructions)
			fmt.Fprintf(out, "  linked:      %d\n", stats.LinkedInstructions)
			fmt.Fprintf(out, "Rules:         %d\n", stats.Rules)
			return nil
		},
	}
}
