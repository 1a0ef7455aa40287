package cli

import (
	"strings"

	"github.com/easeaico/adk-rule-memory/internal/tools"
	"github.com/spf13/cobra"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	MaxResults int
	Threshold  float64
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules <task description>",
		Short: "List the rules relevant to a task",
		Long: `Embed the task description and list the most similar stored rules.
Unset flags fall back to DEFAULT_MAX_RESULTS and DEFAULT_SIMILARITY_THRESHOLD.

Example:
  rulememory rules "add a REST endpoint for invoices" --max-results 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			q := tools.RelevantRulesArgs{TaskDescription: strings.Join(args, " ")}
			if cmd.Flags().Changed("max-results") {
				q.MaxResults = &opts.MaxResults
			}
			if cmd.Flags().Changed("threshold") {
				q.SimilarityThreshold = &opts.Threshold
			}

			return writeResult(cmd.OutOrStdout(), opts.Format, a.Handler.RelevantRules(cmd.Context(), q))
		},
	}

	cmd.Flags().IntVarP(&opts.MaxResults, "max-results", "n", 5, "maximum number of rules (1-100)")
	cmd.Flags().Float64VarP(&opts.Threshold, "threshold", "t", 0.7, "minimum cosine similarity (-1 to 1)")

	return cmd
}
