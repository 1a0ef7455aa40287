package cli

import (
	"strings"

	"github.com/easeaico/adk-rule-memory/internal/tools"
	"github.com/spf13/cobra"
)

// RememberOptions holds flags for the remember command.
type RememberOptions struct {
	*RootOptions
	Context string
}

// NewRememberCommand creates the remember command.
func NewRememberCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RememberOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "remember <instruction>",
		Short: "Turn an instruction into a stored rule",
		Long: `Classify an instruction and, when it generalizes, store it as a rule.

Example:
  rulememory remember "Always use TypeScript for new files" --context "writing unit tests"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res := a.Handler.Remember(cmd.Context(), tools.RememberInstructionArgs{
				Instruction: strings.Join(args, " "),
				Context:     opts.Context,
			})
			return writeResult(cmd.OutOrStdout(), opts.Format, res)
		},
	}

	cmd.Flags().StringVarP(&opts.Context, "context", "c", "", "what you were working on")

	return cmd
}
