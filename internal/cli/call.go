package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Args string
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a rule tool with JSON arguments",
		Long: `Invoke a rule tool exactly as an agent would and print the JSON result.

Example:
  rulememory call get_relevant_rules --args '{"taskDescription":"write tests","maxResults":3}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out, err := a.Handler.HandleToolCall(cmd.Context(), args[0], []byte(opts.Args))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "tool arguments as JSON")

	return cmd
}
