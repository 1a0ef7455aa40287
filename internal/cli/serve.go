package cli

import (
	"github.com/easeaico/adk-rule-memory/internal/server"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the rule tools over MCP stdio",
		Long: `Serve remember_instruction and get_relevant_rules to an MCP host over
stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := rootOpts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rootOpts.logger.Info("serving MCP over stdio", zap.String("version", server.Version))
			return mcpserver.ServeStdio(server.New(a.Handler))
		},
	}
}
