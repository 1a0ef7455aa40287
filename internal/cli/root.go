// Package cli implements the rulememory command line.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/easeaico/adk-rule-memory/internal/app"
	"github.com/easeaico/adk-rule-memory/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rulememory CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rulememory",
		Short: "Persistent coding-rule memory for agents",
		Long: `rulememory turns developer instructions into reusable coding rules and
finds the rules relevant to a new task by semantic similarity.

Configuration is read from .env, the YAML file named by RULE_MEMORY_CONFIG,
and the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRememberCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))

	return cmd
}

// initLogger builds a production logger writing to stderr, keeping stdout
// free for command output and the MCP stdio channel.
func (o *RootOptions) initLogger() error {
	if o.logger != nil {
		return nil
	}
	zcfg := zap.NewProductionConfig()
	if o.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	o.logger = logger
	return nil
}

func (o *RootOptions) openApp(ctx context.Context) (*app.App, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	a, err := app.New(ctx, cfg, o.logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	return a, cfg, nil
}
