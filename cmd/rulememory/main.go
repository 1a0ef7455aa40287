// Package main is the entry point for the rulememory CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/easeaico/adk-rule-memory/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
