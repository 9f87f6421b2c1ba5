package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/mcp"
	"github.com/pario-ai/pariopipe/pkg/monitor"
	"github.com/pario-ai/pariopipe/pkg/resolver"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve pipeline tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := monitor.Get(a.root)
			defer func() { _ = m.Close() }()

			deps := mcp.Deps{
				Resolver:  resolver.New(a.registry),
				Fallbacks: a.registry,
				Monitor:   m,
				Logger:    a.logger,
			}
			if store := m.Store(); store != nil {
				deps.History = store
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return mcp.New(deps, version).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
