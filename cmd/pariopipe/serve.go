package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/metrics"
	"github.com/pario-ai/pariopipe/pkg/monitor"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics and cost reports over HTTP and run the daily rollover",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.registry.Config()
			if listen == "" {
				listen = cfg.Metrics.Listen
			}

			m := monitor.Get(a.root)
			defer func() { _ = m.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := monitor.NewScheduler(m, cfg.Monitor.RolloverSchedule)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			// nil unless metrics are enabled in the config
			collector, _ := m.Observer().(*metrics.Collector)
			if collector == nil {
				a.logger.Info("metrics disabled, serving reports only")
			}

			return metrics.NewServer(listen, collector, m, a.logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: metrics.listen from config)")
	return cmd
}
