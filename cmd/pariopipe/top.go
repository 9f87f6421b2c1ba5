package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/budget"
	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/monitor"
	"github.com/pario-ai/pariopipe/pkg/tracker"
)

func newTopCmd(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Live view of today's spend, refreshed when the usage store changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.registry.Config()
			if !cfg.Monitor.Persist {
				return fmt.Errorf("top needs a usage store: monitor.persist is off")
			}
			dbPath := cfg.Monitor.DBPath(a.root)

			tr, err := tracker.New(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			policy := budget.FromConfig(cfg.Monitor)
			render := func(ctx context.Context) error {
				now := time.Now()
				start, _ := budget.DayBounds(now)
				if policy.Metric == models.MetricRollingWindow && now.Add(-policy.Window).Before(start) {
					start = now.Add(-policy.Window)
				}
				recs, err := tr.Since(ctx, start)
				if err != nil {
					return err
				}
				fmt.Print("\033[H\033[2J")
				fmt.Printf("pariopipe top  %s  (%s)\n\n", now.Format("15:04:05"), dbPath)
				if err := printReport(monitor.ReportFrom(recs, now)); err != nil {
					return err
				}
				fmt.Println()
				printBudget(policy.Evaluate(recs, now))
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer func() { _ = w.Close() }()
			if err := w.Add(filepath.Dir(dbPath)); err != nil {
				return fmt.Errorf("watch %s: %w", filepath.Dir(dbPath), err)
			}

			if err := render(ctx); err != nil {
				return err
			}

			base := filepath.Base(dbPath)
			timer := time.NewTimer(debounce)
			timer.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-w.Events:
					if !ok {
						return nil
					}
					// the WAL and shm files change on every insert
					if !strings.HasPrefix(filepath.Base(ev.Name), base) {
						continue
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					timer.Reset(debounce)
				case err, ok := <-w.Errors:
					if !ok {
						return nil
					}
					a.logger.Warn("watch error", "error", err)
				case <-timer.C:
					if err := render(ctx); err != nil {
						a.logger.Warn("refresh failed", "error", err)
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "quiet period before a refresh")
	return cmd
}
