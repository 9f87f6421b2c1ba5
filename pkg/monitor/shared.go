package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pario-ai/pariopipe/pkg/budget"
	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/pario-ai/pariopipe/pkg/metrics"
	"github.com/pario-ai/pariopipe/pkg/pricing"
	"github.com/pario-ai/pariopipe/pkg/tracker"
)

var (
	sharedMu sync.Mutex
	shared   = map[string]*Monitor{}
)

// Get returns the process-wide monitor for a project root, creating it on
// first use. Roots are compared by absolute path. Get never fails: a
// missing config, bad pricing or an unopenable store each degrade with a
// warning.
func Get(root string) *Monitor {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if m, ok := shared[abs]; ok {
		return m
	}
	m := build(abs, slog.Default())
	shared[abs] = m
	return m
}

func build(root string, logger *slog.Logger) *Monitor {
	logger = logger.With("root", root)
	buildLog := logger.With("component", "monitor")

	cfg, path, err := config.LoadForRoot(root)
	if err != nil {
		buildLog.Warn("config unavailable, using built-in defaults", "path", path, "error", err)
		cfg = config.Default()
	}

	table, err := pricing.FromConfig(cfg)
	if err != nil {
		buildLog.Warn("pricing unusable, all usage will be unpriced", "error", err)
		table = nil
	}

	opts := Options{
		Pricing:       table,
		Policy:        budget.FromConfig(cfg.Monitor),
		Logger:        logger,
		RetentionDays: cfg.Monitor.RetentionDays,
	}

	if cfg.Monitor.Persist {
		dbPath := cfg.Monitor.DBPath(root)
		tr, err := tracker.New(dbPath)
		if err != nil {
			buildLog.Warn("usage store unavailable, keeping records in memory", "path", dbPath, "error", err)
		} else {
			opts.Tracker = tr
		}
	}

	if cfg.Metrics.Enabled {
		opts.Observer = metrics.NewCollector(cfg.Metrics.Namespace, prometheus.NewRegistry())
	}

	m, err := New(opts)
	if err != nil {
		buildLog.Warn("downgrade policy invalid, using defaults", "error", err)
		opts.Policy = budget.FromConfig(config.Default().Monitor)
		m, _ = New(opts)
	}

	if err := m.Load(context.Background()); err != nil {
		buildLog.Warn("previous usage not restored", "error", err)
	}
	return m
}
