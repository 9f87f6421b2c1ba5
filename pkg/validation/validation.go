// Package validation runs an end-to-end self check of the configuration
// registry, the analyzer components and the cost monitor.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/pariopipe/pkg/analyzer"
	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/monitor"
	"github.com/pario-ai/pariopipe/pkg/registry"
	"github.com/pario-ai/pariopipe/pkg/resolver"
)

// Deps are what the checks run against.
type Deps struct {
	Registry    *registry.Registry
	Monitor     *monitor.Monitor
	ProjectRoot string
	Logger      *slog.Logger
	// Shared returns the process-wide registry; nil uses registry.Shared.
	Shared func() *registry.Registry
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Messages []string      `json:"messages,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report collects all check results.
type Report struct {
	Checks []CheckResult `json:"checks"`
	Passed int           `json:"passed"`
	Failed int           `json:"failed"`
}

// OK reports whether every check passed.
func (r Report) OK() bool { return r.Failed == 0 }

type check struct {
	name string
	run  func(context.Context, Deps) ([]string, error)
}

var checks = []check{
	{"config_loader", checkConfigLoader},
	{"base_component", checkBaseComponent},
	{"component_initialization", checkComponents},
	{"cost_monitor", checkCostMonitor},
	{"fallback_strategies", checkFallbacks},
	{"stage_configs", checkStageConfigs},
}

// Names lists the checks in the order Run executes them.
func Names() []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.name
	}
	return out
}

// Run executes every check in order. A failing check does not stop the
// ones after it.
func Run(ctx context.Context, d Deps) Report {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Shared == nil {
		d.Shared = registry.Shared
	}
	logger := d.Logger.With("component", "validation")

	var rep Report
	for _, c := range checks {
		start := time.Now()
		msgs, err := c.run(ctx, d)
		res := CheckResult{
			Name:     c.name,
			Passed:   err == nil,
			Messages: msgs,
			Duration: time.Since(start),
		}
		if err != nil {
			res.Error = err.Error()
			rep.Failed++
			logger.Error("check failed", "check", c.name, "error", err)
		} else {
			rep.Passed++
			logger.Debug("check passed", "check", c.name)
		}
		rep.Checks = append(rep.Checks, res)
	}
	return rep
}

func componentDeps(d Deps) analyzer.Deps {
	return analyzer.Deps{
		Resolver:    resolver.New(d.Registry),
		Defaults:    d.Registry,
		Monitor:     d.Monitor,
		ProjectRoot: d.ProjectRoot,
		Logger:      d.Logger,
	}
}

func checkConfigLoader(_ context.Context, d Deps) ([]string, error) {
	if d.Shared() != d.Shared() {
		return nil, errors.New("shared registry is not a singleton")
	}
	msgs := []string{"shared registry is a singleton"}
	if d.Registry.Degraded() {
		msgs = append(msgs, fmt.Sprintf("running on built-in defaults: %v", d.Registry.LoadError()))
	}

	var missing []string
	for _, op := range models.Operations() {
		stage, err := d.Registry.GetStageFromOperation(string(op))
		if err != nil {
			return msgs, err
		}
		sc, err := d.Registry.GetStageConfig(stage)
		if err != nil {
			return msgs, err
		}
		if sc.Model == "" {
			missing = append(missing, string(op))
		}
	}
	if len(missing) > 0 {
		return msgs, fmt.Errorf("operations without a model: %v", missing)
	}
	msgs = append(msgs, fmt.Sprintf("all %d operations have a model", len(models.Operations())))
	return msgs, nil
}

func checkBaseComponent(_ context.Context, d Deps) ([]string, error) {
	cd := componentDeps(d)

	base, err := analyzer.NewBase(cd, "")
	if err != nil {
		return nil, fmt.Errorf("base without operation: %w", err)
	}
	withOp, err := analyzer.NewBase(cd, models.OpValidation)
	if err != nil {
		return nil, fmt.Errorf("base with operation: %w", err)
	}
	return []string{
		fmt.Sprintf("default base uses %s", base.Model()),
		fmt.Sprintf("validation base uses %s", withOp.Model()),
	}, nil
}

func checkComponents(ctx context.Context, d Deps) ([]string, error) {
	cd := componentDeps(d)
	kinds := analyzer.Kinds()
	built := make([]*analyzer.Component, len(kinds))

	g, _ := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			c, err := analyzer.Build(kind, cd)
			if err != nil {
				return err
			}
			built[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	msgs := make([]string, 0, len(built))
	for _, c := range built {
		line := fmt.Sprintf("%s: %s", c.Kind(), c.Model())
		if c.Downgraded() {
			line += fmt.Sprintf(" (downgraded from %s)", c.Config().Model)
		}
		msgs = append(msgs, line)
	}
	return msgs, nil
}

func checkCostMonitor(ctx context.Context, d Deps) ([]string, error) {
	cost, err := d.Monitor.RecordUsage(ctx, "claude-3-5-sonnet-20241022", 100, 50, "test_stage", "validation")
	if err != nil {
		return nil, err
	}
	rep := d.Monitor.GetDailyReport()
	if rep.TotalCost < cost {
		return nil, fmt.Errorf("daily total %.6f is below the recorded cost %.6f", rep.TotalCost, cost)
	}
	return []string{
		fmt.Sprintf("recorded cost $%.6f", cost),
		fmt.Sprintf("daily total $%.6f over %d calls", rep.TotalCost, rep.Calls),
		fmt.Sprintf("auto downgrade: %t", d.Monitor.ShouldAutoDowngrade()),
	}, nil
}

func checkFallbacks(_ context.Context, d Deps) ([]string, error) {
	var msgs []string
	for _, model := range []string{"claude-sonnet-4-20250514", "claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"} {
		chain := d.Registry.GetFallbackModels(model)
		for _, fb := range chain {
			if fb == model {
				return msgs, fmt.Errorf("%s falls back to itself", model)
			}
		}
		msgs = append(msgs, fmt.Sprintf("%s -> %v", model, chain))
	}
	return msgs, nil
}

func checkStageConfigs(_ context.Context, d Deps) ([]string, error) {
	var msgs []string
	for _, op := range []models.Operation{models.OpPoliticalAnalysis, models.OpSentimentAnalysis, models.OpNetworkAnalysis} {
		stage, err := d.Registry.GetStageFromOperation(string(op))
		if err != nil {
			return msgs, err
		}
		sc, err := d.Registry.GetStageConfig(stage)
		if err != nil {
			return msgs, err
		}
		if sc.Model == "" {
			return msgs, fmt.Errorf("%s: stage %s has no model", op, stage)
		}
		msgs = append(msgs, fmt.Sprintf("%s -> %s: %s", op, stage, sc.Model))
	}
	return msgs, nil
}
