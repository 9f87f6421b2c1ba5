package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/pariopipe/pkg/budget"
	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/monitor"
	"github.com/pario-ai/pariopipe/pkg/pricing"
	"github.com/pario-ai/pariopipe/pkg/registry"
)

func newTestDeps(t *testing.T, cfg *config.Config) Deps {
	t.Helper()
	reg := registry.New(registry.StaticSource{Config: cfg}, nil)
	table, err := pricing.FromConfig(reg.Config())
	require.NoError(t, err)
	mon, err := monitor.New(monitor.Options{
		Pricing: table,
		Policy:  budget.FromConfig(reg.Config().Monitor),
	})
	require.NoError(t, err)
	return Deps{
		Registry:    reg,
		Monitor:     mon,
		ProjectRoot: t.TempDir(),
		Shared:      func() *registry.Registry { return reg },
	}
}

func TestRunAllPass(t *testing.T) {
	d := newTestDeps(t, nil)
	rep := Run(context.Background(), d)

	require.Len(t, rep.Checks, 6)
	for _, c := range rep.Checks {
		assert.True(t, c.Passed, "%s: %s", c.Name, c.Error)
	}
	assert.True(t, rep.OK())
	assert.Equal(t, 6, rep.Passed)
	assert.Equal(t, Names(), []string{
		"config_loader", "base_component", "component_initialization",
		"cost_monitor", "fallback_strategies", "stage_configs",
	})

	// the cost check records the reference call
	total := d.Monitor.GetDailyReport().ByStage["test_stage"].Cost
	assert.InDelta(t, 0.00105, total, 1e-12)
}

func TestRunComponentMessages(t *testing.T) {
	rep := Run(context.Background(), newTestDeps(t, nil))
	var comp CheckResult
	for _, c := range rep.Checks {
		if c.Name == "component_initialization" {
			comp = c
		}
	}
	require.Len(t, comp.Messages, 7)
	assert.Contains(t, comp.Messages, "political_analyzer: claude-sonnet-4-20250514")
}

func TestRunFailuresDoNotStop(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.Model = ""
	cfg.Stages["network"] = models.Override{}
	d := newTestDeps(t, cfg)
	d.ProjectRoot = ""

	rep := Run(context.Background(), d)
	assert.False(t, rep.OK())
	require.Len(t, rep.Checks, 6)

	byName := map[string]CheckResult{}
	for _, c := range rep.Checks {
		byName[c.Name] = c
	}
	assert.False(t, byName["config_loader"].Passed)
	assert.False(t, byName["base_component"].Passed)
	assert.False(t, byName["component_initialization"].Passed)
	assert.True(t, byName["cost_monitor"].Passed)
	assert.True(t, byName["fallback_strategies"].Passed)
	assert.False(t, byName["stage_configs"].Passed)
}

func TestRunSingletonBroken(t *testing.T) {
	d := newTestDeps(t, nil)
	d.Shared = func() *registry.Registry { return registry.New(nil, nil) }

	rep := Run(context.Background(), d)
	assert.False(t, rep.Checks[0].Passed)
	assert.Contains(t, rep.Checks[0].Error, "singleton")
}
