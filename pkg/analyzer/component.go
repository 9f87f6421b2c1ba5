package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/pario-ai/pariopipe/pkg/models"
)

// defaultStage labels usage of a component built without an operation.
const defaultStage = "default"

// Component is a model-backed pipeline component.
type Component struct {
	kind       Kind
	op         models.Operation
	cfg        models.ResolvedConfig
	model      string
	downgraded bool
	root       string
	monitor    UsageMonitor
}

// NewBase builds a generic component for op. An empty op uses the
// pipeline defaults. When the monitor reports that spend has reached the
// threshold, the component starts on the first fallback model.
func NewBase(d Deps, op models.Operation) (*Component, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg models.ResolvedConfig
	if op == "" {
		if d.Defaults == nil {
			return nil, errors.New("no defaults source")
		}
		sc := d.Defaults.DefaultStageConfig()
		cfg = models.ResolvedConfig{
			Model:     sc.Model,
			Params:    sc.Params,
			Fallbacks: slices.Clone(sc.Fallbacks),
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		if d.Resolver == nil {
			return nil, errors.New("no config resolver")
		}
		var err error
		cfg, err = d.Resolver.LoadOperationConfig(string(op))
		if err != nil {
			return nil, err
		}
	}

	c := &Component{op: op, cfg: cfg, model: cfg.Model, monitor: d.Monitor}
	if d.Monitor != nil && d.Monitor.ShouldAutoDowngrade() && len(cfg.Fallbacks) > 0 {
		c.model = cfg.Fallbacks[0]
		c.downgraded = true
		logger.Warn("cost threshold reached, using fallback model",
			"operation", op, "configured", cfg.Model, "model", c.model)
	}
	return c, nil
}

// Kind returns the component kind; empty for a base component.
func (c *Component) Kind() Kind { return c.kind }

// Operation returns the bound operation; empty for the defaults.
func (c *Component) Operation() models.Operation { return c.op }

// Config returns the resolved configuration.
func (c *Component) Config() models.ResolvedConfig {
	cfg := c.cfg
	cfg.Fallbacks = slices.Clone(c.cfg.Fallbacks)
	return cfg
}

// Model returns the model the component calls.
func (c *Component) Model() string { return c.model }

// Downgraded reports whether Model is a fallback chosen for cost.
func (c *Component) Downgraded() bool { return c.downgraded }

// ProjectRoot returns the project root, set for the pipeline validator.
func (c *Component) ProjectRoot() string { return c.root }

// Stage returns the stage usage is recorded under.
func (c *Component) Stage() string {
	if c.cfg.Stage == "" {
		return defaultStage
	}
	return c.cfg.Stage
}

// RecordUsage reports one model call made by the component.
func (c *Component) RecordUsage(ctx context.Context, inputTokens, outputTokens int) (float64, error) {
	if c.monitor == nil {
		return 0, errors.New("no usage monitor")
	}
	op := string(c.op)
	if op == "" {
		op = defaultStage
	}
	return c.monitor.RecordUsage(ctx, c.model, inputTokens, outputTokens, c.Stage(), op)
}
