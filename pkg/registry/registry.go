// Package registry resolves per-stage model configuration from a layered
// config source. Stage configs are built lazily, once per stage, and the
// same instance is returned for the life of the registry.
package registry

import (
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/router"
)

type stageEntry struct {
	once sync.Once
	cfg  *models.StageConfig
}

// Registry caches stage configurations. It is safe for concurrent use.
type Registry struct {
	src    Source
	logger *slog.Logger

	loadOnce sync.Once
	cfg      *config.Config
	router   *router.Router
	loadErr  error

	// stages is filled during load and only read afterwards.
	stages   map[string]*stageEntry
	defaults stageEntry
}

// New creates a Registry reading from src on first use. A nil logger
// uses slog.Default().
func New(src Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		src = StaticSource{}
	}
	return &Registry{
		src:    src,
		logger: logger.With("component", "registry"),
	}
}

func (r *Registry) load() {
	r.loadOnce.Do(func() {
		cfg, err := r.src.Load()
		if err != nil {
			r.logger.Warn("config source unavailable, using built-in defaults",
				"source", r.src.Describe(), "error", err)
			r.loadErr = err
			cfg = config.Default()
		}
		r.cfg = cfg
		r.router = router.New(cfg)

		r.stages = make(map[string]*stageEntry)
		for _, s := range models.Stages() {
			r.stages[s] = &stageEntry{}
		}
		for s := range cfg.Stages {
			if _, ok := r.stages[s]; !ok {
				r.stages[s] = &stageEntry{}
			}
		}
		r.logger.Debug("config loaded", "source", r.src.Describe(), "stages", len(r.stages))
	})
}

// GetStageConfig returns the configuration of stage. Every call for the
// same stage returns the same pointer; callers must not modify it.
func (r *Registry) GetStageConfig(stage string) (*models.StageConfig, error) {
	r.load()
	e, ok := r.stages[stage]
	if !ok {
		return nil, &StageNotFoundError{Stage: stage}
	}
	e.once.Do(func() {
		e.cfg = r.buildStage(stage, r.cfg.Stages[stage])
	})
	return e.cfg, nil
}

// DefaultStageConfig returns the pipeline-wide defaults as a stage config
// with an empty stage name.
func (r *Registry) DefaultStageConfig() *models.StageConfig {
	r.load()
	r.defaults.once.Do(func() {
		r.defaults.cfg = r.buildStage("", models.Override{})
	})
	return r.defaults.cfg
}

func (r *Registry) buildStage(stage string, layer models.Override) *models.StageConfig {
	merged := models.Merge(r.cfg.Defaults, layer)
	return &models.StageConfig{
		Stage:     stage,
		Model:     merged.Model,
		Params:    merged.Params(),
		Fallbacks: r.fallbacksFor(merged.Model, layer, r.cfg.Defaults),
	}
}

// fallbacksFor picks the chain for model: a list given in the layer that
// chose the model, else the configured chain for the model.
func (r *Registry) fallbacksFor(model string, layers ...models.Override) []string {
	for _, l := range layers {
		if l.Model != "" && l.Model != model {
			continue
		}
		if len(l.Fallbacks) > 0 {
			return slices.Clone(l.Fallbacks)
		}
		if l.Model == model {
			break
		}
	}
	return r.router.Fallbacks(model)
}

// FallbacksFor is fallbacksFor for callers outside the package, such as the
// resolver applying an operation layer.
func (r *Registry) FallbacksFor(model string, layer models.Override) []string {
	r.load()
	return r.fallbacksFor(model, layer)
}

// GetStageFromOperation maps an operation to its stage.
func (r *Registry) GetStageFromOperation(op string) (string, error) {
	stage, ok := models.StageFor(op)
	if !ok {
		return "", &UnknownOperationError{Operation: op}
	}
	return stage, nil
}

// GetFallbackModels returns the ordered fallback chain for model, empty
// when none is configured.
func (r *Registry) GetFallbackModels(model string) []string {
	r.load()
	return r.router.Fallbacks(model)
}

// ChainedModels returns the models that have a configured fallback chain.
func (r *Registry) ChainedModels() []string {
	r.load()
	return r.router.Models()
}

// OperationOverride returns the operation-specific layer for op, which is
// zero when the config has none.
func (r *Registry) OperationOverride(op string) (models.Override, error) {
	if !models.IsOperation(op) {
		return models.Override{}, &UnknownOperationError{Operation: op}
	}
	r.load()
	return models.Merge(r.cfg.Operations[op]), nil
}

// Stages returns every known stage, sorted.
func (r *Registry) Stages() []string {
	r.load()
	out := make([]string, 0, len(r.stages))
	for s := range r.stages {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Degraded reports whether the registry is running on built-in defaults
// because its source failed.
func (r *Registry) Degraded() bool {
	r.load()
	return r.loadErr != nil
}

// LoadError returns the source failure, if any.
func (r *Registry) LoadError() error {
	r.load()
	return r.loadErr
}

// Config returns the loaded configuration. It must not be modified.
func (r *Registry) Config() *config.Config {
	r.load()
	return r.cfg
}

// Source describes where the configuration came from.
func (r *Registry) Source() string {
	return r.src.Describe()
}
