// Package resolver turns an operation name into the complete model
// configuration a pipeline stage dispatches with.
package resolver

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/registry"
)

// ErrConfigValidation is the sentinel behind ConfigValidationError.
var ErrConfigValidation = errors.New("config validation failed")

// ConfigValidationError reports a merged config that cannot be used.
type ConfigValidationError struct {
	Operation string
	Err       error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("operation %q: %v", e.Operation, e.Err)
}

func (e *ConfigValidationError) Unwrap() []error { return []error{ErrConfigValidation, e.Err} }

// StageSource is what the resolver needs from the registry.
type StageSource interface {
	GetStageFromOperation(op string) (string, error)
	GetStageConfig(stage string) (*models.StageConfig, error)
	OperationOverride(op string) (models.Override, error)
	FallbacksFor(model string, layer models.Override) []string
}

// Resolver merges stage configs with operation overrides.
type Resolver struct {
	src StageSource
}

// New creates a Resolver over src.
func New(src StageSource) *Resolver {
	return &Resolver{src: src}
}

// LoadOperationConfig returns the configuration for op: its stage config
// with the operation's overrides applied on top.
func (r *Resolver) LoadOperationConfig(op string) (models.ResolvedConfig, error) {
	stage, err := r.src.GetStageFromOperation(op)
	if err != nil {
		return models.ResolvedConfig{}, err
	}
	sc, err := r.src.GetStageConfig(stage)
	if err != nil {
		return models.ResolvedConfig{}, fmt.Errorf("operation %q: %w", op, err)
	}
	override, err := r.src.OperationOverride(op)
	if err != nil {
		return models.ResolvedConfig{}, err
	}

	merged := models.Merge(sc.Override(), override)

	fallbacks := merged.Fallbacks
	if override.Model != "" && override.Model != sc.Model && len(override.Fallbacks) == 0 {
		fallbacks = r.src.FallbacksFor(merged.Model, override)
	}
	if fallbacks == nil {
		fallbacks = []string{}
	}

	rc := models.ResolvedConfig{
		Operation: models.Operation(op),
		Stage:     stage,
		Model:     merged.Model,
		Params:    merged.Params(),
		Fallbacks: slices.Clone(fallbacks),
	}
	if err := rc.Validate(); err != nil {
		return models.ResolvedConfig{}, &ConfigValidationError{Operation: op, Err: err}
	}
	return rc, nil
}

// LoadOperationConfig resolves op against the process-wide registry.
func LoadOperationConfig(op string) (models.ResolvedConfig, error) {
	return New(registry.Shared()).LoadOperationConfig(op)
}
