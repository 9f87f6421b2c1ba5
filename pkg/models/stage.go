package models

import (
	"errors"
	"slices"
)

// Params holds the generation parameters sent with a model call.
type Params struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float64 `json:"top_p"`
	BatchSize   int     `json:"batch_size"`
}

// Override is one configuration layer. Unset fields leave the layer below
// untouched: an empty Model, a nil pointer or an empty Fallbacks list.
type Override struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" toml:"top_p,omitempty"`
	BatchSize   *int     `json:"batch_size,omitempty" yaml:"batch_size,omitempty" toml:"batch_size,omitempty"`
	Fallbacks   []string `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty" toml:"fallbacks,omitempty"`
}

// Merge applies layers in order; a field set in a later layer wins.
// The usual order is defaults, then stage, then operation.
func Merge(layers ...Override) Override {
	var out Override
	for _, l := range layers {
		if l.Model != "" {
			out.Model = l.Model
		}
		if l.Temperature != nil {
			v := *l.Temperature
			out.Temperature = &v
		}
		if l.MaxTokens != nil {
			v := *l.MaxTokens
			out.MaxTokens = &v
		}
		if l.TopP != nil {
			v := *l.TopP
			out.TopP = &v
		}
		if l.BatchSize != nil {
			v := *l.BatchSize
			out.BatchSize = &v
		}
		if len(l.Fallbacks) > 0 {
			out.Fallbacks = slices.Clone(l.Fallbacks)
		}
	}
	return out
}

// Params returns the layer's parameters with unset fields as zero values.
func (o Override) Params() Params {
	var p Params
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		p.MaxTokens = *o.MaxTokens
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	if o.BatchSize != nil {
		p.BatchSize = *o.BatchSize
	}
	return p
}

// IsZero reports whether the layer sets nothing.
func (o Override) IsZero() bool {
	return o.Model == "" && o.Temperature == nil && o.MaxTokens == nil &&
		o.TopP == nil && o.BatchSize == nil && len(o.Fallbacks) == 0
}

// StageConfig is the resolved configuration of one pipeline stage.
// Instances handed out by the registry are shared and must not be modified.
type StageConfig struct {
	Stage     string   `json:"stage"`
	Model     string   `json:"model"`
	Params    Params   `json:"params"`
	Fallbacks []string `json:"fallbacks"`
}

// Override converts the stage config back into a fully populated layer so
// operation overrides can be merged on top of it.
func (s *StageConfig) Override() Override {
	p := s.Params
	return Override{
		Model:       s.Model,
		Temperature: &p.Temperature,
		MaxTokens:   &p.MaxTokens,
		TopP:        &p.TopP,
		BatchSize:   &p.BatchSize,
		Fallbacks:   slices.Clone(s.Fallbacks),
	}
}

// ErrMissingModel is returned by Validate when no model is configured.
var ErrMissingModel = errors.New("model is required")

// ResolvedConfig is a stage config with operation overrides applied; it is
// what a pipeline stage uses to dispatch a model call.
type ResolvedConfig struct {
	Operation Operation `json:"operation"`
	Stage     string    `json:"stage"`
	Model     string    `json:"model"`
	Params    Params    `json:"params"`
	Fallbacks []string  `json:"fallbacks"`
}

// Validate checks the fields a model call cannot do without.
func (c ResolvedConfig) Validate() error {
	if c.Model == "" {
		return ErrMissingModel
	}
	return nil
}
