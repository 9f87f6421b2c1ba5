// Package pricing maps model identifiers to per-token USD rates.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/pario-ai/pariopipe/pkg/models"
)

// ErrUnknownModel is the sentinel behind UnknownModelPricingError.
var ErrUnknownModel = errors.New("no pricing for model")

// UnknownModelPricingError is returned by Lookup for a model without an
// entry.
type UnknownModelPricingError struct {
	Model string
}

func (e *UnknownModelPricingError) Error() string {
	return fmt.Sprintf("no pricing for model %q", e.Model)
}

func (e *UnknownModelPricingError) Unwrap() error { return ErrUnknownModel }

// Table is an immutable model to pricing lookup. Safe for concurrent use.
type Table struct {
	entries map[string]models.PricingEntry
	// prefixes holds the keys longest first for prefix matching.
	prefixes []string
}

// New validates entries and builds a Table. A later entry for the same
// model replaces an earlier one.
func New(entries []models.PricingEntry) (*Table, error) {
	t := &Table{entries: make(map[string]models.PricingEntry, len(entries))}
	for _, e := range entries {
		if e.Model == "" {
			return nil, errors.New("pricing entry without model")
		}
		if e.InputRate < 0 || e.OutputRate < 0 {
			return nil, fmt.Errorf("pricing for %q: rates must not be negative", e.Model)
		}
		t.entries[e.Model] = e
	}
	for m := range t.entries {
		t.prefixes = append(t.prefixes, m)
	}
	sort.Slice(t.prefixes, func(i, j int) bool {
		if len(t.prefixes[i]) != len(t.prefixes[j]) {
			return len(t.prefixes[i]) > len(t.prefixes[j])
		}
		return t.prefixes[i] < t.prefixes[j]
	})
	return t, nil
}

// FromConfig builds a Table from cfg.Pricing.
func FromConfig(cfg *config.Config) (*Table, error) {
	return New(cfg.PricingEntries())
}

// Lookup returns the entry for model. An exact match wins; otherwise the
// longest configured name that prefixes model is used, so "claude-3-5-haiku"
// prices "claude-3-5-haiku-20241022".
func (t *Table) Lookup(model string) (models.PricingEntry, error) {
	if e, ok := t.entries[model]; ok {
		return e, nil
	}
	for _, p := range t.prefixes {
		if strings.HasPrefix(model, p) {
			e := t.entries[p]
			e.Model = model
			return e, nil
		}
	}
	return models.PricingEntry{}, &UnknownModelPricingError{Model: model}
}

// Cost returns inputTokens*input_rate + outputTokens*output_rate.
func (t *Table) Cost(model string, inputTokens, outputTokens int) (float64, error) {
	e, err := t.Lookup(model)
	if err != nil {
		return 0, err
	}
	return e.Cost(inputTokens, outputTokens), nil
}

// Models returns the priced model names, sorted.
func (t *Table) Models() []string {
	out := make([]string, 0, len(t.entries))
	for m := range t.entries {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }
