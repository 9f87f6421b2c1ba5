package router

import (
	"slices"

	"github.com/pario-ai/pariopipe/pkg/config"
)

// Router resolves a model name to its ordered fallback chain.
// It is built once and never modified, so it is safe for concurrent use.
type Router struct {
	chains map[string][]string
}

// New creates a Router from the fallback chains in cfg. Each chain is
// cleaned up front: blanks, self references and repeats are dropped while
// the configured order is kept.
func New(cfg *config.Config) *Router {
	chains := make(map[string][]string, len(cfg.Fallbacks))
	for model, targets := range cfg.Fallbacks {
		seen := map[string]bool{model: true}
		clean := make([]string, 0, len(targets))
		for _, target := range targets {
			if target == "" || seen[target] {
				continue // skip blanks, self and duplicates
			}
			seen[target] = true
			clean = append(clean, target)
		}
		chains[model] = clean
	}
	return &Router{chains: chains}
}

// Fallbacks returns the models to try, in order, when model is unavailable
// or too expensive. The result is a fresh slice, empty when none are
// configured.
func (r *Router) Fallbacks(model string) []string {
	chain, ok := r.chains[model]
	if !ok {
		return []string{}
	}
	return slices.Clone(chain)
}

// Chain returns model followed by its fallbacks.
func (r *Router) Chain(model string) []string {
	return append([]string{model}, r.chains[model]...)
}

// Downgrade returns the first fallback for model.
func (r *Router) Downgrade(model string) (string, bool) {
	chain := r.chains[model]
	if len(chain) == 0 {
		return "", false
	}
	return chain[0], true
}

// Models returns the models that have a configured chain, sorted.
func (r *Router) Models() []string {
	out := make([]string, 0, len(r.chains))
	for m := range r.chains {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}
