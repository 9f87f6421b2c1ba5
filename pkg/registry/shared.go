package registry

import (
	"log/slog"
	"sync"
)

var (
	sharedOnce sync.Once
	shared     *Registry
)

// Initialize sets up the process-wide registry. Only the first call has an
// effect; later calls return the instance created by it.
func Initialize(src Source, logger *slog.Logger) *Registry {
	sharedOnce.Do(func() {
		shared = New(src, logger)
	})
	return shared
}

// Shared returns the process-wide registry, creating it from the current
// directory's project config when Initialize was never called.
// Components should prefer a *Registry passed in explicitly.
func Shared() *Registry {
	return Initialize(DefaultSource(), nil)
}

// DefaultSource is the source Shared uses: the project root ".", with
// $PARIOPIPE_CONFIG taking precedence.
func DefaultSource() Source {
	return RootSource{Root: "."}
}
