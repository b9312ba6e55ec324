package backend

import (
	"fmt"
	"slices"
	"sync"
)

// Registry manages runtime instances.
type Registry struct {
	runtimes map[Provider]Runtime
	mu       sync.RWMutex
}

// NewRegistry creates a new runtime registry.
func NewRegistry() *Registry {
	return &Registry{
		runtimes: make(map[Provider]Runtime),
	}
}

// Register adds a runtime to the registry.
func (r *Registry) Register(rt Runtime) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := rt.Provider()
	if _, exists := r.runtimes[p]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, p)
	}
	r.runtimes[p] = rt

	return nil
}

// Get retrieves a runtime by provider.
func (r *Registry) Get(p Provider) (Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.runtimes[p]
	return rt, ok
}

// MustGet retrieves a runtime by provider or returns ErrNotFound.
func (r *Registry) MustGet(p Provider) (Runtime, error) {
	rt, ok := r.Get(p)
	if !ok {
		return nil, fmt.Errorf("%w: %s (registered: %v)", ErrNotFound, p, r.Providers())
	}

	return rt, nil
}

// Providers lists registered providers in lexical order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.runtimes))
	for p := range r.runtimes {
		out = append(out, p)
	}
	slices.Sort(out)

	return out
}
