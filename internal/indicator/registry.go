package indicator

import (
	"sort"
	"sync"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Factory constructs a calculator for one spec.
type Factory func(spec Spec) (Calculator, error)

// Registry maps calculator family names to factories.
type Registry interface {
	Register(name string, factory Factory) error
	New(spec Spec) (Calculator, error)
	Has(name string) bool
	List() []string
}

// RegistryV1 is the default Registry implementation.
type RegistryV1 struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() Registry {
	return &RegistryV1{
		factories: make(map[string]Factory),
		mu:        sync.RWMutex{},
	}
}

// DefaultRegistry returns a registry with all built-in calculator families
// registered.
func DefaultRegistry() Registry {
	registry := NewRegistry()

	// Registration of built-ins cannot fail on a fresh registry.
	_ = registry.Register("sma", NewSMA)
	_ = registry.Register("ema", NewEMA)
	_ = registry.Register("rsi", NewRSI)
	_ = registry.Register("atr", NewATR)

	return registry
}

// Register adds a calculator family to the registry.
func (r *RegistryV1) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "indicator family %q already registered", name)
	}

	r.factories[name] = factory

	return nil
}

// New constructs a calculator for the given spec.
func (r *RegistryV1) New(spec Spec) (Calculator, error) {
	r.mu.RLock()
	factory, exists := r.factories[spec.Name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator family %q not found", spec.Name)
	}

	return factory(spec)
}

// Has reports whether a calculator family is registered.
func (r *RegistryV1) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]

	return exists
}

// List returns all registered family names, sorted.
func (r *RegistryV1) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
