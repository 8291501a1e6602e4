package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that constructs a provider handle from a
// validated Config and an Auth credential.
type Factory func(cfg Config, auth Auth) (Provider, error)

// Registry maps vendor names to factories so provider choice can be
// made at runtime (config file, caller flag). Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under a vendor name. Registering the same
// name twice replaces the earlier factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New constructs a provider handle for the named vendor.
func (r *Registry) New(name string, cfg Config, auth Auth) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &InputError{Field: "provider", Value: name, Message: "unknown provider"}
	}

	p, err := factory(cfg, auth)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", name, err)
	}
	return p, nil
}

// Names returns the registered vendor names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
