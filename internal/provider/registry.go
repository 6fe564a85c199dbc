package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the adapters enabled for a reconciliation, keyed by
// provider name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own name, replacing any previous one.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter for the given provider name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", name)
	}
	return a, nil
}

// SecretWriter returns the secret writer for the given provider name.
// Every supported provider has one: GCP writes to Secret Manager, Railway
// marks environment variables sensitive, Modal creates named secrets.
func (r *Registry) SecretWriter(name string) (SecretWriter, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	w, ok := a.(SecretWriter)
	if !ok {
		return nil, fmt.Errorf("provider %q has no secret mechanism", name)
	}
	return w, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
