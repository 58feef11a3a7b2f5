// Registry manages upload provider registration.
//
// Built-in providers register themselves into the default registry at
// startup; the daemon resolves the configured strategy by name.

package uploader

import (
	"sort"
	"sync"
)

// Registry maps provider names to implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Uploader
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Uploader),
	}
}

// Register adds a provider to the registry, replacing any previous
// provider with the same name.
func (r *Registry) Register(u Uploader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[u.Name()] = u
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Uploader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.providers[name]
	return u, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global registry instance.
var DefaultRegistry = NewRegistry()

// Register adds a provider to the default registry.
func Register(u Uploader) {
	DefaultRegistry.Register(u)
}

// Get returns a provider from the default registry.
func Get(name string) (Uploader, bool) {
	return DefaultRegistry.Get(name)
}

// Names returns the provider names in the default registry.
func Names() []string {
	return DefaultRegistry.Names()
}
