package capability

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicate is returned when a capability name is registered twice.
	ErrDuplicate = errors.New("capability: already registered")
	// ErrNotFound is returned when a name has no registered capability.
	ErrNotFound = errors.New("capability: not found")
)

// Registry maps unique names to capabilities. Writes are expected at
// initialization; lookups may happen concurrently from many goroutines.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register adds c. It fails with ErrDuplicate rather than silently
// overwriting an existing entry.
func (r *Registry) Register(c Capability) error {
	if c == nil {
		return fmt.Errorf("capability: register nil capability")
	}
	name := c.Name()
	if name == "" {
		return fmt.Errorf("capability: register: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	r.caps[name] = c
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *Registry) MustRegister(c Capability) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c, nil
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
