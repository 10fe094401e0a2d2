package mailer

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps email names to callables. Safe for concurrent use.
type Registry struct {
	callables map[string]*Callable
	mu        sync.RWMutex
}

// NewRegistry creates a registry holding the given callables.
func NewRegistry(callables ...*Callable) (*Registry, error) {
	r := &Registry{callables: make(map[string]*Callable, len(callables))}
	if err := r.Register(callables...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds callables under their names. A name may be registered once.
// Either every callable is added or, on a duplicate, none is.
func (r *Registry) Register(callables ...*Callable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(callables))
	for _, c := range callables {
		name := c.Name()
		if _, ok := r.callables[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, name)
		}
		seen[name] = struct{}{}
	}
	for _, c := range callables {
		r.callables[c.Name()] = c
	}
	return nil
}

// Lookup returns the callable registered under name.
func (r *Registry) Lookup(name string) (*Callable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.callables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEmail, name)
	}
	return c, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.callables))
}
