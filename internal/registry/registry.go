package registry

import (
	"fmt"
	"sort"
	"sync"
)

// DuplicateNameError is returned when a name is registered twice.
type DuplicateNameError struct {
	Kind string
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already registered", e.Kind, e.Name)
}

type Registry[T any] struct {
	mutex   sync.RWMutex
	kind    string
	entries map[string]T
}

func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		entries: make(map[string]T),
	}
}

func (r *Registry[T]) Register(name string, value T) error {
	if name == "" {
		return fmt.Errorf("%s name required", r.kind)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.entries[name]; exists {
		return &DuplicateNameError{Kind: r.kind, Name: name}
	}

	r.entries[name] = value
	return nil
}

func (r *Registry[T]) Get(name string) (T, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	value, ok := r.entries[name]
	return value, ok
}

// Names returns the registered names in lexical order.
func (r *Registry[T]) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Snapshot copies the entries so callers can iterate without holding the lock.
func (r *Registry[T]) Snapshot() map[string]T {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entries := make(map[string]T, len(r.entries))
	for name, value := range r.entries {
		entries[name] = value
	}
	return entries
}

func (r *Registry[T]) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}
