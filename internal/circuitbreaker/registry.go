package circuitbreaker

import (
	"github.com/angeloszaimis/pokeapi-edge/internal/registry"
)

// Registry holds breakers by name.
type Registry struct {
	breakers *registry.Registry[*CircuitBreaker]
}

func NewRegistry() *Registry {
	return &Registry{
		breakers: registry.New[*CircuitBreaker]("circuit breaker"),
	}
}

// Register creates a breaker under a unique name. A second registration of
// the same name fails with *registry.DuplicateNameError.
func (r *Registry) Register(name string, options Options) (*CircuitBreaker, error) {
	cb, err := New(name, options)
	if err != nil {
		return nil, err
	}

	if err := r.breakers.Register(name, cb); err != nil {
		return nil, err
	}

	return cb, nil
}

// GetBreaker looks up a breaker by name.
func (r *Registry) GetBreaker(name string) (*CircuitBreaker, bool) {
	return r.breakers.Get(name)
}

// Stats returns the current state of every breaker.
func (r *Registry) Stats() map[string]State {
	breakers := r.breakers.Snapshot()

	stats := make(map[string]State, len(breakers))
	for name, cb := range breakers {
		stats[name] = cb.State()
	}
	return stats
}

// Statuses returns every breaker's status ordered by name.
func (r *Registry) Statuses() []Status {
	statuses := make([]Status, 0, r.breakers.Len())
	for _, name := range r.breakers.Names() {
		if cb, ok := r.breakers.Get(name); ok {
			statuses = append(statuses, cb.Status())
		}
	}
	return statuses
}
