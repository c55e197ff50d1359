// Package circuitbreaker implements the circuit breaker pattern guarding calls
// to a single upstream dependency.
//
// A circuit breaker prevents cascading failures by short-circuiting calls to a
// failing dependency. It has three states:
//
//   - CLOSED: Normal operation, calls pass through and failures are counted
//   - OPEN: Dependency failing, calls are short-circuited until the reset timeout elapses
//   - HALF-OPEN: A single trial call decides whether to close or re-open
//
// The OPEN to HALF-OPEN move happens lazily on the first call observed after the
// reset timeout; there is no background timer.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry()
//	cb, err := registry.Register("pokeapi", circuitbreaker.DefaultOptions())
//	items, err := circuitbreaker.Execute(ctx, cb,
//	    func(ctx context.Context) ([]Item, error) { return client.Fetch(ctx) },
//	    func(err error) []Item { return []Item{} },
//	)
package circuitbreaker
