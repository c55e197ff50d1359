package healthcheck

import (
	"context"

	"github.com/angeloszaimis/pokeapi-edge/internal/circuitbreaker"
)

// BreakerProbe is UP only while the breaker is CLOSED.
func BreakerProbe(cb *circuitbreaker.CircuitBreaker) Probe {
	return func(context.Context) Result {
		status := cb.Status()
		data := map[string]any{
			"state":                status.State.String(),
			"consecutive_failures": status.ConsecutiveFailures,
		}

		if status.State != circuitbreaker.StateClosed {
			return Down(data)
		}
		return Result{OK: true, Data: data}
	}
}
