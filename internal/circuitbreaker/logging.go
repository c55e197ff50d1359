package circuitbreaker

import (
	"context"
	"log/slog"
)

// LogTransitions logs every state change of cb until ctx is done.
func LogTransitions(ctx context.Context, cb *CircuitBreaker, logger *slog.Logger) {
	changes := cb.Subscribe(16)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change := <-changes:
				logger.Info("Circuit breaker state changed",
					slog.String("breaker", change.Name),
					slog.String("from", change.From.String()),
					slog.String("to", change.To.String()))
			}
		}
	}()
}
