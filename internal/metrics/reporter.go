package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/pokeapi-edge/internal/circuitbreaker"
)

const DefaultReportInterval = time.Minute

// Report logs a summary every interval until ctx is done.
func (c *Collector) Report(ctx context.Context, interval time.Duration, strategy string) {
	if interval <= 0 {
		interval = DefaultReportInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logSnapshot(c.Snapshot(strategy))
		}
	}
}

func (c *Collector) logSnapshot(snap Snapshot) {
	breakers := make([]any, 0, len(snap.Breakers))
	for name, b := range snap.Breakers {
		breakers = append(breakers, slog.Group(name,
			slog.String("state", b.State),
			slog.Int64("transitions", b.Transitions),
			slog.Int64("fallbacks", b.Fallbacks)))
	}

	var validationErrors int64
	for _, n := range snap.ValidationErrors {
		validationErrors += n
	}

	c.logger.Info("Metrics report",
		slog.Int64("total_requests", snap.TotalRequests),
		slog.Int("instances", len(snap.Instances)),
		slog.Int64("validation_errors", validationErrors),
		slog.Uint64("config_version", snap.ConfigVersion),
		slog.Duration("uptime", snap.Uptime),
		slog.Group("breakers", breakers...))
}

// TrackBreaker records every state change of cb until ctx is done.
func (c *Collector) TrackBreaker(ctx context.Context, cb *circuitbreaker.CircuitBreaker) {
	changes := cb.Subscribe(16)

	c.Emit(MetricEvent{
		Type:  EventBreakerStateChanged,
		Name:  cb.Name(),
		State: cb.State().String(),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change := <-changes:
				c.Emit(MetricEvent{
					Type:      EventBreakerStateChanged,
					Timestamp: change.At,
					Name:      change.Name,
					State:     change.To.String(),
				})
			}
		}
	}()
}
