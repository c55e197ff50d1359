package healthcheck

import (
	"context"
	"log/slog"
	"time"
)

// Watch periodically runs every probe and logs when a probe changes outcome.
// onChange, when non-nil, is called for each change.
func Watch(
	ctx context.Context,
	reg *Registry,
	interval time.Duration,
	logger *slog.Logger,
	onChange func(name string, healthy bool),
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health watch stopped")
			return

		case <-ticker.C:
			for name, healthy := range reg.RunAll(ctx).Leaves() {
				previous, seen := last[name]
				last[name] = healthy

				if seen && previous == healthy {
					continue
				}
				if !seen && healthy {
					continue
				}

				if healthy {
					logger.Info("Dependency is back up", slog.String("probe", name))
				} else {
					logger.Warn("Dependency is down", slog.String("probe", name))
				}

				if onChange != nil {
					onChange(name, healthy)
				}
			}
		}
	}
}
