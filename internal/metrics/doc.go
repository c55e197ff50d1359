// Package metrics provides real-time metrics collection for the edge service.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Request counts and selections per instance
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution per instance
//   - Circuit breaker state, transitions and fallbacks
//   - Dependency health and validation failures
//   - The configuration version in effect
//
// The collector runs in a dedicated goroutine. Emit never blocks the request
// path; events are dropped when the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Instance:   inst.ID(),
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot("round-robin")
//
// Report logs a snapshot on a fixed interval, and TrackBreaker turns breaker
// transitions into events.
package metrics
