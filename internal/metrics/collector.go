package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived     EventType = "request_received"
	EventInstanceSelected    EventType = "instance_selected"
	EventResponseCompleted   EventType = "response_completed"
	EventHealthChanged       EventType = "health_changed"
	EventBreakerStateChanged EventType = "breaker_state_changed"
	EventFallbackServed      EventType = "fallback_served"
	EventValidationFailed    EventType = "validation_failed"
	EventConfigReloaded      EventType = "config_reloaded"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time

	// Instance is set for request events.
	Instance   string
	Duration   time.Duration
	StatusCode int

	// Name identifies a breaker, dependency or route.
	Name    string
	State   string
	Healthy bool
	Version uint64
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking. It is safe on a nil collector.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Instance)

	case EventInstanceSelected:
		c.metrics.RecordInstanceSelection(event.Instance)

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Instance, event.Duration, event.StatusCode)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Name, event.Healthy)

	case EventBreakerStateChanged:
		c.metrics.RecordBreakerState(event.Name, event.State)

	case EventFallbackServed:
		c.metrics.RecordFallback(event.Name)

	case EventValidationFailed:
		c.metrics.RecordValidationFailure(event.Name)

	case EventConfigReloaded:
		c.metrics.RecordConfigVersion(event.Version)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(strategy string) Snapshot {
	return c.metrics.Snapshot(strategy)
}
