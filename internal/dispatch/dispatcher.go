package dispatch

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
	"github.com/angeloszaimis/pokeapi-edge/internal/metrics"
	"github.com/angeloszaimis/pokeapi-edge/internal/strategy"
)

const (
	HeaderInstanceID = "X-Instance-Id"
	HeaderRequestID  = "X-Request-Id"
)

var ErrNoLiveInstance = errors.New("no live instance")

// InstanceSource lists the instances requests may be sent to.
type InstanceSource interface {
	Instances() []*instance.Instance
}

type Dispatcher struct {
	logger           *slog.Logger
	strategy         strategy.Strategy
	source           InstanceSource
	metricsCollector *metrics.Collector
	mutex            sync.Mutex
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func New(logger *slog.Logger, strat strategy.Strategy, source InstanceSource, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		logger:           logger,
		strategy:         strat,
		source:           source,
		metricsCollector: collector,
	}
}

// Reserve selects a live instance for key and counts the request against
// it. Callers must call DecrementConn on the result when done.
func (d *Dispatcher) Reserve(key string) (*instance.Instance, error) {
	live := liveInstances(d.source.Instances())
	if len(live) == 0 {
		return nil, ErrNoLiveInstance
	}

	d.mutex.Lock()
	chosen := d.strategy.Select(live, key)
	d.mutex.Unlock()

	if chosen == nil {
		return nil, errors.New("strategy returned nil instance")
	}

	chosen.IncrementConn()
	return chosen, nil
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		r.Header.Set(HeaderRequestID, requestID)
	}
	w.Header().Set(HeaderRequestID, requestID)

	d.logger.Info("Received request",
		slog.String("request_id", requestID),
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("proto", r.Proto),
		slog.String("user_agent", r.UserAgent()))

	inst, err := d.Reserve(clientIP)
	if err != nil {
		d.logger.Warn("No live instance available", slog.String("client", clientIP))
		http.Error(w, "No live instance available", http.StatusServiceUnavailable)
		return
	}
	defer inst.DecrementConn()

	d.metricsCollector.Emit(metrics.MetricEvent{
		Type:     metrics.EventRequestReceived,
		Instance: inst.ID(),
	})
	d.metricsCollector.Emit(metrics.MetricEvent{
		Type:     metrics.EventInstanceSelected,
		Instance: inst.ID(),
	})

	w.Header().Set(HeaderInstanceID, inst.ID())

	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	inst.ServeHTTP(wrapped, r)
	duration := time.Since(start)

	d.metricsCollector.Emit(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Instance:   inst.ID(),
		Duration:   duration,
		StatusCode: wrapped.statusCode,
	})
	inst.RecordResponse(duration)

	d.logger.Debug("Request completed",
		slog.String("request_id", requestID),
		slog.String("instance", inst.ID()),
		slog.Int("index", inst.Index()),
		slog.Int("status", wrapped.statusCode),
		slog.Duration("duration", duration))
}

func liveInstances(instances []*instance.Instance) []*instance.Instance {
	live := make([]*instance.Instance, 0, len(instances))

	for _, inst := range instances {
		if inst.IsLive() {
			live = append(live, inst)
		}
	}

	return live
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
