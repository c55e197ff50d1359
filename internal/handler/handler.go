package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/pokeapi-edge/internal/circuitbreaker"
	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
	"github.com/angeloszaimis/pokeapi-edge/internal/metrics"
	"github.com/angeloszaimis/pokeapi-edge/internal/upstream"
)

const (
	RoutePing      = "/ping"
	RoutePokemons  = "/pokemons"
	RouteGreetings = "/greetings/{name}"

	// HeaderCircuitBreakerState marks a response served by the fallback.
	HeaderCircuitBreakerState = "X-Circuit-Breaker-State"

	anonymous = "anonymous"
)

// Fetcher loads the upstream item list.
type Fetcher interface {
	Fetch(ctx context.Context, target upstream.Target) ([]json.RawMessage, error)
}

// Deps are shared by every instance.
type Deps struct {
	Breaker *circuitbreaker.CircuitBreaker
	Fetcher Fetcher
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

type handlers struct {
	cfg     instance.ConfigReader
	breaker *circuitbreaker.CircuitBreaker
	fetcher Fetcher
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Routes returns the factory that builds each instance's routes.
func Routes(deps Deps) instance.HandlerFactory {
	return func(cfg instance.ConfigReader) http.Handler {
		h := &handlers{
			cfg:     cfg,
			breaker: deps.Breaker,
			fetcher: deps.Fetcher,
			logger:  deps.Logger,
			metrics: deps.Metrics,
		}

		mux := http.NewServeMux()
		mux.HandleFunc("GET "+RoutePing, h.wrap(RoutePing, h.ping))
		mux.HandleFunc("GET "+RoutePokemons, h.wrap(RoutePokemons, h.pokemons))
		mux.HandleFunc("GET "+RouteGreetings, h.wrap(RouteGreetings, h.greetings))
		return mux
	}
}

func (h *handlers) ping(w http.ResponseWriter, r *http.Request) error {
	message := h.cfg.Config().String(configpipeline.KeyPingResponse, "pong")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(message))
	return nil
}

func (h *handlers) pokemons(w http.ResponseWriter, r *http.Request) error {
	target, err := upstream.TargetFromConfig(h.cfg.Config())
	if err != nil {
		return err
	}

	degraded := false
	items, err := circuitbreaker.Execute(r.Context(), h.breaker,
		func(ctx context.Context) ([]json.RawMessage, error) {
			return h.fetcher.Fetch(ctx, target)
		},
		func(cause error) []json.RawMessage {
			degraded = true
			h.logger.Warn("Serving fallback list",
				slog.String("breaker", h.breaker.Name()),
				slog.Any("cause", cause))
			return []json.RawMessage{}
		})
	if err != nil {
		return err
	}

	if degraded {
		w.Header().Set(HeaderCircuitBreakerState, h.breaker.State().String())
		h.metrics.Emit(metrics.MetricEvent{
			Type: metrics.EventFallbackServed,
			Name: h.breaker.Name(),
		})
	}

	body, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode item list: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func (h *handlers) greetings(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("name")
	if err := validateName(name); err != nil {
		return err
	}

	version, err := parseVersion(r.Header.Get("Version"))
	if err != nil {
		return err
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		auth = anonymous
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Hello %s, you are using version %d of this api and authenticated with %s", name, version, auth)
	return nil
}
