package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/pokeapi-edge/internal/metrics"
)

// ValidationError is a client input error answered with 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// wrap adapts fn and routes its error through fail.
func (h *handlers) wrap(route string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.fail(w, r, route, err)
		}
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	attrs := []any{
		slog.String("route", route),
		slog.Any("err", err),
	}
	if userID := r.Header.Get("Authorization"); userID != "" {
		attrs = append(attrs, slog.String("userId", userID))
	}

	status := http.StatusInternalServerError

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		status = http.StatusBadRequest
		h.metrics.Emit(metrics.MetricEvent{
			Type: metrics.EventValidationFailed,
			Name: route,
		})
	}

	h.logger.Error("Request failed", append(attrs, slog.Int("status", status))...)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
