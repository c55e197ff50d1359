package healthcheck

import (
	"encoding/json"
	"net/http"
)

// AliveHandler answers liveness probes; it does not look at dependencies.
func AliveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, Liveness())
	}
}

// HealthyHandler answers readiness probes with the aggregate of every
// registered probe: 200 when UP, 503 when DOWN.
func HealthyHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, reg.Check(r.Context()))
	}
}

func writeStatus(w http.ResponseWriter, status Status) {
	code := http.StatusOK
	if !status.OK() {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
