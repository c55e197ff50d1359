package main

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/pokeapi-edge/internal/healthcheck"
)

// router serves process-wide routes directly and sends everything else
// through the dispatcher to an instance.
func (a *app) router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /alive", healthcheck.AliveHandler())
	mux.HandleFunc("GET /healthy", healthcheck.HealthyHandler(a.health))
	mux.HandleFunc("GET /metrics", a.collector.Handler(a.cfg.Dispatch.Strategy))
	mux.HandleFunc("GET /breakers", a.breakerStatuses)
	mux.Handle("/", a.dispatcher)

	return mux
}

func (a *app) breakerStatuses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.breakers.Statuses()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
