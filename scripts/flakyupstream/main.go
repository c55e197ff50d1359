// Flakyupstream is a stand-in for the pokemon API used when exercising the
// circuit breaker by hand. It serves a small result list and can be switched
// into a failing mode at runtime.
//
// Usage:
//
//	go run ./scripts/flakyupstream -port 8081
//	curl -X POST localhost:8081/fail     # start answering 500
//	curl -X POST localhost:8081/recover  # back to normal
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type pokemon struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type page struct {
	Count   int       `json:"count"`
	Results []pokemon `json:"results"`
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	path := flag.String("path", "/api/v2/pokemon/", "path serving the result list")
	delay := flag.Duration("delay", 0, "artificial latency added to every list response")
	failing := flag.Bool("failing", false, "start in failing mode")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var broken atomic.Bool
	broken.Store(*failing)

	names := []string{"bulbasaur", "ivysaur", "venusaur", "charmander", "charmeleon"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+*path, func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		log.Info("request", "id", reqID, "path", r.URL.Path, "from", r.RemoteAddr, "failing", broken.Load())

		if *delay > 0 {
			time.Sleep(*delay)
		}
		if broken.Load() {
			http.Error(w, "upstream unavailable", http.StatusInternalServerError)
			return
		}

		p := page{Count: len(names)}
		for i, n := range names {
			p.Results = append(p.Results, pokemon{
				Name: n,
				URL:  fmt.Sprintf("http://%s%s%d/", r.Host, *path, i+1),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", reqID)
		if err := json.NewEncoder(w).Encode(p); err != nil {
			log.Error("encode response", "error", err)
		}
	})
	mux.HandleFunc("POST /fail", func(w http.ResponseWriter, r *http.Request) {
		broken.Store(true)
		log.Warn("switched to failing mode")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /recover", func(w http.ResponseWriter, r *http.Request) {
		broken.Store(false)
		log.Info("switched to healthy mode")
		w.WriteHeader(http.StatusNoContent)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("flaky upstream listening", "addr", addr, "path", *path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
