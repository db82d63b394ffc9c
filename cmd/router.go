package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/ab-router/internal/assignment"
	"github.com/angeloszaimis/ab-router/internal/backend"
	"github.com/angeloszaimis/ab-router/internal/directory"
	"github.com/angeloszaimis/ab-router/internal/handler"
	"github.com/angeloszaimis/ab-router/internal/metrics"
)

// setupRouter sends every path on the public listener to the A/B handler.
func setupRouter(abHandler *handler.ABTestHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/", abHandler)

	return mux
}

type routingState struct {
	Directory string            `json:"directory"`
	LastError string            `json:"last_error,omitempty"`
	Variants  directory.Pair    `json:"variants"`
	Counts    assignment.Counts `json:"counts"`
	Backends  []backend.Status  `json:"backends"`
}

func setupAdminRouter(
	collector *metrics.Collector,
	registry *prometheus.Registry,
	policy string,
	engine *assignment.Engine,
	dir *directory.Directory,
	backends *backend.Registry,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /stats", collector.Handler(policy, engine))
	mux.HandleFunc("GET /routing", func(w http.ResponseWriter, r *http.Request) {
		pair, _ := dir.Cached()
		state := routingState{
			Directory: dir.State().String(),
			Variants:  pair,
			Counts:    engine.Counts(),
			Backends:  backends.Stats(),
		}
		if err := dir.Err(); err != nil {
			state.LastError = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return mux
}
