package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaspardpetit/agentbridge/internal/api"
	"github.com/gaspardpetit/agentbridge/internal/config"
	"github.com/gaspardpetit/agentbridge/internal/inflight"
	"github.com/gaspardpetit/agentbridge/internal/metrics"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Turns    api.TurnRunner
	Tools    api.ToolSource
	Inflight *inflight.Counter
	// Registry receives the bridge collectors. A fresh one is created when nil.
	Registry *prometheus.Registry
}

// New constructs the HTTP handler for the bridge.
func New(cfg config.ServerConfig, d Deps) http.Handler {
	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	for _, m := range api.MiddlewareChain() {
		r.Use(m)
	}
	if d.Inflight == nil {
		d.Inflight = &inflight.Counter{}
	}
	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		metrics.Register(reg)
	}

	r.Get("/", ChatPageHandler())
	r.Get("/healthz", api.HealthHandler)
	r.With(d.Inflight.Middleware()).Post("/chat", (&api.ChatHandler{Turns: d.Turns, Tools: d.Tools}).ServeHTTP)
	r.Get("/api/tools", api.ToolsHandler(d.Tools))

	if ServesMetrics(cfg) {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return r
}

// ServesMetrics reports whether /metrics lives on the main listener.
func ServesMetrics(cfg config.ServerConfig) bool {
	return cfg.MetricsAddr == "" || cfg.MetricsAddr == fmt.Sprintf(":%d", cfg.Port)
}

// MetricsHandler serves reg on a dedicated listener.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
