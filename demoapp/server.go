// Package demoapp is the fault-injecting demo service the telemetry
// generator probes. Canned data behind a handful of GET endpoints, with
// configurable latency/error/outage injection.
package demoapp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the demo target service.
type Server struct {
	cfg    Config
	faults FaultInjector
	log    *slog.Logger

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	router chi.Router
}

// NewServer wires the routes, middleware and metrics. A nil injector
// disables fault injection.
func NewServer(cfg Config, faults FaultInjector, log *slog.Logger) *Server {
	if faults == nil {
		faults = NoFaults{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		faults: faults,
		log:    log,
	}
	s.initMetrics()
	s.routes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) initMetrics() {
	s.registry = prometheus.NewRegistry()
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "demoapp",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})
	s.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "demoapp",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route", "status"})
	s.registry.MustRegister(s.requests, s.duration)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.instrument)

	// /metrics stays exempt from fault injection so scrapes survive outages.
	r.Group(func(r chi.Router) {
		r.Use(s.injectFaults)
		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)
		r.Get("/users", s.handleUsers)
		r.Get("/version", s.handleVersion)
		r.Get("/slo-config", s.handleSLOConfig)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start))
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := strconv.Itoa(ww.Status())
		s.requests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		s.duration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := s.faults.Next()
		if d.Delay > 0 {
			time.Sleep(d.Delay)
		}
		switch d.Status {
		case http.StatusServiceUnavailable:
			http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
			return
		case http.StatusInternalServerError:
			http.Error(w, "simulated internal error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Application is running!")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "OK")
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"request_id": uuid.NewString(),
		"users": []map[string]any{
			{"id": 1, "name": "John Doe", "email": "john@example.com"},
			{"id": 2, "name": "Jane Smith", "email": "jane@example.com"},
			{"id": 3, "name": "Bob Johnson", "email": "bob@example.com"},
		},
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"request_id": uuid.NewString(),
		"version":    s.cfg.Version,
		"label":      s.cfg.Label,
	})
}

func (s *Server) handleSLOConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"request_id": uuid.NewString(),
		"service":    "observability-demo-app",
		"slos": []map[string]any{
			{"name": "availability", "objective": 0.995, "window_days": 30},
			{"name": "latency_p99", "objective_seconds": 1.0, "window_days": 30},
			{"name": "error_rate", "objective": 0.01, "window_days": 7},
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}
