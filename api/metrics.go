package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the HTTP surface and the engine
// operations behind it.
type Metrics struct {
	registry *prometheus.Registry

	// Engine outcomes
	SessionsClassified  *prometheus.CounterVec
	Deductions          *prometheus.CounterVec
	InvariantViolations *prometheus.CounterVec
	ImportMismatches    prometheus.Counter

	// HTTP
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates metrics on a private registry, so several handlers
// (one per test) never collide on registration.
//
// Metrics:
//   - overwork_sessions_classified_total{source,day} - sessions created or re-classified
//   - overwork_deductions_total{outcome} - created, rejected, invalid, deleted
//   - overwork_invariant_violations_total{pool} - bank reads that broke an invariant
//   - overwork_import_mismatches_total - imported breakdown lines the engine disagreed with
//   - overwork_http_request_duration_seconds{method,route,status}
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overwork_sessions_classified_total",
				Help: "Total number of sessions classified",
			},
			[]string{"source", "day"}, // day: "normal" or "special"
		),

		Deductions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overwork_deductions_total",
				Help: "Total number of withdrawal outcomes",
			},
			[]string{"outcome"},
		),

		InvariantViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overwork_invariant_violations_total",
				Help: "Total number of bank invariant violations found by the auditor",
			},
			[]string{"pool"},
		),

		ImportMismatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "overwork_import_mismatches_total",
				Help: "Total number of imported breakdown fields that disagreed with the engine",
			},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "overwork_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request durations labelled by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

func dayLabel(special bool) string {
	if special {
		return "special"
	}
	return "normal"
}
