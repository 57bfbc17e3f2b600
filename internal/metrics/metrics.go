// Package metrics exposes Prometheus instrumentation for the API service.
package metrics

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

	"cdrpulse/internal/models"
)

const namespace = "cdrpulse"

// Metrics owns a dedicated registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	configurationsCreated prometheus.Counter
	configurationsDeleted prometheus.Counter
	runsCreated           *prometheus.CounterVec
	runTransitions        *prometheus.CounterVec
	archiveFailures       prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests broken down by route, method and status class.",
		}, []string{"route", "method", "result"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for HTTP requests.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"route", "method"}),
		configurationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configurations_created_total",
			Help:      "Test configurations created.",
		}),
		configurationsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configurations_deleted_total",
			Help:      "Test configurations deleted.",
		}),
		runsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_created_total",
			Help:      "Test runs created by initial status.",
		}, []string{"status"}),
		runTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_status_transitions_total",
			Help:      "Test run status changes.",
		}, []string{"from", "to"}),
		archiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Completed runs that could not be written to the object store.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency keyed by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, r.Method, resultClass(status)).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func resultClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return strconv.Itoa(status/100) + "xx"
	}
}

func (m *Metrics) ConfigurationCreated() { m.configurationsCreated.Inc() }

func (m *Metrics) ConfigurationDeleted() { m.configurationsDeleted.Inc() }

func (m *Metrics) RunCreated(status models.RunStatus) {
	m.runsCreated.WithLabelValues(string(status)).Inc()
}

// RunTransition counts a status change. Unchanged statuses are ignored.
func (m *Metrics) RunTransition(from, to models.RunStatus) {
	if from == to {
		return
	}
	m.runTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) ArchiveFailed() { m.archiveFailures.Inc() }
