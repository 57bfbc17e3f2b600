package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/trace"

	"cdrpulse/internal/otel"
)

// Routes builds the HTTP router. The REST surface is served both at the root
// and under /api, the prefix used by the web client.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(a.opts.ServiceName))
	r.Use(hlog.NewHandler(a.logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)

	allowed := a.opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.LimitByIP(a.opts.RateLimit, time.Minute))
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
	r.Use(middleware.Timeout(a.opts.RequestTimeout))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	a.mount(r)
	r.Route("/api", a.mount)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})

	return r
}

func (a *API) mount(r chi.Router) {
	r.Route("/test-configurations", func(r chi.Router) {
		r.Get("/", a.handleListConfigurations)
		r.Post("/", a.handleCreateConfiguration)
		r.Get("/{id}", a.handleGetConfiguration)
		r.Put("/{id}", a.handleUpdateConfiguration)
		r.Delete("/{id}", a.handleDeleteConfiguration)
		r.Get("/{configId}/runs", a.handleListRunsForConfiguration)
	})

	r.Route("/test-runs", func(r chi.Router) {
		r.Get("/", a.handleListRuns)
		r.Post("/", a.handleCreateRun)
		r.Get("/{id}", a.handleGetRun)
		r.Patch("/{id}", a.handleUpdateRun)
		r.Get("/{id}/summary", a.handleRunSummary)
		r.Get("/{id}/report", a.handleRunReport)
		r.Get("/{id}/archive", a.handleRunArchive)
	})

	r.Get("/stats", a.handleStats)

	r.Route("/catalog/applications", func(r chi.Router) {
		r.Get("/", a.handleListApplications)
		r.Get("/{appId}", a.handleGetApplication)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	evt := hlog.FromRequest(r).Info()
	if status >= http.StatusInternalServerError {
		evt = hlog.FromRequest(r).Error()
	}
	evt = evt.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("request_id", middleware.GetReqID(r.Context()))
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("request")
}
