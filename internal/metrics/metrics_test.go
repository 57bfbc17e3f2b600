package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"cdrpulse/internal/models"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/test-runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/test-runs/a", "/test-runs/b", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	require.Contains(t, out, `cdrpulse_http_requests_total{method="GET",result="4xx",route="/test-runs/{id}"} 2`)
	require.Contains(t, out, `cdrpulse_http_requests_total{method="GET",result="2xx",route="/ok"} 1`)
	require.Contains(t, out, `cdrpulse_http_request_duration_seconds_count{method="GET",route="/ok"} 1`)
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.ConfigurationCreated()
	m.ConfigurationCreated()
	m.ConfigurationDeleted()
	m.RunCreated(models.RunPending)
	m.RunTransition(models.RunPending, models.RunCompleted)
	m.RunTransition(models.RunCompleted, models.RunCompleted)
	m.ArchiveFailed()

	out := scrape(t, m)
	require.Contains(t, out, "cdrpulse_configurations_created_total 2")
	require.Contains(t, out, "cdrpulse_configurations_deleted_total 1")
	require.Contains(t, out, `cdrpulse_runs_created_total{status="pending"} 1`)
	require.Contains(t, out, `cdrpulse_run_status_transitions_total{from="pending",to="completed"} 1`)
	require.NotContains(t, out, `from="completed",to="completed"`)
	require.Contains(t, out, "cdrpulse_archive_failures_total 1")
}

func TestResultClass(t *testing.T) {
	require.Equal(t, "2xx", resultClass(204))
	require.Equal(t, "3xx", resultClass(307))
	require.Equal(t, "4xx", resultClass(429))
	require.Equal(t, "5xx", resultClass(503))
	require.Equal(t, "1xx", resultClass(101))
}
