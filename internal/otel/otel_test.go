package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "cdrpulse", "test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	cases := []struct {
		endpoint string
		want     int
		wantErr  bool
	}{
		{"collector:4318", 2, false},
		{"http://collector:4318", 2, false},
		{"https://collector:4318/custom/v1/traces", 2, false},
		{"http://collector:4318/v1/traces", 3, false},
		{"http:///v1/traces", 0, true},
	}
	for _, tc := range cases {
		opts, err := exporterOptions(tc.endpoint)
		if tc.wantErr {
			require.Error(t, err, tc.endpoint)
			continue
		}
		require.NoError(t, err, tc.endpoint)
		require.Len(t, opts, tc.want, tc.endpoint)
	}
}

func TestMiddlewarePassesThrough(t *testing.T) {
	var sawSpan bool
	h := Middleware("cdrpulse")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = trace.SpanFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.True(t, sawSpan)
}
