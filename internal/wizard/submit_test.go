package wizard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"cdrpulse/internal/apiclient"
	"cdrpulse/internal/db"
	"cdrpulse/internal/handlers"
	"cdrpulse/internal/models"
	"cdrpulse/internal/simulate"
	"cdrpulse/internal/store"
	"cdrpulse/internal/wizard"
)

func newClient(t *testing.T) *apiclient.Client {
	t.Helper()
	return newClientWith(t, nil)
}

// newClientWith serves the API through wrap, when set.
func newClientWith(t *testing.T, wrap func(http.Handler) http.Handler) *apiclient.Client {
	t.Helper()
	ctx := context.Background()

	database, err := db.Connect(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.Migrate(ctx, database, db.DriverSQLite))

	st, err := store.New(database)
	require.NoError(t, err)

	logger := zerolog.Nop()
	api, err := handlers.New(handlers.Options{Store: st, Logger: &logger})
	require.NoError(t, err)

	var h http.Handler = api.Routes()
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, apiclient.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client
}

func submission() wizard.Submission {
	threshold := 400.0
	load := wizard.DefaultLoad()
	load.ResponseTimeThreshold = &threshold
	return wizard.Submission{
		Name:           "CDR Clinical API Test",
		ApplicationID:  "cdr-clinical",
		SelectedAPIIDs: []string{"ep-1", "ep-5"},
		Load:           load,
	}
}

func TestSimulatedSubmitter(t *testing.T) {
	s := &wizard.SimulatedSubmitter{Delay: time.Millisecond, Generator: simulate.NewSeeded(3), Now: time.Now}

	out, err := s.Submit(context.Background(), submission())
	require.NoError(t, err)
	require.NotEmpty(t, out.Configuration.ID)
	require.Equal(t, out.Configuration.ID, out.Run.TestConfigurationID)
	require.Equal(t, models.RunCompleted, out.Run.Status)
	require.NotNil(t, out.Run.CompletedAt)
	require.NotNil(t, out.Run.Results)
	require.Equal(t, int64(100*10*simulate.RequestsPerUserMinute), out.Run.Results.TotalRequests)
	require.Equal(t, 400.0, *out.Configuration.ResponseTimeThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := &wizard.SimulatedSubmitter{Delay: time.Hour, Generator: simulate.NewSeeded(3), Now: time.Now}
	_, err = slow.Submit(ctx, submission())
	require.ErrorIs(t, err, context.Canceled)
}

func TestAPISubmitterCompletesRun(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	s := &wizard.APISubmitter{Client: client, Delay: time.Millisecond, Generator: simulate.NewSeeded(9)}

	out, err := s.Submit(ctx, submission())
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, out.Run.Status)
	require.NotNil(t, out.Run.Results)
	require.NotNil(t, out.Run.CompletedAt)

	stored, err := client.GetRun(ctx, out.Run.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, stored.Status)
	require.Equal(t, out.Run.Results.TotalRequests, stored.Results.TotalRequests)

	cfg, err := client.GetConfiguration(ctx, out.Configuration.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"ep-1", "ep-5"}, cfg.SelectedAPIIDs)

	summary, err := client.RunSummary(ctx, out.Run.ID)
	require.NoError(t, err)
	require.Equal(t, out.Run.Results.TotalRequests, summary.Results.TotalRequests)
}

func TestAPISubmitterMarksAbandonedRunFailed(t *testing.T) {
	client := newClient(t)
	s := &wizard.APISubmitter{Client: client, Delay: time.Hour, Generator: simulate.NewSeeded(9)}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	_, err := s.Submit(ctx, submission())
	require.ErrorIs(t, err, context.Canceled)

	runs, err := client.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, models.RunFailed, runs[0].Status)
	require.Nil(t, runs[0].Results)
}

// failFirst answers the first request matching method and path with a 500.
func failFirst(method, path string) func(http.Handler) http.Handler {
	var tripped atomic.Bool
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == method && strings.HasPrefix(r.URL.Path, path) && tripped.CompareAndSwap(false, true) {
				http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func TestAPISubmitterFailedCompletionMarksRunFailed(t *testing.T) {
	client := newClientWith(t, failFirst(http.MethodPatch, "/test-runs/"))
	s := &wizard.APISubmitter{Client: client, Delay: time.Millisecond, Generator: simulate.NewSeeded(9)}

	_, err := s.Submit(context.Background(), submission())
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)

	runs, err := client.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, models.RunFailed, runs[0].Status)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestAPISubmitterDiscardsConfigurationWithoutRun(t *testing.T) {
	client := newClientWith(t, failFirst(http.MethodPost, "/test-runs"))
	s := &wizard.APISubmitter{Client: client, Delay: time.Millisecond, Generator: simulate.NewSeeded(9)}

	_, err := s.Submit(context.Background(), submission())
	require.ErrorContains(t, err, "start run")

	configs, err := client.ListConfigurations(context.Background())
	require.NoError(t, err)
	require.Empty(t, configs)
}

func TestAPISubmitterReportsValidationErrors(t *testing.T) {
	client := newClient(t)
	s := wizard.NewAPISubmitter(client, time.Millisecond)

	sub := submission()
	sub.SelectedAPIIDs = nil
	_, err := s.Submit(context.Background(), sub)

	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.Status)
}

func TestMachineWithAPISubmitter(t *testing.T) {
	client := newClient(t)
	m := wizard.New(nil, &wizard.APISubmitter{Client: client, Delay: time.Millisecond, Generator: simulate.NewSeeded(1)})

	require.NoError(t, m.Start())
	require.NoError(t, m.SelectApplication("cdr-clinical"))
	require.NoError(t, m.SelectAllAPIs())
	require.NoError(t, m.ContinueToConfigure())
	require.NoError(t, m.ContinueToReview())

	task, err := m.Save(context.Background(), m.DefaultName())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = task.Wait(ctx)
	require.NoError(t, err)

	snap := m.Snapshot()
	require.Equal(t, wizard.StepResults, snap.Step)
	require.Len(t, snap.Outcome.Configuration.SelectedAPIIDs, 8)
}
