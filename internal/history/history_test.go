package history_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"cdrpulse/internal/apiclient"
	"cdrpulse/internal/catalog"
	"cdrpulse/internal/db"
	"cdrpulse/internal/handlers"
	"cdrpulse/internal/history"
	"cdrpulse/internal/models"
	"cdrpulse/internal/results"
	"cdrpulse/internal/store"
)

func seededClient(t *testing.T) *apiclient.Client {
	t.Helper()
	ctx := context.Background()

	database, err := db.Connect(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.Migrate(ctx, database, db.DriverSQLite))

	st, err := store.New(database)
	require.NoError(t, err)
	require.NoError(t, st.Seed(ctx))

	logger := zerolog.Nop()
	api, err := handlers.New(handlers.Options{Store: st, Logger: &logger})
	require.NoError(t, err)

	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, apiclient.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client
}

func fixture() []history.Entry {
	started := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	completed := started.Add(10*time.Minute + 20*time.Second)
	threshold := 100.0
	res := models.Results{AvgResponseTime: 150, P95ResponseTime: 300, P99ResponseTime: 450, ErrorRate: 0.5, TotalRequests: 100, SuccessfulRequests: 99}

	configs := []models.TestConfiguration{
		{ID: "c1", Name: "Nightly Claims", ApplicationID: "insurance-claims", ResponseTimeThreshold: &threshold},
		{ID: "c2", Name: "Formulary smoke", ApplicationID: "pharmacy-network"},
		{ID: "c3", Name: "Legacy", ApplicationID: "retired-app"},
	}
	runs := []models.TestRun{
		{ID: "r1", TestConfigurationID: "c1", Status: models.RunCompleted, StartedAt: started, CompletedAt: &completed, Results: &res},
		{ID: "r2", TestConfigurationID: "c2", Status: models.RunRunning, StartedAt: started},
		{ID: "r3", TestConfigurationID: "c3", Status: models.RunFailed, StartedAt: started, CompletedAt: &completed},
		{ID: "r4", TestConfigurationID: "gone", Status: models.RunPending, StartedAt: started},
	}
	return history.Join(runs, configs, catalog.Default().Applications())
}

func TestJoin(t *testing.T) {
	entries := fixture()
	require.Len(t, entries, 4)

	require.Equal(t, "Nightly Claims", entries[0].Name())
	require.Equal(t, "Insurance Claims API", entries[0].ApplicationName)
	require.Equal(t, "10 min", entries[0].Elapsed())
	require.NotNil(t, entries[0].Summary)
	require.Equal(t, results.VerdictPassed, entries[0].Summary.Verdict)
	require.Len(t, entries[0].Summary.Breaches, 1)

	require.Empty(t, entries[1].Elapsed())
	require.Nil(t, entries[1].Summary)

	require.Equal(t, "retired-app", entries[2].ApplicationName)

	require.Nil(t, entries[3].Configuration)
	require.Equal(t, "Unnamed Test", entries[3].Name())
	require.Empty(t, entries[3].ApplicationName)
}

func TestFilter(t *testing.T) {
	entries := fixture()
	ids := func(es []history.Entry) []string {
		out := make([]string, 0, len(es))
		for _, e := range es {
			out = append(out, e.Run.ID)
		}
		return out
	}

	cases := []struct {
		name   string
		filter history.Filter
		want   []string
	}{
		{"zero filter keeps everything", history.Filter{}, []string{"r1", "r2", "r3", "r4"}},
		{"status", history.Filter{Status: models.RunRunning}, []string{"r2"}},
		{"configuration name", history.Filter{Query: "nightly"}, []string{"r1"}},
		{"application name", history.Filter{Query: "PHARMACY"}, []string{"r2"}},
		{"query and status", history.Filter{Query: "api", Status: models.RunCompleted}, []string{"r1"}},
		{"no match", history.Filter{Query: "radiology"}, []string{}},
		{"blank query", history.Filter{Query: "   "}, []string{"r1", "r2", "r3", "r4"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ids(tc.filter.Apply(entries)))
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"", "all", " ALL "} {
		st, err := history.ParseStatus(in)
		require.NoError(t, err)
		require.Empty(t, st)
	}

	st, err := history.ParseStatus("Failed")
	require.NoError(t, err)
	require.Equal(t, models.RunFailed, st)

	_, err = history.ParseStatus("done")
	require.ErrorContains(t, err, `unknown status "done"`)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	client := seededClient(t)

	page, err := history.Load(ctx, client, history.Options{})
	require.NoError(t, err)
	require.Equal(t, 3, page.Fetched)
	require.Len(t, page.Entries, 3)
	require.False(t, page.Filtered())
	require.Equal(t, int64(3), page.Stats.Runs)
	require.Equal(t, int64(2), page.Count(models.RunCompleted))
	require.Equal(t, int64(1), page.Count(models.RunRunning))
	require.Zero(t, page.Count(models.RunFailed))

	// Newest first: the running member portal run started minutes ago.
	require.Equal(t, "Member Portal API Load Test", page.Entries[0].Name())
	require.Equal(t, "Member Portal API", page.Entries[0].ApplicationName)

	page, err = history.Load(ctx, client, history.Options{Filter: history.Filter{Status: models.RunCompleted, Query: "baseline"}})
	require.NoError(t, err)
	require.True(t, page.Filtered())
	require.Len(t, page.Entries, 2)
	for _, e := range page.Entries {
		require.Equal(t, "CDR Clinical API Baseline Test", e.Name())
		require.NotNil(t, e.Summary)
	}
	// Counts stay global while the entries are filtered.
	require.Equal(t, int64(3), page.Stats.Runs)

	page, err = history.Load(ctx, client, history.Options{Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 1, page.Fetched)

	configID := page.Entries[0].Run.TestConfigurationID
	page, err = history.Load(ctx, client, history.Options{ConfigurationID: configID})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, configID, page.Entries[0].Run.TestConfigurationID)

	page, err = history.Load(ctx, client, history.Options{ConfigurationID: "unknown"})
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}
