package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"cdrpulse/internal/apiclient"
	"cdrpulse/internal/db"
	"cdrpulse/internal/handlers"
	"cdrpulse/internal/models"
	"cdrpulse/internal/store"
	"cdrpulse/internal/version"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "seed", "wizard", "history", "watch", "version"} {
		require.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, version.Name+" "+version.Version+"\n", out.String())
}

func TestMigrateRejectsConflictingFlags(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "--down", "--status"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "down")
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)

	var buf bytes.Buffer
	require.NoError(t, setupLogging(&buf, "warn", "json"))
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"message":"shown"`)
	require.Contains(t, out, `"service":"`+version.Name+`"`)

	require.Error(t, setupLogging(&buf, "loud", "json"))
	require.Error(t, setupLogging(&buf, "info", "xml"))
}

func TestOfflineSubmitterNeedsNoServer(t *testing.T) {
	sub, err := newSubmitter(t.Context(), "http://127.0.0.1:1", true, 0)
	require.NoError(t, err)
	require.NotNil(t, sub)

	_, err = newSubmitter(t.Context(), "not a url", false, 0)
	require.Error(t, err)

	_, err = newSubmitter(t.Context(), "http://127.0.0.1:1", false, 0)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "--offline"))
}

func seededServer(t *testing.T) string {
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
	return srv.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHistoryCommand(t *testing.T) {
	url := seededServer(t)

	out, err := execute(t, "history", "--api", url)
	require.NoError(t, err)
	require.Contains(t, out, "Total 3  Pending 0  Running 1  Completed 2  Failed 0")
	require.Contains(t, out, "Showing 3 of 3 runs")
	require.Contains(t, out, "Member Portal API Load Test [Running]")

	out, err = execute(t, "history", "--api", url, "--status", "completed", "--search", "clinical")
	require.NoError(t, err)
	require.Contains(t, out, "Showing 2 of 3 runs")
	require.NotContains(t, out, "Member Portal API Load Test")
	require.Equal(t, 2, strings.Count(out, "CDR Clinical API Baseline Test [Completed]"))

	out, err = execute(t, "history", "--api", url, "--status", "failed")
	require.NoError(t, err)
	require.Contains(t, out, "Try adjusting your filters.")

	_, err = execute(t, "history", "--api", url, "--status", "done")
	require.ErrorContains(t, err, "unknown status")
}

func TestHistoryShowCommand(t *testing.T) {
	url := seededServer(t)
	client, err := apiclient.New(url)
	require.NoError(t, err)
	runs, err := client.ListRuns(context.Background(), 0)
	require.NoError(t, err)

	var completed, running models.TestRun
	for _, r := range runs {
		switch r.Status {
		case models.RunCompleted:
			completed = r
		case models.RunRunning:
			running = r
		}
	}

	out, err := execute(t, "history", "show", completed.ID, "--api", url)
	require.NoError(t, err)
	require.Contains(t, out, "Load test report: CDR Clinical API Baseline Test")

	out, err = execute(t, "history", "show", running.ID, "--api", url)
	require.NoError(t, err)
	require.Contains(t, out, "is running and has no results yet")

	_, err = execute(t, "history", "show", "missing", "--api", url)
	require.EqualError(t, err, `test run "missing" not found`)
}
