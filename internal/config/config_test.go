package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DB_DSN": "file::memory:",
	}))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "postgres", cfg.DBDriver)
	require.Equal(t, 50, cfg.RunsLimit)
	require.Equal(t, 500, cfg.RunsMaxLimit)
	require.Equal(t, 60*time.Second, cfg.RequestTimeout)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	require.False(t, cfg.S3.Enabled())
	require.Equal(t, "cdrpulse-runs", cfg.S3.Bucket)
}

func TestLoadWithPrefixedS3(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DB_DSN":      "file::memory:",
		"DB_DRIVER":   "sqlite",
		"S3_ENDPOINT": "minio:9000",
		"S3_BUCKET":   "archive",
	}))
	require.NoError(t, err)
	require.True(t, cfg.S3.Enabled())
	require.Equal(t, "archive", cfg.S3.Bucket)
	require.Equal(t, "sqlite", cfg.DBDriver)
}

func TestLoadWithInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing dsn",
			env:  map[string]string{},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"DB_DSN": "x", "DB_DRIVER": "mysql"},
		},
		{
			name: "max below default",
			env:  map[string]string{"DB_DSN": "x", "RUNS_DEFAULT_LIMIT": "100", "RUNS_MAX_LIMIT": "10"},
		},
		{
			name: "zero default limit",
			env:  map[string]string{"DB_DSN": "x", "RUNS_DEFAULT_LIMIT": "0"},
		},
		{
			name: "bad timeout",
			env:  map[string]string{"DB_DSN": "x", "REQUEST_TIMEOUT": "soon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), envconfig.MapLookuper(tt.env))
			require.Error(t, err)
		})
	}
}

func TestClientAndWatcherDefaults(t *testing.T) {
	ctx := context.Background()

	client, err := process[Client](ctx, envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", client.APIURL)
	require.Equal(t, 1500*time.Millisecond, client.SimulatedDelay)

	watcher, err := process[Watcher](ctx, envconfig.MapLookuper(map[string]string{"NATS_URL": "nats://bus:4222"}))
	require.NoError(t, err)
	require.Equal(t, "nats://bus:4222", watcher.NATSURL)
	require.Equal(t, "cdrpulse-watch", watcher.Durable)

	_, err = process[Client](ctx, envconfig.MapLookuper(map[string]string{"WIZARD_SIMULATED_DELAY": "later"}))
	require.Error(t, err)
}
