package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cdrpulse/internal/db"
	"cdrpulse/internal/models"
	"cdrpulse/internal/schema"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now advances by one second on every call so consecutive writes are ordered.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Freeze() func() time.Time {
	c.mu.Lock()
	t := c.now
	c.mu.Unlock()
	return func() time.Time { return t }
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	ctx := context.Background()

	database, err := db.Connect(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.Migrate(ctx, database, db.DriverSQLite))

	opts = append([]Option{WithClock(newFakeClock().Now)}, opts...)
	s, err := New(database, opts...)
	require.NoError(t, err)
	return s
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func configInput(name string) schema.ConfigurationCreate {
	return schema.ConfigurationCreate{
		Name:           strPtr(name),
		ApplicationID:  strPtr("cdr-clinical"),
		SelectedAPIIDs: []string{"ep-1", "ep-2"},
		VirtualUsers:   intPtr(10),
		RampUpTime:     intPtr(1),
		Duration:       intPtr(1),
		ThinkTime:      intPtr(1),
	}
}

func sampleResults() *models.Results {
	return &models.Results{
		AvgResponseTime:    180,
		P95ResponseTime:    350,
		P99ResponseTime:    480,
		ErrorRate:          0.5,
		RequestsPerSecond:  50,
		TotalRequests:      1000,
		SuccessfulRequests: 995,
		FailedRequests:     5,
	}
}

func TestNewRequiresORM(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestCreateAndGetConfiguration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := configInput("T")
	in.ResponseTimeThreshold = func(f float64) *float64 { return &f }(500)

	created, err := s.CreateConfiguration(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())
	require.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.GetConfiguration(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)
	require.Equal(t, 500.0, *got.ResponseTimeThreshold)
	require.Nil(t, got.ErrorRateThreshold)
}

func TestGetConfigurationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetConfiguration(context.Background(), "unknown-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListConfigurationsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := s.CreateConfiguration(ctx, configInput(name))
		require.NoError(t, err)
	}

	list, err := s.ListConfigurations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "third", list[0].Name)
	require.Equal(t, "second", list[1].Name)
	require.Equal(t, "first", list[2].Name)
}

func TestUpdateConfigurationPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := configInput("before")
	in.ErrorRateThreshold = func(f float64) *float64 { return &f }(2)
	created, err := s.CreateConfiguration(ctx, in)
	require.NoError(t, err)

	upd, err := schema.DecodeConfigurationUpdate([]byte(`{"duration": 30, "errorRateThreshold": null}`))
	require.NoError(t, err)

	updated, err := s.UpdateConfiguration(ctx, created.ID, upd)
	require.NoError(t, err)
	require.Equal(t, 30, updated.Duration)
	require.Nil(t, updated.ErrorRateThreshold)
	require.Equal(t, created.Name, updated.Name)
	require.Equal(t, created.SelectedAPIIDs, updated.SelectedAPIIDs)
	require.Equal(t, created.VirtualUsers, updated.VirtualUsers)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateConfigurationStrictlyIncreasesWithFrozenClock(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, WithClock(clock.Freeze()))
	ctx := context.Background()

	created, err := s.CreateConfiguration(ctx, configInput("frozen"))
	require.NoError(t, err)

	prev := created.UpdatedAt
	for i := 0; i < 3; i++ {
		upd, err := schema.DecodeConfigurationUpdate([]byte(`{"name": "renamed"}`))
		require.NoError(t, err)
		updated, err := s.UpdateConfiguration(ctx, created.ID, upd)
		require.NoError(t, err)
		require.True(t, updated.UpdatedAt.After(prev), "iteration %d", i)
		prev = updated.UpdatedAt
	}
}

func TestUpdateConfigurationNotFound(t *testing.T) {
	s := newTestStore(t)
	upd, err := schema.DecodeConfigurationUpdate([]byte(`{"name": "x"}`))
	require.NoError(t, err)

	_, err = s.UpdateConfiguration(context.Background(), "missing", upd)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteConfigurationCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keep, err := s.CreateConfiguration(ctx, configInput("keep"))
	require.NoError(t, err)
	drop, err := s.CreateConfiguration(ctx, configInput("drop"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &drop.ID})
		require.NoError(t, err)
	}
	kept, err := s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &keep.ID})
	require.NoError(t, err)

	deleted, err := s.DeleteConfiguration(ctx, drop.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	runs, err := s.ListRunsForConfiguration(ctx, drop.ID)
	require.NoError(t, err)
	require.Empty(t, runs)

	_, err = s.GetConfiguration(ctx, drop.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetRun(ctx, kept.ID)
	require.NoError(t, err)

	deleted, err = s.DeleteConfiguration(ctx, drop.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestCreateRunDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg, err := s.CreateConfiguration(ctx, configInput("runs"))
	require.NoError(t, err)

	run, err := s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &cfg.ID})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.Equal(t, models.RunPending, run.Status)
	require.False(t, run.StartedAt.IsZero())
	require.Nil(t, run.CompletedAt)
	require.Nil(t, run.Results)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, run, got)
}

func TestCreateRunUnknownConfiguration(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateRun(context.Background(), schema.RunCreate{TestConfigurationID: strPtr("nope")})
	verr, ok := schema.AsValidationError(err)
	require.True(t, ok)
	require.True(t, verr.Has("testConfigurationId"))
}

func TestCreateRunCompletedSetsCompletion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg, err := s.CreateConfiguration(ctx, configInput("done"))
	require.NoError(t, err)

	status := models.RunCompleted
	run, err := s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &cfg.ID, Status: &status, Results: sampleResults()})
	require.NoError(t, err)
	require.NotNil(t, run.CompletedAt)
	require.Equal(t, sampleResults(), run.Results)

	_, err = s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &cfg.ID, Status: &status})
	_, ok := schema.AsValidationError(err)
	require.True(t, ok)
}

func TestUpdateRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg, err := s.CreateConfiguration(ctx, configInput("lifecycle"))
	require.NoError(t, err)
	run, err := s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &cfg.ID})
	require.NoError(t, err)

	upd, err := schema.DecodeRunUpdate([]byte(`{"status": "running"}`))
	require.NoError(t, err)
	running, prev, err := s.UpdateRun(ctx, run.ID, upd)
	require.NoError(t, err)
	require.Equal(t, models.RunPending, prev)
	require.Equal(t, models.RunRunning, running.Status)
	require.Nil(t, running.CompletedAt)

	upd, err = schema.DecodeRunUpdate([]byte(`{"status": "completed", "results": {
		"avgResponseTime": 180, "p95ResponseTime": 350, "p99ResponseTime": 480, "errorRate": 0.5,
		"requestsPerSecond": 50, "totalRequests": 1000, "successfulRequests": 995, "failedRequests": 5}}`))
	require.NoError(t, err)
	done, prev, err := s.UpdateRun(ctx, run.ID, upd)
	require.NoError(t, err)
	require.Equal(t, models.RunRunning, prev)
	require.Equal(t, models.RunCompleted, done.Status)
	require.Equal(t, sampleResults(), done.Results)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, run.StartedAt, done.StartedAt)

	upd, err = schema.DecodeRunUpdate([]byte(`{"status": "failed"}`))
	require.NoError(t, err)
	failed, _, err := s.UpdateRun(ctx, run.ID, upd)
	require.NoError(t, err)
	require.Equal(t, models.RunFailed, failed.Status)
	require.Nil(t, failed.Results)
	require.NotNil(t, failed.CompletedAt)

	upd, err = schema.DecodeRunUpdate([]byte(`{"status": "running"}`))
	require.NoError(t, err)
	rerun, _, err := s.UpdateRun(ctx, run.ID, upd)
	require.NoError(t, err)
	require.Nil(t, rerun.CompletedAt)
}

func TestUpdateRunRejectsInconsistentState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg, err := s.CreateConfiguration(ctx, configInput("bad"))
	require.NoError(t, err)
	run, err := s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &cfg.ID})
	require.NoError(t, err)

	upd, err := schema.DecodeRunUpdate([]byte(`{"status": "completed"}`))
	require.NoError(t, err)
	_, _, err = s.UpdateRun(ctx, run.ID, upd)
	verr, ok := schema.AsValidationError(err)
	require.True(t, ok)
	require.True(t, verr.Has("results"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunPending, got.Status)
}

func TestUpdateRunNotFound(t *testing.T) {
	s := newTestStore(t)
	upd, err := schema.DecodeRunUpdate([]byte(`{"status": "running"}`))
	require.NoError(t, err)
	_, _, err = s.UpdateRun(context.Background(), "missing", upd)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestListRunsLimitAndOrder(t *testing.T) {
	s := newTestStore(t, WithRunLimits(3, 4))
	ctx := context.Background()

	cfg, err := s.CreateConfiguration(ctx, configInput("many"))
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 6; i++ {
		run, err := s.CreateRun(ctx, schema.RunCreate{TestConfigurationID: &cfg.ID})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "explicit", limit: 2, want: 2},
		{name: "default", limit: 0, want: 3},
		{name: "clamped", limit: 100, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.limit)
			require.NoError(t, err)
			require.Len(t, runs, tt.want)
			for i := range runs {
				require.Equal(t, ids[len(ids)-1-i], runs[i].ID)
				if i > 0 {
					require.False(t, runs[i].StartedAt.After(runs[i-1].StartedAt))
				}
			}
		})
	}

	forConfig, err := s.ListRunsForConfiguration(ctx, cfg.ID)
	require.NoError(t, err)
	require.Len(t, forConfig, 6)
	require.Equal(t, ids[5], forConfig[0].ID)

	none, err := s.ListRunsForConfiguration(ctx, "nobody")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestRunStatsAndSeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx))
	require.NoError(t, s.Seed(ctx))

	stats, err := s.RunStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Configurations)
	require.Equal(t, int64(3), stats.Runs)
	require.Equal(t, int64(2), stats.ByStatus[models.RunCompleted])
	require.Equal(t, int64(1), stats.ByStatus[models.RunRunning])
	require.Equal(t, int64(0), stats.ByStatus[models.RunFailed])

	configs, err := s.ListConfigurations(ctx)
	require.NoError(t, err)
	require.Equal(t, "Member Portal API Load Test", configs[0].Name)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, models.RunRunning, runs[0].Status)
	for _, run := range runs {
		require.NoError(t, schema.CheckRunState(run.Status, run.CompletedAt, run.Results))
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
