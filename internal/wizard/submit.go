package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cdrpulse/internal/apiclient"
	"cdrpulse/internal/models"
	"cdrpulse/internal/simulate"
)

// Submission is the configuration the wizard hands to a Submitter.
type Submission struct {
	Name           string
	ApplicationID  string
	SelectedAPIIDs []string
	Load           Load
}

// Request converts the submission into an API create body.
func (s Submission) Request() apiclient.ConfigurationRequest {
	return apiclient.ConfigurationRequest{
		Name:                  s.Name,
		ApplicationID:         s.ApplicationID,
		SelectedAPIIDs:        s.SelectedAPIIDs,
		VirtualUsers:          s.Load.VirtualUsers,
		RampUpTime:            s.Load.RampUpTime,
		Duration:              s.Load.Duration,
		ThinkTime:             s.Load.ThinkTime,
		ResponseTimeThreshold: s.Load.ResponseTimeThreshold,
		ErrorRateThreshold:    s.Load.ErrorRateThreshold,
	}
}

// Outcome is the saved configuration and its finished run.
type Outcome struct {
	Configuration models.TestConfiguration
	Run           models.TestRun
}

// Submitter saves a submission and produces a finished run. Implementations
// must return promptly once ctx is cancelled.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (Outcome, error)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SimulatedSubmitter produces mock results locally after a fixed delay.
type SimulatedSubmitter struct {
	Delay     time.Duration
	Generator *simulate.Generator
	Now       func() time.Time
}

// NewSimulatedSubmitter returns a submitter with the given delay and a random generator.
func NewSimulatedSubmitter(delay time.Duration) *SimulatedSubmitter {
	return &SimulatedSubmitter{Delay: delay, Generator: simulate.NewGenerator(nil), Now: time.Now}
}

func (s *SimulatedSubmitter) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	now := s.Now().UTC()
	cfg := models.TestConfiguration{
		ID:                    uuid.NewString(),
		Name:                  sub.Name,
		ApplicationID:         sub.ApplicationID,
		SelectedAPIIDs:        sub.SelectedAPIIDs,
		VirtualUsers:          sub.Load.VirtualUsers,
		RampUpTime:            sub.Load.RampUpTime,
		Duration:              sub.Load.Duration,
		ThinkTime:             sub.Load.ThinkTime,
		ResponseTimeThreshold: sub.Load.ResponseTimeThreshold,
		ErrorRateThreshold:    sub.Load.ErrorRateThreshold,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := sleep(ctx, s.Delay); err != nil {
		return Outcome{}, err
	}

	res := s.Generator.Generate(sub.Load.VirtualUsers, sub.Load.Duration)
	completed := s.Now().UTC()
	run := models.TestRun{
		ID:                  uuid.NewString(),
		TestConfigurationID: cfg.ID,
		Status:              models.RunCompleted,
		StartedAt:           now,
		CompletedAt:         &completed,
		Results:             &res,
	}
	return Outcome{Configuration: cfg, Run: run}, nil
}

// APISubmitter saves the configuration and run through the REST API. The run
// is created as running and patched to completed with mock results after the
// delay. An abandoned run is patched to failed, and a configuration whose run
// could not be started is deleted again.
type APISubmitter struct {
	Client    *apiclient.Client
	Delay     time.Duration
	Generator *simulate.Generator
}

// NewAPISubmitter returns a submitter using client.
func NewAPISubmitter(client *apiclient.Client, delay time.Duration) *APISubmitter {
	return &APISubmitter{Client: client, Delay: delay, Generator: simulate.NewGenerator(nil)}
}

func (s *APISubmitter) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	cfg, err := s.Client.CreateConfiguration(ctx, sub.Request())
	if err != nil {
		return Outcome{}, fmt.Errorf("save configuration: %w", err)
	}
	run, err := s.Client.CreateRun(ctx, apiclient.RunRequest{TestConfigurationID: cfg.ID, Status: models.RunRunning})
	if err != nil {
		s.discard(cfg.ID)
		return Outcome{}, fmt.Errorf("start run: %w", err)
	}

	if err := sleep(ctx, s.Delay); err != nil {
		s.abandon(run.ID)
		return Outcome{}, err
	}

	res := s.Generator.Generate(sub.Load.VirtualUsers, sub.Load.Duration)
	completed := models.RunCompleted
	finished, err := s.Client.UpdateRun(ctx, run.ID, apiclient.RunPatch{Status: &completed, Results: &res})
	if err != nil {
		s.abandon(run.ID)
		return Outcome{}, fmt.Errorf("complete run: %w", err)
	}
	return Outcome{Configuration: cfg, Run: finished}, nil
}

// cleanupContext outlives the caller's context, which may already be gone.
func cleanupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// discard removes a configuration whose run could not be started.
func (s *APISubmitter) discard(configID string) {
	ctx, cancel := cleanupContext()
	defer cancel()
	_ = s.Client.DeleteConfiguration(ctx, configID)
}

// abandon marks a run failed.
func (s *APISubmitter) abandon(runID string) {
	ctx, cancel := cleanupContext()
	defer cancel()
	failed := models.RunFailed
	_, _ = s.Client.UpdateRun(ctx, runID, apiclient.RunPatch{Status: &failed})
}
