package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cdrpulse/internal/models"
	"cdrpulse/internal/schema"
)

// CreateRun records a new run for an existing configuration. startedAt is
// always now and status defaults to pending.
func (s *Store) CreateRun(ctx context.Context, in schema.RunCreate) (models.TestRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	status := in.StatusOrDefault()
	if err := schema.CheckRunState(status, in.CompletedAt, in.Results); err != nil {
		return models.TestRun{}, err
	}

	now := s.timestamp()
	model := runModel{
		ID:                  uuid.NewString(),
		TestConfigurationID: deref(in.TestConfigurationID),
		Status:              string(status),
		StartedAt:           now,
		CompletedAt:         completion(status, in.CompletedAt, now),
	}
	results, err := resultsToJSON(in.Results)
	if err != nil {
		return models.TestRun{}, storageErr("encode results", err)
	}
	model.Results = results

	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireConfiguration(tx, model.TestConfigurationID); err != nil {
			return err
		}
		return storageErr("create run", tx.Create(&model).Error)
	})
	if err != nil {
		return models.TestRun{}, err
	}
	return model.toAPI()
}

// GetRun returns the run with id or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (models.TestRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	model, err := s.findRun(s.orm.WithContext(ctx), id)
	if err != nil {
		return models.TestRun{}, err
	}
	return model.toAPI()
}

func (s *Store) findRun(tx *gorm.DB, id string) (runModel, error) {
	var model runModel
	switch err := tx.First(&model, "id = ?", id).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return runModel{}, ErrNotFound
	case err != nil:
		return runModel{}, storageErr("get run", err)
	}
	return model, nil
}

// ListRunsForConfiguration returns the runs of one configuration, newest
// started first. An unknown configuration yields an empty list.
func (s *Store) ListRunsForConfiguration(ctx context.Context, configID string) ([]models.TestRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []runModel
	err := s.orm.WithContext(ctx).
		Where("test_configuration_id = ?", configID).
		Order("started_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("list configuration runs", err)
	}
	runs, err := runsToAPI(rows)
	return runs, storageErr("decode runs", err)
}

// ListRuns returns runs newest started first, never more than limit. A
// non-positive limit uses the default cap and limits above the maximum are
// clamped.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.TestRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	switch {
	case limit <= 0:
		limit = s.defaultLimit
	case limit > s.maxLimit:
		limit = s.maxLimit
	}

	var rows []runModel
	err := s.orm.WithContext(ctx).
		Order("started_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("list runs", err)
	}
	runs, err := runsToAPI(rows)
	return runs, storageErr("decode runs", err)
}

// UpdateRun merges the supplied fields into a run and returns the updated run
// together with its status before the update.
func (s *Store) UpdateRun(ctx context.Context, id string, in schema.RunUpdate) (models.TestRun, models.RunStatus, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		updated  runModel
		previous models.RunStatus
	)
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findRun(tx, id)
		if err != nil {
			return err
		}
		previous = models.RunStatus(existing.Status)

		current, err := existing.toAPI()
		if err != nil {
			return storageErr("decode run", err)
		}
		merged := mergeRun(current, in)
		if err := schema.CheckRunState(merged.Status, merged.CompletedAt, merged.Results); err != nil {
			return err
		}
		merged.CompletedAt = completion(merged.Status, merged.CompletedAt, s.timestamp())

		if merged.TestConfigurationID != existing.TestConfigurationID {
			if err := s.requireConfiguration(tx, merged.TestConfigurationID); err != nil {
				return err
			}
		}

		results, err := resultsToJSON(merged.Results)
		if err != nil {
			return storageErr("encode results", err)
		}
		changes := map[string]any{
			"test_configuration_id": merged.TestConfigurationID,
			"status":                string(merged.Status),
			"completed_at":          merged.CompletedAt,
			"results":               results,
		}
		if err := tx.Model(&existing).Updates(changes).Error; err != nil {
			return storageErr("update run", err)
		}

		updated, err = s.findRun(tx, id)
		return err
	})
	if err != nil {
		return models.TestRun{}, "", err
	}
	run, err := updated.toAPI()
	return run, previous, err
}

// mergeRun applies a partial update. Leaving the completed state drops
// results unless new ones were supplied, and leaving a terminal state drops
// the completion time.
func mergeRun(run models.TestRun, in schema.RunUpdate) models.TestRun {
	if in.TestConfigurationID != nil {
		run.TestConfigurationID = *in.TestConfigurationID
	}
	if in.Status != nil {
		run.Status = *in.Status
		if !in.Has("results") && run.Status != models.RunCompleted {
			run.Results = nil
		}
		if !in.Has("completedAt") && !run.Status.Terminal() {
			run.CompletedAt = nil
		}
	}
	if in.Has("results") {
		run.Results = in.Results
	}
	if in.Has("completedAt") {
		run.CompletedAt = in.CompletedAt
	}
	return run
}

// completion returns the completion time a run in status should carry.
func completion(status models.RunStatus, supplied *time.Time, now time.Time) *time.Time {
	if !status.Terminal() {
		return nil
	}
	if supplied != nil {
		t := supplied.UTC().Truncate(time.Microsecond)
		return &t
	}
	return &now
}

func (s *Store) requireConfiguration(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&configurationModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return storageErr("check configuration", err)
	}
	if count == 0 {
		return schema.NewValidationError("testConfigurationId", "does not reference an existing test configuration")
	}
	return nil
}
