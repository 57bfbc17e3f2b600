package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cdrpulse/internal/models"
	"cdrpulse/internal/schema"
)

// CreateConfiguration stores a validated configuration with a generated id.
func (s *Store) CreateConfiguration(ctx context.Context, in schema.ConfigurationCreate) (models.TestConfiguration, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := s.timestamp()
	model := configurationModel{
		ID:                    uuid.NewString(),
		Name:                  deref(in.Name),
		ApplicationID:         deref(in.ApplicationID),
		SelectedAPIIDs:        datatypes.NewJSONSlice(in.SelectedAPIIDs),
		VirtualUsers:          deref(in.VirtualUsers),
		RampUpTime:            deref(in.RampUpTime),
		Duration:              deref(in.Duration),
		ThinkTime:             deref(in.ThinkTime),
		ResponseTimeThreshold: in.ResponseTimeThreshold,
		ErrorRateThreshold:    in.ErrorRateThreshold,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return models.TestConfiguration{}, storageErr("create configuration", err)
	}
	return model.toAPI(), nil
}

// GetConfiguration returns the configuration with id or ErrNotFound.
func (s *Store) GetConfiguration(ctx context.Context, id string) (models.TestConfiguration, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	model, err := s.findConfiguration(s.orm.WithContext(ctx), id)
	if err != nil {
		return models.TestConfiguration{}, err
	}
	return model.toAPI(), nil
}

func (s *Store) findConfiguration(tx *gorm.DB, id string) (configurationModel, error) {
	var model configurationModel
	switch err := tx.First(&model, "id = ?", id).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return configurationModel{}, ErrNotFound
	case err != nil:
		return configurationModel{}, storageErr("get configuration", err)
	}
	return model, nil
}

// ListConfigurations returns every configuration, newest created first.
func (s *Store) ListConfigurations(ctx context.Context) ([]models.TestConfiguration, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []configurationModel
	if err := s.orm.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, storageErr("list configurations", err)
	}

	out := make([]models.TestConfiguration, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAPI())
	}
	return out, nil
}

// UpdateConfiguration merges the supplied fields into the stored configuration
// and refreshes updatedAt so that it strictly increases.
func (s *Store) UpdateConfiguration(ctx context.Context, id string, in schema.ConfigurationUpdate) (models.TestConfiguration, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var updated configurationModel
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findConfiguration(tx, id)
		if err != nil {
			return err
		}

		changes := configurationChanges(in)
		changes["updated_at"] = s.after(existing.UpdatedAt)

		if err := tx.Model(&existing).Updates(changes).Error; err != nil {
			return storageErr("update configuration", err)
		}

		updated, err = s.findConfiguration(tx, id)
		return err
	})
	if err != nil {
		return models.TestConfiguration{}, err
	}
	return updated.toAPI(), nil
}

func configurationChanges(in schema.ConfigurationUpdate) map[string]any {
	changes := make(map[string]any)
	if in.Name != nil {
		changes["name"] = *in.Name
	}
	if in.ApplicationID != nil {
		changes["application_id"] = *in.ApplicationID
	}
	if in.SelectedAPIIDs != nil {
		changes["selected_api_ids"] = datatypes.NewJSONSlice(in.SelectedAPIIDs)
	}
	if in.VirtualUsers != nil {
		changes["virtual_users"] = *in.VirtualUsers
	}
	if in.RampUpTime != nil {
		changes["ramp_up_time"] = *in.RampUpTime
	}
	if in.Duration != nil {
		changes["duration"] = *in.Duration
	}
	if in.ThinkTime != nil {
		changes["think_time"] = *in.ThinkTime
	}
	if in.Has("responseTimeThreshold") {
		changes["response_time_threshold"] = in.ResponseTimeThreshold
	}
	if in.Has("errorRateThreshold") {
		changes["error_rate_threshold"] = in.ErrorRateThreshold
	}
	return changes
}

// DeleteConfiguration removes the configuration and its runs in one
// transaction. It reports whether a configuration was deleted.
func (s *Store) DeleteConfiguration(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var deleted bool
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_configuration_id = ?", id).Delete(&runModel{}).Error; err != nil {
			return storageErr("delete configuration runs", err)
		}
		res := tx.Where("id = ?", id).Delete(&configurationModel{})
		if res.Error != nil {
			return storageErr("delete configuration", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
