package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cdrpulse/internal/models"
)

var seedNamespace = uuid.MustParse("6f1d3c52-8a47-4a8e-9b7e-2f0c5d9e4a11")

func seedID(name string) string {
	return uuid.NewSHA1(seedNamespace, []byte(name)).String()
}

func ptr[T any](v T) *T { return &v }

// Seed inserts sample configurations and runs. Rows are keyed by stable ids
// so repeated calls leave existing data untouched.
func (s *Store) Seed(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := s.timestamp()
	baseline := configurationModel{
		ID:                    seedID("config/cdr-clinical-baseline"),
		Name:                  "CDR Clinical API Baseline Test",
		ApplicationID:         "cdr-clinical",
		SelectedAPIIDs:        datatypes.NewJSONSlice([]string{"ep-1", "ep-2", "ep-3"}),
		VirtualUsers:          100,
		RampUpTime:            5,
		Duration:              10,
		ThinkTime:             3,
		ResponseTimeThreshold: ptr(500.0),
		ErrorRateThreshold:    ptr(1.0),
		CreatedAt:             now.Add(-48 * time.Hour),
		UpdatedAt:             now.Add(-48 * time.Hour),
	}
	portal := configurationModel{
		ID:             seedID("config/member-portal-load"),
		Name:           "Member Portal API Load Test",
		ApplicationID:  "member-portal",
		SelectedAPIIDs: datatypes.NewJSONSlice([]string{"ep-1", "ep-2"}),
		VirtualUsers:   200,
		RampUpTime:     10,
		Duration:       15,
		ThinkTime:      2,
		CreatedAt:      now.Add(-47 * time.Hour),
		UpdatedAt:      now.Add(-47 * time.Hour),
	}

	recent, err := resultsToJSON(&models.Results{
		AvgResponseTime:    180,
		P95ResponseTime:    350,
		P99ResponseTime:    480,
		ErrorRate:          0.5,
		RequestsPerSecond:  50,
		TotalRequests:      50000,
		SuccessfulRequests: 49750,
		FailedRequests:     250,
	})
	if err != nil {
		return err
	}
	older, err := resultsToJSON(&models.Results{
		AvgResponseTime:    210,
		P95ResponseTime:    390,
		P99ResponseTime:    520,
		ErrorRate:          0.8,
		RequestsPerSecond:  45,
		TotalRequests:      50000,
		SuccessfulRequests: 49600,
		FailedRequests:     400,
	})
	if err != nil {
		return err
	}

	runs := []runModel{
		{
			ID:                  seedID("run/cdr-clinical-baseline/1"),
			TestConfigurationID: baseline.ID,
			Status:              string(models.RunCompleted),
			StartedAt:           now.Add(-2*time.Hour - 10*time.Minute),
			CompletedAt:         ptr(now.Add(-2 * time.Hour)),
			Results:             recent,
		},
		{
			ID:                  seedID("run/cdr-clinical-baseline/2"),
			TestConfigurationID: baseline.ID,
			Status:              string(models.RunCompleted),
			StartedAt:           now.Add(-24*time.Hour - 10*time.Minute),
			CompletedAt:         ptr(now.Add(-24 * time.Hour)),
			Results:             older,
		},
		{
			ID:                  seedID("run/member-portal-load/1"),
			TestConfigurationID: portal.ID,
			Status:              string(models.RunRunning),
			StartedAt:           now.Add(-5 * time.Minute),
		},
	}

	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		configs := []configurationModel{baseline, portal}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&configs).Error; err != nil {
			return storageErr("seed configurations", err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&runs).Error; err != nil {
			return storageErr("seed runs", err)
		}
		return nil
	})
}
