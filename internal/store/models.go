package store

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"cdrpulse/internal/models"
)

type configurationModel struct {
	ID                    string                      `gorm:"primaryKey"`
	Name                  string                      `gorm:"not null"`
	ApplicationID         string                      `gorm:"not null"`
	SelectedAPIIDs        datatypes.JSONSlice[string] `gorm:"column:selected_api_ids;not null"`
	VirtualUsers          int                         `gorm:"not null"`
	RampUpTime            int                         `gorm:"not null"`
	Duration              int                         `gorm:"not null"`
	ThinkTime             int                         `gorm:"not null"`
	ResponseTimeThreshold *float64
	ErrorRateThreshold    *float64
	CreatedAt             time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt             time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (configurationModel) TableName() string { return "test_configurations" }

func (m configurationModel) toAPI() models.TestConfiguration {
	ids := make([]string, len(m.SelectedAPIIDs))
	copy(ids, m.SelectedAPIIDs)
	return models.TestConfiguration{
		ID:                    m.ID,
		Name:                  m.Name,
		ApplicationID:         m.ApplicationID,
		SelectedAPIIDs:        ids,
		VirtualUsers:          m.VirtualUsers,
		RampUpTime:            m.RampUpTime,
		Duration:              m.Duration,
		ThinkTime:             m.ThinkTime,
		ResponseTimeThreshold: m.ResponseTimeThreshold,
		ErrorRateThreshold:    m.ErrorRateThreshold,
		CreatedAt:             m.CreatedAt.UTC(),
		UpdatedAt:             m.UpdatedAt.UTC(),
	}
}

type runModel struct {
	ID                  string    `gorm:"primaryKey"`
	TestConfigurationID string    `gorm:"not null"`
	Status              string    `gorm:"not null"`
	StartedAt           time.Time `gorm:"not null"`
	CompletedAt         *time.Time
	Results             datatypes.JSON
}

func (runModel) TableName() string { return "test_runs" }

func (r runModel) toAPI() (models.TestRun, error) {
	run := models.TestRun{
		ID:                  r.ID,
		TestConfigurationID: r.TestConfigurationID,
		Status:              models.RunStatus(r.Status),
		StartedAt:           r.StartedAt.UTC(),
	}
	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		run.CompletedAt = &t
	}
	results, err := resultsFromJSON(r.Results)
	if err != nil {
		return models.TestRun{}, err
	}
	run.Results = results
	return run, nil
}

func resultsFromJSON(raw datatypes.JSON) (*models.Results, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var res models.Results
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func resultsToJSON(res *models.Results) (datatypes.JSON, error) {
	if res == nil {
		return nil, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func runsToAPI(rows []runModel) ([]models.TestRun, error) {
	out := make([]models.TestRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toAPI()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}
