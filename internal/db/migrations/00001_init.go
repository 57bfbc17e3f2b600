package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
)

type TestConfiguration struct {
	ID                    string                      `gorm:"primaryKey;size:64"`
	Name                  string                      `gorm:"not null"`
	ApplicationID         string                      `gorm:"not null"`
	SelectedAPIIDs        datatypes.JSONSlice[string] `gorm:"column:selected_api_ids;not null"`
	VirtualUsers          int                         `gorm:"not null"`
	RampUpTime            int                         `gorm:"not null"`
	Duration              int                         `gorm:"not null"`
	ThinkTime             int                         `gorm:"not null"`
	ResponseTimeThreshold *float64
	ErrorRateThreshold    *float64
	CreatedAt             time.Time `gorm:"not null;index"`
	UpdatedAt             time.Time `gorm:"not null"`
}

type TestRun struct {
	ID                  string    `gorm:"primaryKey;size:64"`
	TestConfigurationID string    `gorm:"size:64;not null;index:idx_test_runs_configuration_started,priority:1"`
	Status              string    `gorm:"size:16;not null"`
	StartedAt           time.Time `gorm:"not null;index;index:idx_test_runs_configuration_started,priority:2"`
	CompletedAt         *time.Time
	Results             datatypes.JSON
	Configuration       *TestConfiguration `gorm:"foreignKey:TestConfigurationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func upInit(dialect goose.Dialect) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		gormDB, err := openTx(dialect, tx)
		if err != nil {
			return err
		}
		return gormDB.WithContext(ctx).AutoMigrate(&TestConfiguration{}, &TestRun{})
	}
}

func downInit(dialect goose.Dialect) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		gormDB, err := openTx(dialect, tx)
		if err != nil {
			return err
		}
		return gormDB.WithContext(ctx).Migrator().DropTable(&TestRun{}, &TestConfiguration{})
	}
}
