package db

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"cdrpulse/internal/db/migrations"
)

func dialectFor(driver string) (goose.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return goose.DialectPostgres, nil
	case DriverSQLite:
		return goose.DialectSQLite3, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func newProvider(database *gorm.DB, driver string) (*goose.Provider, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, sqlDB, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(migrations.All(dialect)...),
	)
}

// Migrate applies every pending schema migration.
func Migrate(ctx context.Context, database *gorm.DB, driver string) error {
	provider, err := newProvider(database, driver)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, r := range results {
		log.Info().Int64("version", r.Source.Version).Dur("took", r.Duration).Msg("applied migration")
	}
	return nil
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, database *gorm.DB, driver string) error {
	provider, err := newProvider(database, driver)
	if err != nil {
		return err
	}
	r, err := provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	log.Info().Int64("version", r.Source.Version).Msg("rolled back migration")
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, database *gorm.DB, driver string) (int64, error) {
	provider, err := newProvider(database, driver)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
