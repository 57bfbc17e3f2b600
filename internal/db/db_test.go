package db_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cdrpulse/internal/db"
)

func TestMissingRowsAreNotLogged(t *testing.T) {
	var buf bytes.Buffer
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)
	log.Logger = zerolog.New(&buf)

	ctx := context.Background()
	database, err := db.Connect(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.Migrate(ctx, database, db.DriverSQLite))
	buf.Reset()

	var row struct{ ID string }
	err = database.WithContext(ctx).Table("test_configurations").Where("id = ?", "missing").Take(&row).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.Empty(t, buf.String())

	err = database.WithContext(ctx).Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	require.Contains(t, buf.String(), `"component":"gorm"`)
	require.Contains(t, buf.String(), "no_such_table")
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := db.Connect(context.Background(), "oracle", "")
	require.ErrorContains(t, err, `unsupported database driver "oracle"`)
}
