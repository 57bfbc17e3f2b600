// Package migrations holds the versioned schema changes applied by goose.
// Each migration opens a GORM session over the goose transaction so that the
// same definitions work for PostgreSQL and SQLite.
package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// All returns every migration for the given dialect in version order.
func All(dialect goose.Dialect) []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: upInit(dialect)},
			&goose.GoFunc{RunTx: downInit(dialect)},
		),
	}
}

func openTx(dialect goose.Dialect, tx *sql.Tx) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case goose.DialectPostgres:
		dialector = postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true})
	case goose.DialectSQLite3:
		dialector = sqlite.New(sqlite.Config{Conn: tx})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}
