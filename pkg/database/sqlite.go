package database

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OpenSQLite opens an embedded database file through the pure Go driver.
// Foreign keys are enabled so group and project deletes cascade.
func OpenSQLite(ctx context.Context, path string, opts Options) (*gorm.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, opts.gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db db() error: %w", err)
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)

	if err := Ping(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}
