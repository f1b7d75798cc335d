package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"catalog-feed-miner/db/migrations"
)

// GooseDialect maps a database/sql driver name to its goose dialect.
func GooseDialect(driverName string) string {
	if driverName == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Migrate runs a goose command (up, down, status, ...) against the embedded
// ledger migrations.
func Migrate(ctx context.Context, sqlDB *sql.DB, driverName, command string) error {
	if err := goose.SetDialect(GooseDialect(driverName)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.RunContext(ctx, command, sqlDB, "."); err != nil {
		return fmt.Errorf("goose run %q: %w", command, err)
	}
	return nil
}
