package postgres

import (
	"context"
	"database/sql"
	"embed"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies the embedded goose migrations.
func (db *Database) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()
	return RunMigrations(ctx, sqlDB)
}

// RunMigrations applies the embedded goose migrations on an open *sql.DB.
func RunMigrations(ctx context.Context, sqlDB *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return oops.Code("DB_MIGRATE_FAILED").Wrap(err)
	}
	if err := gooseUp(ctx, sqlDB, "migrations"); err != nil {
		return oops.Code("DB_MIGRATE_FAILED").Wrap(err)
	}
	return nil
}
