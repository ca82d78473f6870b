package repository

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrations embed.FS

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *DB, dir string) error {
	return goose.UpContext(ctx, db.DB, dir)
}

// Migrate applies all pending schema migrations for the pool's dialect.
func Migrate(ctx context.Context, db *DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(db.dialect.String()); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := gooseUp(ctx, db, "migrations/"+db.dialect.String()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
