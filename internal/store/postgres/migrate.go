package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migration files follow bun's layout: <version>_<name>.tx.up.sql runs in a
// transaction, statements are separated by --bun:split lines.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

func discoverMigrations(fsys fs.FS) (*migrate.Migrations, error) {
	migs := migrate.NewMigrations()
	if err := migs.Discover(fsys); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	return migs, nil
}

func embeddedMigrations() (*migrate.Migrations, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return discoverMigrations(sub)
}

// Migrate applies every embedded migration that has not run yet and returns
// the applied ones. A second instance migrating at the same time fails on
// the lock instead of racing.
func Migrate(ctx context.Context, db *bun.DB) (applied []string, err error) {
	migs, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}
	m := migrate.NewMigrator(db, migs, migrate.WithMarkAppliedOnSuccess(true))
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations table: %w", err)
	}
	if err := m.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if uerr := m.Unlock(context.WithoutCancel(ctx)); uerr != nil && err == nil {
			err = fmt.Errorf("unlock migrations: %w", uerr)
		}
	}()

	group, err := m.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	applied = make([]string, 0, len(group.Migrations))
	for _, mig := range group.Migrations {
		applied = append(applied, mig.String())
	}
	return applied, nil
}
