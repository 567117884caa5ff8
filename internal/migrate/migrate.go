// Package migrate applies the embedded schema migrations in file name order,
// recording each applied file in a _migrations table.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var files embed.FS

// Pending lists the migration files not yet recorded as applied, in order.
func Pending(all []string, applied map[string]bool) []string {
	var out []string
	for _, name := range all {
		if !applied[name] {
			out = append(out, name)
		}
	}
	return out
}

func names(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func Run(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	_, err := db.ExecContext(ctx, createTableQuery)
	if err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}

	var done []string
	if err := db.SelectContext(ctx, &done, appliedQuery); err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(done))
	for _, name := range done {
		applied[name] = true
	}

	all, err := names(files)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, name := range Pending(all, applied) {
		body, err := fs.ReadFile(files, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := apply(ctx, db, name, string(body)); err != nil {
			return err
		}
		logger.InfoContext(ctx, "migration applied", "file", name)
	}
	return nil
}

func apply(ctx context.Context, db *sqlx.DB, name, body string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, recordQuery, name); err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	return tx.Commit()
}

const createTableQuery = `
CREATE TABLE IF NOT EXISTS _migrations (
    id         SERIAL PRIMARY KEY,
    filename   TEXT UNIQUE NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)
`

const appliedQuery = `SELECT filename FROM _migrations`

const recordQuery = `INSERT INTO _migrations (filename) VALUES ($1)`
