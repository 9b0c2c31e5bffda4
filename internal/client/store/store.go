// Package store is the durable on-device side of the sync engine: keyed
// record tables for the five syncable kinds, the append-only change log,
// sync metadata, and the content-addressed image cache.
//
// Records are stored as JSON documents with the envelope columns (id,
// timestamps, tombstone) extracted for querying; the store has no merge
// logic of its own.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the client's local database plus the on-disk image cache.
type Store struct {
	db       *sql.DB
	imageDir string
}

// Open opens (creating if needed) the sqlite database at dsn, runs
// migrations, and prepares the image cache directory.
func Open(ctx context.Context, dsn, imageDir string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if imageDir != "" {
		if err := os.MkdirAll(imageDir, 0o700); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create image cache dir: %w", err)
		}
	}

	return &Store{db: db, imageDir: imageDir}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for transactional helpers.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
