package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] moves a database from user_version i to i+1. Append new
// steps; never edit a released one.
var migrations = []string{
	schemaSQL,
}

var schemaVersion = len(migrations)

// ErrSchemaMismatch reports a database this binary cannot use.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// migrate brings the database up to schemaVersion, tracked in SQLite's
// user_version pragma. A database written by a newer binary is refused.
func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("%w: %s is at version %d, this build understands up to %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	if version == 0 {
		var tables int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'runs'",
		).Scan(&tables); err != nil {
			return fmt.Errorf("inspect schema: %w", err)
		}
		if tables > 0 {
			return fmt.Errorf("%w: %s has tables but no version (delete it to recreate)", ErrSchemaMismatch, s.path)
		}
	}
	if version == schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for step := version; step < schemaVersion; step++ {
		if _, err := tx.ExecContext(ctx, migrations[step]); err != nil {
			return fmt.Errorf("migrate to version %d: %w", step+1, err)
		}
	}
	// PRAGMA takes no bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
