package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS soil_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fingerprint TEXT NOT NULL UNIQUE,
    soil_data TEXT NOT NULL,
    created_at TEXT NOT NULL,
    summary TEXT,
    location TEXT,
    health_score REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_soil_records_created ON soil_records(created_at);
`,
	},
	{
		Version:     2,
		Description: "Archive advisor responses per reading",
		SQL: `
CREATE TABLE IF NOT EXISTS recommendation_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fingerprint TEXT NOT NULL,
    task TEXT NOT NULL,
    model TEXT NOT NULL,
    location TEXT,
    content_compressed BLOB NOT NULL,
    content_hash TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE(fingerprint, task, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_recommendation_log_fp ON recommendation_log(fingerprint, created_at);
`,
	},
}

// Migrate applies pending schema migrations in version order. Each
// migration and its schema_migrations row commit together.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TEXT
		)
	`); err != nil {
		return &StorageError{Op: "create schema_migrations", Err: err}
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		log.Printf("migrations: applying %d - %s", m.Version, m.Description)
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: fmt.Sprintf("begin migration %d", m.Version), Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return &StorageError{Op: fmt.Sprintf("execute migration %d", m.Version), Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, s.now().UTC().Format(timeLayout),
	); err != nil {
		return &StorageError{Op: fmt.Sprintf("record migration %d", m.Version), Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: fmt.Sprintf("commit migration %d", m.Version), Err: err}
	}
	return nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, &StorageError{Op: "list migrations", Err: err}
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, &StorageError{Op: "scan migration", Err: err}
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list migrations", Err: err}
	}
	return applied, nil
}

// MigrationVersion returns the highest applied version, or 0 on a fresh database.
func (s *Store) MigrationVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, &StorageError{Op: "migration version", Err: err}
	}
	return int(version.Int64), nil
}
