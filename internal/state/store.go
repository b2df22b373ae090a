// Package state records injection runs in a SQLite database.
package state

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Run is one document write recorded in the history.
type Run struct {
	RanAt  time.Time
	RunID  string
	Target string
	Kind   string
	Action string
	Digest string
	Host   string
	ID     int64
}

// Store manages the SQLite database holding the run history.
type Store struct {
	db *sql.DB
}

// Digest returns the hex-encoded BLAKE3 hash of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close() //nolint:errcheck,gosec // best-effort cleanup on error path
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close() //nolint:errcheck,gosec // best-effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const runColumns = `id, run_id, target, kind, action, digest, host, ran_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var ranAt string

	if err := row.Scan(&r.ID, &r.RunID, &r.Target, &r.Kind, &r.Action, &r.Digest, &r.Host, &ranAt); err != nil {
		return Run{}, err
	}

	t, err := parseTime(ranAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing ran_at: %w", err)
	}
	r.RanAt = t

	return r, nil
}

// RecordRun stores r. A zero RanAt is replaced with the current time.
func (s *Store) RecordRun(r Run) error {
	if r.RanAt.IsZero() {
		r.RanAt = time.Now()
	}

	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO runs (run_id, target, kind, action, digest, host, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Target, r.Kind, r.Action, r.Digest, r.Host, r.RanAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	return nil
}

// LatestRun returns the most recent run for target, or nil if none exists.
func (s *Store) LatestRun(target string) (*Run, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT `+runColumns+`
		FROM runs
		WHERE target = ?
		ORDER BY id DESC
		LIMIT 1
	`, target)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil means "not found", distinct from error
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}

	return &r, nil
}

// ListRuns returns the limit most recent runs, newest first. A limit of zero
// or less returns every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(context.Background(), `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck,gosec // defer close is best-effort

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Prune keeps only the keep most recent runs per target, deleting older ones.
func (s *Store) Prune(keep int) error {
	_, err := s.db.ExecContext(context.Background(), `
		DELETE FROM runs
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY target ORDER BY id DESC) AS rn
				FROM runs
			)
			WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning runs: %w", err)
	}

	return nil
}

// migrate runs schema migrations.
func (s *Store) migrate() error {
	currentVersion := s.getSchemaVersion()

	migrations := []func(*sql.Tx) error{
		migrateV1,
	}

	ctx := context.Background()
	for i := currentVersion; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", i+1, err)
		}

		if err := migrations[i](tx); err != nil {
			_ = tx.Rollback() //nolint:errcheck,gosec // rollback best-effort on migration failure
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			_ = tx.Rollback() //nolint:errcheck,gosec // rollback best-effort
			return fmt.Errorf("updating schema version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			_ = tx.Rollback() //nolint:errcheck,gosec // rollback best-effort
			return fmt.Errorf("inserting schema version: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version, or 0 if the schema_version table doesn't exist.
func (s *Store) getSchemaVersion() int {
	ctx := context.Background()

	var tableName string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&tableName)
	if err != nil {
		return 0
	}

	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0
	}

	return version
}

// parseTime parses a timestamp string from SQLite, trying multiple formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// migrateV1 creates the initial schema.
func migrateV1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  TEXT NOT NULL,
			target  TEXT NOT NULL,
			kind    TEXT NOT NULL,
			action  TEXT NOT NULL,
			digest  TEXT NOT NULL,
			host    TEXT NOT NULL,
			ran_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_target
			ON runs(target, id DESC)`,
	}

	ctx := context.Background()
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:30], err)
		}
	}

	return nil
}
