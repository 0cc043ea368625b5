// Package history keeps a SQLite record of finished validation runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/tsvalidate/internal/models"
)

// ErrRunNotFound is returned when a run ID is not in the history.
var ErrRunNotFound = errors.New("run not found")

// Store manages the run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath and
// applies pending migrations. ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must be first so the rest wait on locks
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a finished run and every package outcome in one
// transaction. A run without an ID is given a fresh one.
func (s *Store) RecordRun(ctx context.Context, run *models.RunReport) error {
	if run == nil {
		return errors.New("run report is nil")
	}
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, total, passed, failed, concurrency)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.UTC(), run.Duration.Milliseconds(),
		run.Summary.Total(), run.Summary.Passed(), run.Summary.Failed(), run.Concurrency)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO package_results (run_id, package, passed, position, failed_step, sandbox)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare package insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Results {
		if _, err := stmt.ExecContext(ctx, run.RunID, string(r.Package), r.Passed, i, r.FailedStep, r.Sandbox); err != nil {
			return fmt.Errorf("insert result for %s: %w", r.Package, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	query := `SELECT id, started_at, duration_ms, total, passed, failed, concurrency
		FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run ID %q: %w", id, err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, total, passed, failed, concurrency
		 FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PackageResults returns a run's package outcomes in input order.
func (s *Store) PackageResults(ctx context.Context, runID string) ([]models.PackageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT package, passed, failed_step, sandbox, position
		 FROM package_results WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query package results: %w", err)
	}
	defer rows.Close()

	var out []models.PackageRecord
	for rows.Next() {
		var rec models.PackageRecord
		var name string
		if err := rows.Scan(&name, &rec.Passed, &rec.FailedStep, &rec.Sandbox, &rec.Position); err != nil {
			return nil, fmt.Errorf("scan package result: %w", err)
		}
		rec.Package = models.PackageName(name)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate package results: %w", err)
	}
	return out, nil
}

// FailedPackages returns the names of a run's failed packages in input order.
func (s *Store) FailedPackages(ctx context.Context, runID string) ([]models.PackageName, error) {
	results, err := s.PackageResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	var failed []models.PackageName
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Package)
		}
	}
	return failed, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (models.RunRecord, error) {
	var rec models.RunRecord
	var durationMS int64
	err := row.Scan(&rec.ID, &rec.StartedAt, &durationMS, &rec.Total, &rec.Passed, &rec.Failed, &rec.Concurrency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}
