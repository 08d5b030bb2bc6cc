package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
)

// RunRecord is one scheduled task attempt
type RunRecord struct {
	ID         string           `json:"id"`
	Task       string           `json:"task"`
	Status     model.TaskStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	Attempt    int              `json:"attempt"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Duration   time.Duration    `json:"duration,omitempty"`
}

// RunHistory stores scheduled task attempts
type RunHistory interface {
	// Store inserts a new attempt, normally with status running
	Store(ctx context.Context, rec *RunRecord) error

	// Update records the outcome of an attempt
	Update(ctx context.Context, rec *RunRecord) error

	// Get retrieves an attempt by ID; nil when not found
	Get(ctx context.Context, id string) (*RunRecord, error)

	// List returns attempts newest first. Filters accept the keys "task" and "status".
	List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*RunRecord, error)

	// Count returns the number of attempts matching filters
	Count(ctx context.Context, filters map[string]interface{}) (int, error)

	// DeleteBefore removes attempts started before the given time
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

var filterColumns = map[string]string{
	"task":   "task",
	"status": "status",
}

// SQLiteRunHistory implements RunHistory using SQLite
type SQLiteRunHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteRunHistory opens (or creates) the history database at dbPath
func NewSQLiteRunHistory(logger *zap.Logger, dbPath string) (*SQLiteRunHistory, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteRunHistory{
		logger: logger.Named("run-history"),
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteRunHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_history (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			attempt INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			duration INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_run_history_task ON run_history(task);
		CREATE INDEX IF NOT EXISTS idx_run_history_status ON run_history(status);
		CREATE INDEX IF NOT EXISTS idx_run_history_started_at ON run_history(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Store implements RunHistory.Store
func (s *SQLiteRunHistory) Store(ctx context.Context, rec *RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_history (
			id, task, status, attempt, started_at
		) VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Task,
		rec.Status,
		rec.Attempt,
		rec.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store run history: %w", err)
	}
	return nil
}

// Update implements RunHistory.Update
func (s *SQLiteRunHistory) Update(ctx context.Context, rec *RunRecord) error {
	var finished sql.NullTime
	if rec.FinishedAt != nil {
		finished = sql.NullTime{Time: rec.FinishedAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE run_history SET
			status = ?,
			error = ?,
			finished_at = ?,
			duration = ?
		WHERE id = ?`,
		rec.Status,
		sql.NullString{String: rec.Error, Valid: rec.Error != ""},
		finished,
		sql.NullInt64{Int64: int64(rec.Duration), Valid: rec.Duration != 0},
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run history: %w", err)
	}
	return nil
}

const selectColumns = "SELECT id, task, status, error, attempt, started_at, finished_at, duration FROM run_history"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*RunRecord, error) {
	rec := &RunRecord{}
	var errorStr sql.NullString
	var finishedAt sql.NullTime
	var durationNanos sql.NullInt64

	if err := row.Scan(
		&rec.ID,
		&rec.Task,
		&rec.Status,
		&errorStr,
		&rec.Attempt,
		&rec.StartedAt,
		&finishedAt,
		&durationNanos,
	); err != nil {
		return nil, err
	}

	if errorStr.Valid {
		rec.Error = errorStr.String
	}
	if finishedAt.Valid {
		rec.FinishedAt = &finishedAt.Time
	}
	if durationNanos.Valid {
		rec.Duration = time.Duration(durationNanos.Int64)
	}
	return rec, nil
}

// Get implements RunHistory.Get
func (s *SQLiteRunHistory) Get(ctx context.Context, id string) (*RunRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan run history: %w", err)
	}
	return rec, nil
}

// where renders filters in a stable order; unknown keys are rejected
func where(filters map[string]interface{}) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		if _, ok := filterColumns[k]; !ok {
			return "", nil, fmt.Errorf("unknown filter %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clause := " WHERE"
	args := make([]interface{}, 0, len(keys))
	for i, k := range keys {
		if i > 0 {
			clause += " AND"
		}
		clause += fmt.Sprintf(" %s = ?", filterColumns[k])
		args = append(args, filters[k])
	}
	return clause, args, nil
}

// List implements RunHistory.List
func (s *SQLiteRunHistory) List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*RunRecord, error) {
	clause, args, err := where(filters)
	if err != nil {
		return nil, err
	}

	query := selectColumns + clause + " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run history: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run history: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count implements RunHistory.Count
func (s *SQLiteRunHistory) Count(ctx context.Context, filters map[string]interface{}) (int, error) {
	clause, args, err := where(filters)
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_history"+clause, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count run history: %w", err)
	}
	return count, nil
}

// DeleteBefore implements RunHistory.DeleteBefore
func (s *SQLiteRunHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM run_history WHERE started_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete run history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old run history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Close closes the database connection
func (s *SQLiteRunHistory) Close() error {
	return s.db.Close()
}
