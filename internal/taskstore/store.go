package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"limpet/internal/task"
)

// Store persists task run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS task_runs (
    id          TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    finished_at TEXT,
    success     INTEGER NOT NULL DEFAULT 0,
    exit_code   INTEGER NOT NULL DEFAULT 0,
    error       TEXT,
    lines       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_task_runs_started_at ON task_runs(started_at);
`

// Open initializes or connects to the task history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record represents one stored task run.
type Record struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Finished   bool
	Success    bool
	ExitCode   int
	Error      string
	Lines      int
}

// TaskStarted inserts a pending run row. Implements task.Recorder.
func (s *Store) TaskStarted(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_runs (id, started_at) VALUES (?, ?)`,
		id, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert task run: %w", err)
	}
	return nil
}

// TaskFinished resolves a run row with its terminal result. Implements
// task.Recorder.
func (s *Store) TaskFinished(ctx context.Context, id string, result task.Result, lines int, finishedAt time.Time) error {
	reason := ""
	if result.Err != nil {
		reason = result.Err.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_runs SET finished_at = ?, success = ?, exit_code = ?, error = ?, lines = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(result.Success),
		result.ExitCode,
		nullableString(reason),
		lines,
		id,
	)
	if err != nil {
		return fmt.Errorf("update task run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task run %s not found", id)
	}
	return nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, started_at, finished_at, success, exit_code, error, lines
	          FROM task_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task runs: %w", err)
	}
	return records, nil
}

// Get returns one run by ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, success, exit_code, error, lines
		 FROM task_runs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("task run %s not found", id)
	}
	return record, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		record     Record
		startedAt  string
		finishedAt sql.NullString
		success    int
		reason     sql.NullString
	)
	if err := row.Scan(&record.ID, &startedAt, &finishedAt, &success, &record.ExitCode, &reason, &record.Lines); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan task run: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse started_at: %w", err)
	}
	record.StartedAt = parsed
	if finishedAt.Valid && finishedAt.String != "" {
		stamp, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return Record{}, fmt.Errorf("parse finished_at: %w", err)
		}
		record.FinishedAt = stamp
		record.Finished = true
	}
	record.Success = success != 0
	record.Error = reason.String
	return record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ task.Recorder = (*Store)(nil)
