package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// SQLiteStore keeps checkpoints in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and initialises the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// One writer keeps read-your-writes trivially true
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the checkpoints table if it doesn't exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			thread_id TEXT NOT NULL,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			output BLOB,
			error_message TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			completed_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, step)
		);
		CREATE INDEX IF NOT EXISTS idx_workflow_checkpoints_thread ON workflow_checkpoints (thread_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, threadID, step string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, step, status, output, error_message, duration_ms, completed_at
		FROM workflow_checkpoints
		WHERE thread_id = ? AND step = ?`, threadID, step)

	cp, err := scanCheckpoint(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_checkpoints (thread_id, step, status, output, error_message, duration_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (thread_id, step) DO UPDATE SET
			status = excluded.status,
			output = excluded.output,
			error_message = excluded.error_message,
			duration_ms = excluded.duration_ms,
			completed_at = excluded.completed_at`,
		cp.ThreadID, cp.Step, string(cp.Status), []byte(cp.Output), cp.Error, cp.DurationMs, cp.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, step, status, output, error_message, duration_ms, completed_at
		FROM workflow_checkpoints
		WHERE thread_id = ?
		ORDER BY completed_at ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	out := []*Checkpoint{}
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflow_checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to clear thread %s: %w", threadID, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanCheckpoint(scan func(dest ...any) error) (*Checkpoint, error) {
	var (
		cp          Checkpoint
		status      string
		output      []byte
		errMsg      sql.NullString
		completedAt time.Time
	)
	if err := scan(&cp.ThreadID, &cp.Step, &status, &output, &errMsg, &cp.DurationMs, &completedAt); err != nil {
		return nil, err
	}
	cp.Status = Status(status)
	if len(output) > 0 {
		cp.Output = output
	}
	cp.Error = errMsg.String
	cp.CompletedAt = completedAt
	return &cp, nil
}
