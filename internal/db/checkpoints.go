package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clintjohnsn/pytchdeck/internal/checkpoint"
)

// CheckpointStore implements checkpoint.Store on PostgreSQL.
type CheckpointStore struct {
	db *DB
}

// NewCheckpointStore returns a store backed by db. Call Migrate first on a fresh database.
func NewCheckpointStore(db *DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

const selectCheckpoint = `SELECT thread_id, step, status, output, error_message, duration_ms, completed_at
		 FROM workflow_checkpoints`

// Get retrieves the checkpoint for a thread and step; nil, nil when absent.
func (s *CheckpointStore) Get(ctx context.Context, threadID, step string) (*checkpoint.Checkpoint, error) {
	row := s.db.pool.QueryRow(ctx,
		selectCheckpoint+`
		 WHERE thread_id = $1 AND step = $2`,
		threadID, step,
	)

	cp, err := scanCheckpoint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return cp, nil
}

// Put upserts a checkpoint keyed by (thread_id, step).
func (s *CheckpointStore) Put(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	var output []byte
	if len(cp.Output) > 0 {
		output = cp.Output
	}
	var errMsg *string
	if cp.Error != "" {
		errMsg = &cp.Error
	}

	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO workflow_checkpoints (thread_id, step, status, output, error_message, duration_ms, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (thread_id, step) DO UPDATE SET
		   status = EXCLUDED.status,
		   output = EXCLUDED.output,
		   error_message = EXCLUDED.error_message,
		   duration_ms = EXCLUDED.duration_ms,
		   completed_at = EXCLUDED.completed_at`,
		cp.ThreadID, cp.Step, string(cp.Status), output, errMsg, cp.DurationMs, cp.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// List returns a thread's checkpoints ordered by completion time.
func (s *CheckpointStore) List(ctx context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	rows, err := s.db.pool.Query(ctx,
		selectCheckpoint+`
		 WHERE thread_id = $1
		 ORDER BY completed_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	out := []*checkpoint.Checkpoint{}
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}
	return out, nil
}

// Clear deletes all checkpoints of a thread.
func (s *CheckpointStore) Clear(ctx context.Context, threadID string) error {
	_, err := s.db.pool.Exec(ctx, `DELETE FROM workflow_checkpoints WHERE thread_id = $1`, threadID)
	if err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *CheckpointStore) Close() error {
	s.db.Close()
	return nil
}

func scanCheckpoint(row pgx.Row) (*checkpoint.Checkpoint, error) {
	var (
		cp     checkpoint.Checkpoint
		status string
		output []byte
		errMsg *string
	)
	if err := row.Scan(&cp.ThreadID, &cp.Step, &status, &output, &errMsg, &cp.DurationMs, &cp.CompletedAt); err != nil {
		return nil, err
	}
	cp.Status = checkpoint.Status(status)
	if len(output) > 0 {
		cp.Output = output
	}
	if errMsg != nil {
		cp.Error = *errMsg
	}
	return &cp, nil
}
