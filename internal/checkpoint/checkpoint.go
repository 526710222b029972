// Package checkpoint persists per-thread step outputs so a workflow invocation
// with the same thread id resumes rather than restarts.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Status of a recorded step.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrInvalidKey is returned when a thread id or step name is empty.
var ErrInvalidKey = errors.New("checkpoint: thread id and step are required")

// Checkpoint is the record of one step for one thread.
// Only completed checkpoints are reused; failed ones are kept for inspection.
type Checkpoint struct {
	ThreadID    string          `json:"thread_id"`
	Step        string          `json:"step"`
	Status      Status          `json:"status"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Completed reports whether the checkpoint can be reused.
func (c *Checkpoint) Completed() bool {
	return c != nil && c.Status == StatusCompleted
}

// Decode unmarshals the recorded output into v.
func (c *Checkpoint) Decode(v any) error {
	if len(c.Output) == 0 {
		return fmt.Errorf("checkpoint %s/%s has no output", c.ThreadID, c.Step)
	}
	if err := json.Unmarshal(c.Output, v); err != nil {
		return fmt.Errorf("failed to decode checkpoint %s/%s: %w", c.ThreadID, c.Step, err)
	}
	return nil
}

// Validate checks the key fields.
func (c *Checkpoint) Validate() error {
	if c.ThreadID == "" || c.Step == "" {
		return ErrInvalidKey
	}
	switch c.Status {
	case StatusCompleted, StatusFailed:
		return nil
	default:
		return fmt.Errorf("checkpoint: unknown status %q", c.Status)
	}
}

// New builds a completed checkpoint with output marshalled to JSON.
func New(threadID, step string, output any, duration time.Duration) (*Checkpoint, error) {
	raw, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output of %s: %w", step, err)
	}
	return &Checkpoint{
		ThreadID:    threadID,
		Step:        step,
		Status:      StatusCompleted,
		Output:      raw,
		DurationMs:  duration.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}, nil
}

// Failed builds a failed checkpoint carrying the error message.
func Failed(threadID, step string, stepErr error, duration time.Duration) *Checkpoint {
	return &Checkpoint{
		ThreadID:    threadID,
		Step:        step,
		Status:      StatusFailed,
		Error:       stepErr.Error(),
		DurationMs:  duration.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
}

// Store is the persistence contract. Implementations must provide
// read-your-writes for a given thread id.
type Store interface {
	// Get returns the checkpoint for (threadID, step), or nil, nil when none exists.
	Get(ctx context.Context, threadID, step string) (*Checkpoint, error)
	// Put records a checkpoint, replacing any previous record for the same key.
	Put(ctx context.Context, cp *Checkpoint) error
	// List returns all checkpoints of a thread ordered by completion time.
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)
	// Clear removes every checkpoint of a thread.
	Clear(ctx context.Context, threadID string) error
	// Close releases backend resources.
	Close() error
}

// Locker is implemented by stores able to serialise step execution across processes.
type Locker interface {
	Lock(ctx context.Context, threadID, step string) (unlock func(), err error)
}

func sortByCompletion(cps []*Checkpoint) {
	sort.SliceStable(cps, func(i, j int) bool {
		return cps[i].CompletedAt.Before(cps[j].CompletedAt)
	})
}
