package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintjohnsn/pytchdeck/internal/checkpoint"
)

var checkpointColumns = []string{"thread_id", "step", "status", "output", "error_message", "duration_ms", "completed_at"}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *CheckpointStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, NewCheckpointStore(NewWithPool(mock))
}

func TestCheckpointStore_Put(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	cp, err := checkpoint.New("thread-1", "validate_jd", map[string]any{"is_valid": true, "reason": "VALID_JD"}, 120*time.Millisecond)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workflow_checkpoints")).
		WithArgs("thread-1", "validate_jd", "completed", []byte(cp.Output), pgxmock.AnyArg(), int64(120), cp.CompletedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_PutInvalid(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	err := store.Put(context.Background(), &checkpoint.Checkpoint{Step: "x", Status: checkpoint.StatusCompleted})
	assert.ErrorIs(t, err, checkpoint.ErrInvalidKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_Get(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	completedAt := time.Now().UTC()
	rows := pgxmock.NewRows(checkpointColumns).
		AddRow("thread-1", "resolve_content", "completed", []byte(`"We need a Go engineer"`), nil, int64(5), completedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_checkpoints")).
		WithArgs("thread-1", "resolve_content").
		WillReturnRows(rows)

	cp, err := store.Get(context.Background(), "thread-1", "resolve_content")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Completed())
	assert.Equal(t, completedAt, cp.CompletedAt)

	var text string
	require.NoError(t, cp.Decode(&text))
	assert.Equal(t, "We need a Go engineer", text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_GetMissing(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_checkpoints")).
		WithArgs("thread-1", "assess_fit").
		WillReturnError(pgx.ErrNoRows)

	cp, err := store.Get(context.Background(), "thread-1", "assess_fit")
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_GetError(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_checkpoints")).
		WithArgs("thread-1", "assess_fit").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "thread-1", "assess_fit")
	assert.ErrorContains(t, err, "failed to get checkpoint")
}

func TestCheckpointStore_List(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	now := time.Now().UTC()
	failure := "timeout"
	rows := pgxmock.NewRows(checkpointColumns).
		AddRow("thread-1", "resolve_content", "completed", []byte(`"jd"`), nil, int64(1), now.Add(-time.Second)).
		AddRow("thread-1", "validate_jd", "failed", nil, &failure, int64(3000), now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY completed_at ASC")).
		WithArgs("thread-1").
		WillReturnRows(rows)

	list, err := store.List(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "resolve_content", list[0].Step)
	assert.False(t, list[1].Completed())
	assert.Equal(t, "timeout", list[1].Error)
	assert.Empty(t, list[1].Output)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_Clear(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM workflow_checkpoints WHERE thread_id = $1")).
		WithArgs("thread-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	require.NoError(t, store.Clear(context.Background(), "thread-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS workflow_checkpoints")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewWithPool(mock).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
