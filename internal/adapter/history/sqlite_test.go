package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func invocation(callID, command string, startedAt time.Time) domain.ShellInvocation {
	code := 0
	return domain.ShellInvocation{
		CallID:    callID,
		Command:   command,
		Status:    domain.ToolCallSuccess,
		ExitCode:  &code,
		WorkDir:   "/work",
		Output:    "ok",
		StartedAt: startedAt,
		Duration:  42 * time.Millisecond,
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(invocation("a", "echo one", base)))
	require.NoError(t, store.Record(invocation("b", "echo two", base.Add(time.Minute))))
	require.NoError(t, store.Record(invocation("c", "echo three", base.Add(2*time.Minute))))

	got, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "c", got[0].CallID)
	assert.Equal(t, "b", got[1].CallID)
	assert.Equal(t, "a", got[2].CallID)

	assert.Equal(t, "echo three", got[0].Command)
	assert.Equal(t, domain.ToolCallSuccess, got[0].Status)
	require.NotNil(t, got[0].ExitCode)
	assert.Equal(t, 0, *got[0].ExitCode)
	assert.Equal(t, "/work", got[0].WorkDir)
	assert.Equal(t, "ok", got[0].Output)
	assert.True(t, got[0].StartedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, 42*time.Millisecond, got[0].Duration)
}

func TestRecentLimit(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Record(invocation(id, "cmd "+id, base.Add(time.Duration(i)*time.Second))))
	}

	got, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].CallID)
}

func TestRecentEmpty(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Recent(5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordNilExitCode(t *testing.T) {
	store := newTestStore(t)
	inv := invocation("x", "kill -9 self", time.Now().UTC())
	inv.ExitCode = nil
	inv.Status = domain.ToolCallError
	require.NoError(t, store.Record(inv))

	got, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ExitCode)
	assert.Equal(t, domain.ToolCallError, got[0].Status)
}

func TestRecordDuplicateCallID(t *testing.T) {
	store := newTestStore(t)
	inv := invocation("dup", "echo", time.Now().UTC())
	require.NoError(t, store.Record(inv))

	err := store.Record(inv)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHistoryWrite)
}
