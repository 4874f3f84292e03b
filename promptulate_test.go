package promptulate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, statePath string, opts ...ConfigOption) Scheduler {
	t.Helper()
	t.Setenv("PROMPTULATE_API_KEY", "")
	t.Setenv("PROMPTULATE_SQLITE_PATH", "")
	t.Setenv("PROMPTULATE_STATE_PATH", "")

	opts = append([]ConfigOption{
		SetStatePath(statePath),
		SetLogLevel(LogLevelOff),
	}, opts...)

	sched, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })
	return sched
}

func TestSchedulerCredentialAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	sched := newTestScheduler(t, path)

	require.NoError(t, sched.AddCredential("sk-secret-alpha", "m1"))

	t.Run("duplicate rejected", func(t *testing.T) {
		err := sched.AddCredential("sk-secret-alpha", "m2")
		assert.True(t, IsDuplicate(err))
	})

	t.Run("status is redacted", func(t *testing.T) {
		statuses := sched.ListStatus()
		require.Len(t, statuses, 1)
		assert.NotContains(t, statuses[0].Secret, "secret-alpha")
		assert.Equal(t, "m1", statuses[0].Model)
	})

	t.Run("remove unknown", func(t *testing.T) {
		assert.True(t, IsNotFound(sched.RemoveCredential("sk-nope")))
	})

	require.NoError(t, sched.RemoveCredential("sk-secret-alpha"))
	assert.Empty(t, sched.ListStatus())
}

func TestSchedulerDispatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	sched := newTestScheduler(t, path)
	require.NoError(t, sched.AddCredential("sk-a", "m1"))

	result, err := sched.Dispatch(context.Background(), "m1",
		func(ctx context.Context, cred Credential) (string, Outcome, error) {
			assert.Equal(t, "sk-a", cred.Secret)
			return "pong", Success, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "pong", result)

	t.Run("auth failure degrades silently", func(t *testing.T) {
		_, err := sched.Dispatch(context.Background(), "m1",
			func(ctx context.Context, cred Credential) (string, Outcome, error) {
				return "", AuthFailure, errors.New("401")
			})
		// The credential is disabled, not the caller aborted: the error is a
		// typed pool condition, never a fatal auth error.
		require.Error(t, err)
		assert.True(t, IsExhausted(err) || IsDispatchFailed(err))

		statuses := sched.ListStatus()
		require.Len(t, statuses, 1)
		assert.True(t, statuses[0].Disabled)
	})

	t.Run("administrative reset revives", func(t *testing.T) {
		require.NoError(t, sched.ResetCredential("sk-a"))
		statuses := sched.ListStatus()
		assert.False(t, statuses[0].Disabled)
		assert.Zero(t, statuses[0].Failures)
	})
}

func TestSchedulerStatePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	first := newTestScheduler(t, path)
	require.NoError(t, first.AddCredential("sk-a", "m1"))
	require.NoError(t, first.AddCredential("sk-b", "m2"))
	require.NoError(t, first.Close())

	second := newTestScheduler(t, path)
	statuses := second.ListStatus()
	require.Len(t, statuses, 2)
	assert.Equal(t, "m1", statuses[0].Model)
	assert.Equal(t, "m2", statuses[1].Model)
}

func TestSchedulerSeedsFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	sched := newTestScheduler(t, path, SetSeed("sk-env-seed", "m1"))

	statuses := sched.ListStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, "m1", statuses[0].Model)

	result, err := sched.Dispatch(context.Background(), "m1",
		func(ctx context.Context, cred Credential) (string, Outcome, error) {
			return cred.Secret, Success, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "sk-env-seed", result)
}

func TestSchedulerSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")

	first := newTestScheduler(t, "", SetSQLitePath(dbPath))
	require.NoError(t, first.AddCredential("sk-a", "m1"))
	require.NoError(t, first.Close())

	second := newTestScheduler(t, "", SetSQLitePath(dbPath))
	statuses := second.ListStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, "m1", statuses[0].Model)
}

func TestSchedulerCorruptStateFallsBackToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	sched := newTestScheduler(t, path)
	assert.Empty(t, sched.ListStatus())
}

func TestSchedulerDispatchStatusOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	sched := newTestScheduler(t, path)
	require.NoError(t, sched.AddCredential("sk-a", "m1"))
	require.NoError(t, sched.AddCredential("sk-b", "m1"))

	// Two dispatches with no outcome between selections rotate the pool.
	var used []string
	for i := 0; i < 2; i++ {
		_, err := sched.Dispatch(context.Background(), "m1",
			func(ctx context.Context, cred Credential) (string, Outcome, error) {
				used = append(used, cred.Secret)
				return "", Success, nil
			})
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{"sk-a", "sk-b"}, used)
}
