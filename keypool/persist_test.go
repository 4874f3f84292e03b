package keypool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(now time.Time) []Record {
	return []Record{
		{Secret: "sk-a", Model: "m1", LastUsedAt: now.Add(-time.Hour), Failures: 0},
		{Secret: "sk-b", Model: "m1", LastUsedAt: now.Add(-time.Minute), CooldownUntil: now.Add(time.Hour), Failures: 3},
		{Secret: "sk-c", Model: "m2", CooldownUntil: disabledUntil, Failures: 1},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	fs := NewFileStore(path, testLogger())

	now := time.Unix(1_700_000_000, 0).UTC()
	saved := sampleRecords(now)
	require.NoError(t, fs.Save(saved))

	loaded, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, loaded, len(saved))
	for i := range saved {
		assert.Equal(t, saved[i].Secret, loaded[i].Secret)
		assert.Equal(t, saved[i].Model, loaded[i].Model)
		assert.True(t, saved[i].LastUsedAt.Equal(loaded[i].LastUsedAt))
		assert.True(t, saved[i].CooldownUntil.Equal(loaded[i].CooldownUntil))
		assert.Equal(t, saved[i].Failures, loaded[i].Failures)
	}
}

// Reloading a saved pool yields the same eligibility decisions for select,
// given the same current time.
func TestPersistedStateEquivalentSelection(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	records := sampleRecords(now)

	selectFrom := func(records []Record) string {
		store := NewStore(testLogger())
		require.NoError(t, store.Restore(records))
		sel := NewSelector(store, DefaultCooldownPolicy(), testLogger())
		sel.now = func() time.Time { return now }
		cred, err := sel.SelectAndReserve("m1")
		require.NoError(t, err)
		return cred.Secret
	}

	direct := selectFrom(records)

	path := filepath.Join(t.TempDir(), "keys.json")
	fs := NewFileStore(path, testLogger())
	require.NoError(t, fs.Save(records))
	loaded, err := fs.Load()
	require.NoError(t, err)

	assert.Equal(t, direct, selectFrom(loaded))
}

func TestFileStoreMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "nope", "keys.json"), testLogger())
	records, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	fs := NewFileStore(path, testLogger())
	_, err := fs.Load()
	require.Error(t, err)
	var pe *PoolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrorTypePersistence, pe.Type)
}

func TestStoreRestore(t *testing.T) {
	store := NewStore(testLogger())
	now := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, store.Restore(sampleRecords(now)))
	assert.Equal(t, 3, store.Len())

	// Restored order is the insertion order.
	all := store.Snapshot()
	assert.Equal(t, "sk-a", all[0].Secret)
	assert.Equal(t, "sk-c", all[2].Secret)
	assert.True(t, all[2].Disabled(), "disabled state survives the round trip")

	t.Run("duplicate records rejected", func(t *testing.T) {
		err := store.Restore([]Record{{Secret: "sk-a"}, {Secret: "sk-a"}})
		assert.True(t, IsDuplicate(err))
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		err := store.Restore([]Record{{Model: "m1"}})
		require.Error(t, err)
	})
}

func TestStateSchema(t *testing.T) {
	schema, err := StateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(schema), "secret")
	assert.Contains(t, string(schema), "cooldown_until")
	assert.Contains(t, string(schema), "failures")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	now := time.Unix(1_700_000_000, 0).UTC()
	saved := sampleRecords(now)
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, len(saved))
	for i := range saved {
		assert.Equal(t, saved[i].Secret, loaded[i].Secret, "order preserved")
		assert.True(t, saved[i].LastUsedAt.Equal(loaded[i].LastUsedAt))
		assert.True(t, saved[i].CooldownUntil.Equal(loaded[i].CooldownUntil))
		assert.Equal(t, saved[i].Failures, loaded[i].Failures)
	}

	t.Run("save replaces previous contents", func(t *testing.T) {
		require.NoError(t, store.Save(saved[:1]))
		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Len(t, loaded, 1)
	})

	t.Run("empty database loads empty", func(t *testing.T) {
		require.NoError(t, store.Save(nil))
		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})
}
