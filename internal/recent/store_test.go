package recent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"projectstore/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "recent.db"), limit)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entry(profile, id string, usedAt int64) Entry {
	return Entry{
		ProfileID:    profile,
		ProviderName: "Cloud",
		FileMetadata: storage.FileMetadata{FileIdentifier: id},
		Name:         "Project " + id,
		UsedAt:       time.UnixMilli(usedAt),
	}
}

func TestAddAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	require.NoError(t, store.Add(ctx, entry("u1", "a", 1000)))
	require.NoError(t, store.Add(ctx, entry("u1", "b", 2000)))
	require.NoError(t, store.Add(ctx, entry("u2", "c", 3000)))

	entries, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].FileMetadata.FileIdentifier)
	assert.Equal(t, "a", entries[1].FileMetadata.FileIdentifier)
	assert.Equal(t, int64(2000), entries[0].UsedAt.UnixMilli())

	// Re-adding moves the entry to the front instead of duplicating it.
	updated := entry("u1", "a", 4000)
	updated.FileMetadata.Version = "v2"
	require.NoError(t, store.Add(ctx, updated))
	entries, err = store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].FileMetadata.FileIdentifier)
	assert.Equal(t, "v2", entries[0].FileMetadata.Version)
}

func TestLimitPrunesOldest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	require.NoError(t, store.Add(ctx, entry("u1", "a", 1)))
	require.NoError(t, store.Add(ctx, entry("u1", "b", 2)))
	require.NoError(t, store.Add(ctx, entry("u1", "c", 3)))
	require.NoError(t, store.Add(ctx, entry("u2", "z", 0)))

	entries, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].FileMetadata.FileIdentifier)
	assert.Equal(t, "b", entries[1].FileMetadata.FileIdentifier)

	other, err := store.List(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "pruning is per profile")
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	require.NoError(t, store.Add(ctx, entry("u1", "a", 1)))
	require.NoError(t, store.Remove(ctx, "u1", "Cloud", "a"))
	require.NoError(t, store.Remove(ctx, "u1", "Cloud", "missing"))

	entries, err := store.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAddValidates(t *testing.T) {
	store := newTestStore(t, 10)
	assert.Error(t, store.Add(context.Background(), Entry{ProfileID: "u1", ProviderName: "Cloud"}))
}

func TestAddDefaultsUsedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)
	store.now = func() time.Time { return time.UnixMilli(42) }

	e := entry("u1", "a", 0)
	e.UsedAt = time.Time{}
	require.NoError(t, store.Add(ctx, e))

	entries, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(42), entries[0].UsedAt.UnixMilli())
}

func TestPruneBefore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	require.NoError(t, store.Add(ctx, entry("u1", "old", 1000)))
	require.NoError(t, store.Add(ctx, entry("u2", "older", 500)))
	require.NoError(t, store.Add(ctx, entry("u1", "new", 5000)))

	pruned, err := store.PruneBefore(ctx, time.UnixMilli(2000))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	entries, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].FileMetadata.FileIdentifier)

	entries, err = store.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
