package storage_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkhatri/fragmentd/storage"
	bboltstore "github.com/mkhatri/fragmentd/storage/bbolt"
	"github.com/mkhatri/fragmentd/storage/memory"
)

// storeTests runs the common suite against any Store implementation.
func storeTests(t *testing.T, store storage.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get("no-such-id")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		doc := json.RawMessage(`{"hello":"world"}`)
		require.NoError(t, store.Put("frag-1", doc))
		got, err := store.Get("frag-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"hello":"world"}`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put("frag-ow", json.RawMessage(`{"v":1}`)))
		require.NoError(t, store.Put("frag-ow", json.RawMessage(`{"v":2}`)))
		got, err := store.Get("frag-ow")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put("frag-del", json.RawMessage(`{}`)))
		require.NoError(t, store.Delete("frag-del"))
		_, err := store.Get("frag-del")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		// Deleting an absent document is not an error.
		require.NoError(t, store.Delete("never-existed"))
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put("frag-a", json.RawMessage(`{}`)))
		require.NoError(t, store.Put("frag-b", json.RawMessage(`{}`)))
		ids, err := store.List()
		require.NoError(t, err)
		assert.Contains(t, ids, "frag-a")
		assert.Contains(t, ids, "frag-b")
	})
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, memory.NewStore())
}

func TestBBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fragments.db")
	store, err := bboltstore.NewStoreFromFile(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	storeTests(t, store)
}
