package checkpoint_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a fresh, empty store for one subtest.
type storeFactory func(t *testing.T) checkpoint.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, factory storeFactory) {
	ctx := context.Background()

	t.Run("Save_and_Load", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		data := []byte(`{"key": "value"}`)
		require.NoError(t, store.Save(ctx, "alice", data))

		loaded, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, data, loaded)
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Load(ctx, "nobody")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run("Save_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ctx, "alice", []byte("first")))
		require.NoError(t, store.Save(ctx, "alice", []byte("second")))

		loaded, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), loaded)
	})

	t.Run("Save_EmptyThreadID", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		err := store.Save(ctx, "", []byte("x"))
		assert.ErrorIs(t, err, checkpoint.ErrInvalidThreadID)
	})

	t.Run("Thread_Isolation", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ctx, "alice", []byte("A")))
		require.NoError(t, store.Save(ctx, "bob", []byte("B")))

		loaded, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []byte("A"), loaded)

		loaded, err = store.Load(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []byte("B"), loaded)
	})

	t.Run("List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		infos, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("List_Ordered", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ctx, "carol", []byte("ccc")))
		require.NoError(t, store.Save(ctx, "alice", []byte("a")))
		require.NoError(t, store.Save(ctx, "bob", []byte("bb")))

		infos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 3)

		assert.Equal(t, "alice", infos[0].ThreadID)
		assert.Equal(t, "bob", infos[1].ThreadID)
		assert.Equal(t, "carol", infos[2].ThreadID)

		assert.Equal(t, int64(1), infos[0].Size)
		assert.Equal(t, int64(2), infos[1].Size)
		assert.Equal(t, int64(3), infos[2].Size)
		assert.False(t, infos[0].UpdatedAt.IsZero())
	})

	t.Run("Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(ctx, "alice", []byte("data")))
		require.NoError(t, store.Save(ctx, "bob", []byte("keep")))
		require.NoError(t, store.Delete(ctx, "alice"))

		_, err := store.Load(ctx, "alice")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)

		infos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "bob", infos[0].ThreadID)
	})

	t.Run("Delete_Nonexistent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.NoError(t, store.Delete(ctx, "nobody"))
	})

	t.Run("DataCopy", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		original := []byte("original data")
		require.NoError(t, store.Save(ctx, "alice", original))
		original[0] = 'X'

		loaded, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []byte("original data"), loaded)
	})

	t.Run("Concurrent_Saves", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				thread := fmt.Sprintf("thread-%d", n%4)
				assert.NoError(t, store.Save(ctx, thread, []byte(fmt.Sprintf("v%d", n))))
				_, _ = store.Load(ctx, thread)
			}(i)
		}
		wg.Wait()

		infos, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, infos, 4)
	})

	t.Run("Close_ThenError", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		err := store.Save(ctx, "alice", []byte("data"))
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		_, err = store.Load(ctx, "alice")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		_, err = store.List(ctx)
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		assert.NoError(t, store.Close(), "close is idempotent")
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		return checkpoint.NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		store, err := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "threads"))
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		store, err := checkpoint.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestRedisStore(t *testing.T) {
	storeContractTest(t, func(t *testing.T) checkpoint.Store {
		mr := miniredis.RunT(t)
		return checkpoint.NewRedisStore(checkpoint.RedisOptions{Addr: mr.Addr()})
	})
}
