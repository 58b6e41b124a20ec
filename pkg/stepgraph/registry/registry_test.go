package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Frozen())
}

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	require.NoError(t, r.Register("one", 1))
	require.NoError(t, r.Register("two", 2))

	v, err := r.Get("one")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = r.Get("two")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGet_NotFound(t *testing.T) {
	r := New[string, int]()

	v, err := r.Get("missing")

	var nf *NotFoundError[string]
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Key)
	assert.Equal(t, 0, v)
}

func TestRegister_Duplicate(t *testing.T) {
	r := New[string, string]()

	require.NoError(t, r.Register("key", "old"))
	err := r.Register("key", "new")

	var dup *DuplicateError[string]
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "key", dup.Key)

	// Original value is kept
	v, err := r.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "old", v)
}

func TestFreeze(t *testing.T) {
	r := New[string, int]()
	require.NoError(t, r.Register("a", 1))

	r.Freeze()
	r.Freeze()

	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Register("b", 2), ErrFrozen)
	assert.False(t, r.Has("b"))

	v, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestLookupAndHas(t *testing.T) {
	r := New[string, int]()
	require.NoError(t, r.Register("x", 9))

	v, ok := r.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, 9, v)

	_, ok = r.Lookup("y")
	assert.False(t, ok)
	assert.True(t, r.Has("x"))
	assert.False(t, r.Has("y"))
}

func TestKeys_Sorted(t *testing.T) {
	r := New[string, int]()
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(k, 0))
	}

	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
}

func TestRange(t *testing.T) {
	r := New[string, int]()
	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))
	require.NoError(t, r.Register("c", 3))

	var seen []string
	r.Range(func(k string, v int) bool {
		seen = append(seen, k)
		return k != "b"
	})

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRange_RegisterDuringIteration(t *testing.T) {
	r := New[string, int]()
	require.NoError(t, r.Register("a", 1))

	count := 0
	r.Range(func(k string, v int) bool {
		count++
		_ = r.Register("z", 26)
		return true
	})

	assert.Equal(t, 1, count)
	assert.True(t, r.Has("z"))
}

func TestConcurrentAccess(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup
	var dups atomic.Int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := r.Register(n%10, n); err != nil {
				dups.Add(1)
			}
			_, _ = r.Get(n % 10)
			_ = r.Keys()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
	assert.Equal(t, int64(40), dups.Load())
}
