package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openworld/physync/internal/entity"
	"github.com/openworld/physync/pkg/core"
)

func newEntity(name string) *entity.Entity {
	return entity.New(entity.Definition{Name: name})
}

func TestEntityCache_NewEntityCache(t *testing.T) {
	cache := NewEntityCache()

	require.NotNil(t, cache)
	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, cache.All())
}

func TestEntityCache_AddAndGet(t *testing.T) {
	cache := NewEntityCache()
	e := newEntity("crate")

	require.NoError(t, cache.Add(e))

	got, err := cache.Get(e.ID())
	require.NoError(t, err)
	assert.Same(t, e, got)

	byName, err := cache.GetByName("crate")
	require.NoError(t, err)
	assert.Same(t, e, byName)
}

func TestEntityCache_AddDuplicate(t *testing.T) {
	cache := NewEntityCache()
	e := newEntity("crate")
	require.NoError(t, cache.Add(e))

	err := cache.Add(e)
	assert.ErrorIs(t, err, ErrDuplicateEntity)
	assert.Equal(t, 1, cache.Len())
}

func TestEntityCache_Get_NotFound(t *testing.T) {
	cache := NewEntityCache()

	_, err := cache.Get(core.NewEntityID())
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = cache.GetByName("ghost")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestEntityCache_Remove(t *testing.T) {
	cache := NewEntityCache()
	e := newEntity("crate")
	require.NoError(t, cache.Add(e))

	removed, err := cache.Remove(e.ID())
	require.NoError(t, err)
	assert.Same(t, e, removed)
	assert.Equal(t, 0, cache.Len())

	_, err = cache.GetByName("crate")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = cache.Remove(e.ID())
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestEntityCache_RemoveKeepsNewerName(t *testing.T) {
	cache := NewEntityCache()
	older := newEntity("crate")
	newer := newEntity("crate")
	require.NoError(t, cache.Add(older))
	require.NoError(t, cache.Add(newer))

	_, err := cache.Remove(older.ID())
	require.NoError(t, err)

	got, err := cache.GetByName("crate")
	require.NoError(t, err)
	assert.Same(t, newer, got)
}

func TestEntityCache_Rename(t *testing.T) {
	cache := NewEntityCache()
	e := newEntity("crate")
	require.NoError(t, cache.Add(e))

	var props core.EntityProperties
	props.SetName("barrel")
	e.ApplyProperties(props)
	cache.Rename(e, "crate")

	_, err := cache.GetByName("crate")
	assert.ErrorIs(t, err, ErrUnknownEntity)
	got, err := cache.GetByName("barrel")
	require.NoError(t, err)
	assert.Same(t, e, got)
}

func TestEntityCache_AllSorted(t *testing.T) {
	cache := NewEntityCache()
	for i := 0; i < 10; i++ {
		require.NoError(t, cache.Add(newEntity("")))
	}

	all := cache.All()
	require.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1].ID(), all[i].ID()
		assert.Less(t, prev.String(), cur.String())
	}
}

func TestEntityCache_Reset(t *testing.T) {
	cache := NewEntityCache()
	require.NoError(t, cache.Add(newEntity("crate")))

	cache.Reset()

	assert.Equal(t, 0, cache.Len())
	_, err := cache.GetByName("crate")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestEntityCache_ConcurrentAccess(t *testing.T) {
	cache := NewEntityCache()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := newEntity("")
			_ = cache.Add(e)
			_, _ = cache.Get(e.ID())
			_ = cache.All()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, cache.Len())
}

func TestNameIndex(t *testing.T) {
	idx := NewNameIndex()
	id := core.NewEntityID()

	idx.Set("", id)
	_, ok := idx.Get("")
	assert.False(t, ok, "empty names are not indexed")

	idx.Set("crate", id)
	got, ok := idx.Get("crate")
	require.True(t, ok)
	assert.Equal(t, id, got)

	idx.Delete("crate", core.NewEntityID())
	_, ok = idx.Get("crate")
	assert.True(t, ok, "delete with another id keeps the entry")

	idx.Delete("crate", id)
	_, ok = idx.Get("crate")
	assert.False(t, ok)
}
