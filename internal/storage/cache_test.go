package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_GetSet(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("key", "value")
	got, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	cache := NewLRUCache(10, 20*time.Millisecond)

	cache.Set("key", "value")
	time.Sleep(30 * time.Millisecond)

	_, ok := cache.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	cache := NewLRUCache(2, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate
	_, _ = cache.Get("a")

	cache.Set("c", 3)
	assert.Equal(t, 2, cache.Len())

	_, ok := cache.Get("b")
	assert.False(t, ok)
	_, ok = cache.Get("a")
	assert.True(t, ok)
}

func TestLRUCache_NilValues(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	// Negative cache entries store nil
	cache.Set("missing-row", nil)
	got, ok := cache.Get("missing-row")
	assert.True(t, ok)
	assert.Nil(t, got)
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)

	cache.Delete("a")
	_, ok := cache.Get("a")
	assert.False(t, ok)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestLRUCache_UpdateRefreshesTTL(t *testing.T) {
	cache := NewLRUCache(10, 50*time.Millisecond)

	cache.Set("key", "old")
	time.Sleep(30 * time.Millisecond)
	cache.Set("key", "new")
	time.Sleep(30 * time.Millisecond)

	got, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}
