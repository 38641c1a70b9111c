package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryAnswerCache(2, 0)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, 0, "a", 3, []byte("A")))
	require.NoError(t, c.Set(ctx, 0, "b", 3, []byte("B")))
	_, hit, _ := c.Get(ctx, 0, "a", 3)
	require.True(t, hit)

	require.NoError(t, c.Set(ctx, 0, "c", 3, []byte("C")))
	assert.Equal(t, 2, c.Len())

	_, hit, _ = c.Get(ctx, 0, "b", 3)
	assert.False(t, hit, "b was least recently used")
	val, hit, _ := c.Get(ctx, 0, "a", 3)
	assert.True(t, hit)
	assert.Equal(t, []byte("A"), val)
}

func TestMemoryCacheKeysIncludeTopK(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryAnswerCache(10, 0)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, 0, "q", 3, []byte("three")))
	_, hit, _ := c.Get(ctx, 0, "q", 5)
	assert.False(t, hit)
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryAnswerCache(10, time.Minute)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, 0, "q", 3, []byte("v")))
	now = now.Add(59 * time.Second)
	_, hit, _ := c.Get(ctx, 0, "q", 3)
	assert.True(t, hit)

	now = now.Add(2 * time.Second)
	_, hit, _ = c.Get(ctx, 0, "q", 3)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryAnswerCache(10, 0)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, 0, "q", 3, []byte("v")))
	require.NoError(t, c.Invalidate(ctx))
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	_, hit, _ := c.Get(ctx, gen, "q", 3)
	assert.False(t, hit)
}

func TestMemoryCacheDropsWritesFromOldGeneration(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryAnswerCache(10, 0)
	require.NoError(t, err)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, gen, "q", 3, []byte("old")))
	assert.Equal(t, 0, c.Len())

	_, hit, _ := c.Get(ctx, gen, "q", 3)
	assert.False(t, hit)
}

func TestMemoryCacheRequiresCapacity(t *testing.T) {
	_, err := NewMemoryAnswerCache(0, 0)
	assert.Error(t, err)
}
