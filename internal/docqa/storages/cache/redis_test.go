package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func TestRedisAnswerCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := NewRedisAnswerCache(rdb, "docqa:answer:", 10*time.Minute)

	_, ok, err := c.Get(ctx, 0, "what is the revenue?", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, 0, "what is the revenue?", 3, []byte(`{"answer":"42"}`)))

	got, ok, err := c.Get(ctx, 0, "what is the revenue?", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"answer":"42"}`, string(got))

	_, ok, err = c.Get(ctx, 0, "what is the revenue?", 5)
	require.NoError(t, err)
	assert.False(t, ok, "topK is part of the key")

	for _, ttl := range rdb.ttls {
		assert.Equal(t, 10*time.Minute, ttl)
	}
}

func TestRedisAnswerCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewRedisAnswerCache(newFakeRedis(), "docqa:answer", time.Minute)

	require.NoError(t, c.Set(ctx, 0, "q", 3, []byte("a")))
	require.NoError(t, c.Invalidate(ctx))

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	_, ok, err := c.Get(ctx, gen, "q", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisAnswerCacheStaleGenerationWriteIsUnreachable(t *testing.T) {
	ctx := context.Background()
	c := NewRedisAnswerCache(newFakeRedis(), "docqa:answer", time.Minute)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, gen, "q", 3, []byte("old")))

	current, err := c.Generation(ctx)
	require.NoError(t, err)
	_, ok, err := c.Get(ctx, current, "q", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisAnswerCacheGenerationError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection reset")
	c := NewRedisAnswerCache(rdb, "docqa:answer", time.Minute)

	_, err := c.Generation(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestRedisAnswerCacheBackendError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection reset")
	c := NewRedisAnswerCache(rdb, "docqa:answer", time.Minute)

	_, _, err := c.Get(context.Background(), 0, "q", 3)
	assert.ErrorContains(t, err, "connection reset")
}

func TestNopCache(t *testing.T) {
	var c Nop
	require.NoError(t, c.Set(context.Background(), 0, "q", 1, []byte("a")))
	_, ok, err := c.Get(context.Background(), 0, "q", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
