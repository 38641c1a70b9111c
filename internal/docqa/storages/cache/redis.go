package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"docqa/internal/docqa/interfaces"

	"github.com/go-redis/redis/v8"
)

// Commands is the subset of the Redis client used by the cache.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisAnswerCache stores answers under "<prefix>:<generation>:<topK>:<sha256(question)>".
// Invalidate bumps the generation so older entries are never read again and expire on their own.
type RedisAnswerCache struct {
	rdb    Commands
	prefix string
	ttl    time.Duration
}

var _ interfaces.AnswerCache = (*RedisAnswerCache)(nil)

func NewRedisAnswerCache(rdb Commands, prefix string, ttl time.Duration) *RedisAnswerCache {
	return &RedisAnswerCache{rdb: rdb, prefix: strings.TrimSuffix(prefix, ":"), ttl: ttl}
}

// Generation returns the current index generation; a missing counter reads as zero.
func (c *RedisAnswerCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (c *RedisAnswerCache) Get(ctx context.Context, gen int64, question string, topK int) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(gen, question, topK)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set writes under gen even if the generation has moved on since; such entries are
// never read and expire with the TTL.
func (c *RedisAnswerCache) Set(ctx context.Context, gen int64, question string, topK int, value []byte) error {
	if err := c.rdb.Set(ctx, c.key(gen, question, topK), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisAnswerCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

func (c *RedisAnswerCache) generationKey() string {
	return c.prefix + ":generation"
}

func (c *RedisAnswerCache) key(gen int64, question string, topK int) string {
	sum := sha256.Sum256([]byte(question))
	return fmt.Sprintf("%s:%d:%d:%s", c.prefix, gen, topK, hex.EncodeToString(sum[:]))
}

// Nop never hits.
type Nop struct{}

var _ interfaces.AnswerCache = Nop{}

func (Nop) Generation(context.Context) (int64, error)                     { return 0, nil }
func (Nop) Get(context.Context, int64, string, int) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, int64, string, int, []byte) error         { return nil }
func (Nop) Invalidate(context.Context) error                              { return nil }
