package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"docqa/internal/docqa/interfaces"
)

type lruEntry struct {
	key        string
	value      []byte
	expiration time.Time
}

// MemoryAnswerCache is an in-process LRU answer cache with an optional TTL.
// Invalidate drops every entry and advances the generation.
type MemoryAnswerCache struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	gen   int64
	ll    *list.List
	items map[string]*list.Element
}

var _ interfaces.AnswerCache = (*MemoryAnswerCache)(nil)

// NewMemoryAnswerCache creates a cache holding at most capacity answers. A zero ttl
// keeps entries until they are evicted.
func NewMemoryAnswerCache(capacity int, ttl time.Duration) (*MemoryAnswerCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	return &MemoryAnswerCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}, nil
}

func (c *MemoryAnswerCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *MemoryAnswerCache) Get(_ context.Context, gen int64, question string, topK int) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return nil, false, nil
	}
	el, ok := c.items[memoryKey(question, topK)]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*lruEntry)
	// Expired entries are removed lazily on read.
	if c.ttl > 0 && c.now().After(e.expiration) {
		c.remove(el)
		return nil, false, nil
	}
	c.ll.MoveToFront(el)
	return e.value, true, nil
}

// Set drops the value when gen is no longer current.
func (c *MemoryAnswerCache) Set(_ context.Context, gen int64, question string, topK int, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return nil
	}
	key := memoryKey(question, topK)
	expiration := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*lruEntry)
		e.value = value
		e.expiration = expiration
		c.ll.MoveToFront(el)
		return nil
	}

	c.items[key] = c.ll.PushFront(&lruEntry{key: key, value: value, expiration: expiration})
	for c.ll.Len() > c.capacity {
		c.remove(c.ll.Back())
	}
	return nil
}

func (c *MemoryAnswerCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	return nil
}

// Len returns the number of cached answers, expired ones included.
func (c *MemoryAnswerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// remove assumes c.mu is held.
func (c *MemoryAnswerCache) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*lruEntry).key)
}

func memoryKey(question string, topK int) string {
	return fmt.Sprintf("%d:%s", topK, question)
}
