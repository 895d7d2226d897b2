// Package cache provides the tool-call cache: a small Backend interface
// with an in-memory LRU implementation and a Redis-backed one, selected at
// startup the way the Python originals' get_cache() factory picks between
// InMemoryLRUCache and RedisCache based on CACHE_BACKEND. Only read-only,
// explicitly cacheable tools are ever routed through this.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Backend is the pluggable cache surface the registry's dispatch pipeline
// depends on.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// LRU is an in-memory, size-bounded, TTL-aware cache, modeled on the
// Python InMemoryLRUCache (OrderedDict + move-to-end on access) but built
// on container/list the way Go code typically implements an LRU.
type LRU struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List // front = most recently used
}

// NewLRU creates an in-memory cache bounded to maxSize entries.
func NewLRU(maxSize int) *LRU {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LRU{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*entry)
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.evict(el)
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	return e.value, true, nil
}

func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return nil
	}

	el := c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el
	c.evictIfNeeded()
	return nil
}

func (c *LRU) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.evict(el)
	}
	return nil
}

// evict removes el; caller must hold the lock.
func (c *LRU) evict(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

func (c *LRU) evictIfNeeded() {
	for c.order.Len() > c.maxSize {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.evict(back)
	}
}

// GetJSON unmarshals a cached value into dest.
func GetJSON(ctx context.Context, b Backend, key string, dest any) (bool, error) {
	raw, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals value and stores it under key with ttl.
func SetJSON(ctx context.Context, b Backend, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Set(ctx, key, raw, ttl)
}

// BuildToolCacheKey reproduces the GitHub bundle's build_tool_cache_key:
// server name, tool name, and a stable encoding of the arguments.
func BuildToolCacheKey(server, tool string, args map[string]any) string {
	raw, _ := json.Marshal(args)
	return server + ":" + tool + ":" + string(raw)
}
