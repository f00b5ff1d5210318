// Package reqcache provides a TTL cache with single-flight request coalescing
// for read paths such as per-tenant configuration lookups.
//
// A Cache is an explicit object, not a process-wide singleton: construct one
// per session or tenant context and Clear it on logout or tenant switch.
// It must never be used to deduplicate writes.
package reqcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Producer computes the value for a key.
type Producer[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value    V
	cachedAt time.Time
}

// Cache maps string keys to values of type V.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	group   singleflight.Group
	// running counts producer executions in flight per key.
	running map[string]int
	// generations is bumped per key by every invalidation of that key and
	// epoch by Clear. A computation that started under older counters
	// delivers its result to its waiters but is not stored.
	generations map[string]uint64
	epoch       uint64
	// afterMiss runs between a miss and joining the flight, for tests.
	afterMiss func(key string)
	now       func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces time.Now, for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates an empty cache.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries:     make(map[string]entry[V]),
		running:     make(map[string]int),
		generations: make(map[string]uint64),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached value for key if it is younger than ttl.
// Otherwise it runs producer, coalescing concurrent callers for the same key
// onto a single execution. Successful results are cached; failures are not,
// and every caller that joined the failed computation receives the same error.
//
// The shared computation is detached from the cancellation of any single
// caller; a caller whose ctx ends stops waiting and gets ctx.Err().
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer Producer[V]) (V, error) {
	if v, ok := c.fresh(key, ttl); ok {
		return v, nil
	}
	if c.afterMiss != nil {
		c.afterMiss(key)
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished after our miss may already have stored key
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.isFresh(e, ttl) {
			c.mu.Unlock()
			return e.value, nil
		}
		gen, epoch := c.generations[key], c.epoch
		c.running[key]++
		c.mu.Unlock()

		v, err := producer(shared)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.running[key] <= 1 {
			delete(c.running, key)
		} else {
			c.running[key]--
		}
		if err != nil {
			return v, err
		}
		if c.generations[key] == gen && c.epoch == epoch {
			c.entries[key] = entry[V]{value: v, cachedAt: c.now()}
		}
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// fresh returns the stored value for key if it is younger than ttl and drops
// it otherwise.
func (c *Cache[V]) fresh(key string, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.isFresh(e, ttl) {
		return e.value, true
	}
	delete(c.entries, key)
	return zero, false
}

func (c *Cache[V]) isFresh(e entry[V], ttl time.Duration) bool {
	return ttl > 0 && c.now().Sub(e.cachedAt) < ttl
}

// Get returns a fresh cached value without computing anything.
func (c *Cache[V]) Get(key string, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok || !c.isFresh(e, ttl) {
		return zero, false
	}
	return e.value, true
}

// Invalidate drops key. An in-flight computation for key is detached so the
// next caller starts a fresh one. Other keys are unaffected.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.generations[key]++
	c.mu.Unlock()
	c.group.Forget(key)
}

// InvalidatePrefix drops every key starting with prefix (e.g. one tenant's keys).
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	var keys []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			delete(c.entries, k)
		}
	}
	for k := range c.running {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		c.generations[k]++
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k)
	}
}

// Clear drops every entry. Results of computations still in flight are not stored.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries)+len(c.running))
	for k := range c.entries {
		keys = append(keys, k)
	}
	for k := range c.running {
		keys = append(keys, k)
	}
	c.entries = make(map[string]entry[V])
	c.generations = make(map[string]uint64)
	c.epoch++
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
