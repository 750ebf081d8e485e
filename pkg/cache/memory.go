package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// entry is a single cached value with its expiry deadline.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Memory is the in-process Cache backend. Entries carry individual expiry
// deadlines; a background goroutine sweeps expired entries so memory is
// reclaimed even for keys that are never read again.
type Memory[V any] struct {
	mu    sync.RWMutex
	items map[string]*entry[V]

	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxEntries      int

	stats   *statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]

	// Background cleanup coordination.
	shutdown chan struct{}
	done     chan struct{}
}

// NewMemory creates an in-memory cache and starts its cleanup goroutine.
// The goroutine stops when ctx is canceled or Close is called. Returns an
// error only if Prometheus metrics were requested and registration failed.
func NewMemory[V any](ctx context.Context, opts ...Option[V]) (*Memory[V], error) {
	o := applyOptions(opts...)

	var metrics *cacheMetrics
	if o.metricsReg != nil {
		m, err := newCacheMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewMemory", "metrics registration")
		}
		metrics = m
	}

	c := &Memory[V]{
		items:           make(map[string]*entry[V]),
		defaultTTL:      o.defaultTTL,
		cleanupInterval: o.cleanupInterval,
		maxEntries:      o.maxEntries,
		stats:           newStatistics(),
		metrics:         metrics,
		evictFn:         o.evictCallback,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}

	go c.cleanup(ctx)

	return c, nil
}

// Get retrieves a value by key. An entry past its expiry is removed and
// reported as a miss.
func (c *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V

	c.mu.RLock()
	e, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return zero, false, nil
	}

	if e.expired(time.Now()) {
		c.mu.Lock()
		// Double-check under the write lock: a concurrent Set may have
		// replaced the entry since the read lock was released.
		if current, still := c.items[key]; still && current.expired(time.Now()) {
			delete(c.items, key)
			c.stats.eviction()
			if c.metrics != nil {
				c.metrics.recordEviction()
				c.metrics.updateSize(len(c.items))
			}
			if c.evictFn != nil {
				defer c.evictFn(key, current.value)
			}
		}
		c.mu.Unlock()

		c.recordMiss()
		return zero, false, nil
	}

	c.stats.hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return e.value, true, nil
}

// Set stores value under key for ttl, replacing any existing entry. When the
// cache is at capacity, the entry closest to expiry is evicted to make room.
func (c *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	expiresAt := time.Now().Add(effectiveTTL(ttl, c.defaultTTL))

	var evictedKey string
	var evictedValue V
	var evicted bool

	c.mu.Lock()
	if c.maxEntries > 0 {
		if _, replacing := c.items[key]; !replacing && len(c.items) >= c.maxEntries {
			evictedKey, evictedValue, evicted = c.evictSoonestLocked()
		}
	}
	c.items[key] = &entry[V]{value: value, expiresAt: expiresAt}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.set()
	c.stats.observeSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}
	if evicted && c.evictFn != nil {
		c.evictFn(evictedKey, evictedValue)
	}
	return nil
}

// evictSoonestLocked removes the entry with the earliest expiry. Caller must
// hold the write lock.
func (c *Memory[V]) evictSoonestLocked() (string, V, bool) {
	var (
		victimKey string
		soonest   time.Time
		found     bool
	)
	for key, e := range c.items {
		if !found || e.expiresAt.Before(soonest) {
			victimKey, soonest, found = key, e.expiresAt, true
		}
	}
	if !found {
		var zero V
		return "", zero, false
	}

	victim := c.items[victimKey]
	delete(c.items, victimKey)
	c.stats.eviction()
	if c.metrics != nil {
		c.metrics.recordEviction()
	}
	return victimKey, victim.value, true
}

// Delete removes key if present.
func (c *Memory[V]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	_, exists := c.items[key]
	if exists {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.delete()
		if c.metrics != nil {
			c.metrics.recordDelete()
			c.metrics.updateSize(size)
		}
	}
	return nil
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns the number removed. Keys under other prefixes are untouched.
func (c *Memory[V]) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidKey, "cache", "InvalidatePrefix",
			"empty prefix would remove all entries, use Clear")
	}

	c.mu.Lock()
	removed := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			removed++
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if removed > 0 {
		c.stats.addDeletes(removed)
		if c.metrics != nil {
			c.metrics.recordDeletes(removed)
			c.metrics.updateSize(size)
		}
	}
	return removed, nil
}

// Clear removes every entry.
func (c *Memory[V]) Clear(_ context.Context) error {
	c.mu.Lock()
	c.items = make(map[string]*entry[V])
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.updateSize(0)
	}
	return nil
}

// Size reports the number of unexpired entries.
func (c *Memory[V]) Size() int {
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.items {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *Memory[V]) Stats() Stats {
	return c.stats.snapshot(c.Size())
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *Memory[V]) Close() error {
	select {
	case <-c.shutdown:
		// Already shutting down.
	default:
		close(c.shutdown)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("cache.Close: timeout waiting for cleanup goroutine")
	}
}

// cleanup periodically sweeps expired entries until ctx is canceled or the
// cache is closed.
func (c *Memory[V]) cleanup(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired deletes every expired entry, invoking the eviction callback
// outside the lock.
func (c *Memory[V]) removeExpired() {
	now := time.Now()

	type evicted struct {
		key   string
		value V
	}
	var victims []evicted

	c.mu.Lock()
	for key, e := range c.items {
		if e.expired(now) {
			victims = append(victims, evicted{key: key, value: e.value})
			delete(c.items, key)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if len(victims) > 0 {
		c.stats.addEvictions(len(victims))
		if c.metrics != nil {
			c.metrics.recordEvictions(len(victims))
			c.metrics.updateSize(size)
		}
	}
	if c.evictFn != nil {
		for _, v := range victims {
			c.evictFn(v.key, v.value)
		}
	}
}

// recordMiss tracks a miss in stats and, when enabled, metrics.
func (c *Memory[V]) recordMiss() {
	c.stats.miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
}
