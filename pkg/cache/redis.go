package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// scanBatch is the COUNT hint for SCAN iterations and the DEL batch size.
const scanBatch = 128

// Redis is the distributed Cache backend. Values are JSON-encoded and
// per-entry TTLs map to server-side expiry, so entries disappear without a
// client-side sweep. All keys live under a namespace prefix; Clear and
// InvalidatePrefix only ever touch that namespace.
type Redis[V any] struct {
	client     redis.UniversalClient
	namespace  string
	defaultTTL time.Duration

	stats   *statistics
	metrics *cacheMetrics
}

// NewRedis creates a Redis-backed cache under the given namespace. The cache
// takes ownership of client: Close closes it. Returns an error if namespace
// is empty or metrics registration fails.
func NewRedis[V any](client redis.UniversalClient, namespace string, opts ...Option[V]) (*Redis[V], error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewRedis", "nil client")
	}
	if err := validateKey(namespace); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewRedis", "invalid namespace")
	}

	o := applyOptions(opts...)

	var metrics *cacheMetrics
	if o.metricsReg != nil {
		m, err := newCacheMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewRedis", "metrics registration")
		}
		metrics = m
	}

	return &Redis[V]{
		client:     client,
		namespace:  namespace,
		defaultTTL: o.defaultTTL,
		stats:      newStatistics(),
		metrics:    metrics,
	}, nil
}

// key prepends the namespace so unrelated caches can share one Redis.
func (c *Redis[V]) key(key string) string {
	return c.namespace + ":" + key
}

// Get retrieves and decodes the value for key. Entries Redis has expired are
// plain misses. A corrupt entry is removed and reported as an error so the
// caller recomputes.
func (c *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		c.stats.miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
		return zero, false, nil
	}
	if err != nil {
		return zero, false, errors.WrapTransient(err, "cache", "Get", "redis get failed")
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		_ = c.client.Del(ctx, c.key(key)).Err()
		return zero, false, errors.WrapInvalid(err, "cache", "Get", "corrupt entry removed")
	}

	c.stats.hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return value, true, nil
}

// Set JSON-encodes value and stores it with server-side expiry.
func (c *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.WrapInvalid(err, "cache", "Set", "value not JSON-encodable")
	}

	if err := c.client.Set(ctx, c.key(key), data, effectiveTTL(ttl, c.defaultTTL)).Err(); err != nil {
		return errors.WrapTransient(err, "cache", "Set", "redis set failed")
	}

	c.stats.set()
	if c.metrics != nil {
		c.metrics.recordSet()
	}
	return nil
}

// Delete removes key if present.
func (c *Redis[V]) Delete(ctx context.Context, key string) error {
	n, err := c.client.Del(ctx, c.key(key)).Result()
	if err != nil {
		return errors.WrapTransient(err, "cache", "Delete", "redis del failed")
	}
	if n > 0 {
		c.stats.delete()
		if c.metrics != nil {
			c.metrics.recordDelete()
		}
	}
	return nil
}

// InvalidatePrefix removes every key in the namespace that starts with
// prefix, scanning incrementally so concurrent writers under unrelated
// prefixes are never blocked. Returns the number of keys removed.
func (c *Redis[V]) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidKey, "cache", "InvalidatePrefix",
			"empty prefix would remove all entries, use Clear")
	}
	return c.deleteMatching(ctx, escapeMatch(c.key(prefix))+"*")
}

// Clear removes every key in the namespace. Other namespaces sharing the
// Redis are untouched.
func (c *Redis[V]) Clear(ctx context.Context) error {
	_, err := c.deleteMatching(ctx, escapeMatch(c.namespace)+":*")
	return err
}

// deleteMatching scans for pattern and deletes matches in batches.
func (c *Redis[V]) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	removed := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, errors.WrapTransient(err, "cache", "deleteMatching", "redis scan failed")
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, errors.WrapTransient(err, "cache", "deleteMatching", "redis del failed")
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		c.stats.addDeletes(removed)
		if c.metrics != nil {
			c.metrics.recordDeletes(removed)
		}
	}
	return removed, nil
}

// Size counts keys in the namespace with a full SCAN. It is advisory: an
// unreachable Redis reports zero.
func (c *Redis[V]) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pattern := escapeMatch(c.namespace) + ":*"
	var cursor uint64
	count := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return 0
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Redis[V]) Stats() Stats {
	return c.stats.snapshot(c.Size())
}

// Close closes the owned Redis client.
func (c *Redis[V]) Close() error {
	return c.client.Close()
}

// escapeMatch escapes SCAN MATCH glob characters so prefixes are matched
// literally.
func escapeMatch(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
