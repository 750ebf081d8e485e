package cache

import (
	"context"
	"strings"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// Default tuning values shared by both backends.
const (
	// DefaultTTL is applied when Set is called with a non-positive TTL.
	DefaultTTL = 5 * time.Minute

	// DefaultCleanupInterval is how often the in-memory backend sweeps
	// expired entries.
	DefaultCleanupInterval = time.Minute
)

// Cache stores computed values under string keys with per-entry expiry.
// All implementations are safe for concurrent use. A value read after its
// TTL has elapsed is a miss, never a stale hit.
type Cache[V any] interface {
	// Get returns the value for key and whether it was present and fresh.
	// Expired entries are treated as absent. The error reports backend
	// failures, not misses.
	Get(ctx context.Context, key string) (V, bool, error)

	// Set stores value under key for ttl. A non-positive ttl selects the
	// backend's default. Setting an existing key replaces the value and
	// restarts its expiry.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes key if present. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// InvalidatePrefix removes every entry whose key starts with prefix and
	// reports how many were removed. Entries under other prefixes are
	// untouched.
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	// Size reports the number of live entries.
	Size() int

	// Stats returns a snapshot of hit/miss counters since creation.
	Stats() Stats

	// Close releases backend resources. The cache must not be used after.
	Close() error
}

// EvictCallback is invoked after an entry is evicted, with the evicted key
// and value. Callbacks run outside the cache lock.
type EvictCallback[V any] func(key string, value V)

// validateKey rejects keys that cannot round-trip through both backends.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidKey, "cache", "validateKey", "key cannot be empty")
	}
	if strings.ContainsAny(key, " \t\n\r") {
		return errors.WrapInvalid(errors.ErrInvalidKey, "cache", "validateKey", "key contains whitespace")
	}
	return nil
}

// effectiveTTL resolves the caller's ttl against a configured default.
func effectiveTTL(ttl, fallback time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTTL
}
