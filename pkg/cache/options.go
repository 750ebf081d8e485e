package cache

import (
	"log/slog"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
)

// Option configures a cache backend using the functional options pattern.
type Option[V any] func(*options[V])

// options holds configuration shared by the backends. Stats are always
// collected; Prometheus export is opt-in via WithMetrics.
type options[V any] struct {
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxEntries      int

	logger *slog.Logger

	// metricsReg, when set, additionally exposes counters as Prometheus
	// metrics labeled with metricsPrefix.
	metricsReg    *metric.Registry
	metricsPrefix string

	evictCallback EvictCallback[V]
}

// WithDefaultTTL sets the expiry applied when Set is called with a
// non-positive TTL. Ignored if ttl <= 0.
func WithDefaultTTL[V any](ttl time.Duration) Option[V] {
	return func(o *options[V]) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithCleanupInterval sets how often the in-memory backend sweeps expired
// entries. Ignored if interval <= 0 and by the Redis backend, which relies
// on server-side expiry.
func WithCleanupInterval[V any](interval time.Duration) Option[V] {
	return func(o *options[V]) {
		if interval > 0 {
			o.cleanupInterval = interval
		}
	}
}

// WithMaxEntries bounds the in-memory backend. When a Set would exceed the
// bound, the entry closest to expiry is evicted first. Zero means unbounded.
func WithMaxEntries[V any](n int) Option[V] {
	return func(o *options[V]) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithLogger sets the structured logger for background activity. Defaults
// to slog.Default.
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(o *options[V]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exposes cache statistics as Prometheus metrics labeled with
// prefix. Ignored when registry is nil or prefix is empty.
func WithMetrics[V any](registry *metric.Registry, prefix string) Option[V] {
	return func(o *options[V]) {
		if registry != nil && prefix != "" {
			o.metricsReg = registry
			o.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback registers a callback invoked with each evicted entry.
// Callbacks run outside the cache lock.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(o *options[V]) {
		o.evictCallback = callback
	}
}

// applyOptions resolves functional options against defaults.
func applyOptions[V any](opts ...Option[V]) *options[V] {
	o := &options[V]{
		defaultTTL:      DefaultTTL,
		cleanupInterval: DefaultCleanupInterval,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
