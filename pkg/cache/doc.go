// Package cache provides generic, thread-safe result caches with per-entry
// TTLs, prefix invalidation, built-in statistics, and optional Prometheus
// metrics integration.
//
// # Overview
//
// Two backends implement the same Cache interface:
//   - Memory: in-process map with a background expiry sweep
//   - Redis: distributed cache with server-side expiry
//
// Callers use the cache-aside pattern: look up first, compute on miss, then
// Set the computed value with a TTL. The cache never computes values. A read
// past an entry's TTL is a miss, never a stale hit, so swapping backends
// changes latency and sharing, not semantics.
//
// # Quick Start
//
// In-memory cache:
//
//	c, err := cache.NewMemory[[]ticket.KnowledgeResult](ctx,
//		cache.WithDefaultTTL[[]ticket.KnowledgeResult](5*time.Minute),
//	)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	results, ok, err := c.Get(ctx, key)
//	if err != nil || !ok {
//		results = compute()
//		_ = c.Set(ctx, key, results, 0) // 0 selects the default TTL
//	}
//
// Redis-backed cache with the same value type:
//
//	client := redis.NewClient(&redis.Options{Addr: addr})
//	c, err := cache.NewRedis[[]ticket.KnowledgeResult](client, "knowledge")
//
// # Keys and Invalidation
//
// Fingerprint normalizes key parts (lowercase, collapsed whitespace) and
// joins them with ':'. Keying by category first makes the category the
// invalidation prefix:
//
//	key := cache.Fingerprint("knowledge", category, query)
//	// later, when knowledge for the category changes:
//	n, err := c.InvalidatePrefix(ctx, cache.Fingerprint("knowledge", category)+":")
//
// Entries under other prefixes are untouched by invalidation.
//
// # Observability
//
// Statistics are always collected and returned by Stats. Passing WithMetrics
// additionally exports them as Prometheus metrics labeled by component.
package cache
