package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// testBasicOperations exercises get/set/overwrite/delete against any backend.
func testBasicOperations(t *testing.T, c Cache[string]) {
	t.Helper()
	ctx := context.Background()

	if value, ok, err := c.Get(ctx, "key1"); err != nil || ok {
		t.Errorf("Expected clean miss, got value=%q ok=%t err=%v", value, ok, err)
	}

	if err := c.Set(ctx, "key1", "value1", time.Minute); err != nil {
		t.Fatalf("Unexpected error setting key: %v", err)
	}
	if value, ok, err := c.Get(ctx, "key1"); err != nil || !ok || value != "value1" {
		t.Errorf("Expected 'value1', got value=%q ok=%t err=%v", value, ok, err)
	}

	// Overwrite replaces the value.
	if err := c.Set(ctx, "key1", "value1_updated", time.Minute); err != nil {
		t.Fatalf("Unexpected error updating key: %v", err)
	}
	if value, ok, _ := c.Get(ctx, "key1"); !ok || value != "value1_updated" {
		t.Errorf("Expected 'value1_updated', got value=%q ok=%t", value, ok)
	}

	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Unexpected error deleting key: %v", err)
	}
	if value, ok, _ := c.Get(ctx, "key1"); ok {
		t.Errorf("Expected miss after deletion, got value=%q", value)
	}

	// Deleting an absent key is not an error.
	if err := c.Delete(ctx, "key1"); err != nil {
		t.Errorf("Unexpected error deleting absent key: %v", err)
	}
}

// testPrefixInvalidation verifies only the targeted prefix is removed.
func testPrefixInvalidation(t *testing.T, c Cache[string]) {
	t.Helper()
	ctx := context.Background()

	entries := map[string]string{
		"knowledge:network:vpn":   "a",
		"knowledge:network:dns":   "b",
		"knowledge:software:mail": "c",
		"triage:network:vpn":      "d",
	}
	for key, value := range entries {
		if err := c.Set(ctx, key, value, time.Minute); err != nil {
			t.Fatalf("Unexpected error setting %q: %v", key, err)
		}
	}

	removed, err := c.InvalidatePrefix(ctx, "knowledge:network:")
	if err != nil {
		t.Fatalf("Unexpected error invalidating prefix: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removals, got %d", removed)
	}

	for _, gone := range []string{"knowledge:network:vpn", "knowledge:network:dns"} {
		if _, ok, _ := c.Get(ctx, gone); ok {
			t.Errorf("Expected %q to be invalidated", gone)
		}
	}
	for _, kept := range []string{"knowledge:software:mail", "triage:network:vpn"} {
		if _, ok, _ := c.Get(ctx, kept); !ok {
			t.Errorf("Expected %q to survive invalidation", kept)
		}
	}

	// Empty prefix is rejected rather than wiping the cache.
	if _, err := c.InvalidatePrefix(ctx, ""); !errors.IsInvalid(err) {
		t.Errorf("Expected invalid-classified error for empty prefix, got %v", err)
	}
	if _, ok, _ := c.Get(ctx, "triage:network:vpn"); !ok {
		t.Error("Rejected invalidation must not remove entries")
	}
}

// testClearOperation verifies Clear empties the cache.
func testClearOperation(t *testing.T, c Cache[string]) {
	t.Helper()
	ctx := context.Background()

	for i := range 5 {
		key := fmt.Sprintf("key%d", i)
		if err := c.Set(ctx, key, "value", time.Minute); err != nil {
			t.Fatalf("Unexpected error setting %q: %v", key, err)
		}
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Unexpected error clearing cache: %v", err)
	}
	if size := c.Size(); size != 0 {
		t.Errorf("Expected size 0 after clear, got %d", size)
	}
}

// testStatsTracking verifies hit/miss/set counters advance.
func testStatsTracking(t *testing.T, c Cache[string]) {
	t.Helper()
	ctx := context.Background()

	_ = c.Set(ctx, "stats:key", "value", time.Minute)
	_, _, _ = c.Get(ctx, "stats:key")
	_, _, _ = c.Get(ctx, "stats:absent")

	stats := c.Stats()
	if stats.Sets < 1 {
		t.Errorf("Expected at least 1 set, got %d", stats.Sets)
	}
	if stats.Hits < 1 {
		t.Errorf("Expected at least 1 hit, got %d", stats.Hits)
	}
	if stats.Misses < 1 {
		t.Errorf("Expected at least 1 miss, got %d", stats.Misses)
	}
	if stats.HitRatio <= 0 || stats.HitRatio >= 1 {
		t.Errorf("Expected hit ratio in (0,1), got %f", stats.HitRatio)
	}
}

// testInvalidKeys verifies both backends reject malformed keys.
func testInvalidKeys(t *testing.T, c Cache[string]) {
	t.Helper()
	ctx := context.Background()

	for _, key := range []string{"", "has space", "has\ttab", "has\nnewline"} {
		if err := c.Set(ctx, key, "value", time.Minute); !errors.IsInvalid(err) {
			t.Errorf("Expected invalid-classified error for key %q, got %v", key, err)
		}
	}
}
