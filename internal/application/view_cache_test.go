package application

import (
	"testing"
	"time"
)

func TestViewCacheStoresAndReturnsCopies(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newViewCache(time.Minute, 4, func() time.Time { return current })

	original := []SwipeEvent{{ID: 1, TerminalID: "T1"}}
	cache.Store("recent|", original)

	original[0].TerminalID = "mutated"

	cached, ok := cache.Get("recent|")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].TerminalID != "T1" {
		t.Fatalf("expected cached terminal to remain unchanged, got %s", cached[0].TerminalID)
	}

	cached[0].TerminalID = "changed"
	cachedAgain, ok := cache.Get("recent|")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if cachedAgain[0].TerminalID != "T1" {
		t.Fatalf("expected cache to return independent copy, got %s", cachedAgain[0].TerminalID)
	}
}

func TestViewCacheKeepsEmptyViews(t *testing.T) {
	cache := newViewCache(time.Minute, 4, time.Now)
	cache.Store("terminal|T9", []SwipeEvent{})

	cached, ok := cache.Get("terminal|T9")
	if !ok {
		t.Fatalf("expected empty view to be cached")
	}
	if cached == nil || len(cached) != 0 {
		t.Fatalf("expected non-nil empty slice, got %#v", cached)
	}
}

func TestViewCacheExpiresEntries(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newViewCache(time.Second, 4, func() time.Time { return current })

	cache.Store("key", []SwipeEvent{{ID: 1}})
	if _, ok := cache.Get("key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestViewCacheEvictsWhenFull(t *testing.T) {
	cache := newViewCache(time.Minute, 2, time.Now)
	cache.Store("a", nil)
	cache.Store("b", nil)
	cache.Store("c", nil)

	cache.mu.RLock()
	size := len(cache.entries)
	cache.mu.RUnlock()
	if size != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", size)
	}
	if _, ok := cache.Get("c"); !ok {
		t.Fatalf("expected newest entry to be present")
	}
}

func TestViewCacheInvalidate(t *testing.T) {
	cache := newViewCache(time.Minute, 4, time.Now)
	cache.Store("key", []SwipeEvent{{ID: 1}})
	cache.Invalidate()
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}

func TestViewCacheDropsViewsLoadedBeforeInvalidate(t *testing.T) {
	cache := newViewCache(time.Minute, 4, time.Now)
	generation := cache.Generation()
	cache.Invalidate()

	if cache.StoreFrom(generation, "recent|", []SwipeEvent{{ID: 1}}) {
		t.Fatalf("expected a view from an older generation to be rejected")
	}
	if _, ok := cache.Get("recent|"); ok {
		t.Fatalf("expected nothing cached for an older generation")
	}
	if !cache.StoreFrom(cache.Generation(), "recent|", []SwipeEvent{{ID: 2}}) {
		t.Fatalf("expected a view from the current generation to be stored")
	}
}

func TestViewCacheKeySeparatesViews(t *testing.T) {
	if viewCacheKey("action", "T1") == viewCacheKey("terminal", "T1") {
		t.Fatalf("expected distinct keys per view")
	}
}
