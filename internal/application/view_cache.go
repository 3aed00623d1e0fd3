package application

import (
	"sync"
	"time"
)

// viewCache keeps recently read ledger views so that dashboards polling the
// same view do not hit the store on every request. The ledger invalidates it
// on every append and clear. Each invalidation starts a new generation, and a
// view loaded under an older generation is never stored.
type viewCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	generation uint64
	entries    map[string]viewCacheEntry
}

type viewCacheEntry struct {
	events    []SwipeEvent
	expiresAt time.Time
}

func newViewCache(ttl time.Duration, maxEntries int, now func() time.Time) *viewCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 64
	}
	if now == nil {
		now = time.Now
	}
	return &viewCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]viewCacheEntry),
	}
}

func (c *viewCache) Get(key string) ([]SwipeEvent, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneEvents(entry.events), true
}

// Generation returns the token a reader takes before loading a view.
func (c *viewCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *viewCache) Store(key string, events []SwipeEvent) {
	c.StoreFrom(c.Generation(), key, events)
}

// StoreFrom caches events loaded under generation. It reports false and keeps
// nothing when an invalidation happened since.
func (c *viewCache) StoreFrom(generation uint64, key string, events []SwipeEvent) bool {
	if c == nil {
		return false
	}
	cloned := cloneEvents(events)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = viewCacheEntry{events: cloned, expiresAt: expiry}
	return true
}

func (c *viewCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.generation++
	c.entries = make(map[string]viewCacheEntry)
	c.mu.Unlock()
}

func (c *viewCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *viewCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

// cloneEvents copies the slice. Pointer fields are shared; events are never
// mutated after they are stored.
func cloneEvents(events []SwipeEvent) []SwipeEvent {
	if events == nil {
		return nil
	}
	out := make([]SwipeEvent, len(events))
	copy(out, events)
	return out
}

func viewCacheKey(view, param string) string {
	return view + "|" + param
}
