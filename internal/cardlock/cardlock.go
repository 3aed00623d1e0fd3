// Package cardlock serializes card registry mutations per key. Keys are
// acquired in sorted order so that two callers locking overlapping key sets
// cannot deadlock.
package cardlock

import (
	"context"
	"sort"
	"sync"
)

// Locker acquires every key and returns a release function.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// CardKey returns the lock key of a card id.
func CardKey(cardID string) string { return "card:" + cardID }

// EmployeeKey returns the lock key of an employee id.
func EmployeeKey(employeeID string) string { return "employee:" + employeeID }

// Local is an in-process keyed mutex. Entries are reference counted and
// removed once no caller holds or waits for them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocal constructs an empty Local locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

// Lock implements Locker. It honours ctx cancellation while waiting.
func (l *Local) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalizeKeys(keys)
	acquired := make([]string, 0, len(ordered))

	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.release(acquired[i])
		}
	}

	for _, key := range ordered {
		if err := l.acquire(ctx, key); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *Local) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, e)
		return ctx.Err()
	}
}

func (l *Local) release(key string) {
	l.mu.Lock()
	e, ok := l.locks[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-e.ch
	l.drop(key, e)
}

func (l *Local) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Chain acquires every locker in order and releases them in reverse.
type Chain []Locker

// Lock implements Locker.
func (c Chain) Lock(ctx context.Context, keys ...string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, locker := range c {
		if locker == nil {
			continue
		}
		unlock, err := locker.Lock(ctx, keys...)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, unlock)
	}
	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
