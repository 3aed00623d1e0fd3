package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Row limits of the ledger read views.
const (
	RecentLimit        = 50
	ActionLimit        = 100
	TerminalLimit      = 200
	StatsSessionWindow = 500
)

// LedgerEventKind tells subscribers what changed.
type LedgerEventKind string

const (
	LedgerSwipeRecorded LedgerEventKind = "swipe_recorded"
	LedgerCleared       LedgerEventKind = "ledger_cleared"
)

// LedgerEvent is delivered to subscribers after a ledger write commits.
type LedgerEvent struct {
	Kind    LedgerEventKind
	Event   *SwipeEvent
	Removed int64
}

// LedgerListener receives ledger events on the writer's goroutine and must
// return quickly.
type LedgerListener func(ctx context.Context, event LedgerEvent)

type ledgerSubscription struct {
	id       uint64
	listener LedgerListener
}

// Ledger is the append-only swipe log with its read views and subscribers.
type Ledger struct {
	repo   SwipeEventRepository
	cache  *viewCache
	logger *slog.Logger

	mu          sync.RWMutex
	nextID      uint64
	subscribers []ledgerSubscription
}

// NewLedger constructs a ledger over repo.
func NewLedger(repo SwipeEventRepository) *Ledger {
	return NewLedgerWithLogger(repo, nil)
}

// NewLedgerWithLogger constructs a ledger with a specified logger.
func NewLedgerWithLogger(repo SwipeEventRepository, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		cache:  newViewCache(2*time.Second, 64, time.Now),
		logger: defaultLogger(logger),
	}
}

// DisableViewCache makes every read view go to the store. Call it before the
// ledger serves reads, for deployments where other instances append to the
// same store.
func (l *Ledger) DisableViewCache() *Ledger {
	if l != nil {
		l.cache = nil
	}
	return l
}

func (l *Ledger) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, l.logger, "Ledger", operation, attrs...)
}

// Subscribe registers listener and returns a function that removes it.
func (l *Ledger) Subscribe(listener LedgerListener) (unsubscribe func()) {
	if l == nil || listener == nil {
		return func() {}
	}
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subscribers = append(l.subscribers, ledgerSubscription{id: id, listener: listener})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, sub := range l.subscribers {
				if sub.id == id {
					l.subscribers = append(l.subscribers[:i:i], l.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *Ledger) publish(ctx context.Context, event LedgerEvent) {
	l.mu.RLock()
	subscribers := make([]ledgerSubscription, len(l.subscribers))
	copy(subscribers, l.subscribers)
	l.mu.RUnlock()

	for _, sub := range subscribers {
		l.notify(ctx, sub, event)
	}
}

func (l *Ledger) notify(ctx context.Context, sub ledgerSubscription, event LedgerEvent) {
	defer func() {
		if recovered := recover(); recovered != nil {
			l.loggerWith(ctx, "publish", "subscriber", sub.id, "kind", event.Kind).
				ErrorContext(ctx, "ledger subscriber panicked", "panic", fmt.Sprint(recovered))
		}
	}()
	sub.listener(ctx, event)
}

// Append stores event and notifies subscribers once the write has committed.
func (l *Ledger) Append(ctx context.Context, event SwipeEvent) (stored SwipeEvent, err error) {
	if l == nil || l.repo == nil {
		err = fmt.Errorf("ledger not configured")
		return
	}

	logger := l.loggerWith(ctx, "Append", "terminal_id", event.TerminalID, "action", event.Action)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to append swipe event", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	stored, err = l.repo.AppendSwipeEvent(ctx, event)
	if err != nil {
		err = fmt.Errorf("append swipe event: %w", err)
		return
	}
	l.cache.Invalidate()

	published := stored
	l.publish(ctx, LedgerEvent{Kind: LedgerSwipeRecorded, Event: &published})
	return
}

// Recent returns the newest rows.
func (l *Ledger) Recent(ctx context.Context) ([]SwipeEvent, error) {
	return l.view(ctx, "recent", "", func() ([]SwipeEvent, error) {
		return l.repo.ListRecentSwipeEvents(ctx, RecentLimit)
	})
}

// ByAction returns the newest rows whose action matches case-insensitively.
func (l *Ledger) ByAction(ctx context.Context, action string) ([]SwipeEvent, error) {
	action = strings.TrimSpace(action)
	return l.view(ctx, "action", strings.ToUpper(action), func() ([]SwipeEvent, error) {
		return l.repo.ListSwipeEventsByAction(ctx, action, ActionLimit)
	})
}

// ByTerminal returns the newest rows reported by terminalID.
func (l *Ledger) ByTerminal(ctx context.Context, terminalID string) ([]SwipeEvent, error) {
	terminalID = strings.TrimSpace(terminalID)
	return l.view(ctx, "terminal", terminalID, func() ([]SwipeEvent, error) {
		return l.repo.ListSwipeEventsByTerminal(ctx, terminalID, TerminalLimit)
	})
}

func (l *Ledger) view(ctx context.Context, name, param string, load func() ([]SwipeEvent, error)) ([]SwipeEvent, error) {
	if l == nil || l.repo == nil {
		return nil, fmt.Errorf("ledger not configured")
	}
	key := viewCacheKey(name, param)
	if events, ok := l.cache.Get(key); ok {
		return events, nil
	}
	generation := l.cache.Generation()
	events, err := load()
	if err != nil {
		return nil, fmt.Errorf("list %s view: %w", name, err)
	}
	if events == nil {
		events = []SwipeEvent{}
	}
	l.cache.StoreFrom(generation, key, events)
	return events, nil
}

// Latest returns the newest row or ErrNotFound when the ledger is empty.
func (l *Ledger) Latest(ctx context.Context) (SwipeEvent, error) {
	if l == nil || l.repo == nil {
		return SwipeEvent{}, fmt.Errorf("ledger not configured")
	}
	event, err := l.repo.LatestSwipeEvent(ctx)
	if err != nil {
		if isNotFound(err) {
			return SwipeEvent{}, ErrNotFound
		}
		return SwipeEvent{}, fmt.Errorf("latest swipe event: %w", err)
	}
	return event, nil
}

// LatestForCard returns the newest row recorded for cardID, or nil.
func (l *Ledger) LatestForCard(ctx context.Context, cardID string) (*SwipeEvent, error) {
	if l == nil || l.repo == nil {
		return nil, fmt.Errorf("ledger not configured")
	}
	event, err := l.repo.LatestSwipeEventForCard(ctx, normalizeCardID(cardID))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest swipe event for card: %w", err)
	}
	return &event, nil
}

// Stats summarises the ledger.
func (l *Ledger) Stats(ctx context.Context) (LedgerStats, error) {
	if l == nil || l.repo == nil {
		return LedgerStats{}, fmt.Errorf("ledger not configured")
	}
	stats, err := l.repo.SwipeStats(ctx, StatsSessionWindow)
	if err != nil {
		return LedgerStats{}, fmt.Errorf("swipe stats: %w", err)
	}
	return stats, nil
}

// Clear deletes every row and returns how many were removed.
func (l *Ledger) Clear(ctx context.Context) (removed int64, err error) {
	if l == nil || l.repo == nil {
		err = fmt.Errorf("ledger not configured")
		return
	}

	logger := l.loggerWith(ctx, "Clear")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to clear ledger", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", removed).InfoContext(ctx, "ledger cleared")
	}()

	removed, err = l.repo.ClearSwipeEvents(ctx)
	if err != nil {
		err = fmt.Errorf("clear swipe events: %w", err)
		return
	}
	l.cache.Invalidate()
	l.publish(ctx, LedgerEvent{Kind: LedgerCleared, Removed: removed})
	return
}
