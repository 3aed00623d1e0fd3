package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func appendEvents(t *testing.T, ledger *Ledger, events ...SwipeEvent) {
	t.Helper()
	for _, event := range events {
		if event.ReceivedAt.IsZero() {
			event.ReceivedAt = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
		}
		if _, err := ledger.Append(context.Background(), event); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
}

func TestLedger_Views(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &memorySwipeRepo{}
	ledger := NewLedger(repo)

	for i := 0; i < RecentLimit+5; i++ {
		action := "LOGIN"
		if i%2 == 1 {
			action = "logout"
		}
		appendEvents(t, ledger, SwipeEvent{TerminalID: fmt.Sprintf("T%d", i%3), Action: action, CardID: "CARD-1"})
	}

	recent, err := ledger.Recent(ctx)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != RecentLimit {
		t.Fatalf("expected %d recent events, got %d", RecentLimit, len(recent))
	}
	if recent[0].ID != int64(RecentLimit+5) {
		t.Fatalf("expected newest first, got id %d", recent[0].ID)
	}

	logouts, err := ledger.ByAction(ctx, "LOGOUT")
	if err != nil {
		t.Fatalf("ByAction failed: %v", err)
	}
	if len(logouts) != (RecentLimit+5)/2 {
		t.Fatalf("expected %d logouts, got %d", (RecentLimit+5)/2, len(logouts))
	}

	terminal, err := ledger.ByTerminal(ctx, "T0")
	if err != nil {
		t.Fatalf("ByTerminal failed: %v", err)
	}
	for _, event := range terminal {
		if event.TerminalID != "T0" {
			t.Fatalf("unexpected terminal %s", event.TerminalID)
		}
	}

	empty, err := ledger.ByTerminal(ctx, "T404")
	if err != nil {
		t.Fatalf("ByTerminal failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestLedger_ViewCacheInvalidatedOnAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &memorySwipeRepo{}
	ledger := NewLedger(repo)
	appendEvents(t, ledger, SwipeEvent{TerminalID: "T1", Action: "LOGIN"})

	if _, err := ledger.Recent(ctx); err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if _, err := ledger.Recent(ctx); err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected second read to be served from cache, got %d store reads", repo.listCalls)
	}

	appendEvents(t, ledger, SwipeEvent{TerminalID: "T1", Action: "LOGOUT"})
	recent, err := ledger.Recent(ctx)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected fresh view after append, got %d events", len(recent))
	}
}

// pausingSwipeRepo holds ListRecentSwipeEvents after it has taken its rows
// until release is closed.
type pausingSwipeRepo struct {
	*memorySwipeRepo
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *pausingSwipeRepo) ListRecentSwipeEvents(ctx context.Context, limit int) ([]SwipeEvent, error) {
	events, err := r.memorySwipeRepo.ListRecentSwipeEvents(ctx, limit)
	paused := false
	r.once.Do(func() { paused = true })
	if paused {
		close(r.loaded)
		<-r.release
	}
	return events, err
}

func TestLedger_ReadStartedBeforeAppendIsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &pausingSwipeRepo{
		memorySwipeRepo: &memorySwipeRepo{},
		loaded:          make(chan struct{}),
		release:         make(chan struct{}),
	}
	ledger := NewLedger(repo)

	slowRead := make(chan []SwipeEvent, 1)
	go func() {
		events, err := ledger.Recent(ctx)
		if err != nil {
			t.Errorf("Recent failed: %v", err)
		}
		slowRead <- events
	}()

	<-repo.loaded
	appendEvents(t, ledger, SwipeEvent{TerminalID: "T1", Action: "LOGIN"})
	close(repo.release)

	if events := <-slowRead; len(events) != 0 {
		t.Fatalf("expected the earlier read to see the empty ledger, got %d events", len(events))
	}

	recent, err := ledger.Recent(ctx)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected the committed append to be visible, got %d events", len(recent))
	}
}

func TestLedger_DisableViewCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &memorySwipeRepo{}
	ledger := NewLedger(repo).DisableViewCache()
	appendEvents(t, ledger, SwipeEvent{TerminalID: "T1", Action: "LOGIN"})

	for i := 0; i < 2; i++ {
		if _, err := ledger.Recent(ctx); err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
	}
	if repo.listCalls != 2 {
		t.Fatalf("expected every read to reach the store, got %d store reads", repo.listCalls)
	}
}

func TestLedger_LatestAndStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := NewLedger(&memorySwipeRepo{})

	if _, err := ledger.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty ledger, got %v", err)
	}
	if event, err := ledger.LatestForCard(ctx, "CARD-1"); err != nil || event != nil {
		t.Fatalf("expected nil event for unknown card, got %#v, %v", event, err)
	}
	stats, err := ledger.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 0 || stats.Latest != nil || stats.ActiveSessions != nil {
		t.Fatalf("unexpected empty stats: %#v", stats)
	}

	sessions := 4
	appendEvents(t, ledger,
		SwipeEvent{TerminalID: "T1", Action: "LOGIN", CardID: "CARD-1", ActiveSessions: &sessions},
		SwipeEvent{TerminalID: "T2", Action: "LOGOUT", CardID: "CARD-2"},
	)

	latest, err := ledger.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.TerminalID != "T2" {
		t.Fatalf("expected T2 to be latest, got %s", latest.TerminalID)
	}

	forCard, err := ledger.LatestForCard(ctx, " CARD-1 ")
	if err != nil || forCard == nil || forCard.TerminalID != "T1" {
		t.Fatalf("expected CARD-1 event from T1, got %#v, %v", forCard, err)
	}

	stats, err = ledger.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 2 || stats.ActiveSessions == nil || *stats.ActiveSessions != 4 || stats.Latest.Action != "LOGOUT" {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestLedger_SubscribersAndClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := NewLedger(&memorySwipeRepo{})

	var order []string
	ledger.Subscribe(func(ctx context.Context, event LedgerEvent) {
		order = append(order, "first:"+string(event.Kind))
	})
	ledger.Subscribe(func(ctx context.Context, event LedgerEvent) {
		panic("subscriber failure")
	})
	unsubscribe := ledger.Subscribe(func(ctx context.Context, event LedgerEvent) {
		order = append(order, "third:"+string(event.Kind))
	})

	appendEvents(t, ledger, SwipeEvent{TerminalID: "T1"}, SwipeEvent{TerminalID: "T2"})
	unsubscribe()
	unsubscribe()

	removed, err := ledger.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed rows, got %d", removed)
	}

	want := []string{
		"first:swipe_recorded", "third:swipe_recorded",
		"first:swipe_recorded", "third:swipe_recorded",
		"first:ledger_cleared",
	}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("unexpected notification order:\n got %v\nwant %v", order, want)
	}

	recent, err := ledger.Recent(ctx)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected empty ledger after clear, got %d events", len(recent))
	}
}

func TestLedger_AppendFailureDoesNotNotify(t *testing.T) {
	t.Parallel()

	repo := &memorySwipeRepo{appendErr: errStoreUnavailable}
	ledger := NewLedger(repo)

	notified := false
	ledger.Subscribe(func(ctx context.Context, event LedgerEvent) { notified = true })

	if _, err := ledger.Append(context.Background(), SwipeEvent{TerminalID: "T1", ReceivedAt: time.Now()}); !errors.Is(err, errStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
	if notified {
		t.Fatalf("subscribers must not see failed writes")
	}
}
