// Package feed fans ledger events out to live consumers: server-sent event
// clients of the HTTP API and, when configured, a Redis channel.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Message is one encoded ledger event.
type Message struct {
	ID   uint64
	Kind string
	Data []byte
}

// Sink receives encoded ledger events. Publish must not block on slow consumers.
type Sink interface {
	Publish(ctx context.Context, msg Message)
}

// HubConfig configures a Hub.
type HubConfig struct {
	// Buffer is the per-client queue length. Messages for a full queue are dropped.
	Buffer    int
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// Hub broadcasts messages to connected SSE clients.
type Hub struct {
	mu         sync.Mutex
	clients    map[uint64]chan Message
	nextClient uint64
	seq        uint64
	closed     bool

	dropped   atomic.Int64
	buffer    int
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewHub constructs a Hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 32
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 25 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hub{
		clients:   make(map[uint64]chan Message),
		buffer:    cfg.Buffer,
		heartbeat: cfg.Heartbeat,
		logger:    cfg.Logger.With("component", "feed_hub"),
	}
}

// Publish stamps msg with the next sequence number and queues it for every
// client. Clients receive IDs in increasing order.
func (h *Hub) Publish(ctx context.Context, msg Message) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	msg.ID = h.seq
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.dropped.Add(1)
			h.logger.DebugContext(ctx, "dropping message for slow client", "client", id, "message_id", msg.ID)
		}
	}
}

// Subscribe registers a client. The channel is closed by the returned cancel
// function or when the hub closes.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.nextClient++
	id := h.nextClient
	h.clients[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if current, ok := h.clients[id]; ok {
				delete(h.clients, id)
				close(current)
			}
		})
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped reports how many client deliveries were skipped.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}

// ServeHTTP streams messages as server-sent events until the client leaves or
// the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	messages, cancel := h.Subscribe()
	defer cancel()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-messages:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", msg.ID, msg.Kind, msg.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
