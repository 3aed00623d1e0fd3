package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// Queue bounds the number of messages waiting to be published.
	Queue   int
	Timeout time.Duration
	Logger  *slog.Logger
}

// RedisPublisher forwards messages to a Redis channel from a background
// goroutine so that ledger writers never wait on the network.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
	logger  *slog.Logger

	queue     chan Message
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewRedisPublisher constructs a publisher with its own client.
func NewRedisPublisher(cfg RedisConfig) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisPublisherWithClient(client, cfg)
}

// NewRedisPublisherWithClient constructs a publisher around an existing client.
func NewRedisPublisherWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisPublisher {
	if cfg.Channel == "" {
		cfg.Channel = "access-compliance:ledger"
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &RedisPublisher{
		client:  client,
		channel: cfg.Channel,
		timeout: cfg.Timeout,
		logger:  cfg.Logger.With("component", "feed_redis", "channel", cfg.Channel),
		queue:   make(chan Message, cfg.Queue),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues msg. When the queue is full the message is dropped.
func (p *RedisPublisher) Publish(ctx context.Context, msg Message) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		p.logger.WarnContext(ctx, "redis feed queue full, dropping message", "kind", msg.Kind)
	}
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.client.Publish(ctx, p.channel, msg.Data).Err()
		cancel()
		if err != nil {
			p.failed.Add(1)
			p.logger.Warn("failed to publish ledger event", "kind", msg.Kind, "error", err)
			continue
		}
		p.published.Add(1)
	}
}

// Stats reports published, failed and dropped counts.
func (p *RedisPublisher) Stats() (published, failed, dropped int64) {
	return p.published.Load(), p.failed.Load(), p.dropped.Load()
}

// Close drains the queue and closes the client.
func (p *RedisPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		<-p.done
		err = p.client.Close()
	})
	return err
}
