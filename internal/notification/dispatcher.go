package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned by Deliver when the recipient exceeded its delivery budget.
var ErrThrottled = errors.New("notification: recipient throttled")

// ErrNoSender is returned by Deliver when no sender is configured for the channel.
var ErrNoSender = errors.New("notification: no sender for channel")

const (
	defaultDeliveryTimeout = 15 * time.Second
	recipientIdleTTL       = 10 * time.Minute
)

// Sender delivers a rendered intent over one channel.
type Sender interface {
	Send(ctx context.Context, intent Intent) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, intent Intent) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, intent Intent) error {
	return f(ctx, intent)
}

// DispatcherConfig wires the senders and delivery limits of a Dispatcher.
type DispatcherConfig struct {
	Email Sender
	SMS   Sender
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
	// PerMinute and Burst shape the per-recipient token bucket. PerMinute <= 0
	// disables throttling.
	PerMinute int
	Burst     int
	Meter     metric.Meter
	Logger    *slog.Logger
	Now       func() time.Time
}

// Dispatcher delivers intents in the background. Delivery failures are logged
// and counted, never returned to the caller of Dispatch.
type Dispatcher struct {
	email   Sender
	sms     Sender
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	perMinute int
	burst     int
	mu        sync.Mutex
	visitors  map[string]*visitor

	delivered metric.Int64Counter
	failed    metric.Int64Counter
	throttled metric.Int64Counter

	wg sync.WaitGroup
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDeliveryTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Meter == nil {
		cfg.Meter = otel.Meter("github.com/example/access-compliance/internal/notification")
	}

	d := &Dispatcher{
		email:     cfg.Email,
		sms:       cfg.SMS,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger.With("component", "notification_dispatcher"),
		now:       cfg.Now,
		perMinute: cfg.PerMinute,
		burst:     cfg.Burst,
		visitors:  make(map[string]*visitor),
	}

	d.delivered, _ = cfg.Meter.Int64Counter("notifications_delivered_total",
		metric.WithDescription("Supervisor notifications handed to a sender successfully"),
		metric.WithUnit("{notification}"),
	)
	d.failed, _ = cfg.Meter.Int64Counter("notifications_failed_total",
		metric.WithDescription("Supervisor notifications whose delivery failed"),
		metric.WithUnit("{notification}"),
	)
	d.throttled, _ = cfg.Meter.Int64Counter("notifications_throttled_total",
		metric.WithDescription("Supervisor notifications dropped by the per-recipient limiter"),
		metric.WithUnit("{notification}"),
	)
	return d
}

// Dispatch starts an asynchronous delivery of intent. The request context is
// detached so that a finished request does not cancel the delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) {
	if d == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				d.logger.ErrorContext(detached, "notification delivery panicked", "panic", fmt.Sprint(p), "recipient", intent.To)
			}
		}()
		_ = d.Deliver(detached, intent)
	}()
}

// Deliver performs one bounded delivery attempt synchronously and records its outcome.
func (d *Dispatcher) Deliver(ctx context.Context, intent Intent) (err error) {
	attrs := metric.WithAttributes(
		attribute.String("channel", intent.Channel.String()),
		attribute.String("kind", string(intent.Kind)),
	)
	logger := d.logger.With(
		"channel", intent.Channel.String(),
		"kind", string(intent.Kind),
		"employee_id", intent.EmployeeID,
		"supervisor_id", intent.SupervisorID,
	)

	if !d.allow(intent.Channel.String() + ":" + intent.To) {
		d.throttled.Add(ctx, 1, attrs)
		logger.WarnContext(ctx, "notification throttled", "recipient", intent.To)
		return ErrThrottled
	}

	defer func() {
		if err != nil {
			d.failed.Add(ctx, 1, attrs)
			logger.ErrorContext(ctx, "failed to deliver notification", "error", err)
			return
		}
		d.delivered.Add(ctx, 1, attrs)
		logger.InfoContext(ctx, "notification delivered", "subject", intent.Subject)
	}()

	sender := d.senderFor(intent.Channel)
	if sender == nil {
		err = fmt.Errorf("%w: %s", ErrNoSender, intent.Channel)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err = sender.Send(sendCtx, intent)
	return
}

// Wait blocks until every dispatched delivery has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) senderFor(channel Channel) Sender {
	switch channel {
	case ChannelEmail:
		return d.email
	case ChannelSMS:
		return d.sms
	default:
		return nil
	}
}

func (d *Dispatcher) allow(key string) bool {
	if d.perMinute <= 0 {
		return true
	}

	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, v := range d.visitors {
		if now.Sub(v.lastSeen) > recipientIdleTTL {
			delete(d.visitors, k)
		}
	}

	v, ok := d.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(float64(d.perMinute)/60.0), d.burst)}
		d.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
