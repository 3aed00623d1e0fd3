package application

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/example/access-compliance/internal/application"

// Metrics holds the counters recorded by swipe ingestion.
type Metrics struct {
	swipes        metric.Int64Counter
	notifications metric.Int64Counter
	cardConflicts metric.Int64Counter
}

// NewMetrics registers the application instruments on meter. A nil meter uses
// the global provider.
func NewMetrics(meter metric.Meter) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &Metrics{}
	m.swipes, _ = meter.Int64Counter("swipes_ingested_total",
		metric.WithDescription("Swipe events appended to the ledger"),
		metric.WithUnit("{swipe}"),
	)
	m.notifications, _ = meter.Int64Counter("notification_decisions_total",
		metric.WithDescription("Notification decisions taken for schedule triggers"),
		metric.WithUnit("{decision}"),
	)
	m.cardConflicts, _ = meter.Int64Counter("card_conflicts_total",
		metric.WithDescription("Card assignments rejected because the card is held by someone else"),
		metric.WithUnit("{conflict}"),
	)
	return m
}

func (m *Metrics) recordSwipe(ctx context.Context, level AccessLevel, status string) {
	if m == nil || m.swipes == nil {
		return
	}
	m.swipes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("access_level", string(level)),
		attribute.String("status", status),
	))
}

func (m *Metrics) recordNotification(ctx context.Context, kind, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", kind),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) recordCardConflict(ctx context.Context) {
	if m == nil || m.cardConflicts == nil {
		return
	}
	m.cardConflicts.Add(ctx, 1)
}
