package feed

import (
	"context"
	"log/slog"

	"github.com/example/access-compliance/internal/application"
)

// Encoder renders a ledger event as the JSON document sent to consumers.
type Encoder func(event application.LedgerEvent) ([]byte, error)

// Listener returns a ledger listener that encodes each event once and hands it
// to every sink.
func Listener(encode Encoder, logger *slog.Logger, sinks ...Sink) application.LedgerListener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, event application.LedgerEvent) {
		data, err := encode(event)
		if err != nil {
			logger.ErrorContext(ctx, "failed to encode ledger event", "kind", event.Kind, "error", err)
			return
		}
		msg := Message{Kind: string(event.Kind), Data: data}
		for _, sink := range sinks {
			if sink != nil {
				sink.Publish(ctx, msg)
			}
		}
	}
}
