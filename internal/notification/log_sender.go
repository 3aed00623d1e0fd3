package notification

import (
	"context"
	"log/slog"
)

// LogSender records intents in the log instead of delivering them. It backs
// channels whose transport is not configured.
type LogSender struct {
	logger *slog.Logger
	reason string
}

// NewLogSender constructs a LogSender. reason explains why delivery is log-only.
func NewLogSender(logger *slog.Logger, reason string) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger, reason: reason}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, intent Intent) error {
	s.logger.InfoContext(ctx, "notification not sent, transport unavailable",
		"reason", s.reason,
		"channel", intent.Channel.String(),
		"to", intent.To,
		"subject", intent.Subject,
		"message", intent.Message,
	)
	return nil
}
