package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/access-compliance/internal/cardlock"
	"github.com/example/access-compliance/internal/logging"
	"github.com/example/access-compliance/internal/notification"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// serviceLogger scopes a logger to one service operation. A logger carried by
// ctx (the request logger) wins over the service's own.
func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, "service", serviceName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	return logger.With(append(pairs, attrs...)...)
}

var errorKinds = []struct {
	target error
	kind   string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrNotFound, "not_found"},
	{ErrCardConflict, "card_conflict"},
	{ErrAlreadyExists, "already_exists"},
	{cardlock.ErrLockTimeout, "card_locked"},
	{notification.ErrThrottled, "throttled"},
	{notification.ErrNoSender, "no_sender"},
	{context.DeadlineExceeded, "timeout"},
	{context.Canceled, "canceled"},
}

// ErrorKind maps an error to the stable error_kind label used in logs.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	return "unexpected"
}
