package http

import (
	"context"
	"log/slog"

	"github.com/example/access-compliance/internal/application"
	"github.com/example/access-compliance/internal/logging"
)

type contextKey string

const callerContextKey contextKey = "caller"

// Caller names recorded as the actor of card mutations.
const (
	CallerAPIKey    = "api-key"
	CallerDevBypass = "dev-bypass"
)

// ContextWithCaller returns a derived context carrying the authenticated caller name.
func ContextWithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext extracts the caller name stored by the API key middleware.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerContextKey).(string)
	return caller, ok && caller != ""
}

// actorFromContext falls back to the system actor for unauthenticated paths.
func actorFromContext(ctx context.Context) string {
	if caller, ok := CallerFromContext(ctx); ok {
		return caller
	}
	return application.SystemActor
}

// ContextWithLogger stores the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
