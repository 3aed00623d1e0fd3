package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/access-compliance/internal/application"
)

const (
	apiKeyHeader        = "X-Api-Key"
	apiKeyAuthorization = "ApiKey "
)

// KeyAuthenticator validates the API key presented by a caller.
type KeyAuthenticator interface {
	Required() bool
	Authenticate(ctx context.Context, presented string) error
}

// RequireAPIKey rejects requests without a valid API key. When the
// authenticator does not require a key every request passes as the dev bypass caller.
func RequireAPIKey(auth KeyAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil || !auth.Required() {
				next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), CallerDevBypass)))
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "AUTH_REQUIRED",
					Message:   "API キーを指定してください。",
				})
				return
			}

			if err := auth.Authenticate(r.Context(), key); err != nil {
				if errors.Is(err, application.ErrUnauthorized) {
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: "AUTH_INVALID",
						Message:   "API キーが無効です。",
					})
					return
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "api key verification failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "API キーの検証中にエラーが発生しました。"})
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), CallerAPIKey)))
		})
	}
}

// extractAPIKey prefers the X-Api-Key header over the Authorization header.
func extractAPIKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	if values, ok := r.Header[http.CanonicalHeaderKey(apiKeyHeader)]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > len(apiKeyAuthorization) && strings.EqualFold(authz[:len(apiKeyAuthorization)], apiKeyAuthorization) {
		return strings.TrimSpace(authz[len(apiKeyAuthorization):])
	}
	return ""
}

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

// statusRecorder keeps the response status for the completion log. It
// forwards Flush so the ledger stream keeps working behind the logger.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(p)
}

func (s *statusRecorder) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
