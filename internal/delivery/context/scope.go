// Package context carries the per-call scope shared by the API and the
// settlement worker: the request ID that links a checkout or webhook to the
// reconciliation messages it publishes, the authenticated user, and a logger
// tagged with both.
package context

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderXRequestID carries the request ID on HTTP requests and responses.
const HeaderXRequestID = "X-Request-Id"

type scopeKey struct{}

type scope struct {
	requestID string
	userID    uuid.UUID
	logger    *slog.Logger
}

func scopeOf(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)

	return s
}

func withScope(ctx context.Context, s scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithRequestID stores the ID that reconciliation events and log lines carry.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	s := scopeOf(ctx)
	s.requestID = requestID

	return withScope(ctx, s)
}

// GetRequestIDFromContext returns "" outside a request or push delivery.
func GetRequestIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).requestID
}

// GetRequestID returns the ID of the current HTTP request. Responses written
// before the request ID middleware ran get a fresh one.
func GetRequestID(c echo.Context) string {
	if id := GetRequestIDFromContext(c.Request().Context()); id != "" {
		return id
	}

	return uuid.New().String()
}

// WithUser records the authenticated caller and tags the scoped logger with user_id.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	s := scopeOf(ctx)
	s.userID = userID
	if s.logger != nil {
		s.logger = s.logger.With(slog.String("user_id", userID.String()))
	}

	return withScope(ctx, s)
}

// GetUserIDFromContext reports the caller stored by WithUser.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id := scopeOf(ctx).userID

	return id, id != uuid.Nil
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	s := scopeOf(ctx)
	s.logger = logger

	return withScope(ctx, s)
}

func GetLogger(ctx context.Context) *slog.Logger {
	return scopeOf(ctx).logger
}

// GetLoggerOrDefault lets services log with request attributes when called
// from a handler and with their own logger from the sweeper or tests.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := GetLogger(ctx); logger != nil {
		return logger
	}

	return fallback
}
