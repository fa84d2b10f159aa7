// Package shield provides the HTTP middleware wrapped around the quizchain
// API: security headers, JSON body limits, request tracing, per-IP rate
// limiting and HEAD handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(shield.NewRateLimiter(rules)) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit = 64 * 1024

// DefaultStack returns the middleware stack for the API, in order:
// HeadToGet → SecurityHeaders → MaxJSONBody → TraceID → RateLimiter.
// A nil limiter is skipped.
func DefaultStack(rl *RateLimiter) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(DefaultBodyLimit),
		TraceID,
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}
