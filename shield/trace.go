package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/quizchain/idgen"
	"github.com/hazyhaar/quizchain/kit"
)

// TraceID assigns a trace ID to each request and injects it into the
// context, the X-Trace-ID response header and a per-request logger stored
// under LoggerKey. An incoming X-Trace-ID is kept when it is well formed.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if !validTraceID(traceID) {
			traceID = idgen.TraceID()
		}

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithRemoteAddr(ctx, ExtractIP(r))
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validTraceID(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
