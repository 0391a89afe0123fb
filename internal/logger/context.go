package logger

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey struct{}

// Middleware attaches a request-scoped logger to the request context.
// The logger carries the chi request ID so all lines from one request
// can be correlated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := base
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			l = l.With("req_id", reqID)
		}
		ctx := context.WithValue(r.Context(), contextKey{}, l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Ctx returns the request-scoped logger stored in ctx, falling back to
// the package logger when none is present (background jobs, tests).
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return base
}

// WithLogger returns a copy of ctx carrying l. Useful for scoping extra
// fields onto everything logged downstream of one operation.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}
