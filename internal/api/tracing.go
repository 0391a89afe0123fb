package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanEnricher is a middleware that enriches the current span with request
// metadata. Mounted inside the workspace route group, so the workspace ID
// has been routed by the time it runs.
func SpanEnricher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())

		if raw := chi.URLParam(r, "workspaceID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				span.SetAttributes(attribute.Int64("workspace.id", id))
			}
		}
		if name := r.URL.Query().Get("period"); name != "" {
			span.SetAttributes(attribute.String("report.period", name))
		}

		next.ServeHTTP(w, r)
	})
}
