package api

import (
	"mime"
	"net/http"

	"github.com/TracklensDev/tracklens/internal/logger"
)

// validateContentType rejects body-carrying requests that do not
// declare JSON. Reads pass through untouched.
func validateContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" {
			logger.Ctx(r.Context()).Info("Request missing Content-Type header",
				"method", r.Method, "path", r.URL.Path)
			http.Error(w, "Content-Type header required", http.StatusUnsupportedMediaType)
			return
		}

		// Parameters like charset are fine, any media type that is
		// not JSON is not.
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			logger.Ctx(r.Context()).Info("Request with invalid Content-Type",
				"method", r.Method, "path", r.URL.Path, "content_type", ct)
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}

		next.ServeHTTP(w, r)
	})
}
