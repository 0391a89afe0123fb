package ratelimit

import (
	"net/http"

	"github.com/TracklensDev/tracklens/internal/clientip"
	"github.com/TracklensDev/tracklens/internal/logger"
)

// Middleware rejects requests whose client has exhausted its bucket.
// Keys come from clientip.Middleware, which must run earlier in the
// chain.
func Middleware(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientip.FromRequest(r).RateLimitKey
			if !limiter.Allow(r.Context(), key) {
				logger.Ctx(r.Context()).Warn("rate limit exceeded",
					"key", key, "path", r.URL.Path)
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
