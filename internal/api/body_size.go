package api

import "net/http"

// Request body limits by route class. Compute accepts whole exported
// report payloads and gets the largest allowance.
const (
	MaxBodyXS int64 = 2 * 1024
	MaxBodyS  int64 = 16 * 1024
	MaxBodyM  int64 = 128 * 1024
	MaxBodyL  int64 = 2 * 1024 * 1024
	MaxBodyXL int64 = 16 * 1024 * 1024
)

// withMaxBody caps how much of the request body a handler will read.
// Reads past the limit fail with *http.MaxBytesError.
func withMaxBody(limit int64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next(w, r)
	}
}
