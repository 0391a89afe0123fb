package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/TracklensDev/tracklens/internal/logger"
)

// debugBodyCap bounds how much of a request or response body lands in
// a debug line.
const debugBodyCap = 10 << 10

// debugLoggingMiddleware dumps request and response payloads when the
// logger runs at debug level. It sits after request decompression so
// the dump shows what the handler actually parsed. Bodies are restored
// in full for downstream handlers; only the logged copy is capped.
func debugLoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.IsDebug() {
				next.ServeHTTP(w, r)
				return
			}

			log := logger.Ctx(r.Context())

			if r.Body != nil && r.ContentLength != 0 {
				payload, _ := io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(payload))

				preview, clipped := clip(payload, debugBodyCap)
				log.Debug("request payload",
					"method", r.Method,
					"path", r.URL.Path,
					"size", len(payload),
					"body", string(preview),
					"clipped", clipped,
				)
			}

			tap := &debugTap{ResponseWriter: w, status: http.StatusOK, limit: debugBodyCap}
			next.ServeHTTP(tap, r)

			log.Debug("response payload",
				"method", r.Method,
				"path", r.URL.Path,
				"status", tap.status,
				"size", tap.total,
				"body", tap.body.String(),
				"clipped", tap.total > tap.body.Len(),
			)
		})
	}
}

func clip(b []byte, limit int) ([]byte, bool) {
	if len(b) <= limit {
		return b, false
	}
	return b[:limit], true
}

// debugTap mirrors the first limit bytes of the response while letting
// everything through to the real writer.
type debugTap struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
	total  int
	limit  int
}

func (d *debugTap) WriteHeader(status int) {
	d.status = status
	d.ResponseWriter.WriteHeader(status)
}

func (d *debugTap) Write(b []byte) (int, error) {
	if room := d.limit - d.body.Len(); room > 0 {
		d.body.Write(b[:min(len(b), room)])
	}
	n, err := d.ResponseWriter.Write(b)
	d.total += n
	return n, err
}

func (d *debugTap) Flush() {
	if f, ok := d.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (d *debugTap) Unwrap() http.ResponseWriter {
	return d.ResponseWriter
}
