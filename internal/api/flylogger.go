package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/TracklensDev/tracklens/internal/clientip"
	"github.com/TracklensDev/tracklens/internal/logger"
)

// accessBodyCap bounds how much of an error response body the access
// line will quote back.
const accessBodyCap = 256

// FlyLogger emits one structured access line per request. It runs
// inside clientip.Middleware and logger.Middleware, so lines carry the
// resolved client address and the chi request ID, and outside the
// response compressor, so captured error bodies are still plaintext.
//
// Client errors log at warn with the response's own message attached;
// 5xx lines log at error but never quote the body, since the handler
// that failed already logged the real cause. Health and metrics probes
// log at debug, they fire every few seconds on Fly and would drown
// real traffic at info.
func FlyLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &accessRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		attrs := []any{
			"ip", requestAddr(r),
			"status", rec.status,
			"bytes", rec.written,
			"dur", time.Since(start).String(),
		}
		if region := r.Header.Get("Fly-Region"); region != "" {
			attrs = append(attrs, "region", sanitizeLogValue(region))
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			attrs = append(attrs, "proto", sanitizeLogValue(proto))
		}
		if rec.status >= 400 && rec.status < 500 && rec.errBody.Len() > 0 {
			if msg := errorFromBody(rec.errBody.Bytes()); msg != "" {
				attrs = append(attrs, "err", msg)
			}
		}
		if ua := r.Header.Get("User-Agent"); ua != "" {
			attrs = append(attrs, "ua", truncateRunes(sanitizeLogValue(ua), 100))
		}

		log := logger.Ctx(r.Context())
		line := r.Method + " " + r.URL.RequestURI()
		switch {
		case isProbePath(r.URL.Path):
			log.Debug(line, attrs...)
		case rec.status >= 500:
			log.Error(line, attrs...)
		case rec.status >= 400:
			log.Warn(line, attrs...)
		default:
			log.Info(line, attrs...)
		}
	})
}

func isProbePath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// requestAddr prefers the proxy-resolved client address and falls back
// to the socket peer when clientip.Middleware has not run.
func requestAddr(r *http.Request) string {
	if ip := clientip.FromRequest(r).Primary; ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// sanitizeLogValue flattens control characters so header and body
// values cannot forge extra log lines.
func sanitizeLogValue(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r < 32 {
			return ' '
		}
		return r
	}, s)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// errorFromBody pulls the message out of a captured error body. The
// API's own errors are {"error": "..."} JSON; middleware rejections
// (http.Error, MaxBytesReader) are plaintext.
func errorFromBody(body []byte) string {
	var wire struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		msg = wire.Error
	}
	return truncateRunes(sanitizeLogValue(msg), 200)
}

// accessRecorder captures what FlyLogger needs from the response:
// status, size, and for client errors a bounded copy of the body.
type accessRecorder struct {
	http.ResponseWriter
	status  int
	written int
	errBody bytes.Buffer
}

func (a *accessRecorder) WriteHeader(code int) {
	a.status = code
	a.ResponseWriter.WriteHeader(code)
}

func (a *accessRecorder) Write(b []byte) (int, error) {
	if a.status >= 400 && a.status < 500 {
		if room := accessBodyCap - a.errBody.Len(); room > 0 {
			a.errBody.Write(b[:min(len(b), room)])
		}
	}
	n, err := a.ResponseWriter.Write(b)
	a.written += n
	return n, err
}

// Flush keeps streaming responses working through the wrapper.
func (a *accessRecorder) Flush() {
	if f, ok := a.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets chi middlewares reach the underlying writer.
func (a *accessRecorder) Unwrap() http.ResponseWriter {
	return a.ResponseWriter
}
