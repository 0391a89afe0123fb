package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/zstd"
)

// responseCompressor negotiates response compression. Brotli and zstd
// are registered on top of the stock gzip encoder, zstd taking
// precedence when the client accepts more than one.
func responseCompressor() func(http.Handler) http.Handler {
	compressor := middleware.NewCompressor(5, "application/json", "text/plain")
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	compressor.SetEncoder("zstd", func(w io.Writer, _ int) io.Writer {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil
		}
		return enc
	})
	return compressor.Handler
}

// decompressMiddleware inflates zstd request bodies in place, so
// compute uploads can arrive encoded while plain JSON keeps working.
func decompressMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enc := r.Header.Get("Content-Encoding")
			switch {
			case enc == "":
				next.ServeHTTP(w, r)

			case strings.EqualFold(enc, "zstd"):
				dec, err := zstd.NewReader(r.Body, zstd.WithDecoderConcurrency(1))
				if err != nil {
					respondError(w, http.StatusBadRequest, "Malformed zstd request body")
					return
				}
				defer dec.Close()

				// Downstream sees a plain body. The declared length
				// described compressed bytes, so drop it; the body
				// size cap re-applies to the inflated stream.
				r.Body = io.NopCloser(dec)
				r.Header.Del("Content-Encoding")
				r.Header.Del("Content-Length")
				r.ContentLength = -1
				next.ServeHTTP(w, r)

			default:
				respondError(w, http.StatusUnsupportedMediaType, "Unsupported Content-Encoding: "+enc)
			}
		})
	}
}
