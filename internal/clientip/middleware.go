// Package clientip resolves the real client address behind whatever
// edge proxies front the deployment (Fly.io, Cloudflare, nginx).
package clientip

import (
	"context"
	"net"
	"net/http"
	"sort"
	"strings"
)

type contextKey struct{}

var infoKey = contextKey{}

// Info is the resolved client identity for one request.
type Info struct {
	// Primary is the most trusted single IP, for logging and display.
	Primary string

	// RateLimitKey joins every IP the request claimed, sorted and
	// pipe-delimited. A spoofed header widens the key but cannot
	// displace the TCP peer address, so buckets stay per-client.
	RateLimitKey string
}

// proxyHeaders in trust order. The platform edge sets the first ones
// and strips them from inbound traffic; X-Forwarded-For is client
// controlled beyond the first hop, so only that hop counts.
var proxyHeaders = []string{
	"Fly-Client-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Forwarded-For",
}

// Middleware resolves the client address once per request, rewrites
// RemoteAddr to it, and stores the full Info in the context for the
// logger and rate limiter.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := extract(r)
		r.RemoteAddr = info.Primary
		ctx := context.WithValue(r.Context(), infoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the Info stored by Middleware, zero if absent.
func FromContext(ctx context.Context) Info {
	if info, ok := ctx.Value(infoKey).(Info); ok {
		return info
	}
	return Info{}
}

// FromRequest is FromContext on the request's context.
func FromRequest(r *http.Request) Info {
	return FromContext(r.Context())
}

func extract(r *http.Request) Info {
	seen := make(map[string]bool)

	remote := hostOnly(r.RemoteAddr)
	if remote != "" {
		seen[remote] = true
	}

	var primary string
	for _, name := range proxyHeaders {
		value := r.Header.Get(name)
		if name == "X-Forwarded-For" {
			value, _, _ = strings.Cut(value, ",")
		}
		ip := strings.TrimSpace(value)
		if ip == "" {
			continue
		}
		seen[ip] = true
		if primary == "" {
			primary = ip
		}
	}
	if primary == "" {
		primary = remote
	}

	ips := make([]string, 0, len(seen))
	for ip := range seen {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	return Info{Primary: primary, RateLimitKey: strings.Join(ips, "|")}
}

// hostOnly strips the port from an address in any of the forms
// net.Dial produces: "ip:port", "[ipv6]:port", or a bare IP.
func hostOnly(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
