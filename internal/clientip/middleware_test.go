package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWith(remoteAddr string, headers map[string]string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestExtract_Primary(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "Fly-Client-IP wins over everything",
			remoteAddr: "172.16.29.234:54686",
			headers: map[string]string{
				"Fly-Client-IP":    "203.0.113.45",
				"CF-Connecting-IP": "198.51.100.1",
				"X-Real-IP":        "192.0.2.1",
				"X-Forwarded-For":  "10.0.0.1",
			},
			want: "203.0.113.45",
		},
		{
			name:       "CF-Connecting-IP beats the nginx headers",
			remoteAddr: "172.16.29.234:54686",
			headers: map[string]string{
				"CF-Connecting-IP": "198.51.100.1",
				"X-Real-IP":        "192.0.2.1",
				"X-Forwarded-For":  "10.0.0.1",
			},
			want: "198.51.100.1",
		},
		{
			name:       "True-Client-IP beats X-Real-IP",
			remoteAddr: "172.16.29.234:54686",
			headers: map[string]string{
				"True-Client-IP":  "198.51.100.2",
				"X-Real-IP":       "192.0.2.1",
				"X-Forwarded-For": "10.0.0.1",
			},
			want: "198.51.100.2",
		},
		{
			name:       "X-Real-IP beats X-Forwarded-For",
			remoteAddr: "172.16.29.234:54686",
			headers: map[string]string{
				"X-Real-IP":       "192.0.2.1",
				"X-Forwarded-For": "10.0.0.1",
			},
			want: "192.0.2.1",
		},
		{
			name:       "X-Forwarded-For uses only the first hop",
			remoteAddr: "172.16.29.234:54686",
			headers: map[string]string{
				"X-Forwarded-For": "10.0.0.1, 10.0.0.2, 10.0.0.3",
			},
			want: "10.0.0.1",
		},
		{
			name:       "falls back to RemoteAddr without headers",
			remoteAddr: "192.168.1.100:12345",
			want:       "192.168.1.100",
		},
		{
			name:       "trims header whitespace",
			remoteAddr: "172.16.0.1:8080",
			headers:    map[string]string{"Fly-Client-IP": "  203.0.113.45  "},
			want:       "203.0.113.45",
		},
		{
			name:       "IPv6 header value",
			remoteAddr: "172.16.0.1:8080",
			headers:    map[string]string{"Fly-Client-IP": "2001:db8::1"},
			want:       "2001:db8::1",
		},
		{
			name:       "IPv6 RemoteAddr fallback",
			remoteAddr: "[2001:db8::1]:8080",
			want:       "2001:db8::1",
		},
		{
			name:       "empty header falls through to the next",
			remoteAddr: "192.168.1.100:12345",
			headers: map[string]string{
				"Fly-Client-IP": "",
				"X-Real-IP":     "192.0.2.1",
			},
			want: "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := extract(requestWith(tt.remoteAddr, tt.headers))
			if info.Primary != tt.want {
				t.Errorf("extract().Primary = %q, want %q", info.Primary, tt.want)
			}
		})
	}
}

func TestExtract_RateLimitKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "joins every claimed IP sorted",
			remoteAddr: "172.16.29.234:54686",
			headers: map[string]string{
				"Fly-Client-IP":    "203.0.113.45",
				"CF-Connecting-IP": "198.51.100.1",
			},
			want: "172.16.29.234|198.51.100.1|203.0.113.45",
		},
		{
			name:       "deduplicates the same IP across headers",
			remoteAddr: "192.168.1.100:12345",
			headers: map[string]string{
				"Fly-Client-IP": "192.168.1.100",
				"X-Real-IP":     "192.168.1.100",
			},
			want: "192.168.1.100",
		},
		{
			name:       "RemoteAddr alone without headers",
			remoteAddr: "192.168.1.100:12345",
			want:       "192.168.1.100",
		},
		{
			name:       "spoofed X-Forwarded-For cannot displace the TCP peer",
			remoteAddr: "172.16.0.1:8080",
			headers: map[string]string{
				"X-Forwarded-For": "10.0.0.1, 10.0.0.2, 10.0.0.3",
			},
			want: "10.0.0.1|172.16.0.1",
		},
		{
			name:       "all headers combined",
			remoteAddr: "172.16.0.1:8080",
			headers: map[string]string{
				"Fly-Client-IP":    "1.1.1.1",
				"CF-Connecting-IP": "2.2.2.2",
				"True-Client-IP":   "3.3.3.3",
				"X-Real-IP":        "4.4.4.4",
				"X-Forwarded-For":  "5.5.5.5",
			},
			want: "1.1.1.1|172.16.0.1|2.2.2.2|3.3.3.3|4.4.4.4|5.5.5.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := extract(requestWith(tt.remoteAddr, tt.headers))
			if info.RateLimitKey != tt.want {
				t.Errorf("extract().RateLimitKey = %q, want %q", info.RateLimitKey, tt.want)
			}
		})
	}
}

func TestHostOnly(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"192.168.1.1", "192.168.1.1"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"[2001:db8::1]", "2001:db8::1"},
		{"[::1]:80", "::1"},
		{"127.0.0.1:443", "127.0.0.1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := hostOnly(tt.addr); got != tt.want {
				t.Errorf("hostOnly(%q) = %q, want %q", tt.addr, got, tt.want)
			}
		})
	}
}

func TestMiddleware_RewritesRemoteAddr(t *testing.T) {
	var gotRemoteAddr string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRemoteAddr = r.RemoteAddr
	}))

	req := requestWith("172.16.29.234:54686", map[string]string{"Fly-Client-IP": "203.0.113.45"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotRemoteAddr != "203.0.113.45" {
		t.Errorf("r.RemoteAddr = %q, want %q", gotRemoteAddr, "203.0.113.45")
	}
}

func TestMiddleware_StoresInfoInContext(t *testing.T) {
	var got Info
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromRequest(r)
	}))

	req := requestWith("172.16.29.234:54686", map[string]string{"Fly-Client-IP": "203.0.113.45"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.Primary != "203.0.113.45" {
		t.Errorf("Primary = %q, want %q", got.Primary, "203.0.113.45")
	}
	if want := "172.16.29.234|203.0.113.45"; got.RateLimitKey != want {
		t.Errorf("RateLimitKey = %q, want %q", got.RateLimitKey, want)
	}
}

func TestFromContext_ZeroWhenUnset(t *testing.T) {
	info := FromRequest(httptest.NewRequest("GET", "/test", nil))
	if info.Primary != "" || info.RateLimitKey != "" {
		t.Errorf("expected zero Info, got %+v", info)
	}
}
