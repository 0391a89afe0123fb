// Package toggl is a client for the Toggl Track reporting APIs: the v2
// and v3 report endpoints and the v9 workspace endpoints.
package toggl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TracklensDev/tracklens/internal/logger"
	"github.com/TracklensDev/tracklens/internal/metrics"
)

const (
	defaultBaseURL   = "https://api.track.toggl.com"
	defaultUserAgent = "tracklens/1.0"
	defaultRetryWait = 60 * time.Second
)

// Client is an authenticated HTTP client for the Toggl Track API. All
// requests pass through a shared rate limiter, and a rate-limited
// response is retried once after a configurable backoff.
type Client struct {
	apiToken   string
	baseURL    string
	userAgent  string
	retryWait  time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a custom HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit overrides the requests-per-second budget. Toggl allows
// roughly one request per second per token.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryWait sets how long a rate-limited request waits before its
// single retry.
func WithRetryWait(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryWait = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Toggl API client authenticated with the given
// personal API token.
func NewClient(apiToken string, opts ...ClientOption) *Client {
	c := &Client{
		apiToken:  apiToken,
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		retryWait: defaultRetryWait,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doJSON sends one API request and decodes the response into out when
// out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	respBody, err := c.send(ctx, method, path, query, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	retried := false
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if len(body) > 0 {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if len(query) > 0 {
			req.URL.RawQuery = query.Encode()
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.SetBasicAuth(c.apiToken, "api_token")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		metrics.UpstreamRequests.WithLabelValues(endpointFamily(path), strconv.Itoa(resp.StatusCode)).Inc()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && !retried:
			retried = true
			logger.Warn("toggl rate limited, backing off", "path", path, "wait", c.retryWait.String())
			select {
			case <-time.After(c.retryWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		case resp.StatusCode == http.StatusPaymentRequired:
			return nil, ErrPremiumRequired
		case resp.StatusCode == http.StatusForbidden:
			return nil, ErrForbidden
		case resp.StatusCode >= 400:
			return nil, newAPIError(resp.StatusCode, respBody)
		}
		return respBody, nil
	}
}

// endpointFamily collapses request paths to a bounded metric label.
func endpointFamily(path string) string {
	switch {
	case strings.HasPrefix(path, "/reports/api/v2/summary"):
		return "summary"
	case strings.Contains(path, "/search/time_entries"):
		return "detailed"
	case strings.HasPrefix(path, "/api/v9/workspaces"):
		return "workspaces"
	default:
		return "other"
	}
}
