// Package ratelimit throttles requests per client with token buckets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether a request identified by key may proceed.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
	AllowN(ctx context.Context, key string, n int) bool
}

// InMemoryRateLimiter keeps one token bucket per key. Buckets idle
// past maxAge are reclaimed by a background sweep, so memory tracks
// currently active clients rather than every key ever seen. Suitable
// for single-instance deployments; multiple instances each enforce
// their own budget.
type InMemoryRateLimiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket

	sweepEvery time.Duration
	maxAge     time.Duration
	stopSweep  chan struct{}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewInMemoryRateLimiter allows rps requests per second per key with
// bursts up to burst. Call Stop when done to release the sweeper.
func NewInMemoryRateLimiter(rps float64, burst int) *InMemoryRateLimiter {
	l := &InMemoryRateLimiter{
		rate:       rate.Limit(rps),
		burst:      burst,
		buckets:    make(map[string]*bucket),
		sweepEvery: 5 * time.Minute,
		maxAge:     10 * time.Minute,
		stopSweep:  make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow reports whether one request for key may proceed now.
func (l *InMemoryRateLimiter) Allow(ctx context.Context, key string) bool {
	return l.AllowN(ctx, key, 1)
}

// AllowN reports whether n requests for key may proceed now.
func (l *InMemoryRateLimiter) AllowN(ctx context.Context, key string, n int) bool {
	now := time.Now().UTC()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.lim.AllowN(now, n)
}

func (l *InMemoryRateLimiter) sweep() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dropStale(time.Now().UTC())
		case <-l.stopSweep:
			return
		}
	}
}

func (l *InMemoryRateLimiter) dropStale(now time.Time) {
	cutoff := now.Add(-l.maxAge)
	l.mu.Lock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
	l.mu.Unlock()
}

// Stop ends the background sweep. The limiter still works afterwards,
// it just stops reclaiming idle buckets.
func (l *InMemoryRateLimiter) Stop() {
	close(l.stopSweep)
}

// Stats describes the limiter for diagnostics.
func (l *InMemoryRateLimiter) Stats() map[string]interface{} {
	l.mu.Lock()
	active := len(l.buckets)
	l.mu.Unlock()

	return map[string]interface{}{
		"type":            "in-memory",
		"active_limiters": active,
		"rate_per_second": float64(l.rate),
		"burst":           l.burst,
	}
}
