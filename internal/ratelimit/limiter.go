// Package ratelimit provides per-client rate limiting for the supervisor's
// /chat endpoint. The Config/per-client-keyed shape follows the teacher's
// hand-rolled token bucket, but the actual limiting is delegated to
// golang.org/x/time/rate so the bucket arithmetic itself is the
// ecosystem-standard implementation rather than a bespoke one.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures rate limiting behavior.
type Config struct {
	// RequestsPerMinute is the sustained rate allowed per client.
	RequestsPerMinute int
	// BurstSize is the maximum number of requests allowed in a burst.
	BurstSize int
	// Enabled controls whether rate limiting is active.
	Enabled bool
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		BurstSize:         10,
		Enabled:           true,
	}
}

// Limiter rate-limits requests per client key (API key, session id, or
// remote address), creating a bucket lazily on first use.
type Limiter struct {
	cfg      Config
	mu       sync.Mutex
	perClient map[string]*rate.Limiter
}

// New builds a Limiter from the given config.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = cfg.RequestsPerMinute / 6
		if cfg.BurstSize < 1 {
			cfg.BurstSize = 1
		}
	}
	return &Limiter{cfg: cfg, perClient: make(map[string]*rate.Limiter)}
}

func (l *Limiter) bucketFor(clientKey string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.perClient[clientKey]; ok {
		return b
	}
	perSecond := rate.Limit(float64(l.cfg.RequestsPerMinute) / 60.0)
	b := rate.NewLimiter(perSecond, l.cfg.BurstSize)
	l.perClient[clientKey] = b
	return b
}

// Allow reports whether a request from clientKey may proceed right now. If
// not, it also returns how long the caller should wait before retrying
// (for a Retry-After header).
func (l *Limiter) Allow(clientKey string) (allowed bool, retryAfter time.Duration) {
	if !l.cfg.Enabled {
		return true, 0
	}
	b := l.bucketFor(clientKey)
	r := b.Reserve()
	if !r.OK() {
		return false, time.Second
	}
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}
