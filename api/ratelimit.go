package api

import (
	"sync"
	"time"
)

const (
	// defaultRateLimit is the per-IP request budget per window on the /api
	// routes.
	defaultRateLimit = 100
	// defaultRateWindow is the fixed window over which the budget applies.
	defaultRateWindow = time.Minute
)

// ipRateLimiter enforces a fixed-window request budget per client IP.
type ipRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowRecord
	max     int
	window  time.Duration
	now     func() time.Time
}

type windowRecord struct {
	count   int
	started time.Time
}

type rateLimiterOption func(*ipRateLimiter)

// withRateWindow overrides the window length, for tests.
func withRateWindow(d time.Duration) rateLimiterOption {
	return func(rl *ipRateLimiter) { rl.window = d }
}

// withRateClock overrides the time source, for tests.
func withRateClock(now func() time.Time) rateLimiterOption {
	return func(rl *ipRateLimiter) { rl.now = now }
}

func newIPRateLimiter(max int, opts ...rateLimiterOption) *ipRateLimiter {
	rl := &ipRateLimiter{
		windows: make(map[string]*windowRecord),
		max:     max,
		window:  defaultRateWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// allow reports whether the IP may make another request in the current
// window. Stale windows are reset in place; the map stays bounded by the
// number of distinct active IPs.
func (rl *ipRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rec, ok := rl.windows[ip]
	if !ok || now.Sub(rec.started) >= rl.window {
		rl.windows[ip] = &windowRecord{count: 1, started: now}
		return true
	}
	if rec.count >= rl.max {
		return false
	}
	rec.count++
	return true
}
