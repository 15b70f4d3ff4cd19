// Package ratelimit implements the per-bot outbound throttle: a fixed
// one-second window with a configurable per-bot ceiling.
//
// The contract is CheckLimit (count < ceiling) followed by Increment,
// composed by IsAllowed. The pair is deliberately not atomic across workers:
// concurrent workers racing on the same bot can overshoot the ceiling by at
// most the number of racers, which is an accepted trade-off for keeping the
// hot path to a single short critical section. Exceeding the limit silently
// drops the event upstream; nothing is queued or retried.
//
// Note the edge-level HTTP limiter (internal/http/middleware) is a separate
// token bucket protecting the ingress; this limiter bounds deliveries.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the fixed window size. Counters expire at window boundaries
// rather than sliding.
const Window = time.Second

// counter tracks one bot's usage inside the current window.
type counter struct {
	count       int
	windowStart time.Time
}

// Limiter is a per-key fixed-window rate limiter. Safe for concurrent use.
type Limiter struct {
	ceiling int

	mu       sync.Mutex
	counters map[string]*counter
	cleanupN uint64

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// New constructs a Limiter allowing up to ceiling events per bot per window.
// A non-positive ceiling is coerced to 1.
func New(ceiling int) *Limiter {
	if ceiling <= 0 {
		ceiling = 1
	}
	return &Limiter{
		ceiling:  ceiling,
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// current returns the live counter for botID, resetting it when the window
// has rolled over. Caller must hold mu.
func (l *Limiter) current(botID string, now time.Time) *counter {
	c, ok := l.counters[botID]
	if !ok {
		c = &counter{windowStart: now}
		l.counters[botID] = c
		return c
	}
	if now.Sub(c.windowStart) >= Window {
		c.count = 0
		c.windowStart = now
	}
	return c
}

// CheckLimit reports whether botID is still under its ceiling in the current
// window. It does not consume capacity.
func (l *Limiter) CheckLimit(botID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current(botID, l.now()).count < l.ceiling
}

// Increment consumes one unit of capacity for botID and returns the new
// window count.
func (l *Limiter) Increment(botID string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Sweep stale counters occasionally so idle bots do not pin memory.
	l.cleanupN++
	if l.cleanupN >= 5000 {
		for k, c := range l.counters {
			if now.Sub(c.windowStart) >= Window {
				delete(l.counters, k)
			}
		}
		l.cleanupN = 0
	}

	c := l.current(botID, now)
	c.count++
	return c.count
}

// IsAllowed is the check-then-increment gate used by the workers: true when
// the event may proceed, false when it must be dropped.
func (l *Limiter) IsAllowed(botID string) bool {
	if l.CheckLimit(botID) {
		l.Increment(botID)
		return true
	}
	return false
}
