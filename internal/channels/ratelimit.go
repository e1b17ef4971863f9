package channels

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps the number of tracked senders so a flood of distinct
// ids cannot exhaust memory.
const maxTrackedKeys = 4096

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SenderRateLimiter applies a token bucket per sender.
// Safe for concurrent use.
type SenderRateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// NewSenderRateLimiter allows rpm messages per minute per sender with the
// given burst. rpm <= 0 returns nil, which HandleMessage treats as unlimited.
func NewSenderRateLimiter(rpm, burst int) *SenderRateLimiter {
	if rpm <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return &SenderRateLimiter{
		limit:   rate.Limit(float64(rpm) / 60.0),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether key may send now, consuming a token if so.
func (r *SenderRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if len(r.entries) >= maxTrackedKeys {
		r.pruneLocked(now)
	}

	e, ok := r.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// pruneLocked drops idle senders, then evicts arbitrarily if still at the cap.
func (r *SenderRateLimiter) pruneLocked(now time.Time) {
	for k, e := range r.entries {
		if now.Sub(e.lastSeen) >= time.Minute {
			delete(r.entries, k)
		}
	}
	for len(r.entries) >= maxTrackedKeys {
		for k := range r.entries {
			delete(r.entries, k)
			break
		}
	}
}
