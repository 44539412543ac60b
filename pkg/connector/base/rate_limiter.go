package base

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a sliding one-second window gate over outbound requests.
//
// Before each request the ledger of recent timestamps is pruned to the last
// second; when the window is full the caller sleeps until the oldest entry
// ages out and re-evaluates in a loop, so the limit holds even under
// sustained contention. The ledger is mutex-guarded for monitoring readers,
// but within one connector only the single in-flight sync calls Wait.
type RateLimiter struct {
	mu        sync.Mutex
	perSecond int
	window    time.Duration
	requests  []time.Time
	source    string
}

// NewRateLimiter creates a limiter allowing perSecond requests per sliding
// second. A non-positive perSecond disables limiting.
func NewRateLimiter(source string, perSecond int) *RateLimiter {
	return &RateLimiter{
		perSecond: perSecond,
		window:    time.Second,
		source:    source,
	}
}

// Wait blocks until a request slot is available, then records the request.
// Returns early only when the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.perSecond <= 0 {
		return nil
	}

	start := time.Now()
	blocked := false

	for {
		rl.mu.Lock()
		now := time.Now()
		rl.prune(now)

		if len(rl.requests) < rl.perSecond {
			rl.requests = append(rl.requests, now)
			rl.mu.Unlock()

			if blocked {
				RateLimitWaits.WithLabelValues(rl.source).Add(time.Since(start).Seconds())
			}
			return nil
		}

		// Sleep until the oldest recent request leaves the window, then
		// re-check. An explicit loop, not recursion, so sustained
		// contention cannot grow the stack.
		wait := rl.requests[0].Add(rl.window).Sub(now)
		rl.mu.Unlock()

		if wait <= 0 {
			continue
		}

		blocked = true
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Pending returns the number of requests currently inside the window.
func (rl *RateLimiter) Pending() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(time.Now())
	return len(rl.requests)
}

// prune drops timestamps older than the window. Caller holds the lock.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.requests) && !rl.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.requests = rl.requests[i:]
	}
}
