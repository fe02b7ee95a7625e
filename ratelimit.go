package bulkmailer

import (
	"context"
	"time"
)

// RateLimiter paces outbound sends to at most N attempts per minute using a
// fixed delay of 60/N seconds between the start of consecutive attempts.
// Only real send attempts are paced; the runner bypasses the limiter for
// dry-run and suppressed recipients.
//
// Processing is sequential, so the limiter carries no locking. An optional
// jitter spreads attempts slightly to avoid a perfectly regular cadence.
type RateLimiter struct {
	interval time.Duration
	jitter   time.Duration
	last     time.Time
}

// NewRateLimiter creates a limiter allowing perMinute send attempts per
// rolling minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
	}
}

// SetJitter adds a random delay in [0, d) on top of each pacing wait.
func (rl *RateLimiter) SetJitter(d time.Duration) {
	rl.jitter = d
}

// Interval returns the fixed delay between consecutive attempts.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Wait blocks until the next send attempt is allowed. The first call
// returns immediately. Context cancellation aborts the wait.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.last.IsZero() {
		wait := rl.interval - time.Since(rl.last)
		if rl.jitter > 0 {
			wait += randomJitter(rl.jitter)
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	rl.last = time.Now()
	return nil
}
