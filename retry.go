package bulkmailer

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// RetryConfig contains retry policy configuration.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt, so a
	// send makes at most MaxRetries+1 attempts. Zero disables retries.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (should be > 1.0 for exponential backoff).
	Multiplier float64

	// Jitter adds up to 10% random jitter to delays. Off by default so the
	// backoff schedule is deterministic.
	Jitter bool
}

// DefaultRetryConfig returns default retry configuration: exponential
// backoff 1s, 2s, 4s, ... capped at one minute.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

// RetryManager wraps a send operation in bounded retries. Only transient
// (retryable) failures are retried; permanent failures return immediately.
type RetryManager struct {
	config RetryConfig
}

// NewRetryManager creates a new retry manager with the given configuration.
func NewRetryManager(config RetryConfig) *RetryManager {
	return &RetryManager{
		config: config,
	}
}

// Do executes fn, retrying transient failures up to MaxRetries times with
// backoff between attempts. It returns the number of attempts made and the
// final error. Context cancellation aborts the backoff wait.
func (r *RetryManager) Do(ctx context.Context, fn func() error) (int, error) {
	maxAttempts := r.config.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}

		lastErr = err

		// Permanent failures get exactly one attempt.
		if !IsRetryable(err) {
			return attempt, err
		}

		// Don't sleep after the last attempt.
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(r.Backoff(attempt)):
		}
	}

	return maxAttempts, lastErr
}

// Backoff returns the delay after the given 1-based attempt number:
// InitialDelay × Multiplier^(attempt-1), capped at MaxDelay. The schedule is
// deterministic unless Jitter is enabled.
func (r *RetryManager) Backoff(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1)))

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter {
		delay += randomJitter(time.Duration(float64(delay) * 0.1))
	}

	return delay
}

// randomJitter returns a random duration in [0, max) using crypto/rand.
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
