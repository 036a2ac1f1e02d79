package login

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy defines retry behavior with exponential backoff for flaky
// browser operations
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// PageLoadRetryPolicy covers navigation and reloads, where failures are
// usually transient network hiccups worth a slower retry
func PageLoadRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        15 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ElementSearchRetryPolicy covers DOM lookups, which settle quickly once
// the page has rendered, so attempts are faster and more frequent
func ElementSearchRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// CalculateBackoff calculates the backoff duration with exponential backoff
// and jitter (±25%)
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

// Execute wraps a browser operation with the retry loop. The operation's
// own context governs each attempt; cancellation stops the loop between
// attempts.
func (p *RetryPolicy) Execute(ctx context.Context, logger arbor.ILogger, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < p.MaxAttempts-1 {
			backoff := p.CalculateBackoff(attempt)
			logger.Debug().
				Str("operation", operation).
				Int("attempt", attempt+1).
				Err(lastErr).
				Dur("backoff", backoff).
				Msg("Retrying after backoff")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	logger.Warn().
		Str("operation", operation).
		Int("max_attempts", p.MaxAttempts).
		Err(lastErr).
		Msg("All retry attempts exhausted")

	return lastErr
}
