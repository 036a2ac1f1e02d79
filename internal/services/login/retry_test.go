package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestCalculateBackoff_ExponentialWithinJitterBounds(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}

	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		backoff := policy.CalculateBackoff(attempt)
		min := time.Duration(float64(base) * 0.75)
		max := time.Duration(float64(base) * 1.25)
		assert.GreaterOrEqual(t, backoff, min, "attempt %d", attempt)
		assert.LessOrEqual(t, backoff, max, "attempt %d", attempt)
	}
}

func TestCalculateBackoff_CappedAtMax(t *testing.T) {
	policy := &RetryPolicy{
		InitialBackoff:    time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}

	backoff := policy.CalculateBackoff(10)
	assert.LessOrEqual(t, backoff, time.Duration(float64(5*time.Second)*1.25))
}

func TestExecute_SucceedsAfterTransientFailures(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	calls := 0
	err := policy.Execute(context.Background(), arbor.NewLogger(), "test-op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	wanted := errors.New("permanent")
	calls := 0
	err := policy.Execute(context.Background(), arbor.NewLogger(), "test-op", func() error {
		calls++
		return wanted
	})

	assert.ErrorIs(t, err, wanted)
	assert.Equal(t, 3, calls)
}

func TestExecute_StopsOnCancelledContext(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:       5,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Execute(ctx, arbor.NewLogger(), "test-op", func() error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation during backoff must stop further attempts")
}
