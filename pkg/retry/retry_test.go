package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	cause := errors.New("bad request")
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(cause)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("always")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, next, 5*time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastPolicy(5), func() error {
		calls++
		return errors.New("fail")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestCalculateBackoffDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, CalculateBackoffDuration(0, 100*time.Millisecond, 2, time.Second))
	assert.Equal(t, 400*time.Millisecond, CalculateBackoffDuration(2, 100*time.Millisecond, 2, time.Second))
	assert.Equal(t, time.Second, CalculateBackoffDuration(10, 100*time.Millisecond, 2, time.Second))
}
