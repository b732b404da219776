package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/internal/config"
)

func TestWrapper_TripsAfterFailureRatio(t *testing.T) {
	w := NewWrapper(Config{
		Name:         "test-trip",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := w.Run(context.Background(), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.True(t, w.IsOpen())

	called := false
	err := w.Run(context.Background(), func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestWrapper_PassesResults(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-pass"))

	out, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, gobreaker.StateClosed.String(), w.State())
}

func TestFromConfig_Disabled(t *testing.T) {
	w := FromConfig("test-disabled", config.CircuitBreakerConfig{Enabled: false})
	assert.Nil(t, w)
	assert.Equal(t, "disabled", w.State())
	assert.False(t, w.IsOpen())

	calls := 0
	for i := 0; i < 10; i++ {
		_ = w.Run(context.Background(), func() error {
			calls++
			return errors.New("fail")
		})
	}
	assert.Equal(t, 10, calls)
}

func TestWrapper_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-cancel"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, func() error {
		t.Fatal("must not be called")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
