package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      4 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	cause := errors.New("connection refused")
	calls := 0
	err := RetryWithBackoff(context.Background(), fastConfig(3), func() error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_NonRetryable(t *testing.T) {
	fatal := errors.New("bad credentials")
	cfg := fastConfig(5)
	cfg.RetryableErrors = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return fatal
	})
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_OnRetryAndBackoff(t *testing.T) {
	var waits []time.Duration
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		waits = append(waits, wait)
	}

	_ = RetryWithBackoff(context.Background(), cfg, func() error { return errors.New("down") })
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}, waits)
}

func TestRetryWithBackoff_Jitter(t *testing.T) {
	cfg := fastConfig(2)
	cfg.InitialDelay = 10 * time.Millisecond
	cfg.JitterFactor = 0.5

	var wait time.Duration
	cfg.OnRetry = func(_ int, _ error, w time.Duration) { wait = w }
	_ = RetryWithBackoff(context.Background(), cfg, func() error { return errors.New("down") })

	assert.GreaterOrEqual(t, wait, 10*time.Millisecond)
	assert.Less(t, wait, 15*time.Millisecond)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Hour
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := RetryWithBackoff(ctx, cfg, func() error { return errors.New("down") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryWithBackoff(context.Background(), RetryConfig{}, func() error {
		calls++
		return errors.New("down")
	})
	assert.Equal(t, 1, calls)
}

func TestRandomInt64n(t *testing.T) {
	assert.Equal(t, int64(0), randomInt64n(0))
	assert.Equal(t, int64(0), randomInt64n(-5))
	for i := 0; i < 100; i++ {
		v := randomInt64n(10)
		assert.GreaterOrEqual(t, v, int64(0))
		assert.Less(t, v, int64(10))
	}
}
