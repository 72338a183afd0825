package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := NewDefaultRetryPolicyFactory().Create(3, 10, 100, 2, []string{"SinkWriteError"})
	sinkErr := exception.NewSinkWriteError("writer", "deadlock", nil, false)

	assert.True(t, p.ShouldRetry(1, sinkErr))
	assert.True(t, p.ShouldRetry(2, sinkErr))
	assert.False(t, p.ShouldRetry(3, sinkErr), "attempts exhausted")

	assert.True(t, p.ShouldRetry(1, exception.NewSourceReadError("reader", "timeout", nil, false, true)), "flagged retryable")
	assert.False(t, p.ShouldRetry(1, exception.NewTransformError("processor", "bad", nil, false, false)))
	assert.False(t, p.ShouldRetry(1, exception.NewRepositoryError("repository", "down", nil)))
	assert.False(t, p.ShouldRetry(1, context.Canceled))
	assert.Equal(t, 3, p.MaxAttempts())
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := NewDefaultRetryPolicyFactory().FromConfig(config.RetryConfig{
		MaxAttempts: 5, InitialInterval: 100, MaxInterval: 300, Multiplier: 2,
	})

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(3), "capped at max interval")

	fixed := NewDefaultRetryPolicyFactory().Create(0, 50, 0, 0, nil)
	assert.Equal(t, 1, fixed.MaxAttempts())
	assert.Equal(t, 50*time.Millisecond, fixed.Backoff(4))
}

func TestDo(t *testing.T) {
	p := NewDefaultRetryPolicyFactory().Create(3, 0, 0, 1, []string{"SinkWriteError"})
	transient := exception.NewSinkWriteError("writer", "busy", nil, false)

	var attempts, retries []int
	err := Do(context.Background(), p, func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return transient
		}
		return nil
	}, func(attempt int, err error) { retries = append(retries, attempt) })

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []int{2, 3}, retries)

	fatal := errors.New("fatal")
	calls := 0
	err = Do(context.Background(), p, func(int) error { calls++; return fatal }, nil)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
