// Package retry decides whether a failed operation is attempted again and how long to wait.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// RetryPolicy defines retry classification and exponential backoff.
type RetryPolicy interface {
	// ShouldRetry reports whether attempt (1-based) failed with err may be followed by another attempt.
	ShouldRetry(attempt int, err error) bool
	// Backoff returns the wait before the attempt following attempt.
	Backoff(attempt int) time.Duration
	// MaxAttempts returns the total number of attempts, including the first.
	MaxAttempts() int
}

// DefaultRetryPolicyFactory creates RetryPolicy instances.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create creates a RetryPolicy.
// Intervals are in milliseconds; a multiplier below 1 means a fixed interval and maxInterval 0 means no cap.
func (f *DefaultRetryPolicyFactory) Create(maxAttempts, initialInterval, maxInterval int, multiplier float64, retryableExceptions []string) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return &defaultRetryPolicy{
		maxAttempts:         maxAttempts,
		initialInterval:     time.Duration(initialInterval) * time.Millisecond,
		maxInterval:         time.Duration(maxInterval) * time.Millisecond,
		multiplier:          multiplier,
		retryableExceptions: retryableExceptions,
	}
}

// FromConfig creates a RetryPolicy from an item_retry or chunk_retry section.
func (f *DefaultRetryPolicyFactory) FromConfig(cfg config.RetryConfig) RetryPolicy {
	return f.Create(cfg.MaxAttempts, cfg.InitialInterval, cfg.MaxInterval, cfg.Multiplier, cfg.RetryableExceptions)
}

type defaultRetryPolicy struct {
	maxAttempts         int
	initialInterval     time.Duration
	maxInterval         time.Duration
	multiplier          float64
	retryableExceptions []string
}

func (p *defaultRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry is true while attempts remain and err is a BatchError flagged retryable or matches
// a configured name. Repository and configuration errors and cancellation are never retried.
func (p *defaultRetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch exception.KindOf(err) {
	case exception.KindRepository, exception.KindConfiguration:
		return false
	}

	var be *exception.BatchError
	if errors.As(err, &be) && be.IsRetryable() {
		return true
	}
	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

// Backoff is initialInterval * multiplier^(attempt-1), capped at maxInterval.
func (p *defaultRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.initialInterval) * math.Pow(p.multiplier, float64(attempt-1))
	if p.maxInterval > 0 && d > float64(p.maxInterval) {
		return p.maxInterval
	}
	return time.Duration(d)
}

var _ RetryPolicy = (*defaultRetryPolicy)(nil)

// Do calls fn until it succeeds or policy refuses another attempt, sleeping the backoff in
// between. onRetry, when non-nil, is called before each new attempt. The last error is returned.
func Do(ctx context.Context, policy RetryPolicy, fn func(attempt int) error, onRetry func(attempt int, err error)) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !policy.ShouldRetry(attempt, err) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		if werr := Sleep(ctx, policy.Backoff(attempt)); werr != nil {
			return err
		}
	}
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
