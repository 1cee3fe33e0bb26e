package resilience

import (
	"context"
	"fmt"
	"time"
)

// Classifier decides whether an error is worth retrying. It is kept separate
// from the operation so classification rules can be tested without any
// network code behind them.
type Classifier func(error) bool

// RetryPolicy bounds a retry loop: how many attempts and how long to wait
// between them.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffStrategy
}

// RateLimitRetryPolicy returns the policy applied to chain transport calls:
// a handful of attempts over the fixed escalating sequence.
func RateLimitRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff:     RateLimitBackoff(),
	}
}

// Retry runs op until it succeeds, the classifier reports the error as
// non-retryable, attempts are exhausted, or the context is done.
// Non-retryable errors propagate immediately and unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := policy.Backoff.NextDelay(attempt - 1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !classify(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("retries exhausted after %d attempts: %w", policy.MaxAttempts, lastErr)
}
