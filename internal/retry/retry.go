// Package retry wraps fallible operations with a bounded exponential-backoff
// retry policy. Delay growth is deterministic:
//
//	delay = min(baseDelay * backoffFactor^(attempt-1), maxDelay)
//
// Non-retryable errors and exhausted attempts propagate immediately without a
// trailing wait. The executor keeps no state between calls.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures a single Do call. It is immutable per call.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	// 1 means no retry.
	MaxAttempts int

	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// RetryIf decides whether an error is worth another attempt.
	// Nil falls back to DefaultRetryable.
	RetryIf func(error) bool
}

// DefaultPolicy matches the remote client's transient failure profile.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}
}

// retryableError is implemented by structured errors that carry their own
// retryability classification, such as the remote API error.
type retryableError interface {
	IsRetryable() bool
}

// DefaultRetryable classifies transient network errors, timeouts and
// retryable-flagged structured errors as worth another attempt. Everything
// else, including connectivity loss, propagates on first failure.
func DefaultRetryable(err error) bool {
	var re retryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Do runs op until it succeeds, the policy is exhausted, or the error is
// classified non-retryable. The final error is returned unwrapped.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	retryIf := policy.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryable
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.MaxInterval = policy.MaxDelay
	b.Multiplier = policy.BackoffFactor
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	var bo backoff.BackOff = backoff.WithContext(b, ctx)
	retries := policy.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	bo = backoff.WithMaxRetries(bo, uint64(retries))

	return backoff.RetryWithData(func() (T, error) {
		v, err := op(ctx)
		if err != nil && !retryIf(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, bo)
}
