// Package retry runs calls to external services with a bounded number of
// attempts and a constant delay between them.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/testme/testme-backend/pkg/errors"
)

// Policy bounds a retried call
type Policy struct {
	// MaxAttempts counts the first call; 2 means one retry.
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether an error earns another attempt.
	// Defaults to errors.IsRetryable (upstream failures only).
	Retryable func(error) bool
	// OnRetry is called before each new attempt.
	OnRetry func(err error, wait time.Duration)
}

// Default is one retry after one second.
var Default = Policy{MaxAttempts: 2, Delay: time.Second}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. The last error from fn is returned unchanged.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = errors.IsRetryable
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.MaxAttempts-1)),
		ctx,
	)

	var last error
	op := func() error {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return backoff.Permanent(last)
			}
			return backoff.Permanent(err)
		}
		last = fn(ctx)
		if last != nil && !retryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = backoff.Notify(p.OnRetry)
	}

	err := backoff.RetryNotify(op, b, notify)
	if err != nil && last != nil && ctx.Err() != nil {
		// backoff reports ctx.Err() when the deadline hits during the wait;
		// the caller cares about the call's own failure.
		return last
	}
	return err
}
