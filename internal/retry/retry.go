// Package retry wraps individual backend calls with the engine's transient
// retry policy. Only errors classified as transient are retried; everything
// else fails immediately. The attempt count is reported so orchestrators can
// record it on the result.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joel-wright/swiftbatch/errors"
)

// DefaultInterval is the base delay between attempts.
const DefaultInterval = 500 * time.Millisecond

// Do runs fn up to maxAttempts times, backing off between transient
// failures. It returns the number of attempts made and the last error.
func Do(ctx context.Context, maxAttempts int, fn func() error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(DefaultInterval),
		), uint64(maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	return attempts, err
}

// Constant runs fn up to maxAttempts times with a fixed interval, retrying
// only while shouldRetry approves the error. Used for the container-delete
// conflict loop, which retries conflicts rather than transients.
func Constant(ctx context.Context, maxAttempts int, interval time.Duration, shouldRetry func(error) bool, fn func() error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	return attempts, err
}
