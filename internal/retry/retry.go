// Package retry provides bounded retry with exponential backoff for the
// artifact service calls, which fail transiently while an upload from a
// parallel job is still settling.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation: how many attempts, and how the delay
// between them grows.
type Policy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts uint
	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the growing delay.
	MaxDelay time.Duration
}

// DownloadPolicy is the default for artifact downloads.
var DownloadPolicy = Policy{
	MaxAttempts:  6,
	InitialDelay: 5 * time.Second,
	MaxDelay:     80 * time.Second,
}

var errRetriesExhausted = errors.New("retries exhausted")

// Do runs op until it succeeds, the policy's attempts are exhausted, or
// the context is cancelled. The last error is wrapped with the attempt
// count so logs show how hard the operation was tried.
func Do(ctx context.Context, policy Policy, op func() error) error {
	if policy.MaxAttempts == 0 {
		return fmt.Errorf("retry policy allows no attempts")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialDelay
	bo.MaxInterval = policy.MaxDelay
	// Give up on attempts, not elapsed time.
	bo.MaxElapsedTime = 0

	attempts := uint(0)
	wrapped := func() error {
		attempts++
		return op()
	}

	err := backoff.Retry(
		wrapped,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(policy.MaxAttempts-1)), ctx),
	)
	if err != nil {
		// A permanent error or cancellation stops early; only a full
		// run of failed attempts counts as exhaustion.
		if attempts < policy.MaxAttempts {
			return err
		}
		return fmt.Errorf("%w after %d attempts: %w", errRetriesExhausted, attempts, err)
	}

	return nil
}

// Permanent marks an error as not worth retrying; Do returns it
// immediately. Used for failures like a 404 on a named artifact, where
// waiting will not help.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
