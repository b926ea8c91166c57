package destination

import (
	"context"
	"time"

	"github.com/tastebase/recipe-migrate/internal/errors"
)

// IsRetryable is the default retry classifier: network, timeout and server
// failures are retried, validation and unknown failures are terminal.
func IsRetryable(err error) bool {
	return errors.IsRetryable(err)
}

// Retry runs op, retrying retryable failures with exponential backoff:
// the wait before retry n is baseBackoff * 2^n (doubling per attempt,
// fixed base). It returns the number of retries performed alongside the
// final error; on exhaustion the last error is returned.
//
// Report timings and test expectations are derived from this exact policy,
// so the doubling schedule must not change.
func Retry(ctx context.Context, op func() error, maxRetries int, baseBackoff time.Duration, isRetryable func(error) bool) (int, error) {
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return attempt, nil
		}
		if !isRetryable(lastErr) || attempt >= maxRetries {
			return attempt, lastErr
		}

		delay := baseBackoff << uint(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.New(ctx.Err()).
				Category(errors.CategoryCancellation).
				Build()
		case <-timer.C:
		}
	}
}
