package dispatch

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is an exponential backoff schedule
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy retries three times starting at 200ms
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}

// Retry calls fn until it succeeds, attempts run out or ctx ends.
// The delay doubles after each failure, capped at MaxDelay.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	delay := policy.BaseDelay
	var err error

	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == policy.Attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", policy.Attempts, err)
}
