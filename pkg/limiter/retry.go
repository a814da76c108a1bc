package limiter

import (
	"context"
	"time"
)

// RetryPolicy bounds the optimistic-concurrency retry loop. A conditional
// write voided by a concurrent writer is retried after an exponentially
// growing backoff until the attempt budget runs out.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 5.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt. Default: 10ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default: 250ms.
	MaxDelay time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 10 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 250 * time.Millisecond
	}
	return p
}

// backoff returns the delay before the given retry, counted from zero for
// the first retry.
func (p RetryPolicy) backoff(retry int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
