package cdnsync

import (
	"context"
	"time"
)

// RetryPolicy controls how bundle downloads are retried. The zero
// value retries forever with linear backoff, which is the production
// behavior: a permanently broken endpoint stalls its chunk rather than
// failing the sync. Tests inject a bounded policy.
type RetryPolicy struct {
	// MaxAttempts is the number of failed attempts after which the
	// download gives up. 0 means retry indefinitely.
	MaxAttempts int

	// Backoff returns the wait after the attempt-th failure
	// (1-based). Nil means linear: attempt seconds.
	Backoff func(attempt int) time.Duration
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(attempt)
	}
	return time.Duration(attempt) * time.Second
}

func (p RetryPolicy) exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// sleepCtx waits for d or until ctx is cancelled. It reports whether
// the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
