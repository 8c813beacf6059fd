package cdnsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDefaultBackoffIsLinear(t *testing.T) {
	var p RetryPolicy

	assert.Equal(t, 1*time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 7*time.Second, p.backoff(7))
}

func TestRetryPolicyCustomBackoff(t *testing.T) {
	p := RetryPolicy{Backoff: func(attempt int) time.Duration {
		return time.Duration(attempt) * time.Millisecond
	}}

	assert.Equal(t, 3*time.Millisecond, p.backoff(3))
}

func TestRetryPolicyExhausted(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		attempts    int
		want        bool
	}{
		{name: "zero means retry forever", maxAttempts: 0, attempts: 1000, want: false},
		{name: "below the limit", maxAttempts: 3, attempts: 2, want: false},
		{name: "at the limit", maxAttempts: 3, attempts: 3, want: true},
		{name: "past the limit", maxAttempts: 3, attempts: 4, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := RetryPolicy{MaxAttempts: tt.maxAttempts}
			assert.Equal(t, tt.want, p.exhausted(tt.attempts))
		})
	}
}

func TestSleepCtx(t *testing.T) {
	t.Run("full wait elapses", func(t *testing.T) {
		assert.True(t, sleepCtx(context.Background(), time.Millisecond))
	})

	t.Run("cancellation interrupts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		assert.False(t, sleepCtx(ctx, time.Hour))
		assert.Less(t, time.Since(start), time.Second)
	})
}
