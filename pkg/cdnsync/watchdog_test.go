package cdnsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStallWatchdogWarnsWhenHeightStalls(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core).Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		StartStallWatchdog(ctx, log, func() uint64 { return 42 }, 5*time.Millisecond)
	}()

	assert.Eventually(t, func() bool {
		return logs.Len() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestStallWatchdogSilentWhileAdvancing(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core).Sugar()

	var h atomic.Uint64
	height := func() uint64 { return h.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		StartStallWatchdog(ctx, log, height, 5*time.Millisecond)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Zero(t, logs.Len())
}
