package cdnsync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartStallWatchdog periodically samples the given height and warns
// when it has not advanced since the previous check. height is
// typically the ledger's LatestHeight bound to a background context.
// Returns when ctx is done.
func StartStallWatchdog(ctx context.Context, log *zap.SugaredLogger, height func() uint64, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	last := height()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			current := height()
			if current == last {
				log.Warnw("sync has not advanced since the last check",
					"height", current, "interval", interval)
			}
			last = current
		}
	}
}
