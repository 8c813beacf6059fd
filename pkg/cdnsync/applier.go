package cdnsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgersync/cdnsync/pkg/metrics"
)

// applier drains the reorder buffer in strictly increasing, gapless
// height order and feeds each block to the apply function. It is the
// single consumer; no two apply invocations are ever concurrent.
type applier struct {
	buf   *blockBuffer
	cfg   Config
	rng   SyncRange
	apply ApplyFunc
	log   *zap.SugaredLogger
	m     *metrics.Metrics
}

func newApplier(buf *blockBuffer, cfg Config, rng SyncRange, apply ApplyFunc, log *zap.SugaredLogger) *applier {
	return &applier{buf: buf, cfg: cfg, rng: rng, apply: apply, log: log, m: cfg.Metrics}
}

// run applies blocks until the window is exhausted. It returns the
// highest successfully applied height; on failure or cancellation the
// error is paired with that height so the caller can resume.
func (a *applier) run(ctx context.Context) (uint64, error) {
	current := a.rng.Start - 1
	prog := newProgress(a.rng, a.cfg.BlocksPerFile)

	for current < a.rng.End-1 {
		next, ok := a.buf.PeekEarliest()
		if !ok {
			a.log.Debug("no pending blocks yet")
			if !sleepCtx(ctx, a.cfg.EmptyPollInterval) {
				return current, ctx.Err()
			}
			continue
		}

		// Downloads complete out of order; wait until the earliest
		// buffered block is the next one to apply.
		if next > current+1 {
			a.log.Debugw("gap before first pending block; waiting",
				"next", next, "want", current+1, "pending", a.buf.Len())
			if !sleepCtx(ctx, a.cfg.GapPollInterval) {
				return current, ctx.Err()
			}
			continue
		}

		for _, blk := range a.buf.TakePrefix(int(a.cfg.BlocksPerFile)) {
			if err := ctx.Err(); err != nil {
				a.log.Infow("stopping block sync", "height", blk.Height())
				return current, err
			}

			// Bundles are aligned, so the edges of the window carry
			// blocks outside [Start, End).
			if blk.Height() < a.rng.Start || current >= a.rng.End-1 {
				a.log.Debugw("skipping block", "height", blk.Height())
				a.m.IncBlocksSkipped()
				continue
			}

			if err := a.apply(ctx, blk); err != nil {
				return current, fmt.Errorf("failed to apply block %d: %w", blk.Height(), err)
			}

			current++
			a.m.IncBlocksApplied()
			a.m.SetCurrentHeight(current)
			prog.log(a.log, current)
		}
	}

	return current, nil
}
