package cdnsync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Sync loads blocks from the CDN into the ledger, resuming from the
// ledger's current height.
//
// On success it returns the completed block height. On failure it
// returns the last successfully applied height along with the error,
// so the caller can re-invoke to resume. If a failed run made partial
// progress, the ledger is cross-checked first: a height disagreement
// surfaces ErrLedgerHeightMismatch, an unreadable latest block
// surfaces the read error, and a ledger that checks out turns the
// partial run into a success at the completed height.
func Sync(ctx context.Context, baseURL string, ledger Ledger, cfg Config, log *zap.SugaredLogger) (uint64, error) {
	if ledger == nil {
		return 0, errors.New("invalid ledger: must not be nil")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	latest, err := ledger.LatestHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read the ledger height: %w", err)
	}
	start := latest + 1

	completed, err := LoadRange(ctx, baseURL, start, nil, cfg, log, ledger.Advance)
	if err == nil {
		return completed, nil
	}
	log.Warnw("sync failed", "completed", completed, "error", err)

	// Zero progress: nothing to reconcile, surface the error as is.
	if completed < start {
		return completed, err
	}
	log.Debugw("synced the ledger part way", "completed", completed)

	nodeHeight, lerr := ledger.LatestHeight(ctx)
	if lerr != nil {
		return completed, fmt.Errorf("failed to read the ledger height: %w", lerr)
	}
	if nodeHeight != completed {
		return completed, fmt.Errorf("%w: ledger reports %d, sync completed %d",
			ErrLedgerHeightMismatch, nodeHeight, completed)
	}
	if _, berr := ledger.Block(ctx, nodeHeight); berr != nil {
		return completed, berr
	}

	return completed, nil
}

// LoadRange loads blocks in [start, end) from the CDN and feeds each
// one, in strictly increasing contiguous height order, to apply. A
// nil end means "up to the CDN height"; a non-nil end is clamped to
// it. It is independent of any ledger implementation: apply is the
// sole coupling to storage.
//
// On success the returned height is end-1 (or the clamped end for an
// empty window, with zero blocks applied). On failure the last
// successfully applied height accompanies the error; when nothing was
// applied that is start-1. start must be at least 1.
func LoadRange(
	ctx context.Context,
	baseURL string,
	start uint64,
	end *uint64,
	cfg Config,
	log *zap.SugaredLogger,
	apply ApplyFunc,
) (uint64, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if start == 0 {
		return 0, errors.New("invalid start height: must be at least 1")
	}
	// Nothing applied yet, so the resumable height is start-1.
	completed := start - 1
	if apply == nil {
		return completed, errors.New("invalid apply function: must not be nil")
	}
	if cfg.Decode == nil {
		return completed, errors.New("invalid config: decoder must not be nil")
	}
	if cfg.NetworkID != SupportedNetworkID {
		return completed, fmt.Errorf("%w: network %d", ErrUnsupportedNetwork, cfg.NetworkID)
	}

	c := newClient(cfg, baseURL, log)
	rng, err := planRange(ctx, c, cfg, start, end)
	if err != nil {
		return completed, err
	}
	if rng.isEmpty() {
		log.Infow("nothing to sync", "start", rng.Start, "end", rng.End)
		return rng.End, nil
	}
	log.Infow("syncing blocks from CDN",
		"start", rng.Start, "end", rng.End, "cdnStart", rng.CDNStart, "cdnEnd", rng.CDNEnd)
	cfg.Metrics.SetCDNEnd(rng.CDNEnd)
	cfg.Metrics.SetCurrentHeight(rng.Start - 1)

	buf := newBlockBuffer(log, cfg.Metrics)

	// The downloader gets its own cancellation so a finished or failed
	// applier deterministically winds down every fetch goroutine.
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := newDownloader(c, buf, cfg, rng, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.run(dctx)
	}()

	completed, err = newApplier(buf, cfg, rng, apply, log).run(ctx)

	cancel()
	<-done

	return completed, err
}
