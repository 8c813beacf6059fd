package cdnsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ledgersync/cdnsync/pkg/metrics"
)

// downloader drives the concurrent bundle downloads feeding the
// reorder buffer. It acts as a supervisor: every fetch goroutine it
// spawns is tracked, and run returns only after all of them have
// finished, so the caller can join the whole download side as a unit.
type downloader struct {
	client *client
	buf    *blockBuffer
	cfg    Config
	rng    SyncRange
	log    *zap.SugaredLogger
	m      *metrics.Metrics

	// In-flight request count, shared with the fetch goroutines.
	active atomic.Int64
}

func newDownloader(c *client, buf *blockBuffer, cfg Config, rng SyncRange, log *zap.SugaredLogger) *downloader {
	return &downloader{client: c, buf: buf, cfg: cfg, rng: rng, log: log, m: cfg.Metrics}
}

// run executes the launch loop until the planned range is covered by
// buffered and in-flight work, or ctx is cancelled. Each tick it
// checks the backpressure ceiling, decides how many new downloads the
// budget allows, and launches them over consecutive chunks.
func (d *downloader) run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	bpf := d.cfg.BlocksPerFile
	next := d.rng.CDNStart
	for next < d.rng.CDNEnd-1 {
		if ctx.Err() != nil {
			return
		}

		// Avoid collecting too many blocks, to restrict memory use.
		pending := uint64(d.buf.Len())
		if pending >= d.cfg.MaxPendingBlocks {
			d.log.Debugw("maximum number of pending blocks reached, waiting", "pending", pending)
			if !sleepCtx(ctx, d.cfg.SaturationBackoff) {
				return
			}
			continue
		}

		// Stop once buffered and in-flight work covers the range.
		inflight := uint64(d.active.Load())
		if next+pending+inflight*bpf >= d.rng.CDNEnd-1 {
			d.log.Debug("reached the end of the syncing range; stopping CDN requests")
			return
		}

		// Hold concurrency at the target unless that would breach the
		// pending ceiling.
		launch := min(d.cfg.ConcurrentRequests, (d.cfg.MaxPendingBlocks-pending)/bpf)
		if launch > inflight {
			launch -= inflight
		} else {
			launch = 0
		}

		for i := uint64(0); i < launch; i++ {
			start := next + i*bpf
			end := start + bpf

			// Never request a bundle past the upper limit.
			if end > d.rng.CDNEnd+bpf {
				d.log.Debug("reached the end of the syncing range; stopping CDN requests")
				break
			}

			wg.Add(1)
			d.active.Add(1)
			d.m.SetActiveRequests(d.active.Load())
			go func() {
				defer func() {
					d.active.Add(-1)
					d.m.SetActiveRequests(d.active.Load())
					wg.Done()
				}()
				d.fetch(ctx, start, end)
			}()
		}

		next += bpf * launch

		// A short sleep so some block application happens in between.
		if !sleepCtx(ctx, d.cfg.TickInterval) {
			return
		}
	}
}

// fetch downloads one chunk and inserts its blocks into the buffer.
func (d *downloader) fetch(ctx context.Context, start, end uint64) {
	d.log.Debugw("requesting blocks", "start", start, "end", end, "of", d.rng.CDNEnd)

	t := time.Now()
	blocks, err := d.client.fetchChunk(ctx, start, end)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		d.log.Warnw("abandoning blocks", "start", start, "end", end, "error", err)
		return
	}

	d.buf.InsertAll(blocks)
	d.log.Debugw("received blocks",
		"start", start, "end", end, "elapsed", time.Since(t), "queued", d.buf.Len())
}
