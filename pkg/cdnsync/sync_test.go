package cdnsync_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgersync/cdnsync/pkg/cdnsync"
	"github.com/ledgersync/cdnsync/pkg/ledger"
	"github.com/ledgersync/cdnsync/pkg/wire"
)

// newCDN serves a synthetic CDN: latest.json advertising tip, and one
// bundle of consecutive blocks per {start}.{end}.blocks request.
func newCDN(t *testing.T, tip uint32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/latest.json" {
			body, err := wire.EncodeLatest(wire.LatestState{
				ExclusiveHeight: tip,
				InclusiveHeight: tip - 1,
				Hash:            "test",
			})
			require.NoError(t, err)
			w.Write(body) //nolint:errcheck // test server
			return
		}

		var start, end uint64
		if _, err := fmt.Sscanf(r.URL.Path, "/%d.%d.blocks", &start, &end); err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		blocks := make([]*wire.Block, 0, end-start)
		for h := start; h < end; h++ {
			blocks = append(blocks, &wire.Block{BlockHeight: h, Hash: fmt.Sprintf("%020x", h)})
		}
		body, err := wire.EncodeBundle(blocks)
		require.NoError(t, err)
		w.Write(body) //nolint:errcheck // test server
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fastConfig shrinks every poll interval so tests finish quickly.
func fastConfig() cdnsync.Config {
	return cdnsync.Config{
		Decode: wire.DecodeBundle,
		Retry: cdnsync.RetryPolicy{
			MaxAttempts: 3,
			Backoff:     func(int) time.Duration { return time.Millisecond },
		},
		TickInterval:      time.Millisecond,
		SaturationBackoff: time.Millisecond,
		EmptyPollInterval: time.Millisecond,
		GapPollInterval:   time.Millisecond,
	}
}

// recorder collects applied blocks and asserts contiguity later.
type recorder struct {
	mu      sync.Mutex
	heights []uint64
}

func (r *recorder) apply(_ context.Context, b cdnsync.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heights = append(r.heights, b.Height())
	return nil
}

func (r *recorder) applied() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.heights...)
}

func assertContiguous(t *testing.T, heights []uint64, first, last uint64) {
	t.Helper()
	require.Len(t, heights, int(last-first+1))
	for i, h := range heights {
		require.Equal(t, first+uint64(i), h)
	}
}

func TestLoadRange(t *testing.T) {
	tests := []struct {
		name  string
		start uint64
		end   uint64
		first uint64
		last  uint64
	}{
		{name: "aligned single bundle", start: 1, end: 50, first: 1, last: 49},
		{name: "unaligned multi bundle window", start: 46, end: 234, first: 46, last: 233},
		{name: "window starting mid chain", start: 101, end: 300, first: 101, last: 299},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCDN(t, 1000)
			rec := &recorder{}

			completed, err := cdnsync.LoadRange(
				context.Background(), srv.URL, tt.start, &tt.end,
				fastConfig(), zap.NewNop().Sugar(), rec.apply,
			)
			require.NoError(t, err)
			assert.Equal(t, tt.last, completed)
			assertContiguous(t, rec.applied(), tt.first, tt.last)
		})
	}
}

func TestLoadRangeUpToCDNHeight(t *testing.T) {
	// Advertised tip 110 backs off to 100 and aligns up to 150.
	srv := newCDN(t, 110)
	rec := &recorder{}

	completed, err := cdnsync.LoadRange(
		context.Background(), srv.URL, 1, nil,
		fastConfig(), zap.NewNop().Sugar(), rec.apply,
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(149), completed)
	assertContiguous(t, rec.applied(), 1, 149)
}

func TestLoadRangeApplyFailure(t *testing.T) {
	srv := newCDN(t, 1000)
	rec := &recorder{}
	apply := func(ctx context.Context, b cdnsync.Block) error {
		if b.Height() == 75 {
			return errors.New("disk full")
		}
		return rec.apply(ctx, b)
	}

	end := uint64(200)
	completed, err := cdnsync.LoadRange(
		context.Background(), srv.URL, 1, &end,
		fastConfig(), zap.NewNop().Sugar(), apply,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply block 75")
	assert.Equal(t, uint64(74), completed)
	assertContiguous(t, rec.applied(), 1, 74)
}

func TestLoadRangeEmptyWindow(t *testing.T) {
	srv := newCDN(t, 1000)
	rec := &recorder{}

	end := uint64(50)
	completed, err := cdnsync.LoadRange(
		context.Background(), srv.URL, 60, &end,
		fastConfig(), zap.NewNop().Sugar(), rec.apply,
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), completed)
	assert.Empty(t, rec.applied())
}

func TestLoadRangeValidation(t *testing.T) {
	srv := newCDN(t, 1000)
	log := zap.NewNop().Sugar()
	rec := &recorder{}

	t.Run("nil apply", func(t *testing.T) {
		_, err := cdnsync.LoadRange(context.Background(), srv.URL, 1, nil, fastConfig(), log, nil)
		require.Error(t, err)
	})

	t.Run("nil decoder", func(t *testing.T) {
		cfg := fastConfig()
		cfg.Decode = nil
		_, err := cdnsync.LoadRange(context.Background(), srv.URL, 1, nil, cfg, log, rec.apply)
		require.Error(t, err)
	})

	t.Run("unsupported network", func(t *testing.T) {
		cfg := fastConfig()
		cfg.NetworkID = 7
		_, err := cdnsync.LoadRange(context.Background(), srv.URL, 1, nil, cfg, log, rec.apply)
		require.ErrorIs(t, err, cdnsync.ErrUnsupportedNetwork)
	})

	t.Run("zero start height", func(t *testing.T) {
		_, err := cdnsync.LoadRange(context.Background(), srv.URL, 0, nil, fastConfig(), log, rec.apply)
		require.Error(t, err)
	})
}

func TestLoadRangeCancelledContext(t *testing.T) {
	srv := newCDN(t, 1000)
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cdnsync.LoadRange(ctx, srv.URL, 1, nil, fastConfig(), zap.NewNop().Sugar(), rec.apply)
	require.Error(t, err)
	assert.Empty(t, rec.applied())
}

func TestLoadRangeUnderBackpressure(t *testing.T) {
	srv := newCDN(t, 1000)
	rec := &recorder{}

	// One bundle's worth of buffered blocks forces the downloader to
	// wait on the applier throughout.
	cfg := fastConfig()
	cfg.MaxPendingBlocks = 50

	end := uint64(200)
	completed, err := cdnsync.LoadRange(
		context.Background(), srv.URL, 1, &end,
		cfg, zap.NewNop().Sugar(), rec.apply,
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(199), completed)
	assertContiguous(t, rec.applied(), 1, 199)
}

// faultyLedger fails Advance at one height, simulating a storage error
// partway through a sync.
type faultyLedger struct {
	*ledger.Memory
	failAt uint64
}

func (f *faultyLedger) Advance(ctx context.Context, b cdnsync.Block) error {
	if b.Height() == f.failAt {
		return errors.New("disk full")
	}
	return f.Memory.Advance(ctx, b)
}

// skewedLedger reports a height ahead of what was actually applied.
type skewedLedger struct {
	*faultyLedger
}

func (s *skewedLedger) LatestHeight(ctx context.Context) (uint64, error) {
	h, err := s.Memory.LatestHeight(ctx)
	if err != nil || h == 0 {
		return h, err
	}
	return h + 5, nil
}

func TestSync(t *testing.T) {
	srv := newCDN(t, 110)
	mem := ledger.NewMemory()

	completed, err := cdnsync.Sync(context.Background(), srv.URL, mem, fastConfig(), zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, uint64(149), completed)

	latest, err := mem.LatestHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(149), latest)

	blk, err := mem.Block(context.Background(), 149)
	require.NoError(t, err)
	assert.Equal(t, uint64(149), blk.Height())
}

func TestSyncZeroProgressSurfacesError(t *testing.T) {
	srv := newCDN(t, 110)
	l := &faultyLedger{Memory: ledger.NewMemory(), failAt: 1}

	completed, err := cdnsync.Sync(context.Background(), srv.URL, l, fastConfig(), zap.NewNop().Sugar())
	require.Error(t, err)
	assert.Equal(t, uint64(0), completed)
}

func TestSyncPartialProgressReconciles(t *testing.T) {
	srv := newCDN(t, 110)
	l := &faultyLedger{Memory: ledger.NewMemory(), failAt: 80}

	// The failed run applied 1..79 and the ledger agrees, so the
	// partial sync is reported as a success at that height.
	completed, err := cdnsync.Sync(context.Background(), srv.URL, l, fastConfig(), zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, uint64(79), completed)

	latest, err := l.LatestHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(79), latest)
}

func TestSyncLedgerHeightMismatch(t *testing.T) {
	srv := newCDN(t, 110)
	l := &skewedLedger{&faultyLedger{Memory: ledger.NewMemory(), failAt: 80}}

	_, err := cdnsync.Sync(context.Background(), srv.URL, l, fastConfig(), zap.NewNop().Sugar())
	require.ErrorIs(t, err, cdnsync.ErrLedgerHeightMismatch)
}
