package cdnsync

import (
	"net/http"
	"time"

	"github.com/ledgersync/cdnsync/pkg/metrics"
)

const (
	// SupportedNetworkID is the network/schema identifier this module
	// knows how to sync.
	SupportedNetworkID uint16 = 3

	// DefaultBlocksPerFile is the number of blocks per CDN bundle.
	DefaultBlocksPerFile uint64 = 50
	// DefaultConcurrentRequests is the desired number of concurrent
	// bundle downloads.
	DefaultConcurrentRequests uint64 = 16
	// DefaultSafetyMargin is the number of heights backed off the
	// advertised CDN tip, protecting against bundles that are
	// advertised but not yet fully materialized.
	DefaultSafetyMargin uint64 = 10

	defaultTickInterval      = 1 * time.Second
	defaultSaturationBackoff = 5 * time.Second
	defaultEmptyPollInterval = 3 * time.Second
	defaultGapPollInterval   = 1 * time.Second
)

// Config holds the pipeline tuning knobs. The zero value is usable:
// every zero field is replaced by its documented default.
type Config struct {
	// NetworkID identifies the network being synced. Must equal
	// SupportedNetworkID. Default: SupportedNetworkID.
	NetworkID uint16

	// BlocksPerFile is the fixed bundle width. Default: 50.
	BlocksPerFile uint64
	// ConcurrentRequests is the target number of in-flight bundle
	// downloads. Default: 16.
	ConcurrentRequests uint64
	// MaxPendingBlocks caps buffered-but-unapplied blocks
	// (backpressure ceiling). Default: BlocksPerFile *
	// ConcurrentRequests * 2.
	MaxPendingBlocks uint64
	// SafetyMargin is subtracted from the advertised CDN tip before
	// aligning the download end. Default: 10.
	SafetyMargin uint64

	// Retry governs bundle download retries. Default: unbounded
	// attempts with linear backoff.
	Retry RetryPolicy

	// Decode parses bundle bodies into blocks. Required.
	Decode DecodeFunc

	// HTTPClient performs all CDN requests. Default: a fresh
	// http.Client, reused for the whole sync so connections pool.
	HTTPClient *http.Client

	// Metrics, when non-nil, receives pipeline gauges and counters.
	Metrics *metrics.Metrics

	// TickInterval is the scheduler tick between launch decisions.
	// Default: 1s.
	TickInterval time.Duration
	// SaturationBackoff is the extra wait when the pending buffer is
	// full. Default: 5s.
	SaturationBackoff time.Duration
	// EmptyPollInterval is the applier's wait when no blocks are
	// buffered yet. Default: 3s.
	EmptyPollInterval time.Duration
	// GapPollInterval is the applier's wait when the earliest buffered
	// block is not yet the next one needed. Default: 1s.
	GapPollInterval time.Duration
}

// DefaultConfig returns a Config with every field at its documented
// default. Decode is left nil and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.NetworkID == 0 {
		c.NetworkID = SupportedNetworkID
	}
	if c.BlocksPerFile == 0 {
		c.BlocksPerFile = DefaultBlocksPerFile
	}
	if c.ConcurrentRequests == 0 {
		c.ConcurrentRequests = DefaultConcurrentRequests
	}
	if c.MaxPendingBlocks == 0 {
		c.MaxPendingBlocks = c.BlocksPerFile * c.ConcurrentRequests * 2
	}
	if c.SafetyMargin == 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.TickInterval == 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.SaturationBackoff == 0 {
		c.SaturationBackoff = defaultSaturationBackoff
	}
	if c.EmptyPollInterval == 0 {
		c.EmptyPollInterval = defaultEmptyPollInterval
	}
	if c.GapPollInterval == 0 {
		c.GapPollInterval = defaultGapPollInterval
	}
	return c
}
