package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "cdnsync"

// Labels holds constant labels applied to all metrics, useful for
// distinguishing metrics from multiple sync instances.
type Labels struct {
	NetworkID   uint16 // network identifier being synced
	Environment string // deployment environment (e.g., "production", "staging")
	Region      string // cloud region (e.g., "us-east-1")
}

// toPrometheusLabels converts Labels to a prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.NetworkID != 0 {
		labels["network_id"] = strconv.FormatUint(uint64(l.NetworkID), 10)
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	return labels
}

// Metrics instruments the sync pipeline. All methods are safe to call
// on a nil receiver, so the pipeline runs unchanged without a
// registry.
type Metrics struct {
	// Pipeline state
	currentHeight  prometheus.Gauge
	cdnEnd         prometheus.Gauge
	pendingBlocks  prometheus.Gauge
	activeRequests prometheus.Gauge

	// Pipeline counters
	blocksApplied   prometheus.Counter
	blocksSkipped   prometheus.Counter
	duplicateBlocks prometheus.Counter
	fetchRetries    prometheus.Counter

	// Download latency
	bundleFetchDuration prometheus.Histogram
}

// New creates Metrics registered on reg with no constant labels.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates Metrics registered on reg with the given
// constant labels applied to every metric.
func NewWithLabels(reg prometheus.Registerer, l Labels) (*Metrics, error) {
	constLabels := l.toPrometheusLabels()

	m := &Metrics{
		currentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "current_height",
			Help:        "Highest block height successfully applied so far.",
			ConstLabels: constLabels,
		}),
		cdnEnd: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "cdn_end_height",
			Help:        "Exclusive end height of the planned download range.",
			ConstLabels: constLabels,
		}),
		pendingBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "pending_blocks",
			Help:        "Downloaded blocks buffered and awaiting application.",
			ConstLabels: constLabels,
		}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "active_requests",
			Help:        "Bundle downloads currently in flight.",
			ConstLabels: constLabels,
		}),
		blocksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "blocks_applied_total",
			Help:        "Blocks applied to the ledger.",
			ConstLabels: constLabels,
		}),
		blocksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "blocks_skipped_total",
			Help:        "Redundant bundle-edge blocks discarded without applying.",
			ConstLabels: constLabels,
		}),
		duplicateBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "duplicate_blocks_total",
			Help:        "Duplicate buffer inserts dropped.",
			ConstLabels: constLabels,
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "fetch_retries_total",
			Help:        "Failed bundle download attempts that were retried.",
			ConstLabels: constLabels,
		}),
		bundleFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   Namespace,
			Name:        "bundle_fetch_duration_seconds",
			Help:        "Time to download and decode one bundle.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}),
	}

	collectors := []prometheus.Collector{
		m.currentHeight,
		m.cdnEnd,
		m.pendingBlocks,
		m.activeRequests,
		m.blocksApplied,
		m.blocksSkipped,
		m.duplicateBlocks,
		m.fetchRetries,
		m.bundleFetchDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SetCurrentHeight(h uint64) {
	if m == nil {
		return
	}
	m.currentHeight.Set(float64(h))
}

func (m *Metrics) SetCDNEnd(h uint64) {
	if m == nil {
		return
	}
	m.cdnEnd.Set(float64(h))
}

func (m *Metrics) SetPendingBlocks(n int) {
	if m == nil {
		return
	}
	m.pendingBlocks.Set(float64(n))
}

func (m *Metrics) SetActiveRequests(n int64) {
	if m == nil {
		return
	}
	m.activeRequests.Set(float64(n))
}

func (m *Metrics) IncBlocksApplied() {
	if m == nil {
		return
	}
	m.blocksApplied.Inc()
}

func (m *Metrics) IncBlocksSkipped() {
	if m == nil {
		return
	}
	m.blocksSkipped.Inc()
}

func (m *Metrics) IncDuplicateBlocks() {
	if m == nil {
		return
	}
	m.duplicateBlocks.Inc()
}

func (m *Metrics) IncFetchRetries() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

func (m *Metrics) ObserveBundleFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.bundleFetchDuration.Observe(d.Seconds())
}
