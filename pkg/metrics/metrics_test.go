package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// A second registration on the same registry must collide.
	_, err = New(reg)
	require.Error(t, err)
}

func TestSettersAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.SetCurrentHeight(42)
	m.SetCDNEnd(1000)
	m.SetPendingBlocks(7)
	m.SetActiveRequests(3)
	m.IncBlocksApplied()
	m.IncBlocksApplied()
	m.IncBlocksSkipped()
	m.IncDuplicateBlocks()
	m.IncFetchRetries()
	m.ObserveBundleFetch(250 * time.Millisecond)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.currentHeight))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.cdnEnd))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.pendingBlocks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeRequests))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.blocksApplied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.blocksSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicateBlocks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRetries))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetCurrentHeight(1)
		m.SetCDNEnd(1)
		m.SetPendingBlocks(1)
		m.SetActiveRequests(1)
		m.IncBlocksApplied()
		m.IncBlocksSkipped()
		m.IncDuplicateBlocks()
		m.IncFetchRetries()
		m.ObserveBundleFetch(time.Second)
	})
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels Labels
		want   prometheus.Labels
	}{
		{
			name:   "all set",
			labels: Labels{NetworkID: 3, Environment: "production", Region: "us-east-1"},
			want:   prometheus.Labels{"network_id": "3", "environment": "production", "region": "us-east-1"},
		},
		{
			name:   "empty labels are omitted",
			labels: Labels{NetworkID: 3},
			want:   prometheus.Labels{"network_id": "3"},
		},
		{
			name:   "zero value",
			labels: Labels{},
			want:   prometheus.Labels{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.labels.toPrometheusLabels())
		})
	}
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewWithLabels(reg, Labels{NetworkID: 3, Environment: "staging"})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			assert.Equal(t, "3", labels["network_id"])
			assert.Equal(t, "staging", labels["environment"])
		}
	}
}
