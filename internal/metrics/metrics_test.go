package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewLeaseMetrics(reg)
	require.NoError(t, err)

	m.Acquire("ok")
	m.Acquire("ok")
	m.Release("not_holder")
	m.Reclaimed(ReasonExpired, 3)
	m.Reclaimed(ReasonRollover, 0)
	m.SweepFailed()
	m.ObserveSweep(20 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AcquireTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReleaseTotal.WithLabelValues("not_holder")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReclaimTotal.WithLabelValues(ReasonExpired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReclaimTotal), "zero deletions create no series")
}

func TestLeaseMetricsDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewLeaseMetrics(reg)
	require.NoError(t, err)
	_, err = NewLeaseMetrics(reg)
	assert.Error(t, err)
}

func TestNilLeaseMetricsIsNoop(t *testing.T) {
	var m *LeaseMetrics
	assert.NotPanics(t, func() {
		m.Acquire("ok")
		m.Release("ok")
		m.Reclaimed(ReasonStale, 1)
		m.SweepFailed()
		m.ObserveSweep(time.Second)
	})
}
