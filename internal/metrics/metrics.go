// Package metrics defines the Prometheus collectors for the lease
// lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reclaim reasons used as the "reason" label.
const (
	ReasonExpired  = "expired"
	ReasonRollover = "rollover"
	ReasonStale    = "stale"
)

// LeaseMetrics groups the lease collectors.  A nil *LeaseMetrics is valid
// and records nothing.
type LeaseMetrics struct {
	AcquireTotal  *prometheus.CounterVec
	ReleaseTotal  *prometheus.CounterVec
	ReclaimTotal  *prometheus.CounterVec
	SweepErrors   prometheus.Counter
	SweepDuration prometheus.Histogram
}

// NewLeaseMetrics creates the collectors and registers them with reg.
func NewLeaseMetrics(reg prometheus.Registerer) (*LeaseMetrics, error) {
	m := &LeaseMetrics{
		AcquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lease",
			Name:      "acquire_total",
			Help:      "Lease acquisition attempts by result.",
		}, []string{"result"}),
		ReleaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lease",
			Name:      "release_total",
			Help:      "Lease release attempts by result.",
		}, []string{"result"}),
		ReclaimTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lease",
			Name:      "reclaimed_total",
			Help:      "Reservations deleted without an explicit release, by reason.",
		}, []string{"reason"}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lease",
			Name:      "sweep_errors_total",
			Help:      "Failed deletions during background sweeps.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lease",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of background sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.AcquireTotal, m.ReleaseTotal, m.ReclaimTotal, m.SweepErrors, m.SweepDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Acquire records an acquisition outcome.
func (m *LeaseMetrics) Acquire(result string) {
	if m == nil {
		return
	}
	m.AcquireTotal.WithLabelValues(result).Inc()
}

// Release records a release outcome.
func (m *LeaseMetrics) Release(result string) {
	if m == nil {
		return
	}
	m.ReleaseTotal.WithLabelValues(result).Inc()
}

// Reclaimed adds n deletions for reason.
func (m *LeaseMetrics) Reclaimed(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ReclaimTotal.WithLabelValues(reason).Add(float64(n))
}

// SweepFailed counts one failed sweep deletion.  A sweep runs two.
func (m *LeaseMetrics) SweepFailed() {
	if m == nil {
		return
	}
	m.SweepErrors.Inc()
}

// ObserveSweep records how long a sweep took.
func (m *LeaseMetrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}
