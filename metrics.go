package goIdentity

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricAccountLocked
	MetricSignupSuccess
	MetricSignupFailure
	MetricOTPIssued
	MetricOTPIssueFailed
	MetricOTPAccepted
	MetricOTPRejected
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricDeviceLinked
	MetricDeviceTransferred
	MetricDeviceAlertSent
	MetricDeviceAlertFailed
	MetricDeviceRejected
	MetricEmailConfirmed
	MetricRateLimitAdmitted
	MetricRateLimitDenied
	MetricRateLimitBypassed
	MetricRateLimitBackendError
	MetricServerError
	// MetricLoginLatency is the only histogram-backed metric.
	MetricLoginLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of every latency bucket but the last.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// Metrics holds one atomic counter per [MetricID] and the login latency buckets.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled bool
	latency bool
	counts  [metricIDCount]atomic.Uint64
	login   [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

// LatencyEnabled reports whether [MetricLoginLatency] is recorded.
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counts[id].Add(1)
}

// Observe records d for id. Only [MetricLoginLatency] carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricLoginLatency {
		return
	}
	m.login[bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counts[id].Load()
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := range metricIDCount {
		if id != MetricLoginLatency {
			s.Counters[id] = m.counts[id].Load()
		}
	}
	if m.latency {
		buckets := make([]uint64, histBucketCount)
		for i := range m.login {
			buckets[i] = m.login[i].Load()
		}
		s.Histograms[MetricLoginLatency] = buckets
	}
	return s
}

// HistogramBounds returns a copy of the latency bucket bounds. The final bucket is unbounded.
func HistogramBounds() []time.Duration {
	return append([]time.Duration(nil), latencyBounds[:]...)
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
