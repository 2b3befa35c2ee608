package goIdentity

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledRecordsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{EnableLatencyHistograms: true})
	m.Inc(MetricOTPIssued)
	m.Observe(MetricLoginLatency, time.Millisecond)

	if m.Value(MetricOTPIssued) != 0 || m.LatencyEnabled() {
		t.Fatal("disabled metrics must not record")
	}
	snap := m.Snapshot()
	if len(snap.Counters)+len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsParallelInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, each = 16, 5000
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				m.Inc(MetricRateLimitAdmitted)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRateLimitAdmitted); got != workers*each {
		t.Fatalf("expected %d, got %d", workers*each, got)
	}
	if got := m.Snapshot().Counters[MetricRateLimitAdmitted]; got != workers*each {
		t.Fatalf("snapshot disagrees: %d", got)
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 1, 1},
		{100 * time.Millisecond, 4},
		{500 * time.Millisecond, 6},
		{time.Minute, histBucketCount - 1},
	}
	for _, c := range cases {
		if got := bucketIndex(c.d); got != c.want {
			t.Errorf("bucketIndex(%s) = %d, want %d", c.d, got, c.want)
		}
	}
}

func TestLoginLatencySnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginLatency, 3*time.Millisecond)
	m.Observe(MetricLoginLatency, 30*time.Millisecond)
	m.Observe(MetricLoginLatency, 2*time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricLoginLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[histBucketCount-1] != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counter metric must not carry a histogram")
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatal("latency metric must not appear as a counter")
	}
}

func TestHistogramBoundsIsACopy(t *testing.T) {
	b := HistogramBounds()
	b[0] = time.Hour
	if HistogramBounds()[0] != 5*time.Millisecond {
		t.Fatal("HistogramBounds exposed internal state")
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Second)
	if m.Value(MetricLoginSuccess) != 0 || m.Enabled() || len(m.Snapshot().Counters) != 0 {
		t.Fatal("nil metrics must record nothing")
	}
}
