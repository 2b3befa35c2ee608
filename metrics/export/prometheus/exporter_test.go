package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/identity/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters:   map[goIdentity.MetricID]uint64{},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess:      7,
				goIdentity.MetricRateLimitDenied:   3,
				goIdentity.MetricDeviceAlertFailed: 1,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"identity_login_success_total 7",
		"identity_rate_limit_denied_total 3",
		"identity_device_alert_failed_total 1",
		"identity_signup_success_total 0",
		`identity_login_latency_seconds_bucket{le="0.005"} 1`,
		`identity_login_latency_seconds_bucket{le="+Inf"} 36`,
		"identity_login_latency_seconds_count 36",
		"identity_audit_dropped_total 2",
		"# TYPE identity_login_latency_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters:   map[goIdentity.MetricID]uint64{goIdentity.MetricLoginSuccess: 1},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExporterReadsEngine(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := goIdentity.DefaultConfig()
	cfg.Environment = goIdentity.EnvTest
	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(memory.New()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := engine.RateLimit(context.Background(), goIdentity.PolicyStandard, goIdentity.KeyInput{IP: "192.0.2.1"}); err != nil {
		t.Fatalf("RateLimit: %v", err)
	}

	out := NewPrometheusExporter(engine).Render()
	if !strings.Contains(out, "identity_rate_limit_admitted_total 1") {
		t.Fatalf("expected admitted counter from engine, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess:      1000,
				goIdentity.MetricLoginFailure:      40,
				goIdentity.MetricRefreshSuccess:    800,
				goIdentity.MetricRefreshFailure:    10,
				goIdentity.MetricOTPIssued:         500,
				goIdentity.MetricRateLimitAdmitted: 5000,
				goIdentity.MetricRateLimitDenied:   12,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricLoginLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
