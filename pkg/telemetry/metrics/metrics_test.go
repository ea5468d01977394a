package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/ratecontrol/pkg/config"
	"mercator-hq/ratecontrol/pkg/ratelimit"
)

func testConfig(enabled bool) *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:       enabled,
		ListenAddress: config.DefaultMetricsListenAddress,
		Path:          config.DefaultMetricsPath,
	}
}

func TestCollector_NewCollector(t *testing.T) {
	collector := NewCollector(testConfig(true), nil)

	if collector.Registry() == nil {
		t.Fatal("expected non-nil registry")
	}
	if collector.Registerer() == nil {
		t.Error("expected registerer while enabled")
	}

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Error("expected Go runtime collector to be registered")
	}
}

func TestCollector_RecordAdmission(t *testing.T) {
	collector := NewCollector(testConfig(true), nil)

	collector.RecordAdmission("uploads", KindBucket, OutcomeAdmitted, 3)
	collector.RecordAdmission("uploads", KindBucket, OutcomeAdmitted, 2)
	collector.RecordAdmission("uploads", KindBucket, OutcomeRejected, 4)

	lm := collector.limiterMetrics
	if got := testutil.ToFloat64(lm.requestsTotal.WithLabelValues("uploads", KindBucket, OutcomeAdmitted)); got != 2 {
		t.Errorf("admitted requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(lm.requestsTotal.WithLabelValues("uploads", KindBucket, OutcomeRejected)); got != 1 {
		t.Errorf("rejected requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lm.unitsTotal.WithLabelValues("uploads", KindBucket)); got != 5 {
		t.Errorf("admitted units = %v, want 5", got)
	}
}

func TestCollector_WaitAndTokens(t *testing.T) {
	collector := NewCollector(testConfig(true), nil)

	collector.RecordWait("events", 3*time.Millisecond)
	collector.UpdateTokens("events", 17)

	if got := testutil.CollectAndCount(collector.limiterMetrics.waitSeconds); got != 1 {
		t.Errorf("wait histogram series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(collector.limiterMetrics.tokens.WithLabelValues("events")); got != 17 {
		t.Errorf("tokens gauge = %v, want 17", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	collector := NewCollector(testConfig(false), nil)

	if collector.Registerer() != nil {
		t.Error("expected nil registerer while disabled")
	}

	collector.RecordAdmission("uploads", KindWindow, OutcomeAdmitted, 1)
	collector.RecordWait("uploads", time.Second)
	collector.UpdateTokens("uploads", 1)

	if got := testutil.CollectAndCount(collector.limiterMetrics.requestsTotal); got != 0 {
		t.Errorf("expected no series while disabled, got %d", got)
	}
}

func TestCollector_CardinalityFallback(t *testing.T) {
	collector := NewCollector(testConfig(true), nil)
	collector.cardinalityLimiter = NewCardinalityLimiter(1)

	collector.RecordAdmission("first", KindBucket, OutcomeAdmitted, 1)
	collector.RecordAdmission("second", KindBucket, OutcomeAdmitted, 1)

	if got := testutil.ToFloat64(collector.limiterMetrics.requestsTotal.WithLabelValues(otherLimiter, KindBucket, OutcomeAdmitted)); got != 1 {
		t.Errorf("expected overflow limiter folded into %q, got %v", otherLimiter, got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two label values to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third label value to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("expected existing label value to stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestCollector_EngineMetricsExposed(t *testing.T) {
	collector := NewCollector(testConfig(true), nil)

	engine, err := ratelimit.New(ratelimit.WithRegisterer(collector.Registerer()))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	defer engine.Stop()

	b, err := engine.Create(100, ratelimit.Seconds)
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	defer b.Release()

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"ratecontrol_buckets_created_total", "ratecontrol_scheduler_rhythm_seconds"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in scrape output", name)
		}
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(testConfig(true), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.RecordAdmission("shared", KindBucket, OutcomeAdmitted, 1)
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(collector.limiterMetrics.unitsTotal.WithLabelValues("shared", KindBucket)); got != 1000 {
		t.Errorf("admitted units = %v, want 1000", got)
	}
}

func BenchmarkCollector_RecordAdmission(b *testing.B) {
	collector := NewCollector(testConfig(true), nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.RecordAdmission("bench", KindBucket, OutcomeAdmitted, 1)
	}
}
