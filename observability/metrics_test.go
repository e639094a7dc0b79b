package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDashboardOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDashboardOp("add_widget", true)
	m.RecordDashboardOp("add_widget", false)
	m.RecordDashboardOp("remove_widget", true)

	if got := testutil.ToFloat64(m.DashboardOpsTotal.WithLabelValues("add_widget")); got != 2 {
		t.Errorf("add_widget ops = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DashboardOpFailures.WithLabelValues("add_widget")); got != 1 {
		t.Errorf("add_widget failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DashboardOpFailures.WithLabelValues("remove_widget")); got != 0 {
		t.Errorf("remove_widget failures = %v, want 0", got)
	}
}

func TestRecordPrediction(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordPredictionRequest("ensemble")
	m.RecordPrediction("ensemble", 0.8, false)
	m.RecordPrediction("ai", 0.4, true)

	if got := testutil.ToFloat64(m.PredictionRequestsTotal.WithLabelValues("ensemble")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PredictionSimulated.WithLabelValues("ai")); got != 1 {
		t.Errorf("simulated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PredictionSimulated.WithLabelValues("ensemble")); got != 0 {
		t.Errorf("ensemble simulated = %v, want 0", got)
	}
}

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordCacheHit("json")
	m.RecordCacheMiss("json")
	m.RecordCacheEviction("expired", 3)
	m.RecordCacheEviction("lru", 2)
	m.SetCacheSize(1234)
	m.RecordCompressionSavings(100)
	m.RecordCompressionSavings(-5) // ignored

	if got := testutil.ToFloat64(m.CacheEvictionsTotal.WithLabelValues("expired")); got != 3 {
		t.Errorf("expired evictions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.CacheSizeBytes); got != 1234 {
		t.Errorf("cache size = %v, want 1234", got)
	}
	if got := testutil.ToFloat64(m.CacheCompressedSavings); got != 100 {
		t.Errorf("savings = %v, want 100", got)
	}
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	timer := m.NewTimer()
	time.Sleep(time.Millisecond)
	if timer.Duration() <= 0 {
		t.Error("timer duration should be positive")
	}
	timer.ObservePrediction("sma", "success")
	timer.ObserveDB("select", "dashboard_layouts")
}
