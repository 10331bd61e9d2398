package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandlerExposesPrivateRegistry(t *testing.T) {
	m := NewMetrics("repose_test")
	m.ObserveChatMessage("ok")
	m.ObserveProviderAttempt("mock", "ok")
	m.ObserveFallback("rate_limited")
	m.ObserveStoreError("append_turn")
	m.ObserveGeneration(1200 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`repose_test_chat_messages_total{outcome="ok"} 1`,
		`repose_test_provider_attempts_total{outcome="ok",provider="mock"} 1`,
		`repose_test_reply_fallbacks_total{class="rate_limited"} 1`,
		`repose_test_store_errors_total{op="append_turn"} 1`,
		`repose_test_reply_generation_latency_ms_count 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}

	snap := m.LatencySnapshot()
	if len(snap.Stages) != 1 || snap.Stages[0].Stage != StageGenerate {
		t.Fatalf("unexpected latency stages: %+v", snap.Stages)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveChatMessage("ok")
	m.ObserveProviderAttempt("mock", "ok")
	m.ObserveFallback("unknown")
	m.ObserveStoreError("find")
	m.ObserveGeneration(time.Second)
	m.ObserveStage(StagePersist, time.Millisecond)
	if snap := m.LatencySnapshot(); len(snap.Stages) != 0 {
		t.Fatalf("nil metrics snapshot should be empty, got %+v", snap)
	}
}

func TestSeparateMetricsDoNotCollide(t *testing.T) {
	// Private registries allow several instances in one process.
	NewMetrics("repose")
	NewMetrics("repose")
}
