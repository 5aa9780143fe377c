package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusExporter(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordTurn("process_turn", "ok", 120*time.Millisecond)
	exporter.RecordTurn("process_turn", "ok", 80*time.Millisecond)
	exporter.RecordTurn("process_turn", "blocked", 10*time.Millisecond)
	exporter.RecordToolCall("get_summary_by_title", "found")
	exporter.RecordToolCall("get_summary_by_title", "rejected")
	exporter.RecordCacheHit(CacheReuse)
	exporter.RecordCacheMiss(CacheResponse)
	exporter.RecordModerationBlock()
	exporter.RecordMediaGeneration("image", false)
	exporter.RecordLLMCall("gpt-3.5-turbo", 100, 40, 500*time.Millisecond)

	if got := testutil.ToFloat64(exporter.turns.WithLabelValues("process_turn", "ok")); got != 2 {
		t.Errorf("turns{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(exporter.moderationBlocks); got != 1 {
		t.Errorf("moderation blocks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.llmTokensUsed.WithLabelValues("gpt-3.5-turbo", "completion")); got != 40 {
		t.Errorf("completion tokens = %v, want 40", got)
	}
	if got := testutil.ToFloat64(exporter.mediaGenerations.WithLabelValues("image", "error")); got != 1 {
		t.Errorf("image errors = %v, want 1", got)
	}
}

func TestPrometheusExporterHandler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())
	exporter.RecordCacheHit(CacheResponse)

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `smartlibrarian_librarian_cache_hits_total{cache_type="response"} 1`) {
		t.Errorf("metrics output missing cache hit counter:\n%s", body)
	}
}
