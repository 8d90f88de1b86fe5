package observability

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestServeHTTPEmitsPrometheusExposition(t *testing.T) {
	m := NewMetrics(testLogger())
	m.FetchesTotal.Add(3)
	m.CacheHits.Add(1)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain prefix", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"# HELP iris_fetches_total",
		"# TYPE iris_fetches_total counter",
		"iris_fetches_total 3",
		"iris_cache_hits_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestRecordResponseBucketsByStatusClass(t *testing.T) {
	m := NewMetrics(testLogger())

	m.RecordResponse(200)
	m.RecordResponse(404)
	m.RecordResponse(404)
	m.RecordResponse(503)

	if got := m.ResponsesTotal.Load(); got != 4 {
		t.Errorf("ResponsesTotal = %d, want 4", got)
	}
	if got := m.Responses2xx.Load(); got != 1 {
		t.Errorf("Responses2xx = %d, want 1", got)
	}
	if got := m.Responses4xx.Load(); got != 2 {
		t.Errorf("Responses4xx = %d, want 2", got)
	}
	if got := m.Responses5xx.Load(); got != 1 {
		t.Errorf("Responses5xx = %d, want 1", got)
	}
}

func TestRecordResponseIgnoresOutOfRangeStatus(t *testing.T) {
	m := NewMetrics(testLogger())
	m.RecordResponse(0)

	if got := m.ResponsesTotal.Load(); got != 1 {
		t.Errorf("ResponsesTotal = %d, want 1", got)
	}
	if got := m.Responses2xx.Load() + m.Responses4xx.Load() + m.Responses5xx.Load(); got != 0 {
		t.Errorf("expected no status-class bucket incremented for status 0, got %d", got)
	}
}

func TestSnapshotReflectsCounters(t *testing.T) {
	m := NewMetrics(testLogger())
	m.FetchesTotal.Add(5)
	m.FetchesFailed.Add(2)
	m.BytesDownloaded.Add(1024)

	snap := m.Snapshot()
	if snap["fetches_total"] != 5 {
		t.Errorf("fetches_total = %d, want 5", snap["fetches_total"])
	}
	if snap["fetches_failed"] != 2 {
		t.Errorf("fetches_failed = %d, want 2", snap["fetches_failed"])
	}
	if snap["bytes_downloaded"] != 1024 {
		t.Errorf("bytes_downloaded = %d, want 1024", snap["bytes_downloaded"])
	}
}
