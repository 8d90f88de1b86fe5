package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cortexlabs/iris/internal/browserpool"
	"github.com/cortexlabs/iris/internal/cache"
	"github.com/cortexlabs/iris/internal/config"
	"github.com/cortexlabs/iris/internal/observability"
	"github.com/cortexlabs/iris/internal/store"
	"github.com/cortexlabs/iris/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// fakeFetcher lets handler tests exercise the HTTP contract without a live
// browser or pipeline.
type fakeFetcher struct {
	fetchResp *types.FetchResponse
	batchResp *types.BatchFetchResponse
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *types.FetchRequest) *types.FetchResponse {
	return f.fetchResp
}

func (f *fakeFetcher) BatchFetch(ctx context.Context, reqs []*types.FetchRequest) *types.BatchFetchResponse {
	return f.batchResp
}

// newTestServer builds a Server for handler tests. pool is nil unless the
// test specifically exercises the not-connected-browser path: a live
// Chromium is never launched in unit tests, matching
// internal/browserpool's own testing-mode-only test style.
func newTestServer(t *testing.T, fetcher Fetcher, pool *browserpool.Pool) *Server {
	t.Helper()
	mem := store.NewMemStore()
	respCache := cache.New(mem, time.Hour, testLogger())
	metrics := observability.NewMetrics(testLogger())

	return NewServer(0, fetcher, pool, respCache, nil, metrics, testLogger())
}

func notConnectedPool(t *testing.T) *browserpool.Pool {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.TestingMode = true

	pool, err := browserpool.New(cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return pool
}

func TestHandleFetchReturns503WhenBrowserNotConnected(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, notConnectedPool(t))

	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`{"url":"https://example.com/"}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleFetchRejectsInvalidJSON(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`not json`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleFetchRejectsMissingURL(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandleFetchReturnsPipelineResponse(t *testing.T) {
	text := "hello"
	fetcher := &fakeFetcher{fetchResp: &types.FetchResponse{URL: "https://example.com/", StatusCode: 200, ContentText: &text}}
	s := newTestServer(t, fetcher, nil)

	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`{"url":"https://example.com/"}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got types.FetchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ContentText == nil || *got.ContentText != text {
		t.Errorf("ContentText = %+v, want %q", got.ContentText, text)
	}
}

func TestHandleBatchRejectsEmptyRequests(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/batch", bytes.NewBufferString(`{"requests":[]}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandleBatchRejectsTooManyRequests(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil)

	reqs := make([]map[string]string, 11)
	for i := range reqs {
		reqs[i] = map[string]string{"url": "https://example.com/"}
	}
	body, _ := json.Marshal(map[string]any{"requests": reqs})

	req := httptest.NewRequest(http.MethodPost, "/batch", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandleBatchReturnsResults(t *testing.T) {
	fetcher := &fakeFetcher{batchResp: &types.BatchFetchResponse{
		Results:     []*types.FetchResponse{{URL: "https://example.com/", StatusCode: 200}},
		TotalTimeMs: 42,
	}}
	s := newTestServer(t, fetcher, nil)

	req := httptest.NewRequest(http.MethodPost, "/batch", bytes.NewBufferString(`{"requests":[{"url":"https://example.com/"}]}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got types.BatchFetchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Results) != 1 || got.TotalTimeMs != 42 {
		t.Errorf("unexpected batch response: %+v", got)
	}
}

func TestHandleCacheDeleteReportsWhetherDeleted(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/cache/doesnotexist", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["deleted"] {
		t.Error("expected deleted=false for a nonexistent key")
	}
}

func TestHandleHealthReportsDegradedWhenBrowserDisconnected(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, notConnectedPool(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var got types.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "degraded" {
		t.Errorf("status = %q, want degraded", got.Status)
	}
	if got.BrowserConnected {
		t.Error("expected browser_connected=false")
	}
	if got.Service != "iris" {
		t.Errorf("service = %q, want iris", got.Service)
	}
}

func TestHandleHealthReportsOKWhenBrowserUngated(t *testing.T) {
	// A nil pool means the caller never wired a browser gate (e.g. a
	// pipeline-only test double); /health then reflects only cache and
	// sentinel state rather than attempting a real browser connection.
	s := newTestServer(t, &fakeFetcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var got types.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "ok" {
		t.Errorf("status = %q, want ok", got.Status)
	}
	if got.CacheConnected != true {
		t.Errorf("expected cache_connected=true against a memory store, got %v", got.CacheConnected)
	}
}
