package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for the fetch pipeline, using the
// same atomic-counter + hand-rolled Prometheus exposition style as prior
// crawl-engine metrics, renamed and restructured to the fetch-service
// domain.
type Metrics struct {
	FetchesTotal    atomic.Int64
	FetchesFailed   atomic.Int64
	FetchesRetried  atomic.Int64
	FetchesCached   atomic.Int64

	ResponsesTotal atomic.Int64
	Responses2xx   atomic.Int64
	Responses4xx   atomic.Int64
	Responses5xx   atomic.Int64

	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	RateLimitWaits atomic.Int64
	RobotsBlocked  atomic.Int64

	ActivePages     atomic.Int32
	BytesDownloaded atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"iris_fetches_total", "Total fetch requests handled", m.FetchesTotal.Load()},
		{"iris_fetches_failed_total", "Total fetches that returned an error", m.FetchesFailed.Load()},
		{"iris_fetches_retried_total", "Total retry attempts across all fetches", m.FetchesRetried.Load()},
		{"iris_fetches_cached_total", "Total fetches served from cache", m.FetchesCached.Load()},
		{"iris_responses_total", "Total navigation responses received", m.ResponsesTotal.Load()},
		{"iris_responses_2xx_total", "Total 2xx responses", m.Responses2xx.Load()},
		{"iris_responses_4xx_total", "Total 4xx responses", m.Responses4xx.Load()},
		{"iris_responses_5xx_total", "Total 5xx responses", m.Responses5xx.Load()},
		{"iris_cache_hits_total", "Total response cache hits", m.CacheHits.Load()},
		{"iris_cache_misses_total", "Total response cache misses", m.CacheMisses.Load()},
		{"iris_rate_limit_waits_total", "Total times a fetch blocked on the rate limiter", m.RateLimitWaits.Load()},
		{"iris_robots_blocked_total", "Total fetches denied by robots.txt", m.RobotsBlocked.Load()},
		{"iris_active_pages", "Currently open browser pages", int64(m.ActivePages.Load())},
		{"iris_bytes_downloaded_total", "Total bytes of response content retained", m.BytesDownloaded.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// RecordResponse increments the status-class counters for a completed
// navigation's HTTP status code.
func (m *Metrics) RecordResponse(statusCode int) {
	m.ResponsesTotal.Add(1)
	switch {
	case statusCode >= 200 && statusCode < 300:
		m.Responses2xx.Add(1)
	case statusCode >= 400 && statusCode < 500:
		m.Responses4xx.Add(1)
	case statusCode >= 500:
		m.Responses5xx.Add(1)
	}
}

// StartServer starts the metrics HTTP server on its own port/path.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map, for logging or debug endpoints.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"fetches_total":    m.FetchesTotal.Load(),
		"fetches_failed":   m.FetchesFailed.Load(),
		"fetches_retried":  m.FetchesRetried.Load(),
		"fetches_cached":   m.FetchesCached.Load(),
		"responses_total":  m.ResponsesTotal.Load(),
		"responses_2xx":    m.Responses2xx.Load(),
		"responses_4xx":    m.Responses4xx.Load(),
		"responses_5xx":    m.Responses5xx.Load(),
		"cache_hits":       m.CacheHits.Load(),
		"cache_misses":     m.CacheMisses.Load(),
		"rate_limit_waits": m.RateLimitWaits.Load(),
		"robots_blocked":   m.RobotsBlocked.Load(),
		"active_pages":     int64(m.ActivePages.Load()),
		"bytes_downloaded": m.BytesDownloaded.Load(),
	}
}
