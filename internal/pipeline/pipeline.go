// Package pipeline implements the Request Pipeline (spec §4.9): composes
// the cache, rate limiter, robots oracle, retry orchestrator, and
// extractors into the externally observable fetch(request) -> response
// call. Grounded on original_source/src/iris/fetcher.py and
// src/iris/service.py's top-level fetch/batch-fetch composition,
// expressed in the component-wiring style of
// internal/engine/engine.go (owns the collaborators as fields, exposes a
// small verb-shaped public API).
package pipeline

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cortexlabs/iris/internal/browserpool"
	"github.com/cortexlabs/iris/internal/cache"
	"github.com/cortexlabs/iris/internal/classify"
	"github.com/cortexlabs/iris/internal/config"
	"github.com/cortexlabs/iris/internal/extract"
	"github.com/cortexlabs/iris/internal/observability"
	"github.com/cortexlabs/iris/internal/ratelimit"
	"github.com/cortexlabs/iris/internal/retry"
	"github.com/cortexlabs/iris/internal/robots"
	"github.com/cortexlabs/iris/internal/types"
)

// maxBatchFanout caps concurrent in-flight requests within a single batch,
// per spec §4.9 and §5.
const maxBatchFanout = 10

// Pipeline composes C1-C8 into fetch(request) -> response.
type Pipeline struct {
	cfg       *config.Config
	pool      *browserpool.Pool
	limiter   *ratelimit.Limiter
	oracle    *robots.Oracle
	respCache *cache.Cache
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates a Pipeline over its collaborators. metrics may be nil, in
// which case observability is skipped entirely.
func New(cfg *config.Config, pool *browserpool.Pool, limiter *ratelimit.Limiter, oracle *robots.Oracle, respCache *cache.Cache, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		pool:      pool,
		limiter:   limiter,
		oracle:    oracle,
		respCache: respCache,
		metrics:   metrics,
		logger:    logger.With("component", "request_pipeline"),
	}
}

// Fetch runs the full control flow of spec §4.9 for a single request.
func (p *Pipeline) Fetch(ctx context.Context, req *types.FetchRequest) *types.FetchResponse {
	if p.metrics != nil {
		p.metrics.FetchesTotal.Add(1)
	}
	key := cache.Key(req)

	if req.Cache {
		if hit := p.respCache.Get(ctx, key); hit != nil {
			p.recordCache(true)
			if p.metrics != nil {
				p.metrics.FetchesCached.Add(1)
			}
			return hit
		}
		p.recordCache(false)
	}

	if err := req.Validate(); err != nil {
		return p.fail(req.URL, classify.InvalidURL(err.Error()))
	}
	origin, err := originOf(req.URL)
	if err != nil {
		return p.fail(req.URL, classify.InvalidURL(err.Error()))
	}

	if err := p.limiter.Acquire(ctx, origin); err != nil {
		return p.fail(req.URL, classify.BrowserError("rate limit wait cancelled: "+err.Error()))
	}

	allowed, err := p.oracle.CanFetch(ctx, req.URL)
	if err != nil {
		return p.fail(req.URL, classify.InvalidURL(err.Error()))
	}
	if !allowed {
		if p.metrics != nil {
			p.metrics.RobotsBlocked.Add(1)
		}
		resp := errorResponse(req.URL, classify.BlockedByRobots("disallowed by robots.txt"))
		resp.StatusCode = 0
		return resp
	}

	opts := retry.Options{
		MaxRetries:       p.cfg.MaxRetries,
		Timeout:          timeoutOrDefault(req.TimeoutMs, p.cfg.PageTimeout()),
		WaitAfterLoad:    waitAfterLoadOrDefault(req.WaitAfterLoadMs, p.cfg.WaitAfterLoad()),
		MaxContentLength: p.cfg.MaxContentLength,
	}
	attempt := retry.Run(ctx, p.pool, req, opts, p.logger)

	resp := p.assemble(req, attempt)
	if p.metrics != nil {
		p.metrics.RecordResponse(resp.StatusCode)
		if resp.Error != nil {
			p.metrics.FetchesFailed.Add(1)
		}
		p.metrics.BytesDownloaded.Add(int64(resp.ContentLength))
	}

	if req.Cache {
		p.respCache.Set(ctx, key, resp)
	}
	return resp
}

func (p *Pipeline) fail(rawURL string, fe *types.FetchError) *types.FetchResponse {
	if p.metrics != nil {
		p.metrics.FetchesFailed.Add(1)
	}
	return errorResponse(rawURL, fe)
}

func (p *Pipeline) recordCache(hit bool) {
	if p.metrics == nil {
		return
	}
	if hit {
		p.metrics.CacheHits.Add(1)
	} else {
		p.metrics.CacheMisses.Add(1)
	}
}

// BatchFetch fans out reqs through Fetch, up to maxBatchFanout concurrently,
// and returns results in request order. Per-request panics/exceptions never
// propagate: Fetch already reports them as browser_error responses.
func (p *Pipeline) BatchFetch(ctx context.Context, reqs []*types.FetchRequest) *types.BatchFetchResponse {
	start := time.Now()
	results := make([]*types.FetchResponse, len(reqs))

	sem := make(chan struct{}, maxBatchFanout)
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req *types.FetchRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.safeFetch(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return &types.BatchFetchResponse{
		Results:     results,
		TotalTimeMs: time.Since(start).Milliseconds(),
	}
}

// safeFetch recovers from a panicking collaborator so one bad request in a
// batch never takes down the others.
func (p *Pipeline) safeFetch(ctx context.Context, req *types.FetchRequest) (resp *types.FetchResponse) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during batch fetch", "url", req.URL, "panic", r)
			resp = errorResponse(req.URL, classify.BrowserError("internal error during fetch"))
		}
	}()
	return p.Fetch(ctx, req)
}

// assemble turns a successful or failed attempt result into the externally
// visible FetchResponse, invoking extractors per request flags on success.
func (p *Pipeline) assemble(req *types.FetchRequest, attempt *types.FetchAttemptResult) *types.FetchResponse {
	resp := &types.FetchResponse{
		URL:         attempt.URL,
		StatusCode:  attempt.StatusCode,
		FetchTimeMs: attempt.FetchTimeMs,
	}

	if !attempt.Success() {
		resp.Error = attempt.Error
		return resp
	}

	switch {
	case strings.HasPrefix(attempt.ContentType, "image/"):
		// No body to extract.

	case attempt.ContentType == "application/pdf":
		p.assemblePDF(resp, attempt)

	case attempt.ContentType == "application/json", attempt.ContentType == "text/plain":
		text := attempt.HTMLOrTextPayload
		resp.ContentText = &text
		resp.ContentLength = len(text)

	default: // text/html, application/xhtml+xml
		p.assembleHTML(req, resp, attempt)
	}

	if len(attempt.ScreenshotPNG) > 0 {
		b64 := encodeScreenshot(attempt.ScreenshotPNG)
		resp.ScreenshotB64 = &b64
	}

	return resp
}

func (p *Pipeline) assemblePDF(resp *types.FetchResponse, attempt *types.FetchAttemptResult) {
	result, err := extract.PDF(attempt.RawBytes)
	if err != nil {
		resp.Error = classify.BrowserError("pdf extraction failed: " + err.Error())
		return
	}
	text := result.Text
	resp.ContentText = &text
	resp.ContentLength = len(text)
	resp.Metadata = result.Metadata
}

func (p *Pipeline) assembleHTML(req *types.FetchRequest, resp *types.FetchResponse, attempt *types.FetchAttemptResult) {
	html := attempt.HTMLOrTextPayload
	pageURL, err := url.Parse(attempt.URL)
	if err != nil {
		resp.Error = classify.InvalidURL(err.Error())
		return
	}

	if req.ExtractText {
		text := extract.Text(html, pageURL, p.cfg.MaxContentLength)
		resp.ContentText = &text
		resp.ContentLength = len(text)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}

	if req.ExtractMetadata {
		resp.Metadata = extract.Metadata(doc, pageURL)
	}
	if req.ExtractLinks {
		resp.Links = extract.Links(doc, pageURL)
	}
	resp.StructuredData = extract.Structured(html, doc)
}

func errorResponse(rawURL string, fe *types.FetchError) *types.FetchResponse {
	return &types.FetchResponse{URL: rawURL, Error: fe}
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

func timeoutOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func waitAfterLoadOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func encodeScreenshot(png []byte) string {
	return base64.StdEncoding.EncodeToString(png)
}
