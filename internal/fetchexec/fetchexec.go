// Package fetchexec implements the Fetch Executor (spec §4.5): a single
// navigation attempt, from page creation through content-type dispatch to
// page destruction. Grounded on original_source/src/iris/fetcher.py's
// PageFetcher._fetch_once (content-type branching, status short-circuit,
// screenshot capture) and rod idioms from
// internal/fetcher/browser.go (page.Navigate/page.HTML/page.Timeout),
// generalized from Rod's CDP session to capture real HTTP status codes
// instead of a hardcoded 200.
package fetchexec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/cortexlabs/iris/internal/browserpool"
	"github.com/cortexlabs/iris/internal/classify"
	"github.com/cortexlabs/iris/internal/types"
	"github.com/cortexlabs/iris/internal/wait"
)

const defaultContentType = "text/html"

// Execute runs a single fetch attempt against an already-acquired slot, per
// spec §4.5. It never returns a Go error: failures are reported inside the
// attempt result's Error field so the Retry Orchestrator can inspect
// Retryable uniformly. Execute creates and destroys only the per-attempt
// rod.Page; the concurrency slot itself is acquired and released by the
// caller once, across every attempt of a request (spec §4.6).
func Execute(ctx context.Context, slot *browserpool.Slot, req *types.FetchRequest, timeout, afterLoad time.Duration, maxContentLength int) *types.FetchAttemptResult {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return &types.FetchAttemptResult{
			URL:   req.URL,
			Error: classify.InvalidURL(err.Error()),
		}
	}

	page, err := slot.NewPage()
	if err != nil {
		return &types.FetchAttemptResult{
			URL:         req.URL,
			Error:       classify.BrowserError(err.Error()),
			FetchTimeMs: elapsedMs(start),
		}
	}
	defer page.Close()

	if len(req.Headers) > 0 {
		headers := make([]string, 0, len(req.Headers)*2)
		for k, v := range req.Headers {
			headers = append(headers, k, v)
		}
		_, _ = page.SetExtraHeaders(headers)
	}

	status, contentType, requestID, navErr := navigateAndCapture(page, req.URL, timeout)
	if navErr != nil {
		return &types.FetchAttemptResult{
			URL:         req.URL,
			Error:       classify.Exception(navErr, status),
			FetchTimeMs: elapsedMs(start),
		}
	}

	if status >= 400 {
		return &types.FetchAttemptResult{
			URL:         req.URL,
			StatusCode:  status,
			ContentType: contentType,
			Error:       classify.HTTPStatus(status, "HTTP "+strconv.Itoa(status)),
			FetchTimeMs: elapsedMs(start),
		}
	}

	return dispatch(page, req, status, contentType, requestID, timeout, afterLoad, maxContentLength, start)
}

func dispatch(page *rod.Page, req *types.FetchRequest, status int, contentType, requestID string, timeout, afterLoad time.Duration, maxContentLength int, start time.Time) *types.FetchAttemptResult {
	switch {
	case contentType == "application/pdf" || (contentType == "application/octet-stream" && isPDFURL(req.URL)):
		body, err := responseBody(page, requestID)
		if err != nil {
			return attemptErr(req.URL, status, contentType, classify.BrowserError(err.Error()), start)
		}
		if len(body) > maxContentLength {
			return attemptErr(req.URL, status, contentType, classify.ContentTooLarge(maxContentLength), start)
		}
		return &types.FetchAttemptResult{
			URL: req.URL, StatusCode: status, ContentType: "application/pdf",
			RawBytes: body, FetchTimeMs: elapsedMs(start),
		}

	case contentType == "application/json":
		body, err := responseBody(page, requestID)
		if err != nil {
			return attemptErr(req.URL, status, contentType, classify.BrowserError(err.Error()), start)
		}
		if len(body) > maxContentLength {
			return attemptErr(req.URL, status, contentType, classify.ContentTooLarge(maxContentLength), start)
		}
		return &types.FetchAttemptResult{
			URL: req.URL, StatusCode: status, ContentType: "application/json",
			HTMLOrTextPayload: prettyJSON(body), FetchTimeMs: elapsedMs(start),
		}

	case contentType == "text/plain":
		html, err := page.HTML()
		if err != nil {
			return attemptErr(req.URL, status, contentType, classify.Exception(err, status), start)
		}
		if len(html) > maxContentLength {
			return attemptErr(req.URL, status, contentType, classify.ContentTooLarge(maxContentLength), start)
		}
		return &types.FetchAttemptResult{
			URL: req.URL, StatusCode: status, ContentType: "text/plain",
			HTMLOrTextPayload: bodyTextOnly(html), FetchTimeMs: elapsedMs(start),
		}

	case strings.HasPrefix(contentType, "image/"):
		return &types.FetchAttemptResult{
			URL: req.URL, StatusCode: status, ContentType: contentType, FetchTimeMs: elapsedMs(start),
		}

	case contentType == "text/html" || contentType == "application/xhtml+xml":
		strategy := req.EffectiveWaitStrategy()
		wait.Apply(page, strategy, req.WaitForSelector, timeout, afterLoad)

		html, err := page.HTML()
		if err != nil {
			return attemptErr(req.URL, status, contentType, classify.Exception(err, status), start)
		}
		if len(html) > maxContentLength {
			return attemptErr(req.URL, status, contentType, classify.ContentTooLarge(maxContentLength), start)
		}

		result := &types.FetchAttemptResult{
			URL: req.URL, StatusCode: status, ContentType: contentType,
			HTMLOrTextPayload: html, FetchTimeMs: elapsedMs(start),
		}

		if req.Screenshot {
			png, err := page.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
			if err == nil {
				result.ScreenshotPNG = png
			}
		}
		return result

	default:
		return attemptErr(req.URL, status, contentType, classify.UnsupportedContentType(contentType), start)
	}
}

func attemptErr(pageURL string, status int, contentType string, fe *types.FetchError, start time.Time) *types.FetchAttemptResult {
	return &types.FetchAttemptResult{
		URL: pageURL, StatusCode: status, ContentType: contentType, Error: fe, FetchTimeMs: elapsedMs(start),
	}
}

// navigateAndCapture navigates to rawURL and captures the main document's
// HTTP status, content type, and CDP request ID from the first matching
// network response event.
func navigateAndCapture(page *rod.Page, rawURL string, timeout time.Duration) (status int, contentType string, requestID string, err error) {
	type captured struct {
		status      int
		contentType string
		requestID   string
	}
	resultCh := make(chan captured, 1)

	go page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		ct := e.Response.MIMEType
		if ct == "" {
			ct = defaultContentType
		}
		select {
		case resultCh <- captured{status: e.Response.Status, contentType: strings.ToLower(ct), requestID: string(e.RequestID)}:
		default:
		}
		return true
	})()

	navErr := page.Timeout(timeout).Navigate(rawURL)
	if navErr != nil {
		return 0, "", "", navErr
	}

	select {
	case c := <-resultCh:
		return c.status, c.contentType, c.requestID, nil
	case <-time.After(timeout):
		return 200, defaultContentType, "", nil
	}
}

func responseBody(page *rod.Page, requestID string) ([]byte, error) {
	if requestID == "" {
		html, err := page.HTML()
		return []byte(html), err
	}
	result, err := proto.NetworkGetResponseBody{RequestID: proto.NetworkRequestID(requestID)}.Call(page)
	if err != nil {
		return nil, err
	}
	if result.Base64Encoded {
		return base64.StdEncoding.DecodeString(result.Body)
	}
	return []byte(result.Body), nil
}

// prettyJSON re-serializes raw with indent 2, preserving non-ASCII; on
// parse failure it keeps the raw bytes decoded as UTF-8 with replacement.
func prettyJSON(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return strings.TrimRight(buf.String(), "\n")
}

// bodyTextOnly returns the text inside html's <body> element with markup
// removed, or html unchanged when it has no <body> tag.
func bodyTextOnly(html string) string {
	start := strings.Index(html, "<body")
	if start == -1 {
		return html
	}
	open := strings.Index(html[start:], ">")
	if open == -1 {
		return html
	}
	body := html[start+open+1:]
	if end := strings.Index(body, "</body"); end != -1 {
		body = body[:end]
	}
	var b strings.Builder
	inTag := false
	for _, r := range body {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func isPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".pdf")
}
