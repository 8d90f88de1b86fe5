// Package classify implements the error taxonomy of the fetch pipeline as a
// single pure function over (message, status) rather than scattered
// conditionals, so the classification rules are testable as data.
package classify

import (
	"strings"

	"github.com/cortexlabs/iris/internal/types"
)

// rule is one row of the taxonomy table. Match returns true when the rule
// applies to the given lowercased message and HTTP status.
type rule struct {
	kind      types.FetchErrorKind
	retryable func(status int) bool
	match     func(msg string, status int) bool
}

// table is ordered; classification precedence is top-to-bottom, first match wins.
var table = []rule{
	{
		kind:      types.ErrKindTimeout,
		retryable: alwaysTrue,
		match:     func(msg string, _ int) bool { return strings.Contains(msg, "timeout") },
	},
	{
		kind:      types.ErrKindDNSError,
		retryable: alwaysTrue,
		match: func(msg string, _ int) bool {
			return strings.Contains(msg, "dns") ||
				strings.Contains(msg, "name resolution") ||
				strings.Contains(msg, "getaddrinfo")
		},
	},
	{
		kind:      types.ErrKindSSLError,
		retryable: alwaysFalse,
		match: func(msg string, _ int) bool {
			return strings.Contains(msg, "ssl") || strings.Contains(msg, "certificate")
		},
	},
	{
		kind:      types.ErrKindConnectionError,
		retryable: alwaysTrue,
		match: func(msg string, _ int) bool {
			return strings.Contains(msg, "connection reset") ||
				strings.Contains(msg, "connection refused") ||
				strings.Contains(msg, "broken pipe") ||
				strings.Contains(msg, "connection error") ||
				strings.Contains(msg, "econnreset") ||
				strings.Contains(msg, "econnrefused")
		},
	},
	{
		kind:      types.ErrKindRateLimited,
		retryable: alwaysTrue,
		match:     func(_ string, status int) bool { return status == 429 },
	},
	{
		kind: types.ErrKindHTTPError,
		retryable: func(status int) bool {
			return status == 502 || status == 503 || status == 504
		},
		match: func(_ string, status int) bool { return status >= 400 },
	},
}

func alwaysTrue(int) bool  { return true }
func alwaysFalse(int) bool { return false }

// HTTPStatus classifies a completed HTTP response by status code alone,
// following §7's http_error / rate_limited rows. Call this when the
// executor already has a status >= 400 and no transport-level exception.
func HTTPStatus(status int, message string) *types.FetchError {
	if status == 429 {
		return &types.FetchError{
			Kind: types.ErrKindRateLimited, Message: message,
			Retryable: true, HTTPStatus: status,
		}
	}
	return &types.FetchError{
		Kind:      types.ErrKindHTTPError,
		Message:   message,
		Retryable: status == 502 || status == 503 || status == 504,
		HTTPStatus: status,
	}
}

// Exception classifies a navigation/transport-level failure by its message,
// per the ordered table in spec §7. status is 0 unless an HTTP response was
// received before the failure (rare, but kept for completeness).
func Exception(err error, status int) *types.FetchError {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, r := range table {
		if r.match(msg, status) {
			return &types.FetchError{
				Kind:       r.kind,
				Message:    err.Error(),
				Retryable:  r.retryable(status),
				HTTPStatus: statusOrZero(r.kind, status),
			}
		}
	}
	return &types.FetchError{
		Kind:      types.ErrKindBrowserError,
		Message:   err.Error(),
		Retryable: false,
	}
}

func statusOrZero(kind types.FetchErrorKind, status int) int {
	if kind == types.ErrKindHTTPError || kind == types.ErrKindRateLimited {
		return status
	}
	return 0
}

// InvalidURL builds the non-retryable invalid_url error.
func InvalidURL(message string) *types.FetchError {
	return &types.FetchError{Kind: types.ErrKindInvalidURL, Message: message, Retryable: false}
}

// BlockedByRobots builds the non-retryable blocked_by_robots_txt error.
func BlockedByRobots(message string) *types.FetchError {
	return &types.FetchError{Kind: types.ErrKindBlockedByRobotsTxt, Message: message, Retryable: false}
}

// UnsupportedContentType builds the non-retryable unsupported_content_type error.
func UnsupportedContentType(contentType string) *types.FetchError {
	return &types.FetchError{
		Kind:      types.ErrKindUnsupportedContent,
		Message:   "unsupported content type: " + contentType,
		Retryable: false,
	}
}

// ContentTooLarge builds the non-retryable content_too_large error.
func ContentTooLarge(limit int) *types.FetchError {
	return &types.FetchError{
		Kind:      types.ErrKindContentTooLarge,
		Message:   "body exceeded max content length",
		Retryable: false,
	}
}

// BrowserError builds the non-retryable browser_error error, the default
// classification for anything not otherwise matched (or when the browser
// pool itself is not started).
func BrowserError(message string) *types.FetchError {
	return &types.FetchError{Kind: types.ErrKindBrowserError, Message: message, Retryable: false}
}
