package types

import "fmt"

// FetchErrorKind is the tagged-sum discriminant for FetchError.
type FetchErrorKind string

const (
	ErrKindInvalidURL         FetchErrorKind = "invalid_url"
	ErrKindTimeout            FetchErrorKind = "timeout"
	ErrKindDNSError           FetchErrorKind = "dns_error"
	ErrKindConnectionError    FetchErrorKind = "connection_error"
	ErrKindSSLError           FetchErrorKind = "ssl_error"
	ErrKindBlockedByRobotsTxt FetchErrorKind = "blocked_by_robots_txt"
	ErrKindRateLimited        FetchErrorKind = "rate_limited"
	ErrKindUnsupportedContent FetchErrorKind = "unsupported_content_type"
	ErrKindHTTPError          FetchErrorKind = "http_error"
	ErrKindContentTooLarge    FetchErrorKind = "content_too_large"
	ErrKindBrowserError       FetchErrorKind = "browser_error"
)

// FetchError is the classified error attached to a failed attempt or response.
// Retryable is a pure function of Kind (and HTTPStatus for http_error/rate_limited);
// see internal/classify for the table that derives it.
type FetchError struct {
	Kind       FetchErrorKind `json:"type"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"http_status,omitempty"`
}

func (e *FetchError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
