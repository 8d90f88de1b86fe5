// Package netutil holds small HTTP helpers shared by plain-HTTP call sites
// that aren't routed through the browser pool — currently just the Robots
// Oracle's own fetch of /robots.txt. Lifted from
// internal/fetcher/http.go, which applied the same decompression and
// Retry-After logic to every outbound request.
package netutil

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// DecompressReader wraps reader with the decompressor implied by resp's
// Content-Encoding header. Supports gzip, deflate, and brotli.
func DecompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// ParseRetryAfter parses a Retry-After header (integer seconds or HTTP-date),
// capped at two minutes, defaulting to five seconds when absent or unparsable.
// Not applied to 429s in the fetch pipeline itself — spec.md's open question
// preserves the source's behavior there — but kept here for the Robots
// Oracle's own well-behaved HTTP client, a separate call path.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
