package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.MaxConcurrentPages < 1 {
		return fmt.Errorf("max_concurrent_pages must be >= 1, got %d", cfg.MaxConcurrentPages)
	}
	if cfg.PageTimeoutMs <= 0 {
		return fmt.Errorf("page_timeout_ms must be > 0")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be > 0")
	}
	if cfg.MinDelayBetweenRequestsMs < 0 {
		return fmt.Errorf("min_delay_between_requests_ms must be >= 0")
	}
	if cfg.RateLimitBurst < 1 {
		return fmt.Errorf("rate_limit_burst must be >= 1, got %d", cfg.RateLimitBurst)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("log_level must be debug/info/warn/error, got %q", cfg.LogLevel)
	}

	validBackends := map[string]bool{"redis": true, "mongo": true, "memory": true}
	if !validBackends[cfg.StoreBackend] {
		return fmt.Errorf("store_backend must be redis/mongo/memory, got %q", cfg.StoreBackend)
	}

	if cfg.SentinelEnabled {
		if cfg.SentinelURL == "" {
			return fmt.Errorf("sentinel_url is required when sentinel_enabled is true")
		}
		if _, err := url.Parse(cfg.SentinelURL); err != nil {
			return fmt.Errorf("invalid sentinel_url: %w", err)
		}
	}

	return nil
}

// ValidateURL checks that a URL string has a scheme and host, per the
// FetchRequest invariant in spec §3.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
