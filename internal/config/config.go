package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// ServiceName identifies this process in logs and /health responses.
const ServiceName = "iris"

// Config is the root configuration for Iris, loaded from environment
// variables under the IRIS_ prefix (see Load), matching the field set
// enumerated in spec §6.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	LogLevel string `mapstructure:"log_level"`

	BrowserType string `mapstructure:"browser_type"`
	Headless    bool   `mapstructure:"headless"`

	PageTimeoutMs      int    `mapstructure:"page_timeout_ms"`
	WaitAfterLoadMs    int    `mapstructure:"wait_after_load_ms"`
	MaxConcurrentPages int    `mapstructure:"max_concurrent_pages"`
	UserAgent          string `mapstructure:"user_agent"`
	MaxContentLength   int    `mapstructure:"max_content_length"`

	ExtractMetadata bool `mapstructure:"extract_metadata"`
	ExtractLinks    bool `mapstructure:"extract_links"`

	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"`
	CacheEnabled    bool `mapstructure:"cache_enabled"`

	MinDelayBetweenRequestsMs int  `mapstructure:"min_delay_between_requests_ms"`
	RespectRobotsTxt          bool `mapstructure:"respect_robots_txt"`
	RobotsCacheTTLSeconds     int  `mapstructure:"robots_cache_ttl_seconds"`
	RateLimitBurst            int  `mapstructure:"rate_limit_burst"`

	MaxRetries  int  `mapstructure:"max_retries"`
	TestingMode bool `mapstructure:"testing_mode"`

	// Ambient stack: shared KV store backend selection.
	StoreBackend  string `mapstructure:"store_backend"` // "redis", "mongo", or "memory"
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	// Ambient stack: outbound mTLS+JWT client to the sibling gateway.
	SentinelEnabled  bool   `mapstructure:"sentinel_enabled"`
	SentinelURL      string `mapstructure:"sentinel_url"`
	SentinelCertPath string `mapstructure:"sentinel_cert_path"`
	SentinelKeyPath  string `mapstructure:"sentinel_key_path"`
	SentinelSecretPath string `mapstructure:"sentinel_secret_path"`
}

// PageTimeout returns PageTimeoutMs as a time.Duration.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutMs) * time.Millisecond
}

// WaitAfterLoad returns WaitAfterLoadMs as a time.Duration.
func (c *Config) WaitAfterLoad() time.Duration {
	return time.Duration(c.WaitAfterLoadMs) * time.Millisecond
}

// CacheTTL returns CacheTTLSeconds as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RobotsCacheTTL returns RobotsCacheTTLSeconds as a time.Duration.
func (c *Config) RobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLSeconds) * time.Second
}

// MinDelayBetweenRequests returns MinDelayBetweenRequestsMs as a time.Duration.
func (c *Config) MinDelayBetweenRequests() time.Duration {
	return time.Duration(c.MinDelayBetweenRequestsMs) * time.Millisecond
}

// DefaultConfig returns a Config with the defaults named in spec §6.
func DefaultConfig() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: 8080,

		LogLevel: "info",

		BrowserType: "chromium",
		Headless:    true,

		PageTimeoutMs:      30_000,
		WaitAfterLoadMs:    1_000,
		MaxConcurrentPages: 5,
		UserAgent:          "IrisBot/1.0 (+https://example.invalid/bot)",
		MaxContentLength:   1_000_000,

		ExtractMetadata: true,
		ExtractLinks:    true,

		CacheTTLSeconds: 3600,
		CacheEnabled:    true,

		MinDelayBetweenRequestsMs: 1_000,
		RespectRobotsTxt:          true,
		RobotsCacheTTLSeconds:     86_400,
		RateLimitBurst:            3,

		MaxRetries:  2,
		TestingMode: false,

		StoreBackend:  "memory",
		RedisAddr:     "localhost:6379",
		RedisDB:       0,
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "iris",

		SentinelEnabled: false,
	}
}
