package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars (IRIS_*) > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("IRIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("iris")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".iris"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env/file overrides merge
// cleanly with the zero-value struct during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("browser_type", cfg.BrowserType)
	v.SetDefault("headless", cfg.Headless)
	v.SetDefault("page_timeout_ms", cfg.PageTimeoutMs)
	v.SetDefault("wait_after_load_ms", cfg.WaitAfterLoadMs)
	v.SetDefault("max_concurrent_pages", cfg.MaxConcurrentPages)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("max_content_length", cfg.MaxContentLength)
	v.SetDefault("extract_metadata", cfg.ExtractMetadata)
	v.SetDefault("extract_links", cfg.ExtractLinks)
	v.SetDefault("cache_ttl_seconds", cfg.CacheTTLSeconds)
	v.SetDefault("cache_enabled", cfg.CacheEnabled)
	v.SetDefault("min_delay_between_requests_ms", cfg.MinDelayBetweenRequestsMs)
	v.SetDefault("respect_robots_txt", cfg.RespectRobotsTxt)
	v.SetDefault("robots_cache_ttl_seconds", cfg.RobotsCacheTTLSeconds)
	v.SetDefault("rate_limit_burst", cfg.RateLimitBurst)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("testing_mode", cfg.TestingMode)
	v.SetDefault("store_backend", cfg.StoreBackend)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_password", cfg.RedisPassword)
	v.SetDefault("redis_db", cfg.RedisDB)
	v.SetDefault("mongo_uri", cfg.MongoURI)
	v.SetDefault("mongo_database", cfg.MongoDatabase)
	v.SetDefault("sentinel_enabled", cfg.SentinelEnabled)
	v.SetDefault("sentinel_url", cfg.SentinelURL)
	v.SetDefault("sentinel_cert_path", cfg.SentinelCertPath)
	v.SetDefault("sentinel_key_path", cfg.SentinelKeyPath)
	v.SetDefault("sentinel_secret_path", cfg.SentinelSecretPath)
}
