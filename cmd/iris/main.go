// Command iris runs the headless-browser fetch service described in
// internal/pipeline: a cobra root command with a serve subcommand that
// wires store, rate limiter, robots oracle, browser pool, cache, sentinel
// client, metrics, and the request pipeline behind the HTTP surface in
// internal/api, with a graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cortexlabs/iris/internal/api"
	"github.com/cortexlabs/iris/internal/browserpool"
	"github.com/cortexlabs/iris/internal/cache"
	"github.com/cortexlabs/iris/internal/config"
	"github.com/cortexlabs/iris/internal/observability"
	"github.com/cortexlabs/iris/internal/pipeline"
	"github.com/cortexlabs/iris/internal/ratelimit"
	"github.com/cortexlabs/iris/internal/robots"
	"github.com/cortexlabs/iris/internal/sentinel"
	"github.com/cortexlabs/iris/internal/store"
)

var (
	cfgFile string
	verbose bool
	port    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "iris",
		Short: "Iris — headless-browser fetch service",
		Long: `Iris is a fetch-on-demand service that renders a URL in a headless
browser and returns extracted text, metadata, links, structured data, and
optionally a screenshot, over a small HTTP surface.

Endpoints:
  POST   /fetch               fetch a single URL
  POST   /batch                fetch up to 10 URLs concurrently
  DELETE /cache/{url_hash}     evict one cached response
  GET    /health                liveness and collaborator status
  GET    /metrics               Prometheus text exposition`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fetch service HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Port = port
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	kv, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer kv.Close()

	limiter := ratelimit.New(cfg.MinDelayBetweenRequestsMs, cfg.RateLimitBurst, kv, logger)
	oracle := robots.New(cfg.UserAgent, cfg.RespectRobotsTxt, cfg.RobotsCacheTTL(), kv, logger)
	respCache := cache.New(kv, cfg.CacheTTL(), logger)
	metrics := observability.NewMetrics(logger)

	pool, err := browserpool.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create browser pool: %w", err)
	}
	defer pool.Close()

	sentinelClient, err := sentinel.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create sentinel client: %w", err)
	}

	pipe := pipeline.New(cfg, pool, limiter, oracle, respCache, metrics, logger)
	server := api.NewServer(cfg.Port, pipe, pool, respCache, sentinelClient, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go sentinelClient.Run(ctx, 10*time.Second)

	if err := server.Start(); err != nil {
		cancel()
		return fmt.Errorf("start server: %w", err)
	}

	logger.Info("iris serving",
		"port", cfg.Port,
		"browser_type", cfg.BrowserType,
		"headless", cfg.Headless,
		"store_backend", cfg.StoreBackend,
		"respect_robots_txt", cfg.RespectRobotsTxt,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down...", "signal", sig)
	cancel()

	return nil
}

// newStore selects the KV backend named by cfg.StoreBackend.
func newStore(cfg *config.Config, logger *slog.Logger) (store.KVStore, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger), nil
	case "mongo":
		return store.NewMongoStore(context.Background(), cfg.MongoURI, cfg.MongoDatabase, "iris_kv", logger)
	default:
		return store.NewMemStore(), nil
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("iris %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Server:\n")
			fmt.Printf("  Host:                 %s\n", cfg.Host)
			fmt.Printf("  Port:                 %d\n", cfg.Port)
			fmt.Printf("  Log Level:            %s\n", cfg.LogLevel)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Type:                 %s\n", cfg.BrowserType)
			fmt.Printf("  Headless:             %v\n", cfg.Headless)
			fmt.Printf("  Max Concurrent Pages: %d\n", cfg.MaxConcurrentPages)
			fmt.Printf("  Page Timeout:         %dms\n", cfg.PageTimeoutMs)
			fmt.Printf("  Max Retries:          %d\n", cfg.MaxRetries)
			fmt.Printf("\nContent:\n")
			fmt.Printf("  Max Content Length:   %d bytes\n", cfg.MaxContentLength)
			fmt.Printf("  Extract Metadata:     %v\n", cfg.ExtractMetadata)
			fmt.Printf("  Extract Links:        %v\n", cfg.ExtractLinks)
			fmt.Printf("\nCache:\n")
			fmt.Printf("  Enabled:              %v\n", cfg.CacheEnabled)
			fmt.Printf("  TTL:                  %ds\n", cfg.CacheTTLSeconds)
			fmt.Printf("\nPoliteness:\n")
			fmt.Printf("  Respect robots.txt:   %v\n", cfg.RespectRobotsTxt)
			fmt.Printf("  Min Delay:            %dms\n", cfg.MinDelayBetweenRequestsMs)
			fmt.Printf("  Rate Limit Burst:     %d\n", cfg.RateLimitBurst)
			fmt.Printf("\nStore:\n")
			fmt.Printf("  Backend:              %s\n", cfg.StoreBackend)
			fmt.Printf("\nSentinel:\n")
			fmt.Printf("  Enabled:              %v\n", cfg.SentinelEnabled)
			return nil
		},
	}
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
