// Package sentinel implements the outbound mTLS+JWT client to the sibling
// gateway (ambient plumbing per spec §1, feeding GET /health's
// sentinel_connected field). Grounded on
// internal/distributed/master.go: the same "track last-seen, declare
// offline after a timeout" idiom as Master.Heartbeat/MonitorNodes, inverted
// from a server tracking many nodes into a client reporting its own
// liveness to one.
package sentinel

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cortexlabs/iris/internal/config"
)

// staleAfter is how long since the last successful heartbeat before
// Connected reports false, mirroring a node-offline timeout.
const staleAfter = 30 * time.Second

// Client reports Iris's liveness to the sibling gateway over mTLS, bearing
// a JWT-style bearer token read from a secret file. When sentinel support
// is disabled by configuration, every method is a no-op and Connected
// always reports false.
type Client struct {
	enabled bool
	url     string
	secret  string
	http    *http.Client
	logger  *slog.Logger

	mu       sync.Mutex
	lastSeen time.Time
}

// heartbeatPayload is the body POSTed to the gateway's heartbeat endpoint.
type heartbeatPayload struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// New builds a Client from cfg. When SentinelEnabled is false it returns a
// disabled client with no error. A missing or unreadable cert/key/secret
// file when enabled is a startup error.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	logger = logger.With("component", "sentinel_client")
	if !cfg.SentinelEnabled {
		logger.Info("sentinel client disabled")
		return &Client{enabled: false, logger: logger}, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.SentinelCertPath, cfg.SentinelKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sentinel: load client cert: %w", err)
	}

	secretBytes, err := os.ReadFile(cfg.SentinelSecretPath)
	if err != nil {
		return nil, fmt.Errorf("sentinel: read secret file: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}

	return &Client{
		enabled: true,
		url:     strings.TrimRight(cfg.SentinelURL, "/"),
		secret:  strings.TrimSpace(string(secretBytes)),
		http:    &http.Client{Transport: transport, Timeout: 5 * time.Second},
		logger:  logger,
	}, nil
}

// Heartbeat reports liveness to the gateway once. A failure logs and
// returns the error but never panics; callers typically run this on an
// interval and ignore transient failures, relying on Connected's staleness
// window to reflect reality.
func (c *Client) Heartbeat(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	body, err := json.Marshal(heartbeatPayload{Service: config.ServiceName, Version: config.Version})
	if err != nil {
		return fmt.Errorf("sentinel: marshal heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/heartbeat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sentinel: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("heartbeat failed", "error", err)
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sentinel: heartbeat rejected with status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
	return nil
}

// Run calls Heartbeat on a fixed interval until ctx is cancelled.
func (c *Client) Run(ctx context.Context, interval time.Duration) {
	if !c.enabled {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Heartbeat(ctx); err != nil {
				c.logger.Warn("sentinel heartbeat error", "error", err)
			}
		}
	}
}

// Connected reports whether a heartbeat has succeeded within staleAfter.
// Always false when the client is disabled.
func (c *Client) Connected() bool {
	if !c.enabled {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lastSeen.IsZero() && time.Since(c.lastSeen) < staleAfter
}
