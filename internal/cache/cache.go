// Package cache implements the Response Cache (spec §4.8): a content-
// addressed wrapper over internal/store.KVStore. Grounded on
// internal/storage/database.go MultiStorage idiom (graceful degradation —
// every operation swallows backend errors rather than propagating them).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cortexlabs/iris/internal/store"
	"github.com/cortexlabs/iris/internal/types"
)

// Cache wraps a KVStore with the fetch-response content-addressing scheme.
type Cache struct {
	kv     store.KVStore
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Cache backed by kv, storing entries with the given TTL
// (clamped to store.MinExpiry).
func New(kv store.KVStore, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{kv: kv, ttl: store.ClampTTL(ttl), logger: logger.With("component", "response_cache")}
}

// Key computes the cache key: SHA-256 hex of canonical JSON over the URL
// plus the shape-flags that affect the response. Flags whose value is the
// zero value are elided so the key is stable regardless of how a caller
// spells "absent".
func Key(req *types.FetchRequest) string {
	shape := map[string]any{"url": req.URL}
	if req.ExtractText {
		shape["extract_text"] = true
	}
	if req.ExtractLinks {
		shape["extract_links"] = true
	}
	if req.ExtractMetadata {
		shape["extract_metadata"] = true
	}
	if req.Screenshot {
		shape["screenshot"] = true
	}
	if req.WaitForSelector != "" {
		shape["wait_for_selector"] = req.WaitForSelector
	}
	strategy := req.EffectiveWaitStrategy()
	if strategy != "" {
		shape["wait_strategy"] = string(strategy)
	}

	// json.Marshal encodes map keys in sorted order, so this is stable
	// under permutation of the caller-supplied request flags.
	canonical, _ := json.Marshal(shape)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for key, or nil on a miss or any backend
// error — callers never see cache-layer errors.
func (c *Cache) Get(ctx context.Context, key string) *types.FetchResponse {
	value, ok, err := c.kv.Get(ctx, storeKey(key))
	if err != nil || !ok {
		return nil
	}
	var resp types.FetchResponse
	if err := json.Unmarshal(value, &resp); err != nil {
		return nil
	}
	resp.Cached = true
	return &resp
}

// Set stores a copy of resp with its screenshot field cleared. Errors are
// logged and otherwise swallowed.
func (c *Cache) Set(ctx context.Context, key string, resp *types.FetchResponse) {
	stored := resp.Clone()
	stored.ScreenshotB64 = nil
	stored.Cached = false

	value, err := json.Marshal(stored)
	if err != nil {
		c.logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, storeKey(key), value, c.ttl); err != nil {
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// Invalidate deletes key, reporting whether a value was actually removed.
func (c *Cache) Invalidate(ctx context.Context, key string) bool {
	deleted, err := c.kv.Delete(ctx, storeKey(key))
	if err != nil {
		return false
	}
	return deleted
}

// Connected reports whether the underlying store backend is reachable,
// feeding GET /health's cache_connected field.
func (c *Cache) Connected(ctx context.Context) bool {
	return c.kv.Connected(ctx)
}

func storeKey(key string) string {
	return "iris:fetch:" + key
}
