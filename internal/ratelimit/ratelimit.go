// Package ratelimit implements the per-origin token bucket described in
// spec §4.2. The check-and-refill arithmetic is grounded on the original
// Python source's Lua script (src/iris/rate_limiter.py); the per-origin
// locking is grounded on the retrieval pack's
// limitmap.Semaphore (a sync.Cond-based per-key semaphore).
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cortexlabs/iris/internal/store"
	"github.com/cortexlabs/iris/internal/types"
)

// Limiter is a per-origin token bucket. acquire(origin) blocks until one
// token is available, then consumes it. Cross-origin independence: locks
// are per-origin, so one slow origin never blocks another.
type Limiter struct {
	rate   float64 // tokens/second
	burst  float64
	kv     store.KVStore
	logger *slog.Logger

	mu      sync.Mutex
	origins map[string]*originLock
}

// originLock is the per-origin token bucket's mutable state, carried as
// types.RateBucket (0 <= Tokens <= Burst) plus the mutex that serializes
// access to it.
type originLock struct {
	mu sync.Mutex
	types.RateBucket
}

// New creates a Limiter refilling at 1000/minDelayMs tokens/second, capacity burst.
func New(minDelayMs int, burst int, kv store.KVStore, logger *slog.Logger) *Limiter {
	rate := 1000.0
	if minDelayMs > 0 {
		rate = 1000.0 / float64(minDelayMs)
	}
	return &Limiter{
		rate:    rate,
		burst:   float64(burst),
		kv:      kv,
		logger:  logger.With("component", "rate_limiter"),
		origins: make(map[string]*originLock),
	}
}

func (l *Limiter) lockFor(origin string) *originLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	ol, ok := l.origins[origin]
	if !ok {
		ol = &originLock{RateBucket: types.RateBucket{Tokens: l.burst, LastRefill: time.Now()}}
		l.origins[origin] = ol
	}
	return ol
}

// Acquire blocks until a token is available for origin, then consumes it.
// Concurrent acquires on the same origin are serialized by the per-origin
// sync.Mutex; the order in which waiters obtain it is not guaranteed to be
// FIFO.
func (l *Limiter) Acquire(ctx context.Context, origin string) error {
	ol := l.lockFor(origin)
	ol.mu.Lock()
	defer ol.mu.Unlock()

	l.restore(ctx, origin, ol)

	for {
		l.refill(ol)
		if ol.Tokens >= 1 {
			ol.Tokens--
			l.persist(ctx, origin, ol)
			return nil
		}

		wait := time.Duration((1 - ol.Tokens) / l.rate * float64(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill applies the atomic check-and-refill arithmetic: fractional tokens
// are retained between calls and tokens never exceed burst.
func (l *Limiter) refill(ol *originLock) {
	now := time.Now()
	elapsed := now.Sub(ol.LastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	ol.Tokens += elapsed * l.rate
	if ol.Tokens > l.burst {
		ol.Tokens = l.burst
	}
	ol.LastRefill = now
}

// restore loads persisted bucket state from the shared store, if any.
// On any store error it transparently continues with the in-process state.
func (l *Limiter) restore(ctx context.Context, origin string, ol *originLock) {
	if l.kv == nil {
		return
	}
	fields, err := l.kv.HGetAll(ctx, bucketKey(origin))
	if err != nil || fields == nil {
		return
	}
	var tokens float64
	var lastSecs float64
	if _, err := fmt.Sscanf(fields["tokens"], "%f", &tokens); err != nil {
		return
	}
	if _, err := fmt.Sscanf(fields["last_refill"], "%f", &lastSecs); err != nil {
		return
	}
	ol.Tokens = tokens
	ol.LastRefill = time.Unix(0, int64(lastSecs*float64(time.Second)))
}

// persist mirrors bucket state to the shared store. Errors are logged and
// otherwise ignored — the in-process bucket remains authoritative.
func (l *Limiter) persist(ctx context.Context, origin string, ol *originLock) {
	if l.kv == nil {
		return
	}
	fields := map[string]string{
		"tokens":      fmt.Sprintf("%f", ol.Tokens),
		"last_refill": fmt.Sprintf("%f", float64(ol.LastRefill.UnixNano())/float64(time.Second)),
	}
	if err := l.kv.HSet(ctx, bucketKey(origin), fields, store.MinExpiry); err != nil {
		l.logger.Debug("rate bucket persist failed, continuing with in-memory state", "origin", origin, "error", err)
	}
}

func bucketKey(origin string) string {
	return "iris:ratelimit:" + origin
}
