// Package retry implements the Retry Orchestrator (spec §4.6): drives the
// Fetch Executor through up to MAX_RETRIES+1 attempts with exponential
// backoff. Grounded on original_source/src/iris/fetcher.py's
// PageFetcher.fetch retry loop (backoff 2^(attempt-1)s, stop on success or
// a non-retryable error, always return the last result once the budget is
// exhausted) and the general retry shape in
// internal/fetcher/http.go's isRetryableError.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cortexlabs/iris/internal/browserpool"
	"github.com/cortexlabs/iris/internal/classify"
	"github.com/cortexlabs/iris/internal/fetchexec"
	"github.com/cortexlabs/iris/internal/types"
)

// Options configures a single Run call.
type Options struct {
	MaxRetries       int
	Timeout          time.Duration
	WaitAfterLoad    time.Duration
	MaxContentLength int
}

// executeFunc matches fetchexec.Execute's signature; Run depends on it
// through this alias so tests can substitute a fake without a live browser.
type executeFunc func(ctx context.Context, slot *browserpool.Slot, req *types.FetchRequest, timeout, afterLoad time.Duration, maxContentLength int) *types.FetchAttemptResult

// acquireFunc matches browserpool.Pool.Acquire's signature, paired with the
// release closure to run once the whole retry budget is done; Run depends
// on it through this alias so tests can substitute a fake without a live
// browser or pool.
type acquireFunc func(ctx context.Context) (slot *browserpool.Slot, release func(), err error)

func poolAcquire(pool *browserpool.Pool) acquireFunc {
	return func(ctx context.Context) (*browserpool.Slot, func(), error) {
		slot, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return slot, slot.Release, nil
	}
}

// Run acquires one browser-pool concurrency slot and drives fetchexec.Execute
// for up to MaxRetries+1 attempts against it, sleeping 2^(attempt-1) seconds
// before each retry. The slot is held across the entire retry budget,
// including backoff sleeps, per spec §4.6: a retrying request's reservation
// is never released back to the pool mid-retry. Run returns the last attempt
// result unconditionally: a success or a non-retryable error stops the loop
// immediately, and exhausting the budget returns whatever the final attempt
// produced.
func Run(ctx context.Context, pool *browserpool.Pool, req *types.FetchRequest, opts Options, logger *slog.Logger) *types.FetchAttemptResult {
	return run(ctx, poolAcquire(pool), fetchexec.Execute, req, opts, logger)
}

func run(ctx context.Context, acquire acquireFunc, execute executeFunc, req *types.FetchRequest, opts Options, logger *slog.Logger) *types.FetchAttemptResult {
	slot, release, err := acquire(ctx)
	if err != nil {
		return &types.FetchAttemptResult{
			URL:   req.URL,
			Error: classify.BrowserError(err.Error()),
		}
	}
	defer release()

	var last *types.FetchAttemptResult

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			logger.Info("retrying fetch", "url", req.URL, "attempt", attempt, "max_retries", opts.MaxRetries, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return last
			}
		}

		result := execute(ctx, slot, req, opts.Timeout, opts.WaitAfterLoad, opts.MaxContentLength)
		last = result

		if result.Success() {
			return result
		}
		if !result.Error.Retryable {
			return result
		}
		if attempt >= opts.MaxRetries {
			return result
		}
	}

	return last
}
