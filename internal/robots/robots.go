// Package robots implements the Robots Oracle (spec §4.3): fetches and
// caches /robots.txt per origin and answers can_fetch(agent, url). Grounded
// on two pack repos that converge on the same library — dankinder/walker's
// fetcher.go (defRobots fallback via robotstxt.FromBytes("User-agent: *\n"),
// robotstxt.FindGroup, Group.Test) and theaidguild/kirk-ai's
// requests_crawler.go — in place of a hand-rolled parser in
// internal/engine/robots.go, which is dropped.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/cortexlabs/iris/internal/netutil"
	"github.com/cortexlabs/iris/internal/store"
	"github.com/cortexlabs/iris/internal/types"
)

const fetchTimeout = 5 * time.Second

// allowAllBody is parsed once and reused whenever a fetch fails or the
// response status isn't 200 — the fail-open ruleset.
var allowAllBody = []byte("User-agent: *\n")

// entry is a cached per-origin ruleset: record is the §3 data-model
// snapshot (origin, raw body, fail-open flag, fetch/expiry timestamps) and
// data is the parsed ruleset derived from record.Body. The in-process cache
// never evicts on record.Expired() during a process's lifetime per §4.3 —
// only the shared-store mirror honors ExpiresAt, via the KV TTL.
type entry struct {
	record *types.RobotsRecord
	data   *robotstxt.RobotsData
}

// Oracle answers can_fetch, consulting an in-process cache first, then a
// shared store mirror, then a live fetch. Concurrent misses on the same
// origin are coalesced via singleflight so only one of them hits the network.
type Oracle struct {
	userAgent string
	enabled   bool
	ttl       time.Duration
	kv        store.KVStore
	client    *http.Client
	logger    *slog.Logger

	mu      sync.RWMutex
	cache   map[string]*entry
	inflight map[string]*inflightFetch
}

type inflightFetch struct {
	done  chan struct{}
	entry *entry
}

// New creates an Oracle. When enabled is false, CanFetch always returns true
// without ever consulting the network.
func New(userAgent string, enabled bool, ttl time.Duration, kv store.KVStore, logger *slog.Logger) *Oracle {
	return &Oracle{
		userAgent: userAgent,
		enabled:   enabled,
		ttl:       ttl,
		kv:        kv,
		client:    &http.Client{Timeout: fetchTimeout},
		logger:    logger.With("component", "robots_oracle"),
		cache:     make(map[string]*entry),
		inflight:  make(map[string]*inflightFetch),
	}
}

// CanFetch answers whether userAgent may fetch rawURL, per spec §4.3.
func (o *Oracle) CanFetch(ctx context.Context, rawURL string) (bool, error) {
	if !o.enabled {
		return true, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: invalid URL %q: %w", rawURL, err)
	}
	origin := originKey(u)

	data, record, err := o.get(ctx, origin, u)
	if err != nil {
		// Fetch-level failure is itself fail-open per spec §4.3.
		o.logger.Debug("robots fetch failed, defaulting to allow", "origin", origin, "error", err)
		return true, nil
	}
	if record.AllowAll {
		return true, nil
	}

	group := data.FindGroup(o.userAgent)
	return group.Test(u.EscapedPath()), nil
}

// get returns the cached/fetched ruleset for origin plus the record it was
// parsed from, coalescing concurrent misses so only one goroutine hits the
// network per origin.
func (o *Oracle) get(ctx context.Context, origin string, u *url.URL) (*robotstxt.RobotsData, *types.RobotsRecord, error) {
	if e, ok := o.fromMemory(origin); ok {
		return e.data, e.record, nil
	}

	o.mu.Lock()
	if fut, ok := o.inflight[origin]; ok {
		o.mu.Unlock()
		select {
		case <-fut.done:
			return fut.entry.data, fut.entry.record, nil
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	fut := &inflightFetch{done: make(chan struct{})}
	o.inflight[origin] = fut
	o.mu.Unlock()

	e := o.fetchAndParse(ctx, origin, u)

	o.mu.Lock()
	o.cache[origin] = e
	delete(o.inflight, origin)
	fut.entry = e
	o.mu.Unlock()
	close(fut.done)

	return e.data, e.record, nil
}

func (o *Oracle) fromMemory(origin string) (*entry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.cache[origin]
	return e, ok
}

// fetchAndParse fetches /robots.txt for origin, falling back to the
// shared-store mirror, then to a live HTTP fetch, then to allow-all, and
// returns both the parsed ruleset and the types.RobotsRecord snapshot it
// was derived from.
func (o *Oracle) fetchAndParse(ctx context.Context, origin string, u *url.URL) *entry {
	now := time.Now()

	if body, ok := o.fromSharedStore(ctx, origin); ok {
		if data, err := robotstxt.FromBytes(body); err == nil {
			return &entry{data: data, record: o.record(origin, body, false, now)}
		}
	}

	body, status, err := o.fetch(ctx, u)
	if err != nil || status != http.StatusOK {
		return o.allowAllEntry(origin, now)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return o.allowAllEntry(origin, now)
	}

	o.toSharedStore(ctx, origin, body)
	return &entry{data: data, record: o.record(origin, body, false, now)}
}

func (o *Oracle) allowAllEntry(origin string, now time.Time) *entry {
	data, _ := robotstxt.FromBytes(allowAllBody)
	return &entry{data: data, record: o.record(origin, allowAllBody, true, now)}
}

func (o *Oracle) record(origin string, body []byte, allowAll bool, now time.Time) *types.RobotsRecord {
	return &types.RobotsRecord{
		Origin:    origin,
		Body:      body,
		AllowAll:  allowAll,
		FetchedAt: now,
		ExpiresAt: now.Add(o.ttl),
	}
}

func (o *Oracle) fetch(ctx context.Context, origin *url.URL) ([]byte, int, error) {
	reqURL := &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		time.Sleep(netutil.ParseRetryAfter(resp.Header.Get("Retry-After")))
	}

	reader, err := netutil.DecompressReader(resp, resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	body, err := io.ReadAll(io.LimitReader(reader, 512*1024))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (o *Oracle) fromSharedStore(ctx context.Context, origin string) ([]byte, bool) {
	if o.kv == nil {
		return nil, false
	}
	value, ok, err := o.kv.Get(ctx, storeKey(origin))
	if err != nil || !ok {
		return nil, false
	}
	return value, true
}

func (o *Oracle) toSharedStore(ctx context.Context, origin string, body []byte) {
	if o.kv == nil {
		return
	}
	if err := o.kv.Set(ctx, storeKey(origin), body, store.ClampTTL(o.ttl)); err != nil {
		o.logger.Debug("robots shared-store mirror failed", "origin", origin, "error", err)
	}
}

func originKey(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

func storeKey(origin string) string {
	return "iris:robots:" + origin
}
