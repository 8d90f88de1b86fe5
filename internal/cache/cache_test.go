package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cortexlabs/iris/internal/store"
	"github.com/cortexlabs/iris/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestKeyStableUnderFlagPermutation(t *testing.T) {
	a := &types.FetchRequest{URL: "https://example.com/", ExtractText: true, ExtractLinks: true}
	b := &types.FetchRequest{URL: "https://example.com/", ExtractLinks: true, ExtractText: true}
	if Key(a) != Key(b) {
		t.Fatal("expected key to be stable under flag permutation")
	}
}

func TestKeyIs64HexChars(t *testing.T) {
	k := Key(&types.FetchRequest{URL: "https://example.com/"})
	if len(k) != 64 {
		t.Fatalf("expected 64 hex chars, got %d: %q", len(k), k)
	}
	for _, r := range k {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("non-hex character in key: %q", k)
		}
	}
}

func TestKeyIgnoresAbsentFlags(t *testing.T) {
	a := &types.FetchRequest{URL: "https://example.com/"}
	b := &types.FetchRequest{URL: "https://example.com/", ExtractText: false, Screenshot: false}
	if Key(a) != Key(b) {
		t.Fatal("expected key to ignore zero-value flags")
	}
}

func TestSetClearsScreenshotAndGetReturnsCachedTrue(t *testing.T) {
	mem := store.NewMemStore()
	c := New(mem, time.Hour, testLogger())

	screenshot := "base64data"
	resp := &types.FetchResponse{URL: "https://example.com/", StatusCode: 200, ScreenshotB64: &screenshot}
	key := "testkey"

	c.Set(context.Background(), key, resp)

	got := c.Get(context.Background(), key)
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.ScreenshotB64 != nil {
		t.Fatal("expected stored copy to have screenshot stripped")
	}
	if !got.Cached {
		t.Fatal("expected Cached=true on a retrieved entry")
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	mem := store.NewMemStore()
	c := New(mem, time.Hour, testLogger())
	if got := c.Get(context.Background(), "missing"); got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}

func TestInvalidateReportsWhetherDeleted(t *testing.T) {
	mem := store.NewMemStore()
	c := New(mem, time.Hour, testLogger())

	resp := &types.FetchResponse{URL: "https://example.com/"}
	c.Set(context.Background(), "key1", resp)

	if !c.Invalidate(context.Background(), "key1") {
		t.Fatal("expected invalidate to report deletion")
	}
	if c.Invalidate(context.Background(), "key1") {
		t.Fatal("expected second invalidate to report no deletion")
	}
}
