package browserpool

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cortexlabs/iris/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestNewInTestingModeReportsNotConnected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TestingMode = true

	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error in testing mode: %v", err)
	}
	if p.Connected() {
		t.Fatal("expected pool to report not connected in testing mode")
	}
}

func TestAcquireFailsFastWhenNotConnected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TestingMode = true

	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = p.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected Acquire to fail fast when pool is not connected")
	}
}

func TestCloseIsSafeWhenNeverConnected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TestingMode = true

	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("expected Close to be a no-op, got: %v", err)
	}
}
