package wait

import (
	"testing"
	"time"

	"github.com/cortexlabs/iris/internal/types"
)

// Apply never dereferences page for the "load" and "timeout" strategies, so
// these exercise the timing contract without needing a live browser.

func TestApplyLoadAppliesAfterLoadDelay(t *testing.T) {
	start := time.Now()
	Apply(nil, types.WaitLoad, "", time.Second, 20*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected at least the after-load delay, took %v", elapsed)
	}
}

func TestApplyTimeoutSleepsExactlyAfterLoad(t *testing.T) {
	start := time.Now()
	Apply(nil, types.WaitTimeout, "", time.Second, 20*time.Millisecond)
	elapsed := time.Since(start)
	if elapsed < 20*time.Millisecond {
		t.Fatalf("expected to sleep the after-load duration, took %v", elapsed)
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("timeout strategy should not double the delay, took %v", elapsed)
	}
}
