// Package wait implements the Wait Engine (spec §4.4): applies a wait
// strategy to a live page before content is read. Exact semantics (load
// no-op, selector auto-upgrade, timeout-only skipping the extra delay) are
// grounded on original_source/src/iris/wait_strategy.py's SmartWaiter.wait();
// expressed through rod's page-lifecycle and element-wait idiom, the same
// one prior implementations used for element waits in internal/automation/browser.go.
package wait

import (
	"time"

	"github.com/go-rod/rod"

	"github.com/cortexlabs/iris/internal/types"
)

// Apply runs strategy against page, then (unless strategy is "timeout") an
// additional fixed wait of afterLoad. Browser-side timeouts are best-effort:
// domcontentloaded, networkidle, and selector waits swallow their own
// timeout faults rather than failing the attempt.
func Apply(page *rod.Page, strategy types.WaitStrategy, selector string, timeout, afterLoad time.Duration) {
	switch strategy {
	case types.WaitLoad:
		// no-op: navigation already waited for load.
	case types.WaitDOMContentLoaded:
		_ = page.Timeout(timeout).WaitDOMStable(300*time.Millisecond, 0)
	case types.WaitNetworkIdle:
		_ = page.Timeout(timeout).WaitIdle(500 * time.Millisecond)
	case types.WaitSelector:
		waitSelector(page, selector, timeout)
	case types.WaitTimeout:
		time.Sleep(afterLoad)
		return
	default:
		// Unrecognized strategy behaves like load: no-op.
	}

	time.Sleep(afterLoad)
}

func waitSelector(page *rod.Page, selector string, timeout time.Duration) {
	if selector == "" {
		return
	}
	el, err := page.Timeout(timeout).Element(selector)
	if err != nil {
		return
	}
	_ = el.Timeout(timeout).WaitVisible()
}
