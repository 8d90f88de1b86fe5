package fetchexec

import (
	"context"
	"testing"
	"time"

	"github.com/cortexlabs/iris/internal/types"
)

func TestExecuteRejectsInvalidURL(t *testing.T) {
	// URL validation happens before the slot is ever touched, so Execute
	// doesn't need a real slot to reject a malformed request.
	result := Execute(context.Background(), nil, &types.FetchRequest{URL: "not-a-url"}, time.Second, 0, 1_000_000)
	if result.Error == nil || result.Error.Kind != types.ErrKindInvalidURL {
		t.Fatalf("expected invalid_url error, got %+v", result.Error)
	}
}

func TestPrettyJSONReformatsValidInput(t *testing.T) {
	got := prettyJSON([]byte(`{"b":1,"a":2}`))
	want := "{\n  \"a\": 2,\n  \"b\": 1\n}"
	if got != want {
		t.Errorf("prettyJSON = %q, want %q", got, want)
	}
}

func TestPrettyJSONFallsBackOnMalformedInput(t *testing.T) {
	got := prettyJSON([]byte(`not json`))
	if got != "not json" {
		t.Errorf("prettyJSON fallback = %q", got)
	}
}

func TestBodyTextOnlyStripsHeadAndTags(t *testing.T) {
	html := `<html><head><title>x</title></head><body class="x">hello</body></html>`
	got := bodyTextOnly(html)
	if got != "hello" {
		t.Errorf("bodyTextOnly = %q", got)
	}
}

func TestBodyTextOnlyReturnsInputWhenNoBodyTag(t *testing.T) {
	if got := bodyTextOnly("plain text"); got != "plain text" {
		t.Errorf("bodyTextOnly = %q", got)
	}
}

func TestIsPDFURLDetectsExtension(t *testing.T) {
	if !isPDFURL("https://example.com/file.PDF") {
		t.Error("expected .PDF to match case-insensitively")
	}
	if isPDFURL("https://example.com/file.html") {
		t.Error("expected non-pdf extension to not match")
	}
}
