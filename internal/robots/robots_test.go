package robots

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestCanFetchDisabledAlwaysAllows(t *testing.T) {
	o := New("IrisBot", false, time.Hour, nil, testLogger())
	ok, err := o.CanFetch(context.Background(), "https://blocked.example.com/secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected allow when robots-respect is disabled")
	}
}

func TestCanFetchDeniesDisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "User-agent: *\nDisallow: /secret/\n")
	}))
	defer srv.Close()

	o := New("IrisBot", true, time.Hour, nil, testLogger())
	ok, err := o.CanFetch(context.Background(), srv.URL+"/secret/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected deny for disallowed path")
	}
}

func TestCanFetchAllowsUnlistedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "User-agent: *\nDisallow: /secret/\n")
	}))
	defer srv.Close()

	o := New("IrisBot", true, time.Hour, nil, testLogger())
	ok, err := o.CanFetch(context.Background(), srv.URL+"/public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected allow for unlisted path")
	}
}

func TestCanFetchFailsOpenOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := New("IrisBot", true, time.Hour, nil, testLogger())
	ok, err := o.CanFetch(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected allow-all fail-open on 404")
	}
}

func TestCanFetchFailsOpenOnUnreachableHost(t *testing.T) {
	o := New("IrisBot", true, time.Hour, nil, testLogger())
	ok, err := o.CanFetch(context.Background(), "http://127.0.0.1:1/anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected allow-all fail-open on connection failure")
	}
}

func TestCanFetchCachesAcrossCalls(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		io.WriteString(w, "User-agent: *\nDisallow: /secret/\n")
	}))
	defer srv.Close()

	o := New("IrisBot", true, time.Hour, nil, testLogger())
	for i := 0; i < 3; i++ {
		if _, err := o.CanFetch(context.Background(), srv.URL+"/secret/page"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if hits != 1 {
		t.Fatalf("expected exactly one robots.txt fetch, got %d", hits)
	}
}
