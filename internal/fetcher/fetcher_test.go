package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return New(Options{
		Timeout:     2 * time.Second,
		MetadataDir: filepath.Join(t.TempDir(), "meta"),
		MaxRetries:  1,
	})
}

func TestFetch_ReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("feed body"))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Body) != "feed body" {
		t.Errorf("Body = %q", result.Body)
	}
}

func TestFetch_ConditionalGETSendsETag(t *testing.T) {
	var sawIfNoneMatch atomic.Bool
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("ETag", `"v1"`)
			w.Write([]byte("first"))
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			sawIfNoneMatch.Store(true)
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	f := newTestFetcher(t)

	// Drive fetchOnce directly (bypassing the in-memory content cache, whose
	// whole purpose is to skip a second round-trip within a poll interval)
	// to exercise the conditional-GET metadata round trip itself.
	if _, err := f.fetchOnce(context.Background(), server.URL); err != nil {
		t.Fatal(err)
	}
	result, err := f.fetchOnce(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !sawIfNoneMatch.Load() {
		t.Error("second request did not send If-None-Match")
	}
	if !result.NotModified {
		t.Error("expected NotModified result")
	}
	if string(result.Body) != "first" {
		t.Errorf("expected a 304 to resolve the last-known body via the content hash, got %q", result.Body)
	}
}

func TestFetch_PermanentFailureNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent failure)", calls)
	}
}

func TestFetch_TransientFailureRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok after retry"))
	}))
	defer server.Close()

	f := New(Options{
		Timeout:     2 * time.Second,
		MetadataDir: filepath.Join(t.TempDir(), "meta"),
		MaxRetries:  3,
	})
	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Body) != "ok after retry" {
		t.Errorf("Body = %q", result.Body)
	}
	if calls < 2 {
		t.Errorf("calls = %d, want >= 2 (retried after transient failure)", calls)
	}
}
