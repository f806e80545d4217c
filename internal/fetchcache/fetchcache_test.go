package fetchcache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestMetadataStore_SaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	store := NewMetadataStore(filepath.Join(dir, "meta"))

	url := "https://example.org/feed"
	if _, err := store.Load(url); err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}

	meta := Metadata{ETag: `"abc123"`, LastModified: "Wed, 01 Jan 2026 00:00:00 GMT"}
	if err := store.Save(url, meta); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(url)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.ETag != meta.ETag {
		t.Fatalf("loaded = %+v, want %+v", loaded, meta)
	}
}

func TestMetadataStore_BodyRoundtrip(t *testing.T) {
	store := NewMetadataStore(filepath.Join(t.TempDir(), "meta"))

	if _, ok, err := store.LoadBody(42); err != nil || ok {
		t.Fatalf("expected miss for unsaved hash, got ok=%v err=%v", ok, err)
	}

	if err := store.SaveBody(42, []byte("cached body")); err != nil {
		t.Fatal(err)
	}

	body, ok, err := store.LoadBody(42)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(body) != "cached body" {
		t.Fatalf("body = %q, ok = %v, want %q, true", body, ok, "cached body")
	}
}

func TestContentCache_TTLExpiry(t *testing.T) {
	c := NewContentCache(4, 10*time.Millisecond)
	c.Put("https://example.org/a", []byte("hello"))

	if _, ok := c.Get("https://example.org/a"); !ok {
		t.Fatal("expected fresh entry to be present")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("https://example.org/a"); ok {
		t.Fatal("expected expired entry to be evicted")
	}
}

func TestContentCache_MissReturnsFalse(t *testing.T) {
	c := NewContentCache(4, time.Minute)
	if _, ok := c.Get("https://example.org/missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}
