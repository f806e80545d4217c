// Package fetchcache gives URLFetcher conditional-GET metadata
// (ETag/Last-Modified) durable across restarts, plus a short-TTL
// in-memory content cache for a poll interval's worth of re-fetches
// (spec.md §4.2). Adapted from the teacher's file-based feed cache
// (alexott-planet-in-go/internal/cache/cache.go), generalized from
// whole-feed JSON snapshots to a single conditional-GET metadata record
// per URL plus a bounded in-memory body cache.
package fetchcache

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata holds conditional-GET information for a URL, plus the
// content hash of the body last fetched for it (spec.md §9), which
// lets a 304 response resolve to the actual last-known body instead of
// an empty one even after a process restart.
type Metadata struct {
	LastFetched  time.Time `json:"last_fetched"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	ContentHash  int64     `json:"content_hash,omitempty"`
}

// MetadataStore persists conditional-GET metadata to disk, one small
// JSON file per URL, matching the teacher's directory-of-files layout.
type MetadataStore struct {
	directory string
	mu        sync.Mutex
}

// NewMetadataStore returns a MetadataStore rooted at directory.
func NewMetadataStore(directory string) *MetadataStore {
	return &MetadataStore{directory: directory}
}

// Load returns the stored metadata for url, or nil if none is recorded.
func (s *MetadataStore) Load(url string) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fetch metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal fetch metadata: %w", err)
	}
	return &meta, nil
}

// Save persists metadata for url.
func (s *MetadataStore) Save(url string, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.directory, 0755); err != nil {
		return fmt.Errorf("create fetch cache directory: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal fetch metadata: %w", err)
	}
	if err := os.WriteFile(s.path(url), data, 0644); err != nil {
		return fmt.Errorf("write fetch metadata: %w", err)
	}
	return nil
}

func (s *MetadataStore) path(url string) string {
	hash := md5.Sum([]byte(url))
	return filepath.Join(s.directory, fmt.Sprintf("%x.json", hash))
}

// SaveBody persists body under its content hash, so a later 304 for a
// different URL sharing the same content (or the same URL after a
// restart) can resolve it without re-fetching. Idempotent: writing the
// same hash twice just overwrites identical bytes.
func (s *MetadataStore) SaveBody(hash int64, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.directory, 0755); err != nil {
		return fmt.Errorf("create fetch cache directory: %w", err)
	}
	if err := os.WriteFile(s.bodyPath(hash), body, 0644); err != nil {
		return fmt.Errorf("write cached body: %w", err)
	}
	return nil
}

// LoadBody returns the body previously saved under hash, if any.
func (s *MetadataStore) LoadBody(hash int64) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := os.ReadFile(s.bodyPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cached body: %w", err)
	}
	return body, true, nil
}

func (s *MetadataStore) bodyPath(hash int64) string {
	return filepath.Join(s.directory, fmt.Sprintf("body-%x.bin", uint64(hash)))
}

// contentEntry pairs cached bytes with the time they were stored, so the
// ContentCache can enforce a TTL on otherwise-unbounded-lifetime LRU
// entries.
type contentEntry struct {
	body     []byte
	storedAt time.Time
}

// ContentCache is a bounded, TTL-bounded in-memory cache of fetched
// bodies, keyed by URL, used to avoid re-fetching a URL more than once
// within a poll interval (spec.md §4.2).
type ContentCache struct {
	ttl   time.Duration
	cache *lru.Cache[string, contentEntry]
}

// NewContentCache returns a ContentCache holding up to size entries for
// at most ttl each.
func NewContentCache(size int, ttl time.Duration) *ContentCache {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, contentEntry](size)
	if err != nil {
		panic(err)
	}
	return &ContentCache{ttl: ttl, cache: c}
}

// Get returns the cached body for url if present and not expired.
func (c *ContentCache) Get(url string) ([]byte, bool) {
	v, ok := c.cache.Get(url)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(v.storedAt) > c.ttl {
		c.cache.Remove(url)
		return nil, false
	}
	return v.body, true
}

// Put stores body for url.
func (c *ContentCache) Put(url string, body []byte) {
	c.cache.Add(url, contentEntry{body: body, storedAt: time.Now()})
}
