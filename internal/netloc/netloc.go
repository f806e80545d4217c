// Package netloc extracts and caches the network location (host[:port])
// of a URL, casefolded, for use as a per-host concurrency key
// (spec.md §9; original_source/ircrssfeedbot/util/urllib.py).
package netloc

import (
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
)

const cacheSize = 4096

var caseFolder = cases.Fold()

// Cache resolves URLs to their netloc, memoizing results in a bounded LRU.
type Cache struct {
	cache *lru.Cache[string, string]
}

// New returns a Cache with the given capacity. Zero uses the default.
func New(size int) *Cache {
	if size <= 0 {
		size = cacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		panic(err)
	}
	return &Cache{cache: c}
}

// Of returns the casefolded netloc of rawURL, stripped of a leading
// "www.". A scheme is assumed (defaulting to https) if rawURL lacks one,
// matching `url_to_netloc`.
func (c *Cache) Of(rawURL string) string {
	if v, ok := c.cache.Get(rawURL); ok {
		return v
	}
	v := compute(rawURL)
	c.cache.Add(rawURL, v)
	return v
}

func compute(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return ""
		}
	}
	netloc := caseFolder.String(u.Host)
	netloc = strings.TrimPrefix(netloc, "www.")
	return netloc
}
