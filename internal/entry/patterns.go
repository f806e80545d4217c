package entry

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const patternCacheSize = 1024

// PatternCache compiles and memoizes regex pattern lists keyed by
// (channel, feed, list type), mirroring the `_patterns` lru_cache in
// original_source/ircrssfeedbot/feed.py.
type PatternCache struct {
	cache *lru.Cache[string, []*regexp.Regexp]
}

// NewPatternCache returns a PatternCache with the given capacity. Zero
// uses the default.
func NewPatternCache(size int) *PatternCache {
	if size <= 0 {
		size = patternCacheSize
	}
	c, err := lru.New[string, []*regexp.Regexp](size)
	if err != nil {
		panic(err)
	}
	return &PatternCache{cache: c}
}

// Compiled returns the compiled patterns for the given channel, feed,
// listType ("blacklist" or "whitelist"), and field, compiling and
// caching them on first use.
func (pc *PatternCache) Compiled(channel, feed, listType, field string, patterns []string) ([]*regexp.Regexp, error) {
	key := strings.Join([]string{channel, feed, listType, field}, "|")
	if v, ok := pc.cache.Get(key); ok {
		return v, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %s %s pattern %q: %w", listType, field, p, err)
		}
		compiled = append(compiled, re)
	}
	pc.cache.Add(key, compiled)
	return compiled, nil
}
