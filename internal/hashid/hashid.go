// Package hashid computes a compact, signed 64-bit identity hash of
// content; internal/fetcher uses it to key the fetched bodies it keeps
// on disk (spec.md §9).
package hashid

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/sha3"
)

const cacheSize = 1024

// Hasher computes Int8 content hashes, caching recent results the way
// the original `Int8Hash` class does with `functools.lru_cache(1024)`
// (original_source/ircrssfeedbot/util/hashlib.py).
type Hasher struct {
	cache *lru.Cache[string, int64]
}

// New returns a Hasher with a bounded LRU cache of the given size. A
// size of 0 uses the default of 1024, matching the original.
func New(size int) *Hasher {
	if size <= 0 {
		size = cacheSize
	}
	c, err := lru.New[string, int64](size)
	if err != nil {
		// Only returned for a non-positive size, which we've just guarded.
		panic(err)
	}
	return &Hasher{cache: c}
}

// Int8 returns a signed 64-bit hash of seed, truncated from a shake-128
// digest the way `Int8Hash.__call__` does: `shake_128(seed).digest(8)`
// interpreted as a big-endian signed integer.
func (h *Hasher) Int8(seed string) int64 {
	if v, ok := h.cache.Get(seed); ok {
		return v
	}
	var digest [8]byte
	d := sha3.NewShake128()
	_, _ = d.Write([]byte(seed))
	_, _ = d.Read(digest[:])
	v := int64(binary.BigEndian.Uint64(digest[:]))
	h.cache.Add(seed, v)
	return v
}
