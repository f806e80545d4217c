// Package shortener implements the URL shortener contract: batch
// shorten(urls[]) → short_urls[] preserving index alignment, with
// results cached (spec.md §6). The HTTP surface is grounded on the
// teacher's tuned http.Client usage in
// alexott-planet-in-go/internal/fetcher/fetcher.go; the bounded cache
// uses the same hashicorp/golang-lru already wired elsewhere in this
// module.
package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Shortener batch-resolves long URLs to short URLs via an HTTP
// shortener API, caching results.
type Shortener struct {
	client   *http.Client
	endpoint string
	tokens   []string
	nextTok  atomic.Uint64 // round-robins across tokens; shared across channel posters
	cache    *lru.Cache[string, string]
}

// New returns a Shortener backed by endpoint, round-robining across
// tokens for auth, caching up to cacheSize recent results.
func New(endpoint string, tokens []string, cacheSize int) (*Shortener, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	c, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create shortener cache: %w", err)
	}
	return &Shortener{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
		tokens:   tokens,
		cache:    c,
	}, nil
}

// Shorten returns short URLs for urls, preserving index alignment.
// Cached entries are served without a network call; the remainder are
// resolved in a single batch request.
func (s *Shortener) Shorten(ctx context.Context, urls []string) ([]string, error) {
	results := make([]string, len(urls))
	var toResolve []string
	var toResolveIdx []int

	for i, u := range urls {
		if short, ok := s.cache.Get(u); ok {
			results[i] = short
			continue
		}
		toResolve = append(toResolve, u)
		toResolveIdx = append(toResolveIdx, i)
	}

	if len(toResolve) == 0 {
		return results, nil
	}

	resolved, err := s.shortenBatch(ctx, toResolve)
	if err != nil {
		return nil, fmt.Errorf("shorten batch: %w", err)
	}
	for j, idx := range toResolveIdx {
		results[idx] = resolved[j]
		s.cache.Add(toResolve[j], resolved[j])
	}
	return results, nil
}

type shortenRequest struct {
	LongURLs []string `json:"long_urls"`
}

type shortenResponse struct {
	ShortURLs []string `json:"short_urls"`
}

func (s *Shortener) shortenBatch(ctx context.Context, urls []string) ([]string, error) {
	body, err := json.Marshal(shortenRequest{LongURLs: urls})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := s.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shortener returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var parsed shortenResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.ShortURLs) != len(urls) {
		return nil, fmt.Errorf("shortener response length %d does not match request length %d", len(parsed.ShortURLs), len(urls))
	}
	return parsed.ShortURLs, nil
}

func (s *Shortener) token() string {
	if len(s.tokens) == 0 {
		return ""
	}
	i := s.nextTok.Add(1) - 1
	return s.tokens[int(i%uint64(len(s.tokens)))]
}

// TokensFromEnv splits a comma-separated token list, as stored in the
// BITLY_TOKENS environment variable (spec.md §6).
func TokensFromEnv(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
