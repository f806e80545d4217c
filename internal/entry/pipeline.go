package entry

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/alexott/ircfeedbot/internal/config"
)

// Process runs the entry pipeline in the exact order required by
// spec.md §4.3.1: blacklist, whitelist, https-upgrade, sub, format,
// URL space-escape, HTML-to-text, smart-quote strip, trailing-period
// strip, all-caps recapitalization, title truncation, in-batch dedupe.
func Process(entries []Entry, channel, feed string, cfg config.FeedConfig, patterns *PatternCache, titleMaxBytes int, log *slog.Logger) ([]Entry, error) {
	entries, err := applyBlacklist(entries, channel, feed, cfg.Blacklist, patterns)
	if err != nil {
		return nil, err
	}
	entries, err = applyWhitelist(entries, channel, feed, cfg.Whitelist, patterns)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if cfg.HTTPS {
			entries[i].LongURL = upgradeHTTPS(entries[i].LongURL)
		}
		entries[i] = applySub(entries[i], cfg.Sub)
		entries[i] = applyFormat(entries[i], cfg.Format, log)
		entries[i].LongURL = escapeURLSpace(entries[i].LongURL)
		entries[i].Title = htmlToText(entries[i].Title)
		entries[i].Summary = htmlToText(entries[i].Summary)
		entries[i].Title = stripSmartQuotes(entries[i].Title)
		entries[i].Title = stripTrailingPeriod(entries[i].Title)
		entries[i].Title = recapitalizeAllCaps(entries[i].Title)
		entries[i].Title = truncateTitle(entries[i].Title, titleMaxBytes)
	}

	return dedupeWithinBatch(entries), nil
}

func upgradeHTTPS(longURL string) string {
	return strings.Replace(longURL, "http://", "https://", 1)
}

func escapeURLSpace(u string) string {
	u = strings.TrimSpace(u)
	return strings.ReplaceAll(u, " ", "%20")
}

func applySub(e Entry, cfg config.SubConfig) Entry {
	if cfg.Title != nil {
		if re, err := compileSub(cfg.Title.Pattern); err == nil {
			e.Title = re.ReplaceAllString(e.Title, cfg.Title.Repl)
		}
	}
	if cfg.URL != nil {
		if re, err := compileSub(cfg.URL.Pattern); err == nil {
			e.LongURL = re.ReplaceAllString(e.LongURL, cfg.URL.Repl)
		}
	}
	return e
}

// applyBlacklist drops any entry matching a configured blacklist regex
// against title, long_url, or any category (spec.md §4.3.1 step 1).
func applyBlacklist(entries []Entry, channel, feed string, bl config.PatternLists, patterns *PatternCache) ([]Entry, error) {
	if bl.Empty() {
		return entries, nil
	}
	titleRes, err := patterns.Compiled(channel, feed, "blacklist", "title", bl.Title)
	if err != nil {
		return nil, err
	}
	urlRes, err := patterns.Compiled(channel, feed, "blacklist", "url", bl.URL)
	if err != nil {
		return nil, err
	}
	catRes, err := patterns.Compiled(channel, feed, "blacklist", "category", bl.Category)
	if err != nil {
		return nil, err
	}

	kept := entries[:0:0]
	for _, e := range entries {
		if matchesAny(titleRes, e.Title) || matchesAny(urlRes, e.LongURL) || matchesAnyCategory(catRes, e.Categories) {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// applyWhitelist keeps only entries matching at least one whitelist
// regex, recording the matching title pattern for downstream formatters
// (spec.md §4.3.1 step 2).
func applyWhitelist(entries []Entry, channel, feed string, wl config.PatternLists, patterns *PatternCache) ([]Entry, error) {
	// A whitelist with no patterns under any key keeps every entry.
	if wl.Empty() {
		return entries, nil
	}
	titleRes, err := patterns.Compiled(channel, feed, "whitelist", "title", wl.Title)
	if err != nil {
		return nil, err
	}
	urlRes, err := patterns.Compiled(channel, feed, "whitelist", "url", wl.URL)
	if err != nil {
		return nil, err
	}
	catRes, err := patterns.Compiled(channel, feed, "whitelist", "category", wl.Category)
	if err != nil {
		return nil, err
	}

	kept := entries[:0:0]
	for _, e := range entries {
		if m := firstMatch(titleRes, e.Title); m != "" {
			e.MatchingTitlePattern = m
			kept = append(kept, e)
			continue
		}
		if matchesAny(urlRes, e.LongURL) || matchesAnyCategory(catRes, e.Categories) {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func matchesAnyCategory(res []*regexp.Regexp, categories []string) bool {
	for _, c := range categories {
		if matchesAny(res, c) {
			return true
		}
	}
	return false
}

func firstMatch(res []*regexp.Regexp, s string) string {
	for _, re := range res {
		if re.MatchString(s) {
			return re.String()
		}
	}
	return ""
}

// dedupeWithinBatch removes later occurrences of an already-seen
// long_url, preserving first-seen order (spec.md §4.3.1 step 12).
func dedupeWithinBatch(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := seen[e.LongURL]; ok {
			continue
		}
		seen[e.LongURL] = struct{}{}
		out = append(out, e)
	}
	return out
}

func compileSub(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}
