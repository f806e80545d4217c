// Package entry defines the normalized entry type produced by parsers
// and the filter/reshape pipeline applied by a FeedReader before an
// entry becomes eligible for posting (spec.md §3, §4.3.1).
package entry

// Entry is a single normalized feed item.
type Entry struct {
	Title      string
	LongURL    string
	ShortURL   string
	Summary    string
	Categories []string

	// RawFields carries source fields from the parser, used as the
	// parameter map base for the format stage.
	RawFields map[string]string

	// MatchingTitlePattern is the whitelist title pattern that matched
	// this entry, if any (spec.md §4.3.1 step 2).
	MatchingTitlePattern string
}

// Equal reports whether two entries share the same identity, which is
// long_url alone (spec.md §3).
func (e Entry) Equal(other Entry) bool {
	return e.LongURL == other.LongURL
}

// URL returns the URL to post: short_url when shorten is enabled and
// populated, else long_url.
func (e Entry) URL(shorten bool) string {
	if shorten && e.ShortURL != "" {
		return e.ShortURL
	}
	return e.LongURL
}
