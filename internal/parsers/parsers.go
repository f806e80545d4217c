// Package parsers implements the entry-parser plug-in contract: a pure
// function from fetched bytes to normalized entries plus any follow-up
// URLs to also fetch (spec.md §6, §9).
package parsers

import (
	"fmt"

	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/entry"
)

// Meta carries the context a parser needs beyond the raw bytes: which
// feed this content came from and the URL it was fetched from.
type Meta struct {
	Channel string
	Feed    string
	URL     string

	// DateFormat is the Go time.Format layout to render a parsed
	// published date into the "published" format parameter. Empty
	// means leave the feed's raw published string as-is.
	DateFormat string
}

// Func is the parser plug-in contract: given the configured selector
// (nil for the implicit feedparser default) and the fetched content, it
// returns normalized entries and any additional URLs the entries'
// selector designates for follow-up fetching.
type Func func(selector *config.ParserSelector, content []byte, meta Meta) ([]entry.Entry, []string, error)

// registry maps a FeedConfig's selector field name to its parser.
var registry = map[string]Func{
	"feedparser": ParseFeed,
	"hext":       ParseHext,
	"pandas":     ParsePandas,
	"jmespath":   ParseJMESPath,
}

// Select returns the parser designated by cfg: exactly one of
// hext/jmespath/pandas, else the implicit feedparser default, along
// with the selector to pass it.
func Select(cfg config.FeedConfig) (Func, *config.ParserSelector, error) {
	set := 0
	var name string
	var sel *config.ParserSelector
	for _, candidate := range []struct {
		name string
		sel  *config.ParserSelector
	}{
		{"hext", cfg.Hext},
		{"jmespath", cfg.JMESPath},
		{"pandas", cfg.Pandas},
	} {
		if candidate.sel != nil {
			set++
			name = candidate.name
			sel = candidate.sel
		}
	}
	if set > 1 {
		return nil, nil, fmt.Errorf("feed config selects more than one parser")
	}
	if set == 0 {
		return registry["feedparser"], nil, nil
	}
	return registry[name], sel, nil
}
