package parsers

import (
	"bytes"
	"fmt"

	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/entry"
	"github.com/mmcdole/gofeed"
)

// ParseFeed is the implicit default parser: it decodes RSS/Atom/JSON
// feed content with gofeed, the same library the teacher's fetcher
// uses directly (alexott-planet-in-go/internal/fetcher/fetcher.go).
// ParseFeed never extracts follow-URLs; selector is ignored.
func ParseFeed(_ *config.ParserSelector, content []byte, meta Meta) ([]entry.Entry, []string, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("parse feed %s: %w", meta.URL, err)
	}

	entries := make([]entry.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		e := entry.Entry{
			Title:      item.Title,
			LongURL:    item.Link,
			Summary:    item.Description,
			Categories: item.Categories,
			RawFields:  make(map[string]string),
		}
		if item.GUID != "" {
			e.RawFields["guid"] = item.GUID
		}
		if item.Author != nil {
			e.RawFields["author"] = item.Author.Name
		}
		switch {
		case item.PublishedParsed != nil && meta.DateFormat != "":
			e.RawFields["published"] = item.PublishedParsed.Format(meta.DateFormat)
		case item.Published != "":
			e.RawFields["published"] = item.Published
		}
		if e.LongURL == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil, nil
}
