package parsers

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/entry"
)

// ParseHext extracts entries from HTML via CSS selectors (goquery +
// cascadia), the Go analogue of a hext-style extraction template.
// selector.Select names the repeated item node; the entry's title and
// URL come from the item's first anchor, its summary from a ".summary"
// descendant if present. selector.Follow, if set, is a CSS selector
// (relative to each item) whose matched anchors' hrefs are returned as
// follow-URLs.
func ParseHext(selector *config.ParserSelector, content []byte, meta Meta) ([]entry.Entry, []string, error) {
	if selector == nil || selector.Select == "" {
		return nil, nil, fmt.Errorf("hext parser requires a select expression")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html for %s: %w", meta.URL, err)
	}

	var entries []entry.Entry
	var followURLs []string

	doc.Find(selector.Select).Each(func(_ int, item *goquery.Selection) {
		anchor := item.Find("a").First()
		href, _ := anchor.Attr("href")
		title := strings.TrimSpace(anchor.Text())
		if href == "" {
			return
		}
		summary := strings.TrimSpace(item.Find(".summary").First().Text())

		entries = append(entries, entry.Entry{
			Title:     title,
			LongURL:   href,
			Summary:   summary,
			RawFields: map[string]string{},
		})

		if selector.Follow != "" {
			item.Find(selector.Follow).Each(func(_ int, follow *goquery.Selection) {
				if fh, ok := follow.Attr("href"); ok && fh != "" {
					followURLs = append(followURLs, fh)
				}
			})
		}
	})

	return entries, followURLs, nil
}
