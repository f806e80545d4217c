package parsers

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/entry"
)

// ParsePandas extracts entries from an HTML table, the Go analogue of
// pandas.read_html: selector.Select names the table, rows become
// entries keyed by header name into RawFields, and the first column
// containing an anchor supplies title/long_url.
func ParsePandas(selector *config.ParserSelector, content []byte, meta Meta) ([]entry.Entry, []string, error) {
	if selector == nil || selector.Select == "" {
		return nil, nil, fmt.Errorf("pandas parser requires a select expression naming a table")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html for %s: %w", meta.URL, err)
	}

	table := doc.Find(selector.Select).First()
	if table.Length() == 0 {
		return nil, nil, fmt.Errorf("table %q not found in %s", selector.Select, meta.URL)
	}

	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})

	var entries []entry.Entry
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		rawFields := make(map[string]string)
		var longURL, title string

		row.Find("td").Each(func(col int, td *goquery.Selection) {
			text := strings.TrimSpace(td.Text())
			if col < len(headers) {
				rawFields[headers[col]] = text
			}
			if longURL == "" {
				if href, ok := td.Find("a").First().Attr("href"); ok && href != "" {
					longURL = href
					title = text
				}
			}
		})

		if longURL == "" {
			return
		}
		entries = append(entries, entry.Entry{
			Title:     title,
			LongURL:   longURL,
			RawFields: rawFields,
		})
	})

	return entries, nil, nil
}
