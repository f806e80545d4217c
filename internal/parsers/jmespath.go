package parsers

import (
	"fmt"

	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/entry"
	jsoniter "github.com/json-iterator/go"
	"github.com/jmespath/go-jmespath"
)

var jmespathJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseJMESPath extracts entries from JSON content using a JMESPath
// expression that projects a list of {title, url, summary?} objects;
// every string field is also copied into RawFields, and Categories is
// left empty (original_source/ircrssfeedbot/feed.py accepts the
// deprecated "jmes" key as an alias for this parser).
func ParseJMESPath(selector *config.ParserSelector, content []byte, meta Meta) ([]entry.Entry, []string, error) {
	if selector == nil || selector.Select == "" {
		return nil, nil, fmt.Errorf("jmespath parser requires a select expression")
	}

	var data interface{}
	if err := jmespathJSON.Unmarshal(content, &data); err != nil {
		return nil, nil, fmt.Errorf("parse json for %s: %w", meta.URL, err)
	}

	result, err := jmespath.Search(selector.Select, data)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate jmespath %q: %w", selector.Select, err)
	}

	items, ok := result.([]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("jmespath expression %q did not project a list", selector.Select)
	}

	var entries []entry.Entry
	var followURLs []string
	for _, raw := range items {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		longURL, _ := obj["url"].(string)
		if longURL == "" {
			continue
		}
		title, _ := obj["title"].(string)
		summary, _ := obj["summary"].(string)

		rawFields := make(map[string]string, len(obj))
		for k, v := range obj {
			if s, ok := v.(string); ok {
				rawFields[k] = s
			}
		}

		entries = append(entries, entry.Entry{
			Title:     title,
			LongURL:   longURL,
			Summary:   summary,
			RawFields: rawFields,
		})

		if selector.Follow != "" {
			if followResult, err := jmespath.Search(selector.Follow, obj); err == nil {
				if href, ok := followResult.(string); ok && href != "" {
					followURLs = append(followURLs, href)
				}
			}
		}
	}

	return entries, followURLs, nil
}
