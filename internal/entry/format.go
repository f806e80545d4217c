package entry

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/alexott/ircfeedbot/internal/config"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// paramsFor builds the parameter map used by the format stage: raw_fields
// overridden by the entry's own title/url/summary/categories (spec.md
// §4.3.1 step 5).
func paramsFor(e Entry) map[string]string {
	params := make(map[string]string, len(e.RawFields)+4)
	for k, v := range e.RawFields {
		params[k] = v
	}
	params["title"] = e.Title
	params["url"] = e.LongURL
	params["summary"] = e.Summary
	params["categories"] = strings.Join(e.Categories, ", ")
	return params
}

// applyFormat runs the per-field named-group regex extraction followed
// by the title/url string templates, logging and leaving a field
// unchanged on any error.
func applyFormat(e Entry, cfg config.FormatConfig, log *slog.Logger) Entry {
	params := paramsFor(e)

	for field, pattern := range cfg.Re {
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Warn("format.re pattern invalid", "field", field, "pattern", pattern, "error", err)
			continue
		}
		val, ok := params[field]
		if !ok {
			continue
		}
		match := re.FindStringSubmatch(val)
		if match == nil {
			continue
		}
		for i, name := range re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			params[name] = match[i]
		}
	}

	titleTemplate := cfg.Str.Title
	if titleTemplate == "" {
		titleTemplate = "{title}"
	}
	if rendered, err := formatMap(titleTemplate, params); err != nil {
		log.Warn("title format template failed", "template", titleTemplate, "error", err)
	} else {
		e.Title = rendered
	}

	urlTemplate := cfg.Str.URL
	if urlTemplate == "" {
		urlTemplate = "{url}"
	}
	if rendered, err := formatMap(urlTemplate, params); err != nil {
		log.Warn("url format template failed", "template", urlTemplate, "error", err)
	} else {
		e.LongURL = rendered
	}

	return e
}

// formatMap substitutes "{name}" placeholders from params, matching
// Python's str.format_map: any unresolved placeholder is an error and
// the whole template is rejected, leaving the caller's field unchanged.
func formatMap(template string, params map[string]string) (string, error) {
	var missing string
	result := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			missing = name
			return m
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("missing format field %q", missing)
	}
	return result, nil
}
