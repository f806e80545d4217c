package entry

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// htmlToText strips HTML markup, returning the concatenated text nodes
// with runs of whitespace collapsed (spec.md §4.3.1 step 7). A string
// containing neither '<' nor '&' is returned unchanged.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(tok.Text())
			b.WriteByte(' ')
		}
	}
}

const (
	leftDoubleQuote  = '“'
	rightDoubleQuote = '”'
)

// stripSmartQuotes removes an enclosing pair of curly double-quotes
// around title, unless the same quote characters also occur inside the
// remaining text (spec.md §4.3.1 step 8).
func stripSmartQuotes(title string) string {
	r := []rune(title)
	if len(r) < 2 || r[0] != leftDoubleQuote || r[len(r)-1] != rightDoubleQuote {
		return title
	}
	inner := r[1 : len(r)-1]
	for _, c := range inner {
		if c == leftDoubleQuote || c == rightDoubleQuote {
			return title
		}
	}
	return string(inner)
}

// stripTrailingPeriod right-strips whitespace then a single trailing
// period, but only when the title has no internal sentence break
// (crudely, no ". " substring) — spec.md §4.3.1 step 9, open question
// (b): this heuristic is intentionally preserved, not replaced with a
// sentence tokenizer.
func stripTrailingPeriod(title string) string {
	if strings.Contains(title, ". ") {
		return title
	}
	trimmed := strings.TrimRight(title, " \t\n")
	return strings.TrimSuffix(trimmed, ".")
}

// recapitalizeAllCaps converts an all-uppercase, multi-word title to
// sentence case (spec.md §4.3.1 step 10).
func recapitalizeAllCaps(title string) string {
	fields := strings.Fields(title)
	if len(fields) <= 1 || !isAllCaps(title) {
		return title
	}
	lower := strings.ToLower(title)
	r := []rune(lower)
	for i, c := range r {
		if unicode.IsLetter(c) {
			r[i] = unicode.ToUpper(c)
			break
		}
	}
	return string(r)
}

func isAllCaps(s string) bool {
	sawLetter := false
	for _, c := range s {
		if !unicode.IsLetter(c) {
			continue
		}
		sawLetter = true
		if unicode.IsLower(c) {
			return false
		}
	}
	return sawLetter
}

const ellipsis = "…"

// truncateTitle truncates title to at most maxBytes bytes of UTF-8,
// breaking on a rune boundary and appending an ellipsis when truncated
// (spec.md §4.3.1 step 11).
func truncateTitle(title string, maxBytes int) string {
	if len(title) <= maxBytes {
		return title
	}
	budget := maxBytes - len(ellipsis)
	if budget < 0 {
		budget = 0
	}
	truncated := title
	for len(truncated) > budget {
		r, size := utf8.DecodeLastRuneInString(truncated)
		if r == utf8.RuneError && size <= 1 {
			truncated = truncated[:len(truncated)-1]
			continue
		}
		truncated = truncated[:len(truncated)-size]
	}
	return strings.TrimRight(truncated, " \t") + ellipsis
}
