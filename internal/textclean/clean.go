// Package textclean normalizes text fields pulled from external article
// sources. Upstream XML payloads frequently carry escaped entities, inline
// markup, and mis-decoded punctuation; everything persisted or enriched
// downstream goes through Clean first.
package textclean

import (
	"regexp"
	"strings"
)

var (
	// entityReplacer decodes the escaped entities and the UTF-8
	// mis-decoding of the right single quote seen in source payloads.
	entityReplacer = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"â€™", "'", // "â€™", a right single quote read as Latin-1
	)

	// tagPattern matches only tag-shaped runs: "<" followed by an
	// optional slash and a letter. Decoded comparison text like
	// "p < 0.05 and x > y" stays intact.
	tagPattern        = regexp.MustCompile(`</?[A-Za-z][^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Clean normalizes a text field: decodes common entities, strips inline
// markup tags, collapses runs of whitespace to single spaces, and trims.
// Clean is idempotent and returns "" for empty input.
func Clean(s string) string {
	if s == "" {
		return ""
	}

	s = entityReplacer.Replace(s)
	s = tagPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}
