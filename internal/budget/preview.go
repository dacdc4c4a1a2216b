package budget

import (
	"regexp"
	"strings"
)

var (
	fenceRe      = regexp.MustCompile("(?s)```.*?```")
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	wikiAliasRe  = regexp.MustCompile(`\[\[[^\]|]*\|([^\]]*)\]\]`)
	wikiRe       = regexp.MustCompile(`\[\[([^\]]*)\]\]`)
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	emphasisRe   = regexp.MustCompile(`(\*{1,3}|_{2,3})([^*_]+)(\*{1,3}|_{2,3})`)
	headingRe    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	quoteRe      = regexp.MustCompile(`(?m)^\s{0,3}>\s?`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// Preview strips Markdown syntax from body, collapses whitespace and
// truncates the result to limit runes.
func Preview(body string, limit int) (string, bool) {
	s := fenceRe.ReplaceAllString(body, " ")
	s = imageRe.ReplaceAllString(s, "")
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = wikiAliasRe.ReplaceAllString(s, "$1")
	s = wikiRe.ReplaceAllString(s, "$1")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = emphasisRe.ReplaceAllString(s, "$2")
	s = headingRe.ReplaceAllString(s, "")
	s = quoteRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	return Truncate(s, limit)
}
