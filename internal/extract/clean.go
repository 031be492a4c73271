package extract

import (
	"regexp"
	"strings"
)

var (
	tabsAndReturns = regexp.MustCompile(`[\t\r]+`)
	whitespaceRun  = regexp.MustCompile(`[\s\p{Z}\x{FEFF}]+`)
)

// Clean normalizes extracted text: NUL bytes become spaces, tab and carriage
// return runs become a space, every whitespace run collapses to one space and
// the result is trimmed.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\x00", " ")
	s = tabsAndReturns.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
