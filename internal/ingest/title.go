package ingest

import (
	"strings"

	"github.com/DekelUsach/Loomi-backend/pkg/utils"
)

// UntitledTitle is used when no title can be derived.
const UntitledTitle = "Texto sin título"

const maxTitleRunes = 120

// DeriveTitle returns declared when it is not blank, else the first sentence
// of text, else the start of text, capped at 120 runes.
func DeriveTitle(declared, text string) string {
	if t := utils.CollapseSpaces(declared); t != "" {
		return capRunes(t, maxTitleRunes)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return UntitledTitle
	}
	title := text
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		title = text[:i]
	}
	if title = strings.TrimSpace(title); title == "" {
		title = text
	}
	return capRunes(title, maxTitleRunes)
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
