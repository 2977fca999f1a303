package text

import (
	"strings"
	"unicode"
)

// Cyrillic and other non-Latin letters that render like Latin ones, spammers swap them in
// to dodge keyword filters.
var homoglyphs = map[rune]rune{
	'а': 'a', 'в': 'b', 'е': 'e', 'ё': 'e', 'з': '3', 'і': 'i', 'ї': 'i', 'ј': 'j',
	'к': 'k', 'м': 'm', 'н': 'h', 'о': 'o', 'р': 'p', 'с': 'c', 'т': 't', 'у': 'y',
	'х': 'x', 'ѕ': 's', 'ԁ': 'd', 'ɡ': 'g', 'ո': 'n', 'ս': 'u',
}

// HasHomoglyphs reports whether content contains any letter FoldHomoglyphs would replace.
func HasHomoglyphs(content string) bool {
	for _, r := range content {
		if _, ok := homoglyphs[unicode.ToLower(r)]; ok {
			return true
		}
	}
	return false
}

// FoldHomoglyphs lowercases content, replaces Latin lookalikes and collapses whitespace runs.
func FoldHomoglyphs(content string) string {
	var sb strings.Builder
	sb.Grow(len(content))
	lastWasSpace := false
	for _, r := range strings.ToLower(content) {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastWasSpace {
				sb.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		if latin, ok := homoglyphs[r]; ok {
			r = latin
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}
