package utils

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

const maxDisplayNameLength = 60

// SanitizeDisplayName reduces a list name to the character set addon clients
// render reliably: transliterated ASCII letters, digits, spaces and a small
// set of punctuation. Collapses runs of whitespace and truncates long names
// on a word boundary.
func SanitizeDisplayName(name string) string {
	ascii := strings.TrimSpace(unidecode.Unidecode(name))
	if ascii == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(ascii))
	for _, r := range ascii {
		switch {
		case r > unicode.MaxASCII:
			// unidecode leaves the odd untranslatable rune behind
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ':
			b.WriteRune(r)
		case strings.ContainsRune("-_.,:&'()+!?/", r):
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if len(cleaned) <= maxDisplayNameLength {
		return cleaned
	}
	cut := cleaned[:maxDisplayNameLength]
	if i := strings.LastIndex(cut, " "); i > maxDisplayNameLength/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,-")
}
