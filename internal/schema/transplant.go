package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical transplant types.
const (
	TransplantAutologo  = "autologo"
	TransplantAlogenico = "alogenico"
)

// NormalizeTransplantType lower-cases and trims v, then maps the known
// spellings (with or without diacritics) to a canonical token. Unknown
// values are returned lower-cased and trimmed with ok set to false.
func NormalizeTransplantType(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch foldDiacritics(v) {
	case TransplantAutologo:
		return TransplantAutologo, true
	case TransplantAlogenico:
		return TransplantAlogenico, true
	}
	return v, false
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
