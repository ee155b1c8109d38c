package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Label canonicalizes free text for alias and keyword matching:
// accents stripped, lowercased, punctuation folded to spaces, whitespace
// collapsed. "Émissions de GES :" and "emissions de ges" compare equal.
func Label(s string) string {
	stripped, _, err := transform.String(accentStripper, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// UnitToken canonicalizes a raw unit string for catalog matching:
// lowercased, spaces and dots removed, superscripts folded to digits.
// "t CO2e", "tCO2e" and "m³" vs "m3" become comparable.
func UnitToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '.', ' ', ' ', ' ':
			continue
		case '²':
			b.WriteRune('2')
		case '³':
			b.WriteRune('3')
		case 'µ', 'μ':
			b.WriteRune('u')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
