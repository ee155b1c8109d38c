// Package normalize turns raw extracted text into canonical KPI values.
//
// It has two halves: a locale-tolerant numeric parser (grouped thousands,
// decimal comma vs dot, magnitude suffixes like "3.2k" and "1.5 million",
// accounting parentheses) and a unit resolver that maps a raw unit token to
// the KPI's canonical unit through the catalog's conversion table.
// Both are pure functions: a string either normalizes deterministically or
// it does not, and failure is a recoverable per-candidate condition.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/verdexhq/verdex/internal/catalog"
)

// Value is the outcome of normalizing one raw (number, unit) pair.
// OK=false means the candidate carries no usable signal; it is dropped,
// never reported as an error.
type Value struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	OK    bool    `json:"ok"`
}

// spaceFolder maps the unicode space variants that show up in extracted
// numbers (NBSP, figure space, narrow NBSP, thin space) to a plain space.
var spaceFolder = strings.NewReplacer(
	" ", " ",
	" ", " ",
	" ", " ",
	" ", " ",
)

// magnitudes are the multiplicative suffixes accepted at the end of a
// numeric token. Single letters are only honored at end-of-string, so the
// "m" in "1,200,000 m3" is never mistaken for a million marker.
var magnitudes = []struct {
	word   string
	factor float64
}{
	{"thousand", 1e3},
	{"billion", 1e9},
	{"million", 1e6},
	{"bn", 1e9},
	{"mn", 1e6},
	{"k", 1e3},
	{"m", 1e6},
	{"b", 1e9},
}

// ParseNumber parses raw numeric text into a float64.
// Rules, in order: fold space variants, resolve accounting parentheses and
// sign, split a trailing magnitude word, strip grouping separators, resolve
// the decimal separator by digit-group pattern, reject digit-free input.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(spaceFolder.Replace(raw))
	if s == "" {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	switch {
	case strings.HasPrefix(s, "-"):
		neg = !neg
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(s[1:])
	}

	s, magnitude, ok := splitMagnitude(s)
	if !ok {
		return 0, false
	}

	v, ok := parseBare(s)
	if !ok {
		return 0, false
	}

	v *= magnitude
	if neg {
		v = -v
	}
	return v, true
}

// splitMagnitude strips a trailing magnitude word and returns its factor.
// Trailing letters that are not a known magnitude fail the parse: a number
// token has no business ending in arbitrary text.
func splitMagnitude(s string) (string, float64, bool) {
	trimmed := strings.TrimRight(s, " ")
	i := len(trimmed)
	for i > 0 {
		r := rune(trimmed[i-1])
		if !unicode.IsLetter(r) {
			break
		}
		i--
	}

	tail := strings.ToLower(trimmed[i:])
	if tail == "" {
		return trimmed, 1, true
	}

	head := strings.TrimSpace(trimmed[:i])
	if head == "" {
		return "", 0, false
	}

	for _, m := range magnitudes {
		if tail == m.word {
			return head, m.factor, true
		}
	}
	return "", 0, false
}

// spacedGroupsRE matches space-grouped thousands with an optional decimal
// tail: "1 200 000", "2 000", "1 200,5".
var spacedGroupsRE = regexp.MustCompile(`^\d{1,3}(?: \d{3})+(?:[.,]\d+)?$`)

// parseBare parses digits with grouping and decimal separators resolved.
func parseBare(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	if s == "" || !strings.ContainsFunc(s, unicode.IsDigit) {
		return 0, false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' && r != ' ' {
			return 0, false
		}
	}

	// Spaced thousands: "1 200 000". Anything else containing a space is
	// two numbers jammed together, not one.
	if strings.Contains(s, " ") {
		if !spacedGroupsRE.MatchString(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, " ", "")
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// The separator appearing last is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if isGrouped(s, ',') {
			s = strings.ReplaceAll(s, ",", "")
		} else if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			return 0, false
		}
	case hasDot:
		if strings.Count(s, ".") > 1 {
			if !isGrouped(s, '.') {
				return 0, false
			}
			s = strings.ReplaceAll(s, ".", "")
		}
		// A single dot reads as a decimal mark: "12.5".
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isGrouped reports whether s looks like sep-grouped thousands:
// a 1-3 digit head followed by exactly-3-digit groups ("1,200,000").
func isGrouped(s string, sep rune) bool {
	groups := strings.Split(s, string(sep))
	if len(groups) < 2 {
		return false
	}
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
		for _, r := range g {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

// ResolveUnit maps raw unit text to its conversion factor for a KPI.
// Matching is case-insensitive and tolerant of spacing, dots, and
// superscript digits. An empty raw unit resolves only when every unit the
// KPI accepts shares one conversion factor ("%", "percent", "pct"), so the
// assumption cannot change the value.
func ResolveUnit(rawUnit string, k catalog.KPI) (float64, bool) {
	accepted := make(map[string]float64, len(k.Units))
	factors := make(map[float64]bool, len(k.Units))
	for token, factor := range k.Units {
		canon := UnitToken(token)
		if prev, dup := accepted[canon]; dup && prev != factor {
			// Two raw tokens collapsing to the same canonical form with
			// different factors make the token ambiguous. Skip it.
			continue
		}
		accepted[canon] = factor
		factors[factor] = true
	}

	tok := UnitToken(rawUnit)
	if tok == "" {
		if len(factors) == 1 {
			for factor := range factors {
				return factor, true
			}
		}
		return 0, false
	}

	factor, ok := accepted[tok]
	return factor, ok
}

// Normalize derives a canonical Value from a candidate's raw number and
// unit text, per the KPI's conversion table.
func Normalize(rawNumber, rawUnit string, k catalog.KPI) Value {
	v, ok := ParseNumber(rawNumber)
	if !ok {
		return Value{}
	}
	factor, ok := ResolveUnit(rawUnit, k)
	if !ok {
		return Value{}
	}
	return Value{Value: v * factor, Unit: k.CanonicalUnit, OK: true}
}
