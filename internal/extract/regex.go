package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/normalize"
)

// numberPat matches a grouped or decimal number with an optional magnitude
// word: "12,500", "1.200.000", "1 200 000", "3.2k", "(2,000)". Bare "m" and
// "b" are deliberately absent so "m3" and "bar" never read as magnitudes.
const numberPat = `[-+]?\(?\d[\d.,\x{00A0}\x{2007}\x{202F}\x{2009} ]*\)?(?:[ \t]?(?:k\b|thousand\b|mn\b|million\b|bn\b|billion\b))?`

// kpiPatterns holds the compiled patterns for one KPI.
type kpiPatterns struct {
	kpi     catalog.KPI
	forward []*regexp.Regexp // keyword ... number [unit]
	reverse []*regexp.Regexp // number [unit] ... keyword
}

// RegexExtractor finds keyword-number pairs in running text. A keyword and
// its number must sit within MaxKeywordGap characters of each other with no
// other digit in between, in either order.
type RegexExtractor struct {
	patterns []kpiPatterns
}

// NewRegexExtractor compiles both match directions for every term of every
// catalog KPI.
func NewRegexExtractor(cat *catalog.Catalog) *RegexExtractor {
	e := &RegexExtractor{}
	for _, k := range cat.KPIs() {
		kp := kpiPatterns{kpi: k}
		unitAlt := unitAlternation(k)
		for _, term := range k.Terms() {
			termPat := termPattern(term)
			if termPat == "" {
				continue
			}
			gap := `[^0-9]{0,` + strconv.Itoa(MaxKeywordGap) + `}?`
			kp.forward = append(kp.forward, regexp.MustCompile(
				`(?i)`+termPat+gap+`(`+numberPat+`)[ \t]*(`+unitAlt+`)?`))
			kp.reverse = append(kp.reverse, regexp.MustCompile(
				`(?i)(`+numberPat+`)[ \t]*(`+unitAlt+`)?`+gap+termPat))
		}
		e.patterns = append(e.patterns, kp)
	}
	return e
}

// Name returns the strategy tag.
func (e *RegexExtractor) Name() string { return StrategyRegex }

// Extract scans the document text with every compiled pattern and keeps the
// earliest normalizable hit per KPI.
func (e *RegexExtractor) Extract(doc *document.Document) []Candidate {
	text := doc.FullText()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []Candidate
	for _, kp := range e.patterns {
		best, found := e.bestMatch(text, kp)
		if found {
			out = append(out, best)
		}
	}
	return out
}

func (e *RegexExtractor) bestMatch(text string, kp kpiPatterns) (Candidate, bool) {
	var best Candidate
	found := false

	consider := func(c Candidate) {
		if !found || c.Position < best.Position {
			best = c
			found = true
		}
	}

	for _, re := range kp.forward {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if c, ok := candidateFromMatch(text, m, kp.kpi, false); ok {
				consider(c)
			}
		}
	}
	for _, re := range kp.reverse {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if c, ok := candidateFromMatch(text, m, kp.kpi, true); ok {
				consider(c)
			}
		}
	}

	return best, found
}

// candidateFromMatch validates one regex hit and normalizes it. Group 1 is
// the number, group 2 the optional unit, for both directions.
func candidateFromMatch(text string, m []int, k catalog.KPI, reverse bool) (Candidate, bool) {
	// A reverse match starts at the number itself: reject matches that begin
	// mid-token, like the "12,500" inside "REF12,500".
	if reverse && m[0] > 0 && isWordByte(text[m[0]-1]) {
		return Candidate{}, false
	}

	numRaw := strings.TrimRight(strings.TrimSpace(text[m[2]:m[3]]), ".,")
	unitRaw := ""
	if m[4] >= 0 {
		unitRaw = text[m[4]:m[5]]
		// The unit must end at a token boundary: "m3" inside "m3x" is not
		// a unit hit.
		if m[5] < len(text) && isWordByte(text[m[5]]) {
			unitRaw = ""
		}
	}

	// A bare number before the keyword is nearly always a stray value from
	// the preceding sentence. Reverse matches must name a unit; only the
	// keyword-anchored forward direction may rely on bare-unit resolution.
	if reverse && unitRaw == "" {
		return Candidate{}, false
	}

	v, ok := normalize.ParseNumber(numRaw)
	if !ok {
		return Candidate{}, false
	}
	if unitRaw == "" && isYearLike(numRaw, v) {
		return Candidate{}, false
	}

	val := normalize.Normalize(numRaw, unitRaw, k)
	if !val.OK {
		return Candidate{}, false
	}

	return Candidate{
		KPIID:      k.ID,
		Value:      val.Value,
		Unit:       val.Unit,
		Confidence: ConfRegex,
		Strategy:   StrategyRegex,
		Snippet:    clip(text[m[0]:m[1]], SnippetLen),
		Position:   m[0],
	}, true
}

// termPattern turns an alias or keyword into a case-insensitive,
// whitespace-tolerant pattern with word boundaries.
func termPattern(term string) string {
	words := strings.Fields(term)
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return `\b` + strings.Join(quoted, `\s+`) + `\b`
}

// unitAlternation builds the accepted-unit alternation for one KPI,
// longest token first so "ktCO2e" wins over "tCO2e" at the same offset.
func unitAlternation(k catalog.KPI) string {
	tokens := make([]string, 0, len(k.Units)+1)
	for t := range k.Units {
		tokens = append(tokens, t)
	}
	if _, ok := k.Units[k.CanonicalUnit]; !ok {
		tokens = append(tokens, k.CanonicalUnit)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	for i, t := range tokens {
		tokens[i] = regexp.QuoteMeta(t)
	}
	return strings.Join(tokens, "|")
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}
