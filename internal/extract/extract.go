// Package extract provides deterministic KPI extraction strategies.
//
// Four strategies read the same document independently, without an LLM or
// external API:
//   - table-grid: structured tables with header detection (CSV, XLSX, JSON)
//   - regex: keyword and number within a bounded gap in running text
//   - table-plain: table-shaped lines reconstructed from text (OCR, PDF)
//   - nlp-window: token window scan around a keyword match
//
// Each strategy proposes at most one candidate per KPI, carrying the
// strategy's baseline confidence and the position of the hit. Candidates are
// already normalized: value in the KPI's canonical unit or nothing at all.
// Scoring, consensus, and the final per-KPI pick live in the merge package.
package extract

import (
	"strings"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/normalize"
)

// Strategy name tags, reported as result provenance.
const (
	StrategyTableGrid  = "table-grid"
	StrategyRegex      = "regex"
	StrategyTablePlain = "table-plain"
	StrategyNLPWindow  = "nlp-window"
	StrategyModel      = "model-sourced"
	StrategyNone       = "none"
)

// Baseline confidence per strategy. An explicit keyword-number pattern is
// the strongest local signal; a loose token window is the weakest.
const (
	ConfRegex      = 0.85
	ConfTableGrid  = 0.80
	ConfTablePlain = 0.65
	ConfNLPWindow  = 0.55
)

// MaxKeywordGap bounds the characters between keyword and number in running
// text. Digits never appear inside the gap: the nearest number is the one
// that counts.
const MaxKeywordGap = 80

// WindowRadius is the token reach of the nlp-window strategy on each side
// of a keyword match.
const WindowRadius = 20

// SnippetLen caps the source quote attached to a candidate.
const SnippetLen = 160

// Candidate is a single KPI reading proposed by one strategy.
type Candidate struct {
	KPIID      string  `json:"kpi_id"`
	Value      float64 `json:"value"`      // in the KPI's canonical unit
	Unit       string  `json:"unit"`       // canonical unit token
	Confidence float64 `json:"confidence"` // strategy baseline, 0.0-1.0
	Strategy   string  `json:"strategy"`   // one of the Strategy* tags
	Snippet    string  `json:"snippet"`    // exact text this was extracted from
	Position   int     `json:"position"`   // hit location, ordered within one strategy only
}

// Extractor is one deterministic strategy over a loaded document.
type Extractor interface {
	// Name returns the strategy tag.
	Name() string

	// Extract proposes at most one candidate per catalog KPI.
	Extract(doc *document.Document) []Candidate
}

// Extractors returns the built-in strategies in priority order. The order
// doubles as the tie-break rank when merged scores are equal.
func Extractors(cat *catalog.Catalog) []Extractor {
	return []Extractor{
		NewTableGridExtractor(cat),
		NewRegexExtractor(cat),
		NewTablePlainExtractor(cat),
		NewNLPWindowExtractor(cat),
	}
}

// StrategyRank maps a strategy tag to its tie-break rank, lower wins.
func StrategyRank(strategy string) int {
	switch strategy {
	case StrategyTableGrid:
		return 0
	case StrategyRegex:
		return 1
	case StrategyTablePlain:
		return 2
	case StrategyNLPWindow:
		return 3
	case StrategyModel:
		return 4
	default:
		return 5
	}
}

// termIndex holds one KPI with its match terms canonicalized once.
type termIndex struct {
	kpi    catalog.KPI
	labels []string   // canonical labels of aliases and keywords
	tokens [][]string // the same labels split into token sequences
}

func buildTermIndex(cat *catalog.Catalog) []termIndex {
	idx := make([]termIndex, 0, cat.Len())
	for _, k := range cat.KPIs() {
		ti := termIndex{kpi: k}
		seen := make(map[string]bool)
		for _, term := range k.Terms() {
			label := normalize.Label(term)
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			ti.labels = append(ti.labels, label)
			ti.tokens = append(ti.tokens, strings.Fields(label))
		}
		idx = append(idx, ti)
	}
	return idx
}

// labelMatches reports whether a canonicalized cell label names the term:
// exact match, or the term as a whole-word phrase inside the label, so that
// "total ghg emissions scope 1 2" still matches "total ghg emissions".
func labelMatches(cellLabel, termLabel string) bool {
	if cellLabel == termLabel {
		return true
	}
	return strings.Contains(" "+cellLabel+" ", " "+termLabel+" ")
}

// matchKPILabel resolves a canonicalized label to a catalog KPI. The longest
// matching term wins, so a label naming a more specific KPI is never claimed
// by a shorter overlapping alias. Returns the matched term length for
// callers that compare competing labels.
func matchKPILabel(terms []termIndex, label string) (catalog.KPI, int, bool) {
	var best catalog.KPI
	bestLen := 0
	for _, ti := range terms {
		for _, term := range ti.labels {
			if len(term) > bestLen && labelMatches(label, term) {
				best, bestLen = ti.kpi, len(term)
			}
		}
	}
	return best, bestLen, bestLen > 0
}

// embeddedMagnitudes are the magnitude words recognized inside larger text,
// where a bare "m" or "b" would collide with units like m3.
var embeddedMagnitudes = []string{"thousand", "million", "billion", "mn", "bn", "k"}

// splitNumberUnit splits a cell like "12,500 tCO2e" or "3.2k" into its
// numeric part and trailing unit text. A magnitude word directly after the
// number folds into the numeric part.
func splitNumberUnit(cell string) (num, unit string, ok bool) {
	s := strings.TrimSpace(cell)
	hasDigit := false
	end := len(s)
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == '.' || r == ',' || r == '(' || r == ')' || r == '+' || r == '-':
		case r == ' ' || r == ' ' || r == ' ' || r == ' ' || r == ' ':
		default:
			end = i
		}
		if end == i {
			break
		}
	}
	if !hasDigit {
		return "", "", false
	}

	// Trailing separators belong to the sentence, not the number: "2024,".
	num = strings.TrimRight(strings.TrimSpace(s[:end]), ".,")
	rest := strings.TrimSpace(s[end:])

	for _, word := range embeddedMagnitudes {
		if !strings.HasPrefix(strings.ToLower(rest), word) {
			continue
		}
		tail := rest[len(word):]
		if tail == "" {
			return num + " " + word, "", true
		}
		if tail[0] == ' ' {
			return num + " " + word, strings.TrimSpace(tail), true
		}
	}

	return num, rest, true
}

// splitLabelUnit peels a parenthesized unit hint off a label cell:
// "Energy Consumption (MWh)" becomes ("Energy Consumption", "MWh").
func splitLabelUnit(label string) (string, string) {
	s := strings.TrimSpace(label)
	if !strings.HasSuffix(s, ")") {
		return s, ""
	}
	open := strings.LastIndex(s, "(")
	if open < 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1 : len(s)-1])
}

// isYearLike reports whether a raw number reads as a bare calendar year.
// Years are the dominant false positive in report text, so a unitless
// 4-digit integer in the plausible range is never taken as a KPI value.
func isYearLike(raw string, value float64) bool {
	t := strings.TrimSpace(raw)
	if len(t) != 4 {
		return false
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value >= 1900 && value <= 2100
}

// clip collapses whitespace and truncates s for use as a snippet.
func clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut]
}
