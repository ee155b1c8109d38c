package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/normalize"
)

var tokenRE = regexp.MustCompile(`\S+`)

// pairMagnitudes are magnitude words recognized as a separate token after a
// number: "1.5 million".
var pairMagnitudes = map[string]bool{
	"thousand": true, "million": true, "billion": true,
	"mn": true, "bn": true, "k": true,
}

// token is one whitespace-delimited chunk of document text with its
// canonical form and byte offset.
type token struct {
	raw  string
	norm string
	off  int
}

// NLPWindowExtractor scans a token window around each keyword match. It is
// the loosest strategy: it catches phrasings the bounded-gap patterns miss,
// like a value separated from its keyword by an interleaved year, at the
// cost of the lowest baseline confidence.
type NLPWindowExtractor struct {
	terms []termIndex
}

// NewNLPWindowExtractor canonicalizes the catalog terms once.
func NewNLPWindowExtractor(cat *catalog.Catalog) *NLPWindowExtractor {
	return &NLPWindowExtractor{terms: buildTermIndex(cat)}
}

// Name returns the strategy tag.
func (e *NLPWindowExtractor) Name() string { return StrategyNLPWindow }

// Extract tokenizes the document once and proposes, per KPI, the numeric
// token closest to any keyword occurrence that survives the year guard and
// normalizes cleanly.
func (e *NLPWindowExtractor) Extract(doc *document.Document) []Candidate {
	text := doc.FullText()
	toks := tokenizeText(text)
	if len(toks) == 0 {
		return nil
	}

	var out []Candidate
	for _, ti := range e.terms {
		if c, ok := e.kpiCandidate(text, toks, ti); ok {
			out = append(out, c)
		}
	}
	return out
}

func tokenizeText(text string) []token {
	spans := tokenRE.FindAllStringIndex(text, -1)
	toks := make([]token, 0, len(spans))
	for _, sp := range spans {
		raw := text[sp[0]:sp[1]]
		toks = append(toks, token{raw: raw, norm: normalize.Label(raw), off: sp[0]})
	}
	return toks
}

func (e *NLPWindowExtractor) kpiCandidate(text string, toks []token, ti termIndex) (Candidate, bool) {
	var best Candidate
	bestDist := 0
	found := false

	for _, seq := range ti.tokens {
		if len(seq) == 0 {
			continue
		}
		for p := 0; p+len(seq) <= len(toks); p++ {
			if !normsMatch(toks, p, seq) {
				continue
			}
			c, dist, ok := e.windowCandidate(text, toks, p, len(seq), ti.kpi)
			if !ok {
				continue
			}
			if !found || dist < bestDist || (dist == bestDist && c.Position < best.Position) {
				best, bestDist, found = c, dist, true
			}
		}
	}
	return best, found
}

func normsMatch(toks []token, p int, seq []string) bool {
	for i, want := range seq {
		if toks[p+i].norm != want {
			return false
		}
	}
	return true
}

type numHit struct {
	idx    int
	span   int
	dist   int
	raw    string
	inline string // unit text glued to the number token, like the % in "75%"
}

// windowCandidate examines WindowRadius tokens on each side of a keyword
// match at toks[p:p+seqLen] and picks the nearest usable number.
func (e *NLPWindowExtractor) windowCandidate(text string, toks []token, p, seqLen int, k catalog.KPI) (Candidate, int, bool) {
	lo := p - WindowRadius
	if lo < 0 {
		lo = 0
	}
	hi := p + seqLen - 1 + WindowRadius
	if hi > len(toks)-1 {
		hi = len(toks) - 1
	}

	var hits []numHit
	for q := lo; q <= hi; q++ {
		if q >= p && q < p+seqLen {
			continue
		}
		h, ok := numericAt(toks, q)
		if !ok {
			continue
		}
		h.dist = q - (p + seqLen - 1)
		if q < p {
			h.dist = p - q
		}
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return toks[hits[i].idx].off < toks[hits[j].idx].off
	})

	for _, h := range hits {
		v, ok := normalize.ParseNumber(h.raw)
		if !ok {
			continue
		}

		rawUnit := ""
		unitSpan := 0
		switch {
		case h.inline != "":
			// A unit glued to the number ("75%", "500MWh") binds tighter
			// than any neighboring token.
			if _, ok := normalize.ResolveUnit(h.inline, k); ok {
				rawUnit = h.inline
			}
		default:
			if u := unitTokenAt(toks, h.idx+h.span); u != "" {
				if _, ok := normalize.ResolveUnit(u, k); ok {
					rawUnit = u
					unitSpan = 1
				}
			}
		}
		if rawUnit == "" && isYearLike(h.raw, v) {
			continue
		}

		val := normalize.Normalize(h.raw, rawUnit, k)
		if !val.OK {
			continue
		}

		first, last := p, h.idx+h.span-1+unitSpan
		if h.idx < p {
			first = h.idx
			last = p + seqLen - 1
		}
		if last > len(toks)-1 {
			last = len(toks) - 1
		}
		snippet := text[toks[first].off : toks[last].off+len(toks[last].raw)]

		return Candidate{
			KPIID:      k.ID,
			Value:      val.Value,
			Unit:       val.Unit,
			Confidence: ConfNLPWindow,
			Strategy:   StrategyNLPWindow,
			Snippet:    clip(snippet, SnippetLen),
			Position:   toks[p].off,
		}, h.dist, true
	}
	return Candidate{}, 0, false
}

// numericAt reads a numeric token at q, keeping any unit text glued to the
// number and folding in a following magnitude word ("1.5" + "million").
func numericAt(toks []token, q int) (numHit, bool) {
	num, inline, ok := splitNumberUnit(toks[q].raw)
	if !ok {
		return numHit{}, false
	}
	if _, parses := normalize.ParseNumber(num); !parses {
		return numHit{}, false
	}

	if inline == "" && q+1 < len(toks) && pairMagnitudes[toks[q+1].norm] {
		joined := num + " " + toks[q+1].norm
		if _, parses := normalize.ParseNumber(joined); parses {
			return numHit{idx: q, span: 2, raw: joined}, true
		}
	}
	return numHit{idx: q, span: 1, raw: num, inline: inline}, true
}

// unitTokenAt returns the unit-candidate text of the token at idx, with
// bracketing punctuation removed.
func unitTokenAt(toks []token, idx int) string {
	if idx < 0 || idx >= len(toks) {
		return ""
	}
	return strings.Trim(toks[idx].raw, "().,;:\"'")
}
