package extract

import (
	"regexp"
	"strings"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/normalize"
)

// plainCellSplitRE breaks a text line into pseudo-cells: pipe borders, tabs,
// runs of two or more spaces, and dotted leaders ("Water ..... 500").
var plainCellSplitRE = regexp.MustCompile(`\s*\|\s*|\s*│\s*|\s*\.{3,}\s*|\t+|\s{2,}`)

// TablePlainExtractor reconstructs table rows from running text. PDF text
// layers and OCR output flatten tables into aligned lines; this strategy
// reads each such line as label cells followed by a value cell.
type TablePlainExtractor struct {
	terms []termIndex
}

// NewTablePlainExtractor canonicalizes the catalog terms once.
func NewTablePlainExtractor(cat *catalog.Catalog) *TablePlainExtractor {
	return &TablePlainExtractor{terms: buildTermIndex(cat)}
}

// Name returns the strategy tag.
func (e *TablePlainExtractor) Name() string { return StrategyTablePlain }

// Extract scans line by line and keeps the first hit per KPI. Position is
// the line's byte offset in the document text.
func (e *TablePlainExtractor) Extract(doc *document.Document) []Candidate {
	text := doc.FullText()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []Candidate
	taken := make(map[string]bool)
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lineStart := offset
		offset += len(line) + 1

		c, ok := e.lineCandidate(line, lineStart)
		if !ok || taken[c.KPIID] {
			continue
		}
		taken[c.KPIID] = true
		out = append(out, c)
	}
	return out
}

func (e *TablePlainExtractor) lineCandidate(line string, pos int) (Candidate, bool) {
	cells := splitPlainRow(line)
	if len(cells) < 2 {
		return Candidate{}, false
	}

	k, labelEnd, labelHint, ok := e.matchRowLabel(cells)
	if !ok {
		return Candidate{}, false
	}

	for i := labelEnd + 1; i < len(cells); i++ {
		num, cellUnit, ok := splitNumberUnit(cells[i])
		if !ok {
			continue
		}
		v, ok := normalize.ParseNumber(num)
		if !ok {
			continue
		}

		unitSrc := cellUnit
		if unitSrc == "" && i+1 < len(cells) {
			if _, _, numeric := splitNumberUnit(cells[i+1]); !numeric {
				unitSrc = cells[i+1]
			}
		}
		// A bare year cell stays a year even when the label hints a unit:
		// only unit evidence next to the number itself overrides the guard.
		if firstDataCell(unitSrc) == "" && isYearLike(num, v) {
			continue
		}
		rawUnit := firstDataCell(unitSrc, labelHint)
		val := normalize.Normalize(num, rawUnit, k)
		if !val.OK {
			continue
		}

		return Candidate{
			KPIID:      k.ID,
			Value:      val.Value,
			Unit:       val.Unit,
			Confidence: ConfTablePlain,
			Strategy:   StrategyTablePlain,
			Snippet:    clip(line, SnippetLen),
			Position:   pos,
		}, true
	}
	return Candidate{}, false
}

// matchRowLabel tries the leading cells as the row label, joining up to
// three cells: column alignment sometimes splits a label mid-phrase. The
// longest catalog term matched across the joins wins.
func (e *TablePlainExtractor) matchRowLabel(cells []string) (catalog.KPI, int, string, bool) {
	var best catalog.KPI
	bestEnd, bestLen := -1, 0
	bestHint := ""

	limit := len(cells) - 1
	if limit > 3 {
		limit = 3
	}
	for j := 0; j < limit; j++ {
		labelPart, hint := splitLabelUnit(strings.Join(cells[:j+1], " "))
		label := normalize.Label(labelPart)
		if label == "" {
			continue
		}
		if k, termLen, ok := matchKPILabel(e.terms, label); ok && termLen > bestLen {
			best, bestLen, bestEnd, bestHint = k, termLen, j, hint
		}
	}
	return best, bestEnd, bestHint, bestEnd >= 0
}

func splitPlainRow(line string) []string {
	parts := plainCellSplitRE.Split(strings.TrimSpace(line), -1)
	cells := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			cells = append(cells, strings.TrimSpace(p))
		}
	}
	return cells
}
