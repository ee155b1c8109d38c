package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/normalize"
)

// Header labels recognized per column role, after canonicalization.
// English, German, and French report conventions are covered.
var (
	kpiHeaderLabels = map[string]bool{
		"kpi": true, "metric": true, "indicator": true, "name": true,
		"kennzahl": true, "indikator": true, "messgrosse": true,
		"indicateur": true,
	}
	unitHeaderLabels = map[string]bool{
		"unit": true, "units": true, "uom": true,
		"einheit": true, "unite": true,
	}
	valueHeaderLabels = map[string]bool{
		"value": true, "amount": true, "total": true,
		"wert": true, "menge": true, "valeur": true, "montant": true,
	}
)

var headerYearRE = regexp.MustCompile(`^(19|20)\d{2}$`)

// blankCells are cell values that mean "no data" rather than data.
var blankCells = map[string]bool{
	"": true, "-": true, "–": true, "—": true, ".": true,
	"n/a": true, "na": true, "n.a.": true,
}

// gridLayout is the detected column structure of one table.
type gridLayout struct {
	kpiCol   int
	unitCol  int
	valueCol int            // -1 means scan right of the KPI column
	hints    map[int]string // column index -> unit hint from "Value (MWh)" headers
	dataFrom int            // first data row
}

// TableGridExtractor reads structured tables. It detects a header row in the
// first rows, resolves which columns carry KPI names, values, and units, and
// matches row labels against the catalog. Tables without a recognizable
// header fall back to label-in-first-column with a rightward value scan.
type TableGridExtractor struct {
	terms []termIndex
}

// NewTableGridExtractor canonicalizes the catalog terms once.
func NewTableGridExtractor(cat *catalog.Catalog) *TableGridExtractor {
	return &TableGridExtractor{terms: buildTermIndex(cat)}
}

// Name returns the strategy tag.
func (e *TableGridExtractor) Name() string { return StrategyTableGrid }

// Extract walks every table in document order and keeps the first hit per
// KPI.
func (e *TableGridExtractor) Extract(doc *document.Document) []Candidate {
	var out []Candidate
	taken := make(map[string]bool)
	for ti, table := range doc.Tables {
		for _, c := range e.extractTable(table.Rows, ti) {
			if taken[c.KPIID] {
				continue
			}
			taken[c.KPIID] = true
			out = append(out, c)
		}
	}
	return out
}

func (e *TableGridExtractor) extractTable(rows [][]string, tableIdx int) []Candidate {
	if len(rows) == 0 {
		return nil
	}

	layout := detectLayout(rows)

	var out []Candidate
	taken := make(map[string]bool)
	for r := layout.dataFrom; r < len(rows); r++ {
		c, ok := e.rowCandidate(rows[r], layout, tableIdx, r)
		if !ok || taken[c.KPIID] {
			continue
		}
		taken[c.KPIID] = true
		out = append(out, c)
	}
	return out
}

// detectLayout looks for a header row among the first rows of the table.
// A usable header names at least a KPI column and a value column, the
// latter either explicitly or as a calendar year. With several year
// columns, the most recent year is the reporting column.
func detectLayout(rows [][]string) gridLayout {
	scan := len(rows)
	if scan > 3 {
		scan = 3
	}
	for r := 0; r < scan; r++ {
		if layout, ok := scanHeaderRow(rows[r]); ok {
			layout.dataFrom = r + 1
			return layout
		}
	}
	// No header: labels in the first column, values found by scanning right.
	return gridLayout{kpiCol: 0, unitCol: -1, valueCol: -1, hints: map[int]string{}}
}

func scanHeaderRow(row []string) (gridLayout, bool) {
	layout := gridLayout{kpiCol: -1, unitCol: -1, valueCol: -1, hints: map[int]string{}}
	explicitValue := -1
	yearCol, bestYear := -1, 0

	for i, cell := range row {
		labelPart, hint := splitLabelUnit(cell)
		label := normalize.Label(labelPart)
		if hint != "" {
			layout.hints[i] = hint
		}

		switch {
		case kpiHeaderLabels[label]:
			if layout.kpiCol < 0 {
				layout.kpiCol = i
			}
		case unitHeaderLabels[label]:
			if layout.unitCol < 0 {
				layout.unitCol = i
			}
		case valueHeaderLabels[label]:
			if explicitValue < 0 {
				explicitValue = i
			}
		default:
			if y := headerYear(label); y > bestYear {
				yearCol, bestYear = i, y
			}
		}
	}

	layout.valueCol = explicitValue
	if layout.valueCol < 0 {
		layout.valueCol = yearCol
	}
	return layout, layout.kpiCol >= 0 && layout.valueCol >= 0
}

// headerYear recognizes "2024", "fy 2024", "cy2023" column labels.
func headerYear(label string) int {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimPrefix(label, "fy"), "cy"))
	if len(fields) != 1 || !headerYearRE.MatchString(fields[0]) {
		return 0
	}
	y, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return y
}

func (e *TableGridExtractor) rowCandidate(row []string, layout gridLayout, tableIdx, rowIdx int) (Candidate, bool) {
	if layout.kpiCol >= len(row) {
		return Candidate{}, false
	}

	labelPart, labelHint := splitLabelUnit(row[layout.kpiCol])
	label := normalize.Label(labelPart)
	if label == "" {
		return Candidate{}, false
	}
	k, _, ok := matchKPILabel(e.terms, label)
	if !ok {
		return Candidate{}, false
	}

	numRaw, cellUnit, valueIdx := pickValueCell(row, layout)
	if valueIdx < 0 {
		return Candidate{}, false
	}

	rawUnit := firstDataCell(
		unitColumnCell(row, layout),
		cellUnit,
		layout.hints[valueIdx],
		labelHint,
	)

	v, ok := normalize.ParseNumber(numRaw)
	if !ok {
		return Candidate{}, false
	}
	if rawUnit == "" && isYearLike(numRaw, v) {
		return Candidate{}, false
	}

	val := normalize.Normalize(numRaw, rawUnit, k)
	if !val.OK {
		return Candidate{}, false
	}

	return Candidate{
		KPIID:      k.ID,
		Value:      val.Value,
		Unit:       val.Unit,
		Confidence: ConfTableGrid,
		Strategy:   StrategyTableGrid,
		Snippet:    clip(strings.Join(row, " | "), SnippetLen),
		Position:   tableIdx*1_000_000 + rowIdx*1_000 + valueIdx,
	}, true
}

// pickValueCell returns the raw number, in-cell unit text, and column of the
// row's value. With no declared value column, the first numeric cell right
// of the KPI column wins; bare years are passed over while scanning.
func pickValueCell(row []string, layout gridLayout) (string, string, int) {
	if layout.valueCol >= 0 {
		if layout.valueCol >= len(row) {
			return "", "", -1
		}
		num, unit, ok := splitNumberUnit(row[layout.valueCol])
		if !ok {
			return "", "", -1
		}
		return num, unit, layout.valueCol
	}

	for i := layout.kpiCol + 1; i < len(row); i++ {
		num, unit, ok := splitNumberUnit(row[i])
		if !ok {
			continue
		}
		if unit == "" {
			if v, ok := normalize.ParseNumber(num); ok && isYearLike(num, v) {
				continue
			}
		}
		return num, unit, i
	}
	return "", "", -1
}

func unitColumnCell(row []string, layout gridLayout) string {
	if layout.unitCol < 0 || layout.unitCol >= len(row) {
		return ""
	}
	return row[layout.unitCol]
}

// firstDataCell returns the first source that holds actual data, skipping
// empty and dash-style placeholder cells.
func firstDataCell(sources ...string) string {
	for _, s := range sources {
		if !blankCells[strings.ToLower(strings.TrimSpace(s))] {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

