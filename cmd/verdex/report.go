package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/verdexhq/verdex/internal/pipeline"
)

// writeReports renders extraction reports in the requested format. A single
// report serializes as one object; a batch as an array (JSON) or as one CSV
// with a leading document column.
func writeReports(w io.Writer, reports []*pipeline.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	case "csv":
		return writeCSV(w, reports)
	case "table":
		for i, rep := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeTable(w, rep)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, csv, table)", format)
	}
}

func writeCSV(w io.Writer, reports []*pipeline.Report) error {
	cw := csv.NewWriter(w)

	header := []string{"kpi", "value", "unit", "confidence", "source", "snippet"}
	multi := len(reports) > 1
	if multi {
		header = append([]string{"document"}, header...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rep := range reports {
		for _, r := range rep.Results {
			value := ""
			if r.Value != nil {
				value = strconv.FormatFloat(*r.Value, 'f', -1, 64)
			}
			row := []string{
				r.KPIID,
				value,
				r.Unit,
				strconv.FormatFloat(r.Confidence, 'f', -1, 64),
				r.Source,
				r.Snippet,
			}
			if multi {
				row = append([]string{rep.DocumentID}, row...)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, rep *pipeline.Report) {
	fmt.Fprintf(w, "%s\n", rep.DocumentID)
	fmt.Fprintf(w, "%-26s %-16s %-8s %-6s %-12s %s\n", "KPI", "VALUE", "UNIT", "CONF", "SOURCE", "SNIPPET")
	for _, r := range rep.Results {
		value := "-"
		if r.Value != nil {
			value = strconv.FormatFloat(*r.Value, 'f', -1, 64)
		}
		snippet := r.Snippet
		if len(snippet) > 48 {
			snippet = snippet[:47] + "…"
		}
		fmt.Fprintf(w, "%-26s %-16s %-8s %-6.2f %-12s %s\n", r.KPIID, value, r.Unit, r.Confidence, r.Source, snippet)
	}
	fmt.Fprintf(w, "\n%d/%d KPIs extracted\n", rep.Extracted(), len(rep.Results))
}
