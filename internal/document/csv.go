package document

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CSVReader handles .csv and .tsv files.
type CSVReader struct{}

// CanHandle returns true for CSV/TSV file extensions.
func (c *CSVReader) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

// Read parses the file into a single table. The delimiter is '\t' for .tsv;
// for .csv it is sniffed from the first line, since European exports commonly
// use ';' with decimal commas inside the cells. The raw text also rides along
// as a single page, so cells a broken grid drops stay visible to the
// running-text strategies.
func (c *CSVReader) Read(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = detectDelimiter(path, content)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}

	doc := &Document{
		ID:     filepath.Base(path),
		Path:   path,
		Format: "csv",
		Pages:  []string{strings.Trim(content, "\n")},
	}
	if len(records) > 0 {
		doc.Tables = []Table{{Page: 1, Rows: records}}
	}
	return doc, nil
}

func detectDelimiter(path, content string) rune {
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		return '\t'
	}
	first := content
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}
