package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXReader handles .xlsx workbooks. Each sheet becomes one table, in
// workbook order, with the sheet ordinal as the page number.
type XLSXReader struct{}

// CanHandle returns true for the .xlsx extension.
func (x *XLSXReader) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".xlsx"
}

// Read opens the workbook and collects the formatted cell values of every
// non-empty sheet.
func (x *XLSXReader) Read(ctx context.Context, path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	doc := &Document{
		ID:     filepath.Base(path),
		Path:   path,
		Format: "xlsx",
	}

	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, path, err)
		}
		if len(rows) == 0 {
			continue
		}
		doc.Tables = append(doc.Tables, Table{Page: i + 1, Rows: rows})
	}

	return doc, nil
}
