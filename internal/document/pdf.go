package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFReader handles .pdf files. Only the text layer is used: PDFs carry no
// reliable table structure, so tabular content in them is reconstructed
// downstream from the page text.
type PDFReader struct{}

// CanHandle returns true for the .pdf extension.
func (p *PDFReader) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

// Read extracts plain text page by page.
func (p *PDFReader) Read(ctx context.Context, path string) (doc *Document, err error) {
	// The underlying parser panics on malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("parsing PDF %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	doc = &Document{
		ID:     filepath.Base(path),
		Path:   path,
		Format: "pdf",
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d of %s: %w", i, path, err)
		}
		doc.Pages = append(doc.Pages, strings.TrimSpace(text))
	}

	return doc, nil
}
