// Package document loads report files into a format-neutral shape.
//
// Each supported format (plain text, CSV/TSV, XLSX, PDF, JSON) has its own
// reader that implements the Reader interface. Load auto-detects formats by
// file extension and dispatches to the correct parser.
//
// A Document separates what the extractors need: running text with page
// boundaries preserved, and structured tables as raw cell grids. Formats
// that only carry one of the two leave the other empty.
package document

import (
	"context"
	"fmt"
	"strings"
)

// Table is one structured table: a page or sheet ordinal (1-indexed) and
// raw cell rows, untrimmed and uninterpreted.
type Table struct {
	Page int        `json:"page"`
	Rows [][]string `json:"rows"`
}

// Document is a loaded source file.
type Document struct {
	ID     string   `json:"id"`
	Path   string   `json:"path,omitempty"`
	Format string   `json:"format"`
	Pages  []string `json:"pages,omitempty"`
	Tables []Table  `json:"tables,omitempty"`
}

// FullText joins all pages into one string for text-oriented extractors.
func (d *Document) FullText() string {
	return strings.Join(d.Pages, "\n\n")
}

// FromText wraps already-loaded text as a Document, for callers that do not
// go through a file (inline extraction, tests).
func FromText(id, text string) *Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &Document{ID: id, Format: "text", Pages: []string{text}}
}

// Reader handles a specific file format.
type Reader interface {
	// CanHandle returns true if this reader supports the given file path.
	CanHandle(path string) bool

	// Read parses the file into a Document.
	Read(ctx context.Context, path string) (*Document, error)
}

// Readers returns the built-in format readers in detection order.
// TextReader comes last: it doubles as the fallback for extensionless files.
func Readers() []Reader {
	return []Reader{
		&PDFReader{},
		&XLSXReader{},
		&CSVReader{},
		&JSONReader{},
		&TextReader{},
	}
}

// Load reads path with the first reader that claims it.
func Load(ctx context.Context, path string) (*Document, error) {
	for _, r := range Readers() {
		if r.CanHandle(path) {
			return r.Read(ctx, path)
		}
	}
	return nil, fmt.Errorf("unsupported document format: %s", path)
}
