package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// TextReader handles .txt, .md, .log, and any extensionless file.
type TextReader struct{}

// CanHandle returns true for plain text extensions. Also acts as fallback.
func (t *TextReader) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md" || ext == ".log" || ext == ""
}

// Read loads the whole file as a single-page document. Form feeds, the one
// page marker plain text can carry, split pages.
func (t *TextReader) Read(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	pages := strings.Split(content, "\f")
	for i := range pages {
		pages[i] = strings.Trim(pages[i], "\n")
	}

	return &Document{
		ID:     filepath.Base(path),
		Path:   path,
		Format: "text",
		Pages:  pages,
	}, nil
}
