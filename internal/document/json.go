package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// JSONReader handles .json files in two shapes: the native document form
// ({"pages": [...], "tables": [...]}) and a flat array of objects, which
// becomes one table with the sorted key union as its header row.
type JSONReader struct{}

// CanHandle returns true for the .json extension.
func (j *JSONReader) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

type jsonDocument struct {
	ID     string   `json:"id"`
	Pages  []string `json:"pages"`
	Tables []Table  `json:"tables"`
}

// Read parses the file, trying the native shape first.
func (j *JSONReader) Read(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:     filepath.Base(path),
		Path:   path,
		Format: "json",
	}

	var native jsonDocument
	if err := json.Unmarshal(data, &native); err == nil {
		if len(native.Pages) > 0 || len(native.Tables) > 0 {
			if native.ID != "" {
				doc.ID = native.ID
			}
			doc.Pages = native.Pages
			doc.Tables = native.Tables
			return doc, nil
		}
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err == nil && len(records) > 0 {
		doc.Tables = []Table{{Page: 1, Rows: recordsToRows(records)}}
		return doc, nil
	}

	return nil, fmt.Errorf("unrecognized JSON document shape: %s", path)
}

// recordsToRows flattens objects into a header row plus one row per object.
// The header is the sorted union of keys so output is independent of object
// order in the file.
func recordsToRows(records []map[string]any) [][]string {
	keySet := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, keys)
	for _, rec := range records {
		row := make([]string, len(keys))
		for i, k := range keys {
			v, ok := rec[k]
			if !ok || v == nil {
				continue
			}
			// JSON numbers decode as float64; %v prints large ones in
			// exponent form, which no downstream parser reads.
			if f, isNum := v.(float64); isNum {
				row[i] = strconv.FormatFloat(f, 'f', -1, 64)
			} else {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
