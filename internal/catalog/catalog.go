// Package catalog provides the KPI registry for Verdex.
//
// A catalog is the process-wide set of KPI definitions: canonical name and
// unit, accepted aliases and trigger keywords, and the unit-conversion table
// that maps every accepted unit token to a factor into the canonical unit.
// It is loaded once at startup, validated fatally, and treated as read-only
// by every other component.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// KPI is a single tracked indicator definition.
type KPI struct {
	ID            string             `json:"id" yaml:"id"`
	CanonicalName string             `json:"canonical_name" yaml:"canonical_name"`
	CanonicalUnit string             `json:"canonical_unit" yaml:"canonical_unit"`
	Aliases       []string           `json:"aliases" yaml:"aliases"`
	Keywords      []string           `json:"keywords" yaml:"keywords"`
	Units         map[string]float64 `json:"units" yaml:"units"` // unit token -> factor to canonical
}

// Terms returns the alias and keyword list, aliases first.
// Aliases are full phrases; keywords are single trigger tokens.
func (k KPI) Terms() []string {
	out := make([]string, 0, len(k.Aliases)+len(k.Keywords))
	out = append(out, k.Aliases...)
	out = append(out, k.Keywords...)
	return out
}

// Catalog is an ordered, validated set of KPI definitions.
// Definition order is preserved: reports emit one result per KPI in this order.
type Catalog struct {
	kpis []KPI
	byID map[string]int
}

type catalogFile struct {
	KPIs []KPI `json:"kpis" yaml:"kpis"`
}

//go:embed default_catalog.json
var defaultCatalogJSON []byte

// Default returns the built-in catalog.
// It panics on a malformed embedded file, which can only mean a build defect.
func Default() *Catalog {
	c, err := Parse(defaultCatalogJSON, "json")
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a JSON or YAML file, chosen by extension.
// Any validation failure is returned as an error; callers treat it as fatal.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	c, err := Parse(b, format)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalog bytes in the given format ("json" or "yaml").
func Parse(b []byte, format string) (*Catalog, error) {
	var file catalogFile
	switch format {
	case "json":
		if err := json.Unmarshal(b, &file); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(b, &file); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}

	return New(file.KPIs)
}

// New builds a catalog from definitions, validating every entry.
func New(kpis []KPI) (*Catalog, error) {
	if len(kpis) == 0 {
		return nil, fmt.Errorf("catalog has no KPI definitions")
	}

	c := &Catalog{
		kpis: make([]KPI, 0, len(kpis)),
		byID: make(map[string]int, len(kpis)),
	}

	for i, k := range kpis {
		if err := validateKPI(k); err != nil {
			return nil, fmt.Errorf("kpi %d (%q): %w", i, k.ID, err)
		}
		if _, dup := c.byID[k.ID]; dup {
			return nil, fmt.Errorf("duplicate kpi id %q", k.ID)
		}
		c.byID[k.ID] = len(c.kpis)
		c.kpis = append(c.kpis, k)
	}

	return c, nil
}

func validateKPI(k KPI) error {
	if strings.TrimSpace(k.ID) == "" {
		return fmt.Errorf("empty id")
	}
	if strings.TrimSpace(k.CanonicalUnit) == "" {
		return fmt.Errorf("empty canonical unit")
	}
	if len(k.Aliases) == 0 && len(k.Keywords) == 0 {
		return fmt.Errorf("no aliases or keywords")
	}
	if len(k.Units) == 0 {
		return fmt.Errorf("no accepted units")
	}
	for token, factor := range k.Units {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("empty unit token")
		}
		if factor <= 0 {
			return fmt.Errorf("unit %q has non-positive conversion factor %v", token, factor)
		}
	}
	return nil
}

// KPIs returns the definitions in catalog order.
// The returned slice must not be modified.
func (c *Catalog) KPIs() []KPI {
	return c.kpis
}

// ByID looks up a definition by id.
func (c *Catalog) ByID(id string) (KPI, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return KPI{}, false
	}
	return c.kpis[idx], true
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.kpis)
}

// MarshalJSON serializes the catalog back into its file shape.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(catalogFile{KPIs: c.kpis})
}
