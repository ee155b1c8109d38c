package extract

import (
	"testing"

	"github.com/verdexhq/verdex/internal/catalog"
)

func TestSplitNumberUnit(t *testing.T) {
	tests := []struct {
		in       string
		wantNum  string
		wantUnit string
		ok       bool
	}{
		{"12,500 tCO2e", "12,500", "tCO2e", true},
		{"1,200,000", "1,200,000", "", true},
		{"3.2k", "3.2 k", "", true},
		{"75%", "75", "%", true},
		{"500 m3", "500", "m3", true},
		{"500m3", "500", "m3", true},
		{"1.5 million tCO2e", "1.5 million", "tCO2e", true},
		{"(2,000)", "(2,000)", "", true},
		{"2024,", "2024", "", true},
		{"3.2 kWh", "3.2", "kWh", true},
		{"n/a", "", "", false},
		{"approx 500", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		num, unit, ok := splitNumberUnit(tt.in)
		if ok != tt.ok {
			t.Errorf("splitNumberUnit(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if num != tt.wantNum || unit != tt.wantUnit {
			t.Errorf("splitNumberUnit(%q) = (%q, %q), want (%q, %q)", tt.in, num, unit, tt.wantNum, tt.wantUnit)
		}
	}
}

func TestSplitLabelUnit(t *testing.T) {
	tests := []struct {
		in        string
		wantLabel string
		wantUnit  string
	}{
		{"Energy Consumption (MWh)", "Energy Consumption", "MWh"},
		{"Renewable Energy Share (%)", "Renewable Energy Share", "%"},
		{"Water Withdrawal", "Water Withdrawal", ""},
		{"Value", "Value", ""},
	}

	for _, tt := range tests {
		label, unit := splitLabelUnit(tt.in)
		if label != tt.wantLabel || unit != tt.wantUnit {
			t.Errorf("splitLabelUnit(%q) = (%q, %q), want (%q, %q)", tt.in, label, unit, tt.wantLabel, tt.wantUnit)
		}
	}
}

func TestIsYearLike(t *testing.T) {
	tests := []struct {
		raw   string
		value float64
		want  bool
	}{
		{"2024", 2024, true},
		{"1999", 1999, true},
		{"2100", 2100, true},
		{"1850", 1850, false},
		{"12,500", 12500, false},
		{"500", 500, false},
		{"20245", 20245, false},
	}

	for _, tt := range tests {
		if got := isYearLike(tt.raw, tt.value); got != tt.want {
			t.Errorf("isYearLike(%q, %v) = %v, want %v", tt.raw, tt.value, got, tt.want)
		}
	}
}

func TestStrategyRank(t *testing.T) {
	order := []string{StrategyTableGrid, StrategyRegex, StrategyTablePlain, StrategyNLPWindow, StrategyModel}
	for i := 1; i < len(order); i++ {
		if StrategyRank(order[i-1]) >= StrategyRank(order[i]) {
			t.Errorf("rank(%s) should be below rank(%s)", order[i-1], order[i])
		}
	}
}

func TestMatchKPILabelPrefersLongestTerm(t *testing.T) {
	terms := buildTermIndex(catalog.Default())

	k, _, ok := matchKPILabel(terms, "total greenhouse gas emissions scope 1 and 2")
	if !ok || k.ID != "total_ghg_emissions" {
		t.Fatalf("expected total_ghg_emissions, got %v (ok=%v)", k.ID, ok)
	}

	// "energy" alone is a keyword of energy_consumption; the full share
	// alias must win over it.
	k, _, ok = matchKPILabel(terms, "renewable energy share")
	if !ok || k.ID != "renewable_energy_share" {
		t.Fatalf("expected renewable_energy_share, got %v (ok=%v)", k.ID, ok)
	}
}

func TestExtractorsOrder(t *testing.T) {
	exts := Extractors(catalog.Default())
	want := []string{StrategyTableGrid, StrategyRegex, StrategyTablePlain, StrategyNLPWindow}
	if len(exts) != len(want) {
		t.Fatalf("extractors = %d, want %d", len(exts), len(want))
	}
	for i, e := range exts {
		if e.Name() != want[i] {
			t.Errorf("extractor %d = %s, want %s", i, e.Name(), want[i])
		}
	}
}
