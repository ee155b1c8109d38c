package extract

import (
	"strings"
	"testing"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
)

func nlpCandidates(t *testing.T, text string) []Candidate {
	t.Helper()
	e := NewNLPWindowExtractor(catalog.Default())
	return e.Extract(document.FromText("test", text))
}

func TestNLPYearBetweenKeywordAndValue(t *testing.T) {
	// The digit-free gap strategies cannot cross the year, so this phrasing
	// is exactly what the token window is for.
	cands := nlpCandidates(t, "Total greenhouse gas emissions in 2024 were 12,500 tCO2e.")

	c, ok := findCandidate(cands, "total_ghg_emissions")
	if !ok {
		t.Fatal("no candidate for total_ghg_emissions")
	}
	if c.Value != 12500 || c.Unit != "tCO2e" {
		t.Errorf("got %v %s, want 12500 tCO2e", c.Value, c.Unit)
	}
	if c.Strategy != StrategyNLPWindow || c.Confidence != ConfNLPWindow {
		t.Errorf("strategy/confidence = %s/%v", c.Strategy, c.Confidence)
	}
	if !strings.Contains(c.Snippet, "12,500") {
		t.Errorf("snippet %q does not contain the value", c.Snippet)
	}
}

func TestNLPInlinePercent(t *testing.T) {
	cands := nlpCandidates(t, "The renewable energy share improved to 75% in the reporting period.")

	c, ok := findCandidate(cands, "renewable_energy_share")
	if !ok {
		t.Fatal("no candidate for renewable_energy_share")
	}
	if c.Value != 75 || c.Unit != "%" {
		t.Errorf("got %v %s, want 75 %%", c.Value, c.Unit)
	}
}

func TestNLPMagnitudeWordPair(t *testing.T) {
	cands := nlpCandidates(t, "Water withdrawal amounted to 1.5 million m3 during 2024.")

	c, ok := findCandidate(cands, "water_withdrawal")
	if !ok {
		t.Fatal("no candidate for water_withdrawal")
	}
	if c.Value != 1500000 || c.Unit != "m3" {
		t.Errorf("got %v %s, want 1500000 m3", c.Value, c.Unit)
	}
}

func TestNLPNumberBeforeKeyword(t *testing.T) {
	cands := nlpCandidates(t, "A total of 840 t of waste was generated on site.")

	c, ok := findCandidate(cands, "total_waste_generated")
	if !ok {
		t.Fatal("no candidate for total_waste_generated")
	}
	if c.Value != 840 || c.Unit != "t" {
		t.Errorf("got %v %s, want 840 t", c.Value, c.Unit)
	}
}

func TestNLPNearestNumberWins(t *testing.T) {
	cands := nlpCandidates(t, "Renewable energy share rose from 68% to 75% year over year.")

	c, ok := findCandidate(cands, "renewable_energy_share")
	if !ok {
		t.Fatal("no candidate for renewable_energy_share")
	}
	if c.Value != 68 {
		t.Errorf("value = %v, want the nearest number 68", c.Value)
	}
}

func TestNLPWindowRadiusBound(t *testing.T) {
	text := "Water withdrawal " + strings.Repeat("filler ", WindowRadius+5) + "500 m3."
	cands := nlpCandidates(t, text)

	if _, ok := findCandidate(cands, "water_withdrawal"); ok {
		t.Fatal("number beyond the token window must not match")
	}
}

func TestNLPSkipsBareYears(t *testing.T) {
	cands := nlpCandidates(t, "Water withdrawal reporting resumed in 2024 as planned.")

	if _, ok := findCandidate(cands, "water_withdrawal"); ok {
		t.Fatal("a bare year must not become a value")
	}
}

func TestNLPAmbiguousUnitDropped(t *testing.T) {
	// Emissions accept several unit scales, so a number with no unit token
	// nearby cannot be normalized safely.
	cands := nlpCandidates(t, "GHG emissions fell by 350 compared with the prior period.")

	if _, ok := findCandidate(cands, "total_ghg_emissions"); ok {
		t.Fatal("value with ambiguous unit scale must be dropped, not guessed")
	}
}

func TestNLPEmptyDocument(t *testing.T) {
	if cands := nlpCandidates(t, ""); len(cands) != 0 {
		t.Fatalf("empty document produced %d candidates", len(cands))
	}
}
