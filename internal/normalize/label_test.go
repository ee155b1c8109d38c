package normalize

import "testing"

func TestLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Total GHG Emissions", "total ghg emissions"},
		{"Total GHG Emissions:", "total ghg emissions"},
		{"Émissions de GES", "emissions de ges"},
		{"Consommation d'énergie", "consommation d energie"},
		{"  Wasserentnahme  ", "wasserentnahme"},
		{"Scope 1+2", "scope 1 2"},
		{"WATER/WITHDRAWAL", "water withdrawal"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		if got := Label(tt.in); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLabelComparesAccentedEqual(t *testing.T) {
	if Label("Émissions de GES :") != Label("emissions de ges") {
		t.Fatal("accented and plain label should canonicalize identically")
	}
}

func TestUnitToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tCO2e", "tco2e"},
		{"t CO2e", "tco2e"},
		{"T CO2E", "tco2e"},
		{"m³", "m3"},
		{"m3", "m3"},
		{"m²", "m2"},
		{"µg", "ug"},
		{"MWh", "mwh"},
		{"kg.", "kg"},
		{"%", "%"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := UnitToken(tt.in); got != tt.want {
			t.Errorf("UnitToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
