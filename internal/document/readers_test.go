package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReaderDetection(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", "*document.PDFReader"},
		{"report.PDF", "*document.PDFReader"},
		{"data.xlsx", "*document.XLSXReader"},
		{"data.csv", "*document.CSVReader"},
		{"data.tsv", "*document.CSVReader"},
		{"doc.json", "*document.JSONReader"},
		{"notes.txt", "*document.TextReader"},
		{"notes.md", "*document.TextReader"},
		{"run.log", "*document.TextReader"},
		{"noext", "*document.TextReader"},
	}

	for _, tt := range tests {
		var got string
		for _, r := range Readers() {
			if r.CanHandle(tt.path) {
				got = fmt.Sprintf("%T", r)
				break
			}
		}
		if got != tt.want {
			t.Errorf("reader for %s = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestLoadTextDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	content := "Total GHG Emissions: 12,500 tCO2e\n\fEnergy Consumption was 3.2 GWh.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Format != "text" {
		t.Errorf("format = %q, want text", doc.Format)
	}
	if doc.ID != "report.txt" {
		t.Errorf("id = %q, want report.txt", doc.ID)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %d, want 2 (form feed splits)", len(doc.Pages))
	}
	if !strings.Contains(doc.FullText(), "12,500 tCO2e") || !strings.Contains(doc.FullText(), "3.2 GWh") {
		t.Errorf("FullText lost content: %q", doc.FullText())
	}
}

func TestFromText(t *testing.T) {
	doc := FromText("inline", "line one\r\nline two")
	if doc.ID != "inline" || doc.Format != "text" {
		t.Errorf("unexpected document identity: %+v", doc)
	}
	if doc.FullText() != "line one\nline two" {
		t.Errorf("line endings not normalized: %q", doc.FullText())
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kpis.csv")
	content := "KPI,Value,Unit\nWater Withdrawal,\"1,200,000\",m3\nEnergy Consumption,500,MWh\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(doc.Tables))
	}
	rows := doc.Tables[0].Rows
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][1] != "1,200,000" {
		t.Errorf("quoted grouped value = %q, want 1,200,000", rows[1][1])
	}
	if !strings.Contains(doc.FullText(), "Water Withdrawal") {
		t.Errorf("raw text page missing: %q", doc.FullText())
	}
}

func TestLoadSemicolonCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kennzahlen.csv")
	content := "Kennzahl;Wert;Einheit\nEnergieverbrauch;1.200,5;MWh\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows := doc.Tables[0].Rows
	if len(rows) != 2 || len(rows[0]) != 3 {
		t.Fatalf("semicolon delimiter not detected, rows: %v", rows)
	}
	if rows[1][1] != "1.200,5" {
		t.Errorf("value cell = %q, want 1.200,5", rows[1][1])
	}
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kpis.tsv")
	content := "KPI\tValue\tUnit\nTotal Waste Generated\t840\tt\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows := doc.Tables[0].Rows
	if len(rows) != 2 || rows[1][0] != "Total Waste Generated" {
		t.Fatalf("unexpected TSV rows: %v", rows)
	}
}

func TestLoadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "esg.xlsx")

	f := excelize.NewFile()
	cells := map[string]string{
		"A1": "KPI", "B1": "Value", "C1": "Unit",
		"A2": "Water Withdrawal", "B2": "1,200,000", "C2": "m3",
	}
	for cell, v := range cells {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Format != "xlsx" || len(doc.Tables) != 1 {
		t.Fatalf("unexpected document: format=%q tables=%d", doc.Format, len(doc.Tables))
	}
	rows := doc.Tables[0].Rows
	if rows[0][0] != "KPI" || rows[1][1] != "1,200,000" {
		t.Errorf("unexpected sheet rows: %v", rows)
	}
	if doc.Tables[0].Page != 1 {
		t.Errorf("sheet ordinal = %d, want 1", doc.Tables[0].Page)
	}
}

func TestLoadJSONNative(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	content := `{"id":"annual-2024","pages":["Water use was 500 ML."],"tables":[{"page":2,"rows":[["KPI","2024"],["Energy Consumption (MWh)","3.2k"]]}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.ID != "annual-2024" {
		t.Errorf("id = %q, want annual-2024", doc.ID)
	}
	if len(doc.Pages) != 1 || len(doc.Tables) != 1 {
		t.Fatalf("pages=%d tables=%d, want 1 and 1", len(doc.Pages), len(doc.Tables))
	}
	if doc.Tables[0].Page != 2 || doc.Tables[0].Rows[1][1] != "3.2k" {
		t.Errorf("unexpected table: %+v", doc.Tables[0])
	}
}

func TestLoadJSONArrayOfObjects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")
	content := `[{"kpi":"Water Withdrawal","value":1200000,"unit":"m3"},{"kpi":"Total Waste Generated","value":"840","unit":"t"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows := doc.Tables[0].Rows
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	// Header is the sorted key union.
	if rows[0][0] != "kpi" || rows[0][1] != "unit" || rows[0][2] != "value" {
		t.Errorf("header = %v, want [kpi unit value]", rows[0])
	}
	// Numeric cells render without an exponent, string cells verbatim.
	if rows[1][2] != "1200000" {
		t.Errorf("first record value = %q, want 1200000", rows[1][2])
	}
	if rows[2][2] != "840" {
		t.Errorf("second record value = %q, want 840", rows[2][2])
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load(context.Background(), "report.zip"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadRejectsNonPDFBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), path); err == nil {
		t.Fatal("expected error for invalid PDF bytes")
	}
}
