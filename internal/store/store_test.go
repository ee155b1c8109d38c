package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/verdexhq/verdex/internal/extract"
	"github.com/verdexhq/verdex/internal/merge"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testRun builds a run with one resolved KPI, one missing KPI, and a
// two-strategy candidate trail.
func testRun() *Run {
	water := 500.0
	return &Run{
		DocumentID: "esg-2024.txt",
		Path:       "/reports/esg-2024.txt",
		Format:     "txt",
		Results: []merge.Result{
			{
				KPIID:      "water_withdrawal",
				Value:      &water,
				Unit:       "m3",
				Confidence: 0.88,
				Source:     extract.StrategyTableGrid,
				Snippet:    "Water Withdrawal | 500 | m3",
			},
			{
				KPIID:  "total_ghg_emissions",
				Source: extract.StrategyNone,
			},
		},
		Candidates: []extract.Candidate{
			{
				KPIID: "water_withdrawal", Value: 500, Unit: "m3", Confidence: 0.80,
				Strategy: extract.StrategyTableGrid,
				Snippet:  "Water Withdrawal | 500 | m3", Position: 1000,
			},
			{
				KPIID: "water_withdrawal", Value: 500, Unit: "m3", Confidence: 0.85,
				Strategy: extract.StrategyRegex,
				Snippet:  "Water withdrawal: 500 m3", Position: 42,
			},
		},
	}
}

// --- Database Initialization ---

func TestNewStore(t *testing.T) {
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	// Verify tables exist by querying each
	ss := s.(*SQLiteStore)
	tables := []string{"runs", "results", "candidates", "meta"}
	for _, table := range tables {
		var name string
		err := ss.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestWALMode(t *testing.T) {
	s := newTestStore(t)
	ss := s.(*SQLiteStore)

	var mode string
	ss.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	// In-memory databases use "memory" journal mode, not WAL
	if mode != "memory" && mode != "wal" {
		t.Errorf("expected journal_mode 'wal' or 'memory', got %q", mode)
	}
}

// --- Runs ---

func TestSaveRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := testRun()
	id, err := s.SaveRun(ctx, run)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero run id")
	}
	if run.ID != id {
		t.Errorf("run.ID = %d, want %d", run.ID, id)
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for saved run")
	}
	if got.DocumentID != "esg-2024.txt" {
		t.Errorf("DocumentID = %q, want esg-2024.txt", got.DocumentID)
	}
	if got.Path != "/reports/esg-2024.txt" {
		t.Errorf("Path = %q, want /reports/esg-2024.txt", got.Path)
	}
	if got.Format != "txt" {
		t.Errorf("Format = %q, want txt", got.Format)
	}
	if len(got.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got.Results))
	}

	water := got.Results[0]
	if water.KPIID != "water_withdrawal" {
		t.Errorf("result 0 KPI = %q, want water_withdrawal (order must survive)", water.KPIID)
	}
	if water.Value == nil || *water.Value != 500 {
		t.Errorf("water value = %v, want 500", water.Value)
	}
	if water.Unit != "m3" || water.Confidence != 0.88 || water.Source != extract.StrategyTableGrid {
		t.Errorf("water result fields = %+v", water)
	}

	ghg := got.Results[1]
	if ghg.Value != nil {
		t.Errorf("missing KPI should load with nil value, got %v", *ghg.Value)
	}
	if ghg.Source != extract.StrategyNone {
		t.Errorf("missing KPI source = %q, want %q", ghg.Source, extract.StrategyNone)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetRun(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func TestRunCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, testRun())
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	cands, err := s.RunCandidates(ctx, id)
	if err != nil {
		t.Fatalf("RunCandidates failed: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].Strategy != extract.StrategyTableGrid {
		t.Errorf("candidate 0 strategy = %q, want %q", cands[0].Strategy, extract.StrategyTableGrid)
	}
	if cands[1].Strategy != extract.StrategyRegex {
		t.Errorf("candidate 1 strategy = %q, want %q", cands[1].Strategy, extract.StrategyRegex)
	}
	if cands[1].Value != 500 || cands[1].Unit != "m3" || cands[1].Position != 42 {
		t.Errorf("candidate 1 fields = %+v", cands[1])
	}
}

func TestRunCandidatesEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := testRun()
	run.Candidates = nil
	id, err := s.SaveRun(ctx, run)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	cands, err := s.RunCandidates(ctx, id)
	if err != nil {
		t.Fatalf("RunCandidates failed: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("expected no candidates, got %d", len(cands))
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.SaveRun(ctx, testRun())
		if err != nil {
			t.Fatalf("SaveRun %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	summaries, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries with limit 2, got %d", len(summaries))
	}
	if summaries[0].ID != ids[2] {
		t.Errorf("newest run should come first: got %d, want %d", summaries[0].ID, ids[2])
	}
	if summaries[0].Extracted != 1 || summaries[0].Missing != 1 {
		t.Errorf("summary counts = %d extracted / %d missing, want 1/1",
			summaries[0].Extracted, summaries[0].Missing)
	}
}

func TestListRunsDefaultLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveRun(ctx, testRun()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	summaries, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("expected 1 summary, got %d", len(summaries))
	}
}

// --- Observability ---

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveRun(ctx, testRun()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", stats.RunCount)
	}
	if stats.ResultCount != 2 {
		t.Errorf("ResultCount = %d, want 2", stats.ResultCount)
	}
	if stats.CandidateCount != 2 {
		t.Errorf("CandidateCount = %d, want 2", stats.CandidateCount)
	}
}

// --- File-backed persistence ---

func TestFileBackedStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verdex.db")
	ctx := context.Background()

	s, err := NewStore(StoreConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	id, err := s.SaveRun(ctx, testRun())
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen and verify the run survived
	s2, err := NewStore(StoreConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun after reopen failed: %v", err)
	}
	if got == nil || len(got.Results) != 2 {
		t.Fatalf("run did not survive reopen: %+v", got)
	}

	stats, err := s2.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.DBSizeBytes == 0 {
		t.Error("expected non-zero DB size for file-backed store")
	}
}
