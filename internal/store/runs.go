package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/verdexhq/verdex/internal/extract"
	"github.com/verdexhq/verdex/internal/merge"
)

// SaveRun persists a run with its results and candidate audit trail in a
// single transaction. On success the run's ID and CreatedAt are filled in.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *Run) (int64, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (document_id, path, format, created_at) VALUES (?, ?, ?, ?)`,
		r.DocumentID, r.Path, r.Format, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting run id: %w", err)
	}

	resultStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, ord, kpi, value, unit, confidence, source, snippet)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("preparing result insert: %w", err)
	}
	defer resultStmt.Close()

	for i, result := range r.Results {
		if _, err := resultStmt.ExecContext(ctx,
			runID, i, result.KPIID, result.Value, result.Unit,
			result.Confidence, result.Source, result.Snippet,
		); err != nil {
			return 0, fmt.Errorf("inserting result %q: %w", result.KPIID, err)
		}
	}

	candStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates (run_id, kpi, value, unit, confidence, strategy, snippet, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("preparing candidate insert: %w", err)
	}
	defer candStmt.Close()

	for _, c := range r.Candidates {
		if _, err := candStmt.ExecContext(ctx,
			runID, c.KPIID, c.Value, c.Unit, c.Confidence,
			c.Strategy, c.Snippet, c.Position,
		); err != nil {
			return 0, fmt.Errorf("inserting candidate %q: %w", c.KPIID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}

	r.ID = runID
	r.CreatedAt = now
	return runID, nil
}

// GetRun loads a run and its merged results, in the order they were saved.
// Returns (nil, nil) when the run does not exist. Candidates are not
// loaded here; use RunCandidates for the audit trail.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, path, format, created_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.DocumentID, &r.Path, &r.Format, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kpi, value, unit, confidence, source, snippet
		 FROM results WHERE run_id = ? ORDER BY ord`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result merge.Result
		var value sql.NullFloat64
		if err := rows.Scan(&result.KPIID, &value, &result.Unit,
			&result.Confidence, &result.Source, &result.Snippet); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if value.Valid {
			v := value.Float64
			result.Value = &v
		}
		r.Results = append(r.Results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r, nil
}

// ListRuns returns summaries of the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.document_id, r.path, r.format, r.created_at,
		        (SELECT COUNT(*) FROM results WHERE run_id = r.id AND value IS NOT NULL),
		        (SELECT COUNT(*) FROM results WHERE run_id = r.id AND value IS NULL)
		 FROM runs r
		 ORDER BY r.id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var summaries []*RunSummary
	for rows.Next() {
		sum := &RunSummary{}
		if err := rows.Scan(&sum.ID, &sum.DocumentID, &sum.Path, &sum.Format,
			&sum.CreatedAt, &sum.Extracted, &sum.Missing); err != nil {
			return nil, fmt.Errorf("scanning run summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// RunCandidates loads the raw candidate audit trail for a run, in the
// order the candidates were recorded.
func (s *SQLiteStore) RunCandidates(ctx context.Context, runID int64) ([]extract.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kpi, value, unit, confidence, strategy, snippet, position
		 FROM candidates WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var cands []extract.Candidate
	for rows.Next() {
		var c extract.Candidate
		if err := rows.Scan(&c.KPIID, &c.Value, &c.Unit, &c.Confidence,
			&c.Strategy, &c.Snippet, &c.Position); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// Stats returns current database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM runs", &stats.RunCount},
		{"SELECT COUNT(*) FROM results", &stats.ResultCount},
		{"SELECT COUNT(*) FROM candidates", &stats.CandidateCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	// DB size only applies to file-based databases
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}
