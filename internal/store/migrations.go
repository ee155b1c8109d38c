package store

import (
	"fmt"
	"time"
)

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	if err := s.runBootstrapDDL(); err != nil {
		return err
	}
	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		// One row per extraction pass over a document
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			path        TEXT,
			format      TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Merged per-KPI results; value NULL means the KPI was not found.
		// ord preserves catalog order for readback.
		`CREATE TABLE IF NOT EXISTS results (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			ord        INTEGER NOT NULL,
			kpi        TEXT NOT NULL,
			value      REAL,
			unit       TEXT,
			confidence REAL NOT NULL,
			source     TEXT NOT NULL,
			snippet    TEXT
		)`,

		// Raw candidate audit trail, one row per strategy hit
		`CREATE TABLE IF NOT EXISTS candidates (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			kpi        TEXT NOT NULL,
			value      REAL NOT NULL,
			unit       TEXT NOT NULL,
			confidence REAL NOT NULL,
			strategy   TEXT NOT NULL,
			snippet    TEXT,
			position   INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_run ON candidates(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,

		// Metadata table
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", truncateStmt(stmt, 60), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	return nil
}

// seedMeta initializes the meta table with defaults if not already set.
func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": "1",
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range defaults {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v,
		)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

func truncateStmt(stmt string, max int) string {
	if len(stmt) <= max {
		return stmt
	}
	return stmt[:max] + "..."
}
