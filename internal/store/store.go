// Package store provides the SQLite persistence layer for extraction runs.
//
// Each run records the merged per-KPI results plus the raw candidate
// audit trail, so any reported figure can be traced back to the strategy
// and document position it came from.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/verdexhq/verdex/internal/extract"
	"github.com/verdexhq/verdex/internal/merge"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.verdex/verdex.db"

// Run is one extraction pass over a single document.
type Run struct {
	ID         int64               `json:"id"`
	DocumentID string              `json:"document"`
	Path       string              `json:"path,omitempty"`
	Format     string              `json:"format,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	Results    []merge.Result      `json:"results"`
	Candidates []extract.Candidate `json:"candidates,omitempty"`
}

// RunSummary is a listing row for a stored run. Extracted counts results
// that carry a value, Missing counts KPIs the run could not resolve.
type RunSummary struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document"`
	Path       string    `json:"path,omitempty"`
	Format     string    `json:"format,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Extracted  int       `json:"extracted"`
	Missing    int       `json:"missing"`
}

// StoreStats holds observability statistics about the store.
type StoreStats struct {
	RunCount       int64 `json:"runs"`
	ResultCount    int64 `json:"results"`
	CandidateCount int64 `json:"candidates"`
	DBSizeBytes    int64 `json:"db_size_bytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the run persistence interface.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, r *Run) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*RunSummary, error)
	RunCandidates(ctx context.Context, runID int64) ([]extract.Candidate, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	cfg.DBPath = expandPath(cfg.DBPath)

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Enable WAL mode and foreign keys
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database. Manual only, never automatic.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
