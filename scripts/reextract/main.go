// reextract sweeps the run store and re-runs extraction for every document
// whose source file still exists on disk. New runs are written next to the
// old ones, so coverage can be compared run to run after strategy changes.
//
// Run: go run ./scripts/reextract [--db path] [--limit N] [--offset N]
//
//	[--dry-run] [--backup path] [--report path]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/pipeline"
	"github.com/verdexhq/verdex/internal/store"
)

// sweepLimit is the ListRuns page size; large enough to cover any real store.
const sweepLimit = 1 << 20

type coverage struct {
	Documents int     `json:"documents"`
	Extracted int     `json:"extracted"`
	Missing   int     `json:"missing"`
	PerDoc    float64 `json:"extracted_per_doc"`
}

type sweepReport struct {
	DBPath      string            `json:"db_path"`
	GeneratedAt time.Time         `json:"generated_at"`
	Mode        string            `json:"mode"`
	Limit       int               `json:"limit"`
	Offset      int               `json:"offset"`
	Selected    int               `json:"selected_documents"`
	SkippedGone int               `json:"skipped_missing_files"`
	BackupPath  string            `json:"backup_path,omitempty"`
	StatsBefore *store.StoreStats `json:"stats_before"`
	StatsAfter  *store.StoreStats `json:"stats_after"`
	Before      coverage          `json:"coverage_before"`
	After       coverage          `json:"coverage_after"`
	Processed   int               `json:"processed"`
	Failed      int               `json:"failed"`
	Improved    int               `json:"improved"`
	Regressed   int               `json:"regressed"`
	Errors      []string          `json:"errors,omitempty"`
}

// collectCandidates keeps the latest run per document, drops runs without a
// usable source path, and applies offset/limit. Summaries arrive newest
// first, so the first run seen per document is its latest.
func collectCandidates(summaries []*store.RunSummary, limit, offset int) (selected []*store.RunSummary, gone int) {
	seen := map[string]bool{}
	var all []*store.RunSummary
	for _, sum := range summaries {
		if seen[sum.DocumentID] {
			continue
		}
		seen[sum.DocumentID] = true
		if sum.Path == "" {
			continue
		}
		if _, err := os.Stat(sum.Path); err != nil {
			gone++
			continue
		}
		all = append(all, sum)
	}

	if offset >= len(all) {
		return nil, gone
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], gone
}

// coverageFor totals extraction coverage over the latest run of each
// selected document.
func coverageFor(summaries []*store.RunSummary, docs map[string]bool) coverage {
	seen := map[string]bool{}
	var c coverage
	for _, sum := range summaries {
		if !docs[sum.DocumentID] || seen[sum.DocumentID] {
			continue
		}
		seen[sum.DocumentID] = true
		c.Documents++
		c.Extracted += sum.Extracted
		c.Missing += sum.Missing
	}
	if c.Documents > 0 {
		c.PerDoc = float64(c.Extracted) / float64(c.Documents)
	}
	return c
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

func backupDB(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}

func main() {
	dbPath := flag.String("db", store.DefaultDBPath, "Path to verdex sqlite db")
	limit := flag.Int("limit", 250, "Max documents to re-extract")
	offset := flag.Int("offset", 0, "Offset into ordered candidate documents")
	dryRun := flag.Bool("dry-run", false, "Only report counts, do not extract")
	backupPath := flag.String("backup", "", "Backup path before write mode")
	reportPath := flag.String("report", "", "Optional path to write JSON report")
	flag.Parse()

	ctx := context.Background()
	expanded := expandHome(*dbPath)

	// Copy the database before the store opens it, so the backup is a
	// clean pre-sweep snapshot.
	rep := sweepReport{
		DBPath:      expanded,
		GeneratedAt: time.Now().UTC(),
		Mode:        map[bool]string{true: "dry-run", false: "write"}[*dryRun],
		Limit:       *limit,
		Offset:      *offset,
	}
	if !*dryRun && *backupPath != "" {
		if err := backupDB(expanded, *backupPath); err != nil {
			panic(fmt.Errorf("backup failed: %w", err))
		}
		rep.BackupPath = *backupPath
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: expanded})
	if err != nil {
		panic(err)
	}
	defer st.Close()

	cat := catalog.Default()

	summaries, err := st.ListRuns(ctx, sweepLimit)
	if err != nil {
		panic(err)
	}

	candidates, gone := collectCandidates(summaries, *limit, *offset)
	rep.Selected = len(candidates)
	rep.SkippedGone = gone

	docs := map[string]bool{}
	for _, c := range candidates {
		docs[c.DocumentID] = true
	}
	rep.Before = coverageFor(summaries, docs)

	rep.StatsBefore, err = st.Stats(ctx)
	if err != nil {
		panic(err)
	}

	if !*dryRun {
		pipe := pipeline.New(cat, pipeline.WithStore(st))

		for _, c := range candidates {
			doc, err := document.Load(ctx, c.Path)
			if err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("run %d load %s: %v", c.ID, c.Path, err))
				continue
			}
			newRep, err := pipe.Run(ctx, doc)
			if err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("run %d extract %s: %v", c.ID, c.Path, err))
				continue
			}
			rep.Processed++
			switch {
			case newRep.Extracted() > c.Extracted:
				rep.Improved++
			case newRep.Extracted() < c.Extracted:
				rep.Regressed++
			}
			fmt.Fprintf(os.Stderr, "re-extracted %s: %d -> %d KPIs (run %d -> %d)\n",
				c.DocumentID, c.Extracted, newRep.Extracted(), c.ID, newRep.RunID)
		}
	}

	after, err := st.ListRuns(ctx, sweepLimit)
	if err != nil {
		panic(err)
	}
	rep.After = coverageFor(after, docs)

	rep.StatsAfter, err = st.Stats(ctx)
	if err != nil {
		panic(err)
	}

	out, _ := json.MarshalIndent(rep, "", "  ")
	fmt.Println(string(out))
	if *reportPath != "" {
		if err := os.WriteFile(*reportPath, out, 0o644); err != nil {
			panic(err)
		}
	}
}
