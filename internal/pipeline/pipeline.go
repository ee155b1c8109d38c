// Package pipeline orchestrates one full extraction run per document:
// fan out the deterministic strategies, merge their candidates per KPI,
// fill the gaps through an optional model fallback, and persist the run
// when a store is attached.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/extract"
	"github.com/verdexhq/verdex/internal/merge"
	"github.com/verdexhq/verdex/internal/store"
)

// maxBatchConcurrency limits documents processed in parallel by RunBatch.
const maxBatchConcurrency = 4

// Fallback fills missing results from a secondary source after the
// deterministic strategies have had their turn.
type Fallback interface {
	Fill(ctx context.Context, doc *document.Document, results []merge.Result) []merge.Result
}

// Report is the outcome of one extraction run: one result per catalog
// KPI in catalog order, plus the raw candidate trail behind them.
type Report struct {
	DocumentID string              `json:"document"`
	Path       string              `json:"path,omitempty"`
	Format     string              `json:"format,omitempty"`
	Results    []merge.Result      `json:"results"`
	Candidates []extract.Candidate `json:"-"`
	RunID      int64               `json:"run_id,omitempty"`
}

// Extracted counts results that carry a value.
func (r *Report) Extracted() int {
	n := 0
	for _, res := range r.Results {
		if !res.Missing() {
			n++
		}
	}
	return n
}

// Pipeline runs the deterministic strategies over documents.
type Pipeline struct {
	cat        *catalog.Catalog
	extractors []extract.Extractor
	mergeCfg   merge.Config
	fallback   Fallback
	store      store.Store
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMergeConfig overrides the default scoring weights.
func WithMergeConfig(cfg merge.Config) Option {
	return func(p *Pipeline) { p.mergeCfg = cfg }
}

// WithFallback attaches a model fallback for KPIs the deterministic
// strategies miss.
func WithFallback(f Fallback) Option {
	return func(p *Pipeline) { p.fallback = f }
}

// WithStore attaches a store; every run is then persisted with its
// candidate audit trail.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// New creates a Pipeline over the given catalog.
func New(cat *catalog.Catalog, opts ...Option) *Pipeline {
	p := &Pipeline{
		cat:        cat,
		extractors: extract.Extractors(cat),
		mergeCfg:   merge.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run extracts every catalog KPI from one document. The strategies run
// concurrently and their outputs are collected in strategy order, so
// scheduling never affects the merged result. A store failure is logged
// and the report still returned; the only error is context cancellation.
func (p *Pipeline) Run(ctx context.Context, doc *document.Document) (*Report, error) {
	outs := make([][]extract.Candidate, len(p.extractors))

	g, gCtx := errgroup.WithContext(ctx)
	for i, ex := range p.extractors {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			outs[i] = ex.Extract(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var cands []extract.Candidate
	for _, out := range outs {
		cands = append(cands, out...)
	}

	results := merge.Merge(cands, p.cat, p.mergeCfg)

	if p.fallback != nil && hasMissing(results) {
		results = p.fallback.Fill(ctx, doc, results)
	}

	rep := &Report{
		DocumentID: doc.ID,
		Path:       doc.Path,
		Format:     doc.Format,
		Results:    results,
		Candidates: cands,
	}

	if p.store != nil {
		run := &store.Run{
			DocumentID: doc.ID,
			Path:       doc.Path,
			Format:     doc.Format,
			Results:    results,
			Candidates: cands,
		}
		id, err := p.store.SaveRun(ctx, run)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verdex: saving run for %s: %v\n", doc.ID, err)
		} else {
			rep.RunID = id
		}
	}

	return rep, nil
}

// RunBatch extracts each document independently, a few at a time. A
// document that fails does not stop the batch; its report is skipped
// and the failure logged. Reports come back in document order.
func (p *Pipeline) RunBatch(ctx context.Context, docs []*document.Document) []*Report {
	slots := make([]*Report, len(docs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			rep, err := p.Run(gCtx, doc)
			if err != nil {
				if gCtx.Err() != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "verdex: %s: %v\n", doc.ID, err)
				return nil
			}
			slots[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "verdex: batch interrupted: %v\n", err)
	}

	reports := make([]*Report, 0, len(docs))
	for _, rep := range slots {
		if rep != nil {
			reports = append(reports, rep)
		}
	}
	return reports
}

func hasMissing(results []merge.Result) bool {
	for _, r := range results {
		if r.Missing() {
			return true
		}
	}
	return false
}
