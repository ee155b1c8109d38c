package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/extract"
	"github.com/verdexhq/verdex/internal/merge"
	"github.com/verdexhq/verdex/internal/normalize"
)

// ModelConfidenceCap bounds model-sourced confidence strictly below the
// weighted score of any deterministic strategy that found a value.
const ModelConfidenceCap = 0.60

// DefaultAskTimeout bounds one model question.
const DefaultAskTimeout = 30 * time.Second

// Asker answers one KPI question against one document text.
type Asker interface {
	AskKPI(ctx context.Context, k catalog.KPI, text string) (Answer, error)
	Name() string
}

// Fallback fills KPIs the deterministic strategies missed. One attempt per
// KPI per document; any failure leaves the KPI missing.
type Fallback struct {
	asker   Asker
	cat     *catalog.Catalog
	timeout time.Duration
}

// NewFallback wires an asker to a catalog. A zero timeout means
// DefaultAskTimeout.
func NewFallback(asker Asker, cat *catalog.Catalog, timeout time.Duration) *Fallback {
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}
	return &Fallback{asker: asker, cat: cat, timeout: timeout}
}

// Fill asks the model about each missing result and returns the updated
// slice. Results that already carry a value pass through untouched.
func (f *Fallback) Fill(ctx context.Context, doc *document.Document, results []merge.Result) []merge.Result {
	text := doc.FullText()
	if strings.TrimSpace(text) == "" {
		return results
	}

	out := make([]merge.Result, len(results))
	copy(out, results)
	for i, r := range out {
		if ctx.Err() != nil {
			break
		}
		if !r.Missing() {
			continue
		}
		k, ok := f.cat.ByID(r.KPIID)
		if !ok {
			continue
		}
		if filled, ok := f.fillOne(ctx, k, text); ok {
			out[i] = filled
		}
	}
	return out
}

func (f *Fallback) fillOne(ctx context.Context, k catalog.KPI, text string) (merge.Result, bool) {
	askCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	ans, err := f.asker.AskKPI(askCtx, k, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[fallback] %s via %s: %v\n", k.ID, f.asker.Name(), err)
		return merge.Result{}, false
	}
	if ans.NoAnswer {
		return merge.Result{}, false
	}

	// The model reports the unit as written in the document; conversion to
	// the canonical unit stays on our side.
	factor, ok := normalize.ResolveUnit(ans.Unit, k)
	if !ok {
		return merge.Result{}, false
	}

	v := ans.Value * factor
	conf := ans.Confidence
	if conf > ModelConfidenceCap {
		conf = ModelConfidenceCap
	}
	if conf < 0 {
		conf = 0
	}
	return merge.Result{
		KPIID:      k.ID,
		Value:      &v,
		Unit:       k.CanonicalUnit,
		Confidence: conf,
		Source:     extract.StrategyModel,
	}, true
}
