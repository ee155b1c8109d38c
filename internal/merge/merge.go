// Package merge scores extraction candidates and selects one result per
// catalog KPI. Scoring is pure: the same candidates and config always
// produce the same results, regardless of candidate arrival order.
package merge

import (
	"math"
	"sort"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/extract"
)

// Strategy weights order the strategies by structural trust. A value read
// out of a declared table column outranks one matched in running text, even
// though the regex baseline confidence is higher.
const (
	WTableGrid  = 1.00
	WRegex      = 0.90
	WTablePlain = 0.80
	WNLPWindow  = 0.70
)

// Agreement parameters. Each additional distinct strategy that lands on the
// same normalized value raises the score by AgreementStep, up to the cap.
const (
	AgreementStep     = 0.10
	AgreementBonusCap = 1.25
	AgreementRelTol   = 1e-3
)

// ScoreEpsilon is the spread under which two scores count as tied and the
// strategy priority order decides.
const ScoreEpsilon = 1e-12

// Config holds the scoring parameters of the merge engine.
type Config struct {
	GridWeight   float64
	RegexWeight  float64
	PlainWeight  float64
	WindowWeight float64

	AgreementStep     float64
	AgreementBonusCap float64
	AgreementRelTol   float64
}

// DefaultConfig returns the production scoring parameters.
func DefaultConfig() Config {
	return Config{
		GridWeight:        WTableGrid,
		RegexWeight:       WRegex,
		PlainWeight:       WTablePlain,
		WindowWeight:      WNLPWindow,
		AgreementStep:     AgreementStep,
		AgreementBonusCap: AgreementBonusCap,
		AgreementRelTol:   AgreementRelTol,
	}
}

// Result is the final per-KPI outcome of one document pass. Exactly one is
// produced per catalog KPI, in catalog order. A nil Value means no strategy
// found the KPI.
type Result struct {
	KPIID      string   `json:"kpi"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit,omitempty"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
	Snippet    string   `json:"snippet,omitempty"`
}

// Missing reports whether no strategy produced a value for this KPI.
func (r Result) Missing() bool { return r.Value == nil }

// Merge selects the winning candidate per catalog KPI. Candidates carry
// values already normalized to the KPI's canonical unit; anything that
// failed normalization never reached this point.
func Merge(cands []extract.Candidate, cat *catalog.Catalog, cfg Config) []Result {
	cfg = normalizeConfig(cfg)

	byKPI := make(map[string][]extract.Candidate)
	for _, c := range cands {
		byKPI[c.KPIID] = append(byKPI[c.KPIID], c)
	}

	out := make([]Result, 0, cat.Len())
	for _, k := range cat.KPIs() {
		out = append(out, mergeKPI(k, byKPI[k.ID], cfg))
	}
	return out
}

type scoredCandidate struct {
	cand  extract.Candidate
	score float64
}

func mergeKPI(k catalog.KPI, cands []extract.Candidate, cfg Config) Result {
	// Candidate order must not leak into the outcome.
	sorted := make([]extract.Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := extract.StrategyRank(sorted[i].Strategy), extract.StrategyRank(sorted[j].Strategy)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Position < sorted[j].Position
	})

	scored := make([]scoredCandidate, 0, len(sorted))
	for _, c := range sorted {
		w := strategyWeight(c.Strategy, cfg)
		if w <= 0 {
			continue
		}
		score := w * c.Confidence * agreementBonus(c, sorted, cfg)
		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}
		scored = append(scored, scoredCandidate{cand: c, score: score})
	}
	if len(scored) == 0 {
		return Result{KPIID: k.ID, Source: extract.StrategyNone}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		delta := scored[i].score - scored[j].score
		if math.Abs(delta) <= ScoreEpsilon {
			ri, rj := extract.StrategyRank(scored[i].cand.Strategy), extract.StrategyRank(scored[j].cand.Strategy)
			if ri != rj {
				return ri < rj
			}
			return scored[i].cand.Position < scored[j].cand.Position
		}
		return delta > 0
	})

	best := scored[0]
	v := best.cand.Value
	return Result{
		KPIID:      k.ID,
		Value:      &v,
		Unit:       best.cand.Unit,
		Confidence: best.score,
		Source:     best.cand.Strategy,
		Snippet:    best.cand.Snippet,
	}
}

// agreementBonus counts the distinct other strategies whose candidates land
// on the same normalized value. Duplicates within one strategy never raise
// the bonus.
func agreementBonus(c extract.Candidate, all []extract.Candidate, cfg Config) float64 {
	agreeing := make(map[string]bool)
	for _, o := range all {
		if o.Strategy == c.Strategy {
			continue
		}
		if valuesAgree(c.Value, o.Value, cfg.AgreementRelTol) {
			agreeing[o.Strategy] = true
		}
	}
	bonus := 1 + cfg.AgreementStep*float64(len(agreeing))
	if bonus > cfg.AgreementBonusCap {
		bonus = cfg.AgreementBonusCap
	}
	return bonus
}

func valuesAgree(a, b, relTol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= relTol*scale
}

func strategyWeight(strategy string, cfg Config) float64 {
	switch strategy {
	case extract.StrategyTableGrid:
		return cfg.GridWeight
	case extract.StrategyRegex:
		return cfg.RegexWeight
	case extract.StrategyTablePlain:
		return cfg.PlainWeight
	case extract.StrategyNLPWindow:
		return cfg.WindowWeight
	}
	return 0
}

func normalizeConfig(cfg Config) Config {
	if cfg.GridWeight == 0 {
		cfg.GridWeight = WTableGrid
	}
	if cfg.RegexWeight == 0 {
		cfg.RegexWeight = WRegex
	}
	if cfg.PlainWeight == 0 {
		cfg.PlainWeight = WTablePlain
	}
	if cfg.WindowWeight == 0 {
		cfg.WindowWeight = WNLPWindow
	}
	if cfg.AgreementStep == 0 {
		cfg.AgreementStep = AgreementStep
	}
	if cfg.AgreementBonusCap == 0 {
		cfg.AgreementBonusCap = AgreementBonusCap
	}
	if cfg.AgreementRelTol == 0 {
		cfg.AgreementRelTol = AgreementRelTol
	}
	return cfg
}
