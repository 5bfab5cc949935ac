package shadow

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rawblock/itemset-engine/internal/fim"
	"github.com/rawblock/itemset-engine/internal/metrics"
)

// Runner executes a shadow engine next to the production engine on
// the same transaction bag and diffs the mined relations. All five
// engines must produce the identical (itemset, support) relation;
// running a second engine in shadow mode turns that invariant into a
// production monitor for new engine variants.
type Runner struct {
	ProdEngine   string
	ShadowEngine string
}

// Result captures the diff between the production and shadow runs.
type Result struct {
	ProdEngine    string  `json:"prodEngine"`
	ShadowEngine  string  `json:"shadowEngine"`
	ProdPatterns  int     `json:"prodPatterns"`
	ShadowPatterns int    `json:"shadowPatterns"`
	Jaccard       float64 `json:"jaccard"`
	SupportAgree  float64 `json:"supportAgree"`
	Diverged      bool    `json:"diverged"`
}

// NewRunner creates a runner comparing the two named engines.
func NewRunner(prod, shadowEngine string) *Runner {
	return &Runner{ProdEngine: prod, ShadowEngine: shadowEngine}
}

// Compare mines the bag with both engines and reports the overlap.
// The bag is cloned for each run because engines preprocess in place.
func (r *Runner) Compare(bag *fim.Bag, opts fim.Options) (*Result, error) {
	prod, err := mineKeyed(r.ProdEngine, bag.Clone(), opts)
	if err != nil {
		return nil, fmt.Errorf("production engine %s: %v", r.ProdEngine, err)
	}
	shad, err := mineKeyed(r.ShadowEngine, bag.Clone(), opts)
	if err != nil {
		return nil, fmt.Errorf("shadow engine %s: %v", r.ShadowEngine, err)
	}
	res := &Result{
		ProdEngine:     r.ProdEngine,
		ShadowEngine:   r.ShadowEngine,
		ProdPatterns:   len(prod),
		ShadowPatterns: len(shad),
		Jaccard:        metrics.PatternJaccard(prod, shad),
		SupportAgree:   metrics.SupportAgreement(prod, shad),
	}
	res.Diverged = res.Jaccard < 1 || res.SupportAgree < 1
	if res.Diverged {
		log.Printf("[Shadow] DIVERGENCE %s vs %s: jaccard=%.4f supportAgree=%.4f (%d vs %d patterns)",
			r.ProdEngine, r.ShadowEngine, res.Jaccard, res.SupportAgree,
			res.ProdPatterns, res.ShadowPatterns)
	}
	return res, nil
}

// mineKeyed mines one clone and returns the relation keyed by the
// canonical external item list.
func mineKeyed(engine string, bag *fim.Bag, opts fim.Options) (map[string]int, error) {
	m, err := fim.NewMiner(engine, opts)
	if err != nil {
		return nil, err
	}
	if err := m.Data(bag); err != nil {
		return nil, err
	}
	base := bag.Base()
	out := make(map[string]int)
	m.Report(func(items []int, supp int, info []float64) {
		names := make([]string, len(items))
		for i, id := range items {
			names[i] = base.Name(id)
		}
		sort.Strings(names)
		out[strings.Join(names, "\x1f")] = supp
	}, nil)
	if err := m.Mine(); err != nil {
		return nil, err
	}
	return out, nil
}
