package api

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rawblock/itemset-engine/internal/fim"
	"github.com/rawblock/itemset-engine/pkg/models"
)

// The converters in this file are the only place where the JSON-level
// representation (items as numbers or strings, option strings, NA
// borders) meets the typed engine interfaces. Everything behind this
// boundary works on decoded structs only.

// itemAdder abstracts over the two item base modes while a request
// is converted.
type itemAdder struct {
	base  *fim.ItemBase
	strIn bool
}

func newItemAdder(first any) (*itemAdder, error) {
	switch first.(type) {
	case string:
		return &itemAdder{base: fim.NewStrBase(), strIn: true}, nil
	case float64, int, int64:
		return &itemAdder{base: fim.NewIntBase()}, nil
	}
	return nil, fmt.Errorf("items must be uniformly integers or strings, got %T", first)
}

func (a *itemAdder) coerceInt(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("item %v is not an integer", x)
		}
		return int64(x), nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	}
	return 0, fmt.Errorf("inconsistent item type %T", v)
}

func (a *itemAdder) add2TA(v any) error {
	if a.strIn {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("inconsistent item type %T in a string transaction list", v)
		}
		a.base.Add2TAStr(s)
		return nil
	}
	n, err := a.coerceInt(v)
	if err != nil {
		return err
	}
	a.base.Add2TAInt(n)
	return nil
}

func (a *itemAdder) addObj(v any) (int, error) {
	if a.strIn {
		s, ok := v.(string)
		if !ok {
			return -1, fmt.Errorf("inconsistent appearance item type %T", v)
		}
		if s == "" {
			return -1, nil
		}
		return a.base.AddStr(s), nil
	}
	n, err := a.coerceInt(v)
	if err != nil {
		return -1, err
	}
	return a.base.AddInt(n), nil
}

func (a *itemAdder) name(id int) any {
	if a.strIn {
		return a.base.StrObj(id)
	}
	return a.base.IntObj(id)
}

// buildBag converts the transaction lists into an engine bag,
// applying weights and appearance indicators.
func buildBag(tracts [][]any, wgts []int, appear *models.AppearanceSpec) (*fim.Bag, *itemAdder, error) {
	if len(tracts) == 0 {
		return nil, nil, fmt.Errorf("empty transaction list")
	}
	var first any
	for _, tr := range tracts {
		if len(tr) > 0 {
			first = tr[0]
			break
		}
	}
	if first == nil {
		return nil, nil, fmt.Errorf("all transactions are empty")
	}
	if wgts != nil && len(wgts) != len(tracts) {
		return nil, nil, fmt.Errorf("weights length %d does not match %d transactions", len(wgts), len(tracts))
	}
	adder, err := newItemAdder(first)
	if err != nil {
		return nil, nil, err
	}
	if appear != nil {
		if len(appear.Items) != len(appear.Indicators) {
			return nil, nil, fmt.Errorf("appearance items and indicators differ in length")
		}
		for i, obj := range appear.Items {
			id, err := adder.addObj(obj)
			if err != nil {
				return nil, nil, err
			}
			app, err := parseAppearance(appear.Indicators[i])
			if err != nil {
				return nil, nil, err
			}
			if id >= 0 {
				adder.base.SetApp(id, app)
			}
		}
	}
	bag := fim.NewBag(adder.base)
	for i, tr := range tracts {
		adder.base.Clear()
		for _, v := range tr {
			if err := adder.add2TA(v); err != nil {
				return nil, nil, err
			}
		}
		w := 1
		if wgts != nil {
			w = wgts[i]
			if w <= 0 {
				return nil, nil, fmt.Errorf("transaction weight %d must be positive", w)
			}
		}
		bag.Add(adder.base.FinTA(w))
	}
	return bag, adder, nil
}

func parseAppearance(v any) (int, error) {
	switch x := v.(type) {
	case string:
		return fim.ParseApp(x)
	case float64:
		app := 0
		n := int(x)
		if n&1 != 0 {
			app |= fim.AppBody
		}
		if n&2 != 0 {
			app |= fim.AppHead
		}
		return app, nil
	}
	return 0, fmt.Errorf("invalid appearance indicator %v", v)
}

// decodeOptions translates the request options into the typed block,
// applying the engine defaults for omitted fields.
func decodeOptions(req *models.MiningRequest) (fim.Options, string, error) {
	opts := fim.DefaultOptions()
	engine := req.Engine
	if engine == "" {
		engine = "fpgrowth"
	}
	targets := "ascmgr"
	target := req.Target
	if engine == "carpenter" || engine == "ista" {
		targets = "cm"
		if target == "" {
			target = "closed"
		}
	}
	var err error
	if opts.Target, err = fim.ParseTarget(target, targets); err != nil {
		return opts, engine, err
	}
	if opts.Target == fim.TargetRules {
		opts.ZMin = 2
		opts.Report = "aC"
	}
	if req.Supp != nil {
		opts.Supp = *req.Supp
	}
	if req.Conf != nil {
		opts.Conf = *req.Conf
	}
	if req.ZMin != nil {
		opts.ZMin = *req.ZMin
	}
	if req.ZMax != nil {
		opts.ZMax = *req.ZMax
	}
	if opts.Eval, err = fim.ParseEval(req.Eval); err != nil {
		return opts, engine, err
	}
	if opts.Agg, err = fim.ParseAgg(req.Agg); err != nil {
		return opts, engine, err
	}
	if req.Thresh != nil {
		opts.Thresh = *req.Thresh
	}
	if req.Prune != nil {
		opts.Prune = *req.Prune
	}
	if opts.Algo, err = fim.ParseAlgo(engine, req.Algo); err != nil {
		return opts, engine, err
	}
	opts.Mode = fim.ParseMode(req.Mode)
	opts.Border = decodeBorder(req.Border)
	if req.Report != "" {
		opts.Report = req.Report
	}
	if err := opts.Validate(); err != nil {
		return opts, engine, err
	}
	return opts, engine, nil
}

// decodeBorder converts the numeric border array: NaN and negative
// entries disable the corresponding size.
func decodeBorder(border []float64) []int {
	if len(border) == 0 {
		return nil
	}
	out := make([]int, len(border))
	for i, v := range border {
		if math.IsNaN(v) || v < 0 {
			out[i] = -1
		} else {
			out[i] = int(v)
		}
	}
	return out
}

// runMining executes one mining request synchronously and collects
// the result records. The abort flag (may be nil) is handed to the
// engine for cooperative cancellation.
func runMining(req *models.MiningRequest, abort *atomic.Bool) (*models.MiningResult, *runStats, error) {
	opts, engine, err := decodeOptions(req)
	if err != nil {
		return nil, nil, err
	}
	bag, adder, err := buildBag(req.Tracts, req.Weights, req.Appear)
	if err != nil {
		return nil, nil, err
	}
	stats := &runStats{
		Engine:      engine,
		Target:      req.Target,
		Supp:        opts.Supp,
		TractCount:  bag.Cnt(),
		TotalWeight: bag.Wgt(),
	}
	m, err := fim.NewMiner(engine, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Data(bag); err != nil {
		return nil, nil, err
	}
	if abort != nil {
		m.Abort(abort)
	}
	res := &models.MiningResult{}
	m.Report(
		func(items []int, supp int, info []float64) {
			rec := models.ItemsetRecord{Items: make([]any, len(items)), Info: info}
			for i, id := range items {
				rec.Items[i] = adder.name(id)
			}
			res.Sets = append(res.Sets, rec)
		},
		func(head int, body []int, supp int, info []float64) {
			rec := models.RuleRecord{
				Consequent: adder.name(head),
				Antecedent: make([]any, len(body)),
				Info:       info,
			}
			for i, id := range body {
				rec.Antecedent[i] = adder.name(id)
			}
			res.Rules = append(res.Rules, rec)
		},
	)
	if err := m.Mine(); err != nil {
		return nil, nil, err
	}
	res.Count = len(res.Sets) + len(res.Rules)
	stats.PatternCount = m.Cnt()
	return res, stats, nil
}

// runStats feeds the persisted bookkeeping record.
type runStats struct {
	Engine       string
	Target       string
	Supp         float64
	TractCount   int
	TotalWeight  int
	PatternCount int64
}
