package fim

import (
	"errors"
	"sync/atomic"
)

// ErrAborted is surfaced when the cooperative abort flag was set
// while a mining run was in progress.
var ErrAborted = errors.New("mining aborted")

// SetFunc receives a reported item set: the internal item ids of the
// set and the info vector selected by the report format string.
type SetFunc func(items []int, supp int, info []float64)

// RuleFunc receives a reported association rule: the head item, the
// body items and the info vector.
type RuleFunc func(head int, body []int, supp int, info []float64)

// ReportConfig carries the reporter parameters; it is built from the
// decoded Options by the engines.
type ReportConfig struct {
	Target  Target
	ZMin    int
	ZMax    int // effective bound, already resolved against item count
	SMin    int
	Border  []int // index z holds the minimum support for size z; < 0 off
	Eval    Measure
	Agg     Agg
	Thresh  float64
	Prune   int // evaluation filtering starts at this size (0 = always)
	MinConf float64 // fraction, not percent
	Format  string
	OnSet   SetFunc
	OnRule  RuleFunc
	Spec    *PatSpec     // collect a pattern spectrum instead of emitting
	Abort   *atomic.Bool // cooperative abort flag, may be nil
}

// Reporter accumulates the current item set prefix during a mining
// run, applies the size/support/border filters, maintains the
// repository of enumerated sets for the closed/maximal/generator
// targets and for rule body lookups, and finally emits the surviving
// sets or rules through the configured callbacks. Engines drive it
// with the stack discipline Add / Report / Remove and must call
// Finish exactly once after the traversal.
type Reporter struct {
	cfg  ReportConfig
	base *ItemBase
	wgt  int // total database weight

	items []int
	supps []int // supps[k] = support of the first k prefix items

	tree    *setTree
	order   []repEntry // sets in first-report order (deferred targets)
	scratch []int
	cnt     int64
	checks  int
}

type repEntry struct {
	items []int
	supp  int
}

// NewReporter creates a reporter over the (already recoded) item base
// of the mined bag. wgt is the total transaction weight.
func NewReporter(base *ItemBase, wgt int, cfg ReportConfig) *Reporter {
	r := &Reporter{cfg: cfg, base: base, wgt: wgt, supps: []int{wgt}}
	if r.deferred() {
		r.tree = newSetTree()
	}
	return r
}

// deferred reports whether emission happens at Finish rather than
// immediately: the closed/maximal/generator filters and rule
// derivation both need the complete repository of enumerated sets.
func (r *Reporter) deferred() bool {
	return r.cfg.Target != TargetSets
}

// Cnt returns the number of sets or rules emitted so far.
func (r *Reporter) Cnt() int64 { return r.cnt }

// Depth returns the current prefix length.
func (r *Reporter) Depth() int { return len(r.items) }

// Supp returns the support of the current prefix.
func (r *Reporter) Supp() int { return r.supps[len(r.items)] }

// Add pushes an item onto the prefix and records the support of the
// extended set.
func (r *Reporter) Add(item, supp int) {
	r.items = append(r.items, item)
	r.supps = append(r.supps, supp)
}

// Remove pops the most recently added item.
func (r *Reporter) Remove() {
	r.items = r.items[:len(r.items)-1]
	r.supps = r.supps[:len(r.supps)-1]
}

// aborted checks the cooperative abort flag.
func (r *Reporter) aborted() bool {
	return r.cfg.Abort != nil && r.cfg.Abort.Load()
}

// Report is called by the engine whenever the current prefix is a
// frequent candidate. For the plain set target the filters run and
// the set is emitted immediately; for the other targets the set is
// recorded in the repository and judged at Finish.
func (r *Reporter) Report() error {
	r.checks++
	if r.aborted() {
		return ErrAborted
	}
	z := len(r.items)
	if z == 0 {
		return nil
	}
	supp := r.supps[z]
	if supp < r.cfg.SMin {
		return nil
	}
	if r.deferred() {
		// defer: record every enumerated frequent set; the
		// closed/maximal/generator filters and rule derivation need
		// supersets and subsets that may only be found later
		if r.tree.Insert(sortedCopy(r.items), supp) {
			r.order = append(r.order, repEntry{items: sortedCopy(r.items), supp: supp})
		}
		return nil
	}
	if !r.sizeOK(z) || !r.borderOK(z, supp) {
		return nil
	}
	return r.accept(sortedCopy(r.items), supp)
}

func sortedCopy(items []int) []int {
	out := make([]int, len(items))
	copy(out, items)
	// engines push items in traversal order; canonical form is sorted
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (r *Reporter) sizeOK(z int) bool {
	if z < r.cfg.ZMin {
		return false
	}
	return r.cfg.ZMax < 0 || z <= r.cfg.ZMax
}

func (r *Reporter) borderOK(z, supp int) bool {
	b := r.cfg.Border
	if z < len(b) && b[z] >= 0 && supp < b[z] {
		return false
	}
	return true
}

// evalSet computes the evaluation measure of a set and reports
// whether the set passes the threshold filter. Rule measures are
// evaluated per head item and aggregated.
func (r *Reporter) evalSet(items []int, supp int) (float64, bool) {
	m := r.cfg.Eval
	if m == EvalNone {
		return 0, true
	}
	if r.cfg.Prune > 0 && len(items) < r.cfg.Prune {
		return 0, true
	}
	var val float64
	switch {
	case m == EvalLdRatio:
		freqs := make([]int, len(items))
		for i, it := range items {
			freqs[i] = r.base.Freq(it)
		}
		val = SetLdRatio(supp, freqs, r.wgt)
	case m == EvalSupp:
		val = float64(supp) / float64(r.wgt)
	case len(items) < 2:
		return 0, true // rule measures need a body/head split
	default:
		val = r.aggHeads(items, supp)
	}
	return val, r.passes(val)
}

func (r *Reporter) passes(val float64) bool {
	if r.cfg.Eval.IsPVal() {
		return val <= r.cfg.Thresh
	}
	return val >= r.cfg.Thresh
}

// aggHeads evaluates the rule measure for every possible head item of
// the set and aggregates per the configured mode.
func (r *Reporter) aggHeads(items []int, supp int) float64 {
	var agg float64
	n := 0
	for _, h := range items {
		body := r.bodySupp(items, h)
		if body < 0 {
			continue
		}
		v := RuleEval(r.cfg.Eval, supp, body, r.base.Freq(h), r.wgt)
		switch {
		case n == 0:
			agg = v
		case r.cfg.Agg == AggMin && v < agg:
			agg = v
		case r.cfg.Agg == AggMax && v > agg:
			agg = v
		case r.cfg.Agg == AggAvg:
			agg += v
		}
		n++
		if r.cfg.Agg == AggNone {
			break // no aggregation: first admissible head decides
		}
	}
	if n > 1 && r.cfg.Agg == AggAvg {
		agg /= float64(n)
	}
	return agg
}

// bodySupp returns the support of items without the head item, -1 if
// that set was never enumerated (cannot happen for frequent sets when
// the repository is active; for immediate emission the prefix stack
// provides the body when the head is the last pushed item).
func (r *Reporter) bodySupp(items []int, head int) int {
	r.scratch = r.scratch[:0]
	for _, it := range items {
		if it != head {
			r.scratch = append(r.scratch, it)
		}
	}
	if len(r.scratch) == 0 {
		return r.wgt
	}
	if r.tree != nil {
		return r.tree.Supp(r.scratch)
	}
	// immediate mode: the direct prefix is the only available body
	if head == r.items[len(r.items)-1] {
		return r.supps[len(r.items)-1]
	}
	return -1
}

// accept runs the evaluation filter and hands the set to the
// spectrum or the emission callback.
func (r *Reporter) accept(items []int, supp int) error {
	val, ok := r.evalSet(items, supp)
	if !ok {
		return nil
	}
	r.cnt++
	if r.cfg.Spec != nil {
		r.cfg.Spec.Add(len(items), supp)
	} else if r.cfg.OnSet != nil {
		r.cfg.OnSet(items, supp, r.setInfo(supp, val))
	}
	if r.checks >= 16 {
		r.checks = 0
		if r.aborted() {
			return ErrAborted
		}
	}
	return nil
}

// setInfo builds the info vector for an item set according to the
// report format string.
func (r *Reporter) setInfo(supp int, val float64) []float64 {
	info := make([]float64, 0, len(r.cfg.Format))
	for _, c := range r.cfg.Format {
		switch c {
		case 'a':
			info = append(info, float64(supp))
		case 's':
			info = append(info, float64(supp)/float64(r.wgt))
		case 'S':
			info = append(info, float64(supp)/float64(r.wgt)*100)
		case 'p', 'e':
			info = append(info, val)
		case 'P', 'E':
			info = append(info, val*100)
		case 'Q':
			info = append(info, float64(r.wgt))
		}
	}
	return info
}

// ruleInfo builds the info vector for a rule.
func (r *Reporter) ruleInfo(supp, body, head int, val float64) []float64 {
	n := float64(r.wgt)
	info := make([]float64, 0, len(r.cfg.Format))
	for _, c := range r.cfg.Format {
		switch c {
		case 'a':
			info = append(info, float64(supp))
		case 'b':
			info = append(info, float64(body))
		case 'h':
			info = append(info, float64(head))
		case 's':
			info = append(info, float64(supp)/n)
		case 'S':
			info = append(info, float64(supp)/n*100)
		case 'x':
			info = append(info, float64(body)/n)
		case 'X':
			info = append(info, float64(body)/n*100)
		case 'y':
			info = append(info, float64(head)/n)
		case 'Y':
			info = append(info, float64(head)/n*100)
		case 'c':
			info = append(info, float64(supp)/float64(body))
		case 'C':
			info = append(info, float64(supp)/float64(body)*100)
		case 'l':
			info = append(info, RuleEval(EvalLift, supp, body, head, r.wgt))
		case 'L':
			info = append(info, RuleEval(EvalLift, supp, body, head, r.wgt)*100)
		case 'e':
			info = append(info, val)
		case 'E':
			info = append(info, val*100)
		case 'Q':
			info = append(info, n)
		}
	}
	return info
}

// Finish completes the run: for the deferred targets it applies the
// closed/maximal/generator filter (or derives rules) over the
// repository, in the deterministic order the sets were first
// reported, and emits the survivors.
func (r *Reporter) Finish() error {
	if !r.deferred() {
		return nil
	}
	for i := range r.order {
		if r.aborted() {
			return ErrAborted
		}
		e := &r.order[i]
		z := len(e.items)
		switch r.cfg.Target {
		case TargetClosed:
			if r.tree.HasSuperset(e.items, e.supp) {
				continue
			}
		case TargetMaximal:
			if r.tree.HasSuperset(e.items, -1) {
				continue
			}
		case TargetGeneras:
			// the empty set is a subset of everything and has the
			// total weight as its support
			if e.supp == r.wgt || r.tree.HasSubset(e.items, e.supp) {
				continue
			}
		case TargetRules:
			if err := r.deriveRules(e); err != nil {
				return err
			}
			continue
		}
		if !r.sizeOK(z) || !r.borderOK(z, e.supp) {
			continue
		}
		if err := r.accept(e.items, e.supp); err != nil {
			return err
		}
	}
	return nil
}

// deriveRules emits every admissible rule body -> head from a
// frequent set: the head item must allow the head appearance, all
// body items the body appearance, and the rule must meet the minimum
// confidence and the evaluation threshold.
func (r *Reporter) deriveRules(e *repEntry) error {
	z := len(e.items)
	if z < 2 || !r.sizeOK(z) || !r.borderOK(z, e.supp) {
		return nil
	}
	for _, h := range e.items {
		if r.base.App(h)&AppHead == 0 {
			continue
		}
		body := make([]int, 0, z-1)
		ok := true
		for _, it := range e.items {
			if it == h {
				continue
			}
			if r.base.App(it)&AppBody == 0 {
				ok = false
				break
			}
			body = append(body, it)
		}
		if !ok {
			continue
		}
		bsupp := r.tree.Supp(body)
		if bsupp <= 0 {
			continue
		}
		conf := float64(e.supp) / float64(bsupp)
		if conf < r.cfg.MinConf-1e-12 {
			continue
		}
		hsupp := r.base.Freq(h)
		var val float64
		if r.cfg.Eval != EvalNone && (r.cfg.Prune <= 0 || z >= r.cfg.Prune) {
			val = RuleEval(r.cfg.Eval, e.supp, bsupp, hsupp, r.wgt)
			if !r.passes(val) {
				continue
			}
		}
		r.cnt++
		if r.cfg.Spec != nil {
			r.cfg.Spec.Add(z, e.supp)
		} else if r.cfg.OnRule != nil {
			r.cfg.OnRule(h, body, e.supp, r.ruleInfo(e.supp, bsupp, hsupp, val))
		}
		if r.aborted() {
			return ErrAborted
		}
	}
	return nil
}
