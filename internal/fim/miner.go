package fim

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Miner is the contract shared by all mining engines. The lifecycle
// is: create (engine constructor), Data (attach and preprocess the
// transaction bag), Report or Spectrum (configure the output), Mine.
// An engine borrows the bag; it never owns or frees it.
type Miner interface {
	// Data attaches the transaction bag and runs the engine's
	// preprocessing (recode, filter, pack, sort, reduce). The bag is
	// modified in place; callers that need the original must clone.
	Data(bag *Bag) error
	// Report registers the emission callbacks for sets and rules.
	Report(onSet SetFunc, onRule RuleFunc)
	// Spectrum redirects accepted patterns into a pattern spectrum
	// instead of the emission callbacks.
	Spectrum(psp *PatSpec, abort *atomic.Bool)
	// Abort installs the cooperative abort flag.
	Abort(flag *atomic.Bool)
	// Mine runs the engine. With no frequent items the run succeeds
	// and reports nothing.
	Mine() error
	// Cnt returns the number of reported sets or rules.
	Cnt() int64
}

// NewMiner constructs the engine with the given name. Carpenter and
// ista only support the closed and maximal targets.
func NewMiner(name string, opts Options) (Miner, error) {
	switch strings.ToLower(name) {
	case "apriori":
		return NewApriori(opts), nil
	case "eclat":
		return NewEclat(opts), nil
	case "fpgrowth", "fpg":
		return NewFPGrowth(opts), nil
	case "sam":
		return NewSaM(opts), nil
	case "relim":
		return NewRElim(opts), nil
	case "carpenter":
		if opts.Target != TargetClosed && opts.Target != TargetMaximal {
			return nil, fmt.Errorf("carpenter supports only closed and maximal targets")
		}
		return NewCarpenter(opts), nil
	case "ista":
		if opts.Target != TargetClosed && opts.Target != TargetMaximal {
			return nil, fmt.Errorf("ista supports only closed and maximal targets")
		}
		return NewIsTa(opts), nil
	}
	return nil, fmt.Errorf("unknown mining engine %q", name)
}

// minerBase carries the state common to every engine.
type minerBase struct {
	opts   Options
	bag    *Bag
	smin   int
	wgt    int // total transaction weight before short transactions are filtered
	onSet  SetFunc
	onRule RuleFunc
	psp    *PatSpec
	abort  *atomic.Bool
	rep    *Reporter
}

func (m *minerBase) Report(onSet SetFunc, onRule RuleFunc) {
	m.onSet, m.onRule = onSet, onRule
}

func (m *minerBase) Spectrum(psp *PatSpec, abort *atomic.Bool) {
	m.psp = psp
	if abort != nil {
		m.abort = abort
	}
}

func (m *minerBase) Abort(flag *atomic.Bool) { m.abort = flag }

func (m *minerBase) Cnt() int64 {
	if m.rep == nil {
		return 0
	}
	return m.rep.Cnt()
}

// prepare runs the common preprocessing chain. dir is the recode
// direction the engine prefers (+1 ascending frequency, -1
// descending); the 'i' mode flag forces the original item order.
func (m *minerBase) prepare(bag *Bag, dir int) error {
	if err := m.opts.Validate(); err != nil {
		return err
	}
	m.bag = bag
	m.wgt = bag.Wgt()
	m.smin = m.opts.AbsSupp(m.wgt)
	if m.opts.Mode.NoReorder {
		dir = 0
	}
	bag.Recode(m.smin, AppBody, -1, dir)
	if !m.opts.Mode.OrigSupp {
		zmin := m.opts.ZMin
		if m.opts.Target == TargetRules {
			zmin-- // rule bodies are one item smaller than the rule
		}
		if zmin < 1 {
			zmin = 1
		}
		bag.Filter(zmin)
	}
	if !m.opts.Mode.NoPack {
		bag.Pack(packMax)
	}
	bag.Sort()
	bag.Reduce()
	return nil
}

// newReporter builds the reporter for a mining run.
func (m *minerBase) newReporter() *Reporter {
	cfg := ReportConfig{
		Target:  m.opts.Target,
		ZMin:    m.opts.ZMin,
		ZMax:    m.opts.zmaxOr(m.bag.ItemCnt()),
		SMin:    m.smin,
		Border:  m.opts.Border,
		Eval:    m.opts.Eval,
		Agg:     m.opts.Agg,
		Thresh:  m.opts.Thresh,
		Prune:   m.opts.Prune,
		MinConf: m.opts.Conf / 100,
		Format:  m.opts.Report,
		OnSet:   m.onSet,
		OnRule:  m.onRule,
		Spec:    m.psp,
		Abort:   m.abort,
	}
	m.rep = NewReporter(m.bag.Base(), m.wgt, cfg)
	return m.rep
}

// zmaxDepth returns the engine-side enumeration depth bound.
func (m *minerBase) zmaxDepth() int {
	return m.opts.zmaxOr(m.bag.ItemCnt())
}

// reportWithPex reports the current prefix and, unless disabled, all
// of its extensions by subsets of the collected perfect extension
// items. A perfect extension occurs in every transaction that
// contains the prefix, so every such superset has the same support.
func reportWithPex(rep *Reporter, pex []int, zmax int) error {
	if err := rep.Report(); err != nil {
		return err
	}
	return expandPex(rep, pex, 0, zmax)
}

func expandPex(rep *Reporter, pex []int, k, zmax int) error {
	if rep.Depth() >= zmax {
		return nil
	}
	for i := k; i < len(pex); i++ {
		rep.Add(pex[i], rep.Supp())
		if err := rep.Report(); err != nil {
			return err
		}
		if err := expandPex(rep, pex, i+1, zmax); err != nil {
			return err
		}
		rep.Remove()
	}
	return nil
}
