package fim

import (
	"math/bits"
	"sort"

	"github.com/rawblock/itemset-engine/internal/cuda"
)

// Eclat mines frequent item sets depth first on vertical
// representations of the database. The representation is selected by
// the algorithm variant:
//
//	'i' lists   sorted transaction-id list per item
//	'b' bits    bitmap over the transactions per item
//	't' table   dense membership matrix
//	'd' diffs   diffsets (tids of the parent missing in the child)
//	'r' ranges  run-length encoded transaction-id lists
//	'o' occdlv  occurrence deliver (single pass over the parent)
//	'e'/'s'     basic/simple, mapped to the list representation
//	'a' auto    occurrence deliver
//
// Extensions at each node are processed in order of ascending
// support, which keeps the search tree small.
type Eclat struct {
	minerBase
	wgts  []int // per-transaction weights of the reduced bag
	wsum  []int // prefix sums of wgts, for the range representation
	table [][]bool
}

// NewEclat creates an eclat miner for the configured variant.
func NewEclat(opts Options) *Eclat {
	return &Eclat{minerBase: minerBase{opts: opts}}
}

// Data attaches and preprocesses the transaction bag. Eclat recodes
// by ascending frequency so that rare items spawn small subtrees
// first.
func (e *Eclat) Data(bag *Bag) error {
	return e.prepare(bag, 1)
}

// tidset is one vertical column: the transactions containing the
// current prefix extended by item.
type tidset struct {
	item int
	supp int
	tids []int   // lists/table/occdlv
	diff []int   // diffs: tids of the parent not containing item
	bits []uint64
	rng  []tidRange
}

type tidRange struct{ lo, hi int }

// Mine runs the depth-first enumeration.
func (e *Eclat) Mine() error {
	rep := e.newReporter()
	n := e.bag.ItemCnt()
	if n == 0 || e.bag.Cnt() == 0 {
		return rep.Finish()
	}
	e.wgts = make([]int, e.bag.Cnt())
	e.wsum = make([]int, e.bag.Cnt()+1)
	for i := 0; i < e.bag.Cnt(); i++ {
		e.wgts[i] = e.bag.Tract(i).Wgt
		e.wsum[i+1] = e.wsum[i] + e.wgts[i]
	}
	cols := e.buildColumns(n)
	if e.variant() == 't' {
		e.table = make([][]bool, e.bag.Cnt())
		var buf []int
		for i := range e.table {
			e.table[i] = make([]bool, n)
			buf = e.bag.Tract(i).Expand(buf[:0])
			for _, it := range buf {
				e.table[i][it] = true
			}
		}
	}
	// keep the frequent columns, ascending support
	kept := cols[:0]
	for i := range cols {
		if cols[i].supp >= e.smin {
			kept = append(kept, cols[i])
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].supp < kept[j].supp })
	if err := e.recurse(rep, kept, nil); err != nil {
		return err
	}
	return rep.Finish()
}

func (e *Eclat) variant() byte {
	switch e.opts.Algo {
	case 'i', 'b', 't', 'd', 'r', 'o':
		return e.opts.Algo
	case 'e', 's':
		return 'i'
	}
	return 'o' // auto
}

// buildColumns constructs the initial vertical representation from
// the horizontal bag.
func (e *Eclat) buildColumns(n int) []tidset {
	cols := make([]tidset, n)
	for i := range cols {
		cols[i].item = i
	}
	var buf []int
	for ti := 0; ti < e.bag.Cnt(); ti++ {
		t := e.bag.Tract(ti)
		buf = t.Expand(buf[:0])
		for _, it := range buf {
			cols[it].tids = append(cols[it].tids, ti)
			cols[it].supp += t.Wgt
		}
	}
	switch e.variant() {
	case 'b':
		words := (e.bag.Cnt() + 63) / 64
		for i := range cols {
			cols[i].bits = make([]uint64, words)
			for _, ti := range cols[i].tids {
				cols[i].bits[ti/64] |= 1 << uint(ti%64)
			}
			cols[i].tids = nil
		}
	case 'd':
		// diffsets against the full transaction set
		all := make([]int, e.bag.Cnt())
		for i := range all {
			all[i] = i
		}
		for i := range cols {
			cols[i].diff = diffInts(all, cols[i].tids)
			cols[i].tids = nil
		}
	case 'r':
		for i := range cols {
			cols[i].rng = toRanges(cols[i].tids)
			cols[i].tids = nil
		}
	}
	return cols
}

// recurse extends the current prefix by each column in turn. pex
// holds the perfect extension items inherited from ancestors: they
// occur in every transaction of the current subtree, so every
// reported set is also emitted extended by each pex subset, at
// unchanged support.
func (e *Eclat) recurse(rep *Reporter, cols []tidset, pex []int) error {
	zmax := e.zmaxDepth()
	for i := range cols {
		c := &cols[i]
		rep.Add(c.item, c.supp)
		childPex := pex
		var exts []tidset
		if rep.Depth() < zmax {
			var raw []tidset
			if e.variant() == 'o' {
				raw = e.deliver(c, cols[i+1:])
			} else {
				raw = make([]tidset, 0, len(cols)-i-1)
				for j := i + 1; j < len(cols); j++ {
					raw = append(raw, e.intersect(c, &cols[j]))
				}
			}
			for _, x := range raw {
				if x.supp < e.smin {
					continue
				}
				if !e.opts.Mode.NoPex && x.supp == c.supp {
					// copy on first write; siblings share the parent slice
					childPex = append(append(make([]int, 0, len(childPex)+1), childPex...), x.item)
					continue
				}
				exts = append(exts, x)
			}
			sort.SliceStable(exts, func(a, b int) bool { return exts[a].supp < exts[b].supp })
		}
		if err := reportWithPex(rep, childPex, zmax); err != nil {
			return err
		}
		switch {
		case len(exts) == 1 && !e.opts.Mode.NoTail:
			// tail handling: a single remaining extension cannot
			// branch, so the chain is walked without recursing
			t := &exts[0]
			rep.Add(t.item, t.supp)
			if err := reportWithPex(rep, childPex, zmax); err != nil {
				return err
			}
			rep.Remove()
		case len(exts) > 0:
			if err := e.recurse(rep, exts, childPex); err != nil {
				return err
			}
		}
		rep.Remove()
	}
	return nil
}

// deliver builds all extension columns of a node in a single pass
// over the parent's transaction ids.
func (e *Eclat) deliver(parent *tidset, rest []tidset) []tidset {
	idx := make(map[int]int, len(rest))
	exts := make([]tidset, len(rest))
	for i := range rest {
		exts[i].item = rest[i].item
		idx[rest[i].item] = i
	}
	var buf []int
	for _, ti := range parent.tids {
		buf = e.bag.Tract(ti).Expand(buf[:0])
		for _, it := range buf {
			if p, ok := idx[it]; ok {
				exts[p].tids = append(exts[p].tids, ti)
				exts[p].supp += e.wgts[ti]
			}
		}
	}
	return exts
}

// intersect derives the column of prefix+child from the two parent
// columns, in the representation of the configured variant.
func (e *Eclat) intersect(a, b *tidset) tidset {
	out := tidset{item: b.item}
	switch e.variant() {
	case 'b':
		out.bits = make([]uint64, len(a.bits))
		if e.uniformWeights() {
			if n := cuda.PopcountAnd(a.bits, b.bits, out.bits); n >= 0 {
				out.supp = n
				return out
			}
		}
		for w := range a.bits {
			v := a.bits[w] & b.bits[w]
			out.bits[w] = v
			for ; v != 0; v &= v - 1 {
				out.supp += e.wgts[w*64+bits.TrailingZeros64(v)]
			}
		}
	case 'd':
		// d(P a b) = d(P b) \ d(P a); supp = supp(P a) - wgt(new diff)
		out.diff = diffInts(b.diff, a.diff)
		out.supp = a.supp
		for _, ti := range out.diff {
			out.supp -= e.wgts[ti]
		}
	case 'r':
		out.rng = andRanges(a.rng, b.rng)
		for _, r := range out.rng {
			out.supp += e.wsum[r.hi+1] - e.wsum[r.lo]
		}
	case 't':
		for _, ti := range a.tids {
			if e.table[ti][b.item] {
				out.tids = append(out.tids, ti)
				out.supp += e.wgts[ti]
			}
		}
	default: // sorted list merge
		out.tids, out.supp = e.andLists(a.tids, b.tids)
	}
	return out
}

func (e *Eclat) andLists(a, b []int) ([]int, int) {
	var out []int
	supp := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			supp += e.wgts[a[i]]
			i++
			j++
		}
	}
	return out, supp
}

func (e *Eclat) uniformWeights() bool {
	for _, w := range e.wgts {
		if w != 1 {
			return false
		}
	}
	return true
}

// diffInts returns the elements of a not contained in b (both
// sorted).
func diffInts(a, b []int) []int {
	var out []int
	j := 0
	for _, v := range a {
		for j < len(b) && b[j] < v {
			j++
		}
		if j >= len(b) || b[j] != v {
			out = append(out, v)
		}
	}
	return out
}

// toRanges run-length encodes a sorted tid list.
func toRanges(tids []int) []tidRange {
	var out []tidRange
	for _, ti := range tids {
		if n := len(out); n > 0 && out[n-1].hi+1 == ti {
			out[n-1].hi = ti
		} else {
			out = append(out, tidRange{ti, ti})
		}
	}
	return out
}

// andRanges intersects two run-length encoded tid lists.
func andRanges(a, b []tidRange) []tidRange {
	var out []tidRange
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := a[i].lo
		if b[j].lo > lo {
			lo = b[j].lo
		}
		hi := a[i].hi
		if b[j].hi < hi {
			hi = b[j].hi
		}
		if lo <= hi {
			out = append(out, tidRange{lo, hi})
		}
		if a[i].hi < b[j].hi {
			i++
		} else {
			j++
		}
	}
	return out
}
