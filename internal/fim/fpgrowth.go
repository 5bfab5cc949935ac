package fim

// FPGrowth mines frequent item sets depth first on a frequent
// pattern tree. Items are recoded by descending frequency, so the
// most frequent items sit near the root and conditional trees stay
// small. Mining processes the header items by ascending frequency
// (descending identifier), extracting for each item the conditional
// pattern base from its header chain and recursing on the projected
// tree; a conditional tree that collapses into a single path emits
// all subsets of the path directly.
//
// Variants: 's' (simple), 'c' (complex) and 'd' (single) share the
// projection code; 't' (top-down) processes the header items in the
// opposite order.
type FPGrowth struct {
	minerBase
}

// NewFPGrowth creates an fpgrowth miner for the configured variant.
func NewFPGrowth(opts Options) *FPGrowth {
	return &FPGrowth{minerBase: minerBase{opts: opts}}
}

// Data attaches and preprocesses the transaction bag, recoding by
// descending frequency.
func (f *FPGrowth) Data(bag *Bag) error {
	return f.prepare(bag, -1)
}

// fpTree is an arena of nodes with index-based links: parent for the
// root-to-node paths, child/sibling for insertion, succ for the
// per-item header chains.
type fpTree struct {
	nodes []fpNode
	heads []fpHead // indexed by item id
}

type fpNode struct {
	item   int
	cnt    int
	parent int
	child  int
	sib    int
	succ   int // next node of the same item (header chain)
}

type fpHead struct {
	first int // head of the node chain, -1 if the item is absent
	supp  int // total count over the chain
}

func newFPTree(items int) *fpTree {
	t := &fpTree{
		nodes: []fpNode{{item: -1, parent: -1, child: -1, sib: -1, succ: -1}},
		heads: make([]fpHead, items),
	}
	for i := range t.heads {
		t.heads[i].first = -1
	}
	return t
}

// insert adds one transaction (items ascending, i.e. descending
// frequency) with the given weight.
func (t *fpTree) insert(items []int, wgt int) {
	cur := 0
	for _, it := range items {
		c := t.nodes[cur].child
		for c >= 0 && t.nodes[c].item != it {
			c = t.nodes[c].sib
		}
		if c < 0 {
			t.nodes = append(t.nodes, fpNode{
				item:   it,
				parent: cur,
				child:  -1,
				sib:    t.nodes[cur].child,
				succ:   t.heads[it].first,
			})
			c = len(t.nodes) - 1
			t.nodes[cur].child = c
			t.heads[it].first = c
		}
		t.nodes[c].cnt += wgt
		t.heads[it].supp += wgt
		cur = c
	}
}

// singlePath returns the (item, cnt) chain when the tree is a single
// path from the root, nil otherwise.
func (t *fpTree) singlePath() []fpHead {
	var path []fpHead
	cur := 0
	for {
		c := t.nodes[cur].child
		if c < 0 {
			return path
		}
		if t.nodes[c].sib >= 0 {
			return nil
		}
		path = append(path, fpHead{first: t.nodes[c].item, supp: t.nodes[c].cnt})
		cur = c
	}
}

// Mine builds the initial tree and runs the recursive projection.
func (f *FPGrowth) Mine() error {
	rep := f.newReporter()
	n := f.bag.ItemCnt()
	if n == 0 || f.bag.Cnt() == 0 {
		return rep.Finish()
	}
	tree := newFPTree(n)
	var buf []int
	for i := 0; i < f.bag.Cnt(); i++ {
		t := f.bag.Tract(i)
		tree.insert(t.Expand(buf[:0]), t.Wgt)
	}
	if err := f.mineTree(rep, tree); err != nil {
		return err
	}
	return rep.Finish()
}

func (f *FPGrowth) mineTree(rep *Reporter, tree *fpTree) error {
	zmax := f.zmaxDepth()
	if path := tree.singlePath(); path != nil {
		return f.minePath(rep, path, 0, zmax)
	}
	order := make([]int, 0, len(tree.heads))
	for it := len(tree.heads) - 1; it >= 0; it-- {
		if tree.heads[it].supp >= f.smin {
			order = append(order, it)
		}
	}
	if f.opts.Algo == 't' {
		// top-down: most frequent items first
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	for _, it := range order {
		supp := tree.heads[it].supp
		rep.Add(it, supp)
		if err := rep.Report(); err != nil {
			return err
		}
		if rep.Depth() < zmax {
			cond := f.project(tree, it)
			if err := f.mineTree(rep, cond); err != nil {
				return err
			}
		}
		rep.Remove()
	}
	return nil
}

// project builds the conditional tree of an item from its header
// chain: each chain node contributes its root path with the node's
// count as weight. Items that drop below minimum support in the
// conditional base are removed from the paths.
func (f *FPGrowth) project(tree *fpTree, item int) *fpTree {
	type condPath struct {
		items []int
		cnt   int
	}
	var paths []condPath
	condSupp := make([]int, item)
	for nd := tree.heads[item].first; nd >= 0; nd = tree.nodes[nd].succ {
		cnt := tree.nodes[nd].cnt
		var items []int
		for p := tree.nodes[nd].parent; p > 0; p = tree.nodes[p].parent {
			items = append(items, tree.nodes[p].item)
			condSupp[tree.nodes[p].item] += cnt
		}
		// the walk yields leaf-to-root order; reverse to ascending
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		paths = append(paths, condPath{items: items, cnt: cnt})
	}
	cond := newFPTree(item)
	for _, p := range paths {
		kept := p.items[:0]
		for _, it := range p.items {
			if condSupp[it] >= f.smin {
				kept = append(kept, it)
			}
		}
		if len(kept) > 0 {
			cond.insert(kept, p.cnt)
		}
	}
	return cond
}

// minePath emits every non-empty subset of a single-path conditional
// tree: the support of a subset is the count of its deepest item.
func (f *FPGrowth) minePath(rep *Reporter, path []fpHead, k, zmax int) error {
	if rep.Depth() >= zmax {
		return nil
	}
	for i := k; i < len(path); i++ {
		if path[i].supp < f.smin {
			continue
		}
		rep.Add(path[i].first, path[i].supp)
		if err := rep.Report(); err != nil {
			return err
		}
		if err := f.minePath(rep, path, i+1, zmax); err != nil {
			return err
		}
		rep.Remove()
	}
	return nil
}
