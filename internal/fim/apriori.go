package fim

// Apriori mines frequent item sets breadth first: level k candidates
// are generated by joining frequent (k-1)-sets that share a (k-2)
// prefix, pruned by the subset condition, and counted against the
// transactions by descending a prefix tree of candidates. The sorted
// and reduced bag acts as the transaction-tree acceleration: shared
// transactions are collapsed into one weighted entry, so common
// prefixes are counted once per distinct transaction.
type Apriori struct {
	minerBase
	tree aprTree
}

// NewApriori creates an apriori miner. The 'a' (auto) and 'b'
// (basic) variants share the counting code; both run on the sorted
// and reduced bag.
func NewApriori(opts Options) *Apriori {
	return &Apriori{minerBase: minerBase{opts: opts}}
}

// Data attaches and preprocesses the transaction bag.
func (a *Apriori) Data(bag *Bag) error {
	return a.prepare(bag, -1)
}

// aprTree is the arena-backed candidate prefix tree. Each level's
// leaves are the candidates currently being counted.
type aprTree struct {
	nodes []aprNode
}

type aprNode struct {
	item   int
	supp   int
	parent int
	child  int // first child, -1 if none
	sib    int // next sibling (ascending item order)
}

func (t *aprTree) addChild(parent, item int) int {
	prev := -1
	c := t.nodes[parent].child
	for c >= 0 && t.nodes[c].item < item {
		prev = c
		c = t.nodes[c].sib
	}
	t.nodes = append(t.nodes, aprNode{item: item, parent: parent, child: -1, sib: c})
	n := len(t.nodes) - 1
	if prev < 0 {
		t.nodes[parent].child = n
	} else {
		t.nodes[prev].sib = n
	}
	return n
}

// path reconstructs the item set of a node, root to leaf.
func (t *aprTree) path(n int, buf []int) []int {
	buf = buf[:0]
	for n > 0 {
		buf = append(buf, t.nodes[n].item)
		n = t.nodes[n].parent
	}
	// reverse into ascending order
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

// Mine runs the breadth-first level generation.
func (a *Apriori) Mine() error {
	rep := a.newReporter()
	n := a.bag.ItemCnt()
	if n == 0 {
		return rep.Finish()
	}
	zmax := a.zmaxDepth()

	// level 1: every kept item is frequent by construction (recode
	// dropped the infrequent ones)
	a.tree = aprTree{nodes: []aprNode{{item: -1, parent: -1, child: -1, sib: -1}}}
	level := make([]int, 0, n)
	for it := n - 1; it >= 0; it-- {
		// addChild keeps sibling chains sorted; insertion order is
		// irrelevant for correctness
		level = append(level, a.tree.addChild(0, it))
	}
	for it := range level {
		a.tree.nodes[level[it]].supp = a.bag.Base().Freq(a.tree.nodes[level[it]].item)
	}
	var buf []int
	for depth := 1; len(level) > 0; depth++ {
		// report the frequent sets of this level
		for _, nd := range level {
			node := &a.tree.nodes[nd]
			if node.supp < a.smin {
				continue
			}
			buf = a.tree.path(nd, buf)
			for i, it := range buf {
				var s int
				if i == len(buf)-1 {
					s = node.supp
				} else {
					s = a.levelSupp(buf[:i+1])
				}
				rep.Add(it, s)
			}
			if err := rep.Report(); err != nil {
				return err
			}
			for range buf {
				rep.Remove()
			}
		}
		if depth >= zmax {
			break
		}
		next := a.genCandidates(level, depth)
		if len(next) == 0 {
			break
		}
		a.countLevel(next, depth+1)
		// drop infrequent candidates from the next level
		kept := next[:0]
		for _, nd := range next {
			if a.tree.nodes[nd].supp >= a.smin {
				kept = append(kept, nd)
			}
		}
		level = kept
	}
	return rep.Finish()
}

// levelSupp returns the counted support of a prefix of a reported
// candidate (needed to fill the reporter's support stack).
func (a *Apriori) levelSupp(items []int) int {
	cur := 0
	for _, it := range items {
		c := a.tree.nodes[cur].child
		for c >= 0 && a.tree.nodes[c].item != it {
			c = a.tree.nodes[c].sib
		}
		if c < 0 {
			return a.smin // pruned prefix; support is not retained
		}
		cur = c
	}
	return a.tree.nodes[cur].supp
}

// genCandidates joins sibling leaves (shared (k-2) prefix by
// construction) and applies the subset pruning condition.
func (a *Apriori) genCandidates(level []int, depth int) []int {
	var next []int
	var items []int
	for _, nd := range level {
		if a.tree.nodes[nd].supp < a.smin {
			continue
		}
		for sib := a.tree.nodes[nd].sib; sib >= 0; sib = a.tree.nodes[sib].sib {
			if a.tree.nodes[sib].supp < a.smin {
				continue
			}
			// candidate = items(nd) + last item of sib
			items = a.tree.path(nd, items)
			cand := append(items, a.tree.nodes[sib].item)
			if !a.subsetsFrequent(cand, depth) {
				continue
			}
			next = append(next, a.tree.addChild(nd, a.tree.nodes[sib].item))
		}
	}
	return next
}

// subsetsFrequent checks that every (k-1)-subset of a k-candidate is
// a frequent node of the previous level. The two subsets obtained by
// dropping one of the last two items are the join parents and need
// no check.
func (a *Apriori) subsetsFrequent(cand []int, depth int) bool {
	if depth < 2 {
		return true
	}
	sub := make([]int, 0, len(cand)-1)
	for drop := 0; drop < len(cand)-2; drop++ {
		sub = sub[:0]
		for i, it := range cand {
			if i != drop {
				sub = append(sub, it)
			}
		}
		cur := 0
		ok := true
		for _, it := range sub {
			c := a.tree.nodes[cur].child
			for c >= 0 && a.tree.nodes[c].item < it {
				c = a.tree.nodes[c].sib
			}
			if c < 0 || a.tree.nodes[c].item != it || a.tree.nodes[c].supp < a.smin {
				ok = false
				break
			}
			cur = c
		}
		if !ok {
			return false
		}
	}
	return true
}

// countLevel counts the supports of the candidates at the given
// depth by descending the candidate tree with each transaction.
func (a *Apriori) countLevel(level []int, depth int) {
	for _, nd := range level {
		a.tree.nodes[nd].supp = 0
	}
	var items []int
	for i := 0; i < a.bag.Cnt(); i++ {
		t := a.bag.Tract(i)
		items = t.Expand(items[:0])
		if len(items) < depth {
			continue
		}
		a.countNode(0, items, 0, depth, t.Wgt)
	}
}

func (a *Apriori) countNode(node int, items []int, start, rem, wgt int) {
	if rem == 0 {
		a.tree.nodes[node].supp += wgt
		return
	}
	for c := a.tree.nodes[node].child; c >= 0; c = a.tree.nodes[c].sib {
		it := a.tree.nodes[c].item
		// advance within the sorted transaction items
		j := start
		for j < len(items) && items[j] < it {
			j++
		}
		if j >= len(items) || len(items)-j < rem {
			return // sorted chains: no later sibling can match either
		}
		if items[j] == it {
			a.countNode(c, items, j+1, rem-1, wgt)
		}
	}
}
