package fim

// IsTa (intersecting transactions) mines closed item sets by
// incremental intersection: the set of closed patterns of a database
// is exactly the closure of the transactions under pairwise
// intersection. The engine keeps the patterns found so far in a list
// indexed by a map from the encoded item list, and intersects every
// incoming transaction with each of them, updating supports as it
// goes. The 'x' (prefix) and 'p' (patricia) variant codes are
// accepted and share this single layout.
type IsTa struct {
	minerBase
}

// NewIsTa creates an intersecting-transactions miner. Only the
// closed and maximal targets are supported.
func NewIsTa(opts Options) *IsTa {
	return &IsTa{minerBase: minerBase{opts: opts}}
}

// Data attaches and preprocesses the transaction bag.
func (m *IsTa) Data(bag *Bag) error {
	return m.prepare(bag, 1)
}

// Mine runs the incremental intersection loop.
func (m *IsTa) Mine() error {
	rep := m.newReporter()
	if m.bag.ItemCnt() == 0 || m.bag.Cnt() == 0 {
		return rep.Finish()
	}
	// closed sets found so far, keyed canonically; the value is the
	// support accumulated over all processed transactions
	type closedSet struct {
		items []int
		supp  int
	}
	var sets []closedSet
	index := make(map[string]int)
	key := func(items []int) string {
		b := make([]byte, 0, len(items)*4)
		for _, it := range items {
			b = append(b, byte(it), byte(it>>8), byte(it>>16), byte(it>>24))
		}
		return string(b)
	}
	for ti := 0; ti < m.bag.Cnt(); ti++ {
		t := m.bag.Tract(ti)
		items := t.Expand(nil)
		if len(items) == 0 {
			continue
		}
		// intersect the new transaction with every known closed set;
		// the support of an intersection is inherited from the best
		// (largest-support) generator plus the new weight
		updates := make(map[string]closedSet)
		add := func(items []int, supp int) {
			k := key(items)
			if cur, ok := updates[k]; !ok || supp > cur.supp {
				updates[k] = closedSet{items: items, supp: supp}
			}
		}
		add(items, t.Wgt)
		for i := range sets {
			inter := intersectSorted(sets[i].items, items)
			if len(inter) == 0 {
				continue
			}
			add(inter, sets[i].supp+t.Wgt)
		}
		for k, u := range updates {
			if at, ok := index[k]; ok {
				if u.supp > sets[at].supp {
					sets[at].supp = u.supp
				}
			} else {
				index[k] = len(sets)
				sets = append(sets, u)
			}
		}
	}
	for i := range sets {
		if sets[i].supp < m.smin {
			continue
		}
		for _, it := range sets[i].items {
			rep.Add(it, sets[i].supp)
		}
		err := rep.Report()
		for range sets[i].items {
			rep.Remove()
		}
		if err != nil {
			return err
		}
	}
	return rep.Finish()
}
