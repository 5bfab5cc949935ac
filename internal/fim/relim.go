package fim

// RElim is the recursive elimination miner. The database is held as
// one list per item, containing the (weight, suffix) entries of all
// transactions whose smallest remaining item is that item. Items are
// processed by ascending identifier (ascending frequency after the
// recode): the list of the current item yields both its support and
// the conditional database for the recursion, and its entries are
// then redistributed to the lists of their next items.
type RElim struct {
	minerBase
}

// NewRElim creates a recursive elimination miner.
func NewRElim(opts Options) *RElim {
	return &RElim{minerBase: minerBase{opts: opts}}
}

// Data attaches and preprocesses the transaction bag.
func (r *RElim) Data(bag *Bag) error {
	return r.prepare(bag, 1)
}

type relEntry struct {
	wgt   int
	items []int // suffix after the leading item
}

// Mine runs the elimination loop on the item lists.
func (r *RElim) Mine() error {
	rep := r.newReporter()
	n := r.bag.ItemCnt()
	if n == 0 || r.bag.Cnt() == 0 {
		return rep.Finish()
	}
	lists := make([][]relEntry, n)
	var buf []int
	for i := 0; i < r.bag.Cnt(); i++ {
		t := r.bag.Tract(i)
		items := t.Expand(buf[:0])
		if len(items) == 0 {
			continue
		}
		suffix := make([]int, len(items)-1)
		copy(suffix, items[1:])
		lists[items[0]] = append(lists[items[0]], relEntry{wgt: t.Wgt, items: suffix})
	}
	if err := r.eliminate(rep, lists); err != nil {
		return err
	}
	return rep.Finish()
}

func (r *RElim) eliminate(rep *Reporter, lists [][]relEntry) error {
	zmax := r.zmaxDepth()
	for item := 0; item < len(lists); item++ {
		entries := lists[item]
		if len(entries) == 0 {
			continue
		}
		supp := 0
		for _, e := range entries {
			supp += e.wgt
		}
		if supp >= r.smin {
			rep.Add(item, supp)
			if err := rep.Report(); err != nil {
				return err
			}
			if rep.Depth() < zmax {
				// conditional database: the suffixes of this list,
				// re-bucketed by their leading items
				cond := make([][]relEntry, len(lists))
				for _, e := range entries {
					if len(e.items) > 0 {
						cond[e.items[0]] = append(cond[e.items[0]],
							relEntry{wgt: e.wgt, items: e.items[1:]})
					}
				}
				if err := r.eliminate(rep, cond); err != nil {
					return err
				}
			}
			rep.Remove()
		}
		// eliminate the item: redistribute the suffixes
		for _, e := range entries {
			if len(e.items) > 0 {
				lists[e.items[0]] = append(lists[e.items[0]],
					relEntry{wgt: e.wgt, items: e.items[1:]})
			}
		}
		lists[item] = nil
	}
	return nil
}
