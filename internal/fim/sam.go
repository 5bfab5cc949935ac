package fim

import "sort"

// SaM is the split-and-merge miner: the database is a lexicographically
// sorted list of (weight, item suffix) entries. At each step the
// entries starting with the current leading item are split off; their
// tails form the conditional database for the recursion, and are then
// merged back into the remainder for the next leading item. The 'b'
// (bsearch) variant locates the split point by binary search, the
// other variants share the linear scan.
type SaM struct {
	minerBase
}

// NewSaM creates a split-and-merge miner.
func NewSaM(opts Options) *SaM {
	return &SaM{minerBase: minerBase{opts: opts}}
}

// Data attaches and preprocesses the transaction bag.
func (s *SaM) Data(bag *Bag) error {
	return s.prepare(bag, 1)
}

type samEntry struct {
	wgt   int
	items []int
}

func cmpItemSeq(a, b []int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// mergeSam merges two sorted entry lists, collapsing equal suffixes
// by summing weights.
func mergeSam(a, b []samEntry) []samEntry {
	out := make([]samEntry, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch cmpItemSeq(a[i].items, b[j].items) {
		case -1:
			out = append(out, a[i])
			i++
		case 1:
			out = append(out, b[j])
			j++
		default:
			out = append(out, samEntry{wgt: a[i].wgt + b[j].wgt, items: a[i].items})
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// Mine runs the split-and-merge recursion.
func (s *SaM) Mine() error {
	rep := s.newReporter()
	if s.bag.ItemCnt() == 0 || s.bag.Cnt() == 0 {
		return rep.Finish()
	}
	db := make([]samEntry, 0, s.bag.Cnt())
	var buf []int
	for i := 0; i < s.bag.Cnt(); i++ {
		t := s.bag.Tract(i)
		items := t.Expand(buf[:0])
		if len(items) == 0 {
			continue
		}
		e := samEntry{wgt: t.Wgt, items: make([]int, len(items))}
		copy(e.items, items)
		db = append(db, e)
	}
	sort.SliceStable(db, func(i, j int) bool {
		return cmpItemSeq(db[i].items, db[j].items) < 0
	})
	if err := s.recurse(rep, db); err != nil {
		return err
	}
	return rep.Finish()
}

func (s *SaM) recurse(rep *Reporter, db []samEntry) error {
	zmax := s.zmaxDepth()
	for len(db) > 0 {
		item := db[0].items[0]
		var split int
		if s.opts.Algo == 'b' {
			split = sort.Search(len(db), func(i int) bool {
				return len(db[i].items) == 0 || db[i].items[0] != item
			})
		} else {
			split = 0
			for split < len(db) && len(db[split].items) > 0 && db[split].items[0] == item {
				split++
			}
		}
		head, rest := db[:split], db[split:]
		supp := 0
		cond := make([]samEntry, 0, len(head))
		for _, e := range head {
			supp += e.wgt
			if len(e.items) > 1 {
				cond = append(cond, samEntry{wgt: e.wgt, items: e.items[1:]})
			}
		}
		if supp >= s.smin {
			rep.Add(item, supp)
			if err := rep.Report(); err != nil {
				return err
			}
			if rep.Depth() < zmax && len(cond) > 0 {
				if err := s.recurse(rep, cond); err != nil {
					return err
				}
			}
			rep.Remove()
		}
		// merge the tails back for the next leading item
		db = mergeSam(rest, cond)
	}
	return nil
}
