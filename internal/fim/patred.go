package fim

import "sort"

// Pattern is one entry of a pattern set handed to the reducer: the
// sorted item identifiers, the support, and the position of the
// pattern in the host input (so the caller can map the survivors
// back to its own representation).
type Pattern struct {
	Items []int
	Supp  int
	Orig  int
}

// PatternSet collects already-mined patterns for post-hoc redundancy
// elimination, together with the optional per-size minimum support
// border of the mining run that produced them.
type PatternSet struct {
	pats   []Pattern
	border []int
}

// NewPatternSet creates an empty pattern set with the given border
// (may be nil; index z holds the minimum support for size z,
// negative values disable that size).
func NewPatternSet(border []int) *PatternSet {
	return &PatternSet{border: border}
}

// Add appends a pattern. Items must be sorted ascending.
func (ps *PatternSet) Add(items []int, supp, orig int) {
	ps.pats = append(ps.pats, Pattern{Items: items, Supp: supp, Orig: orig})
}

// Cnt returns the number of patterns.
func (ps *PatternSet) Cnt() int { return len(ps.pats) }

// sig decides whether an excess of c coincidences of a size-z
// pattern is significant on its own: it must clear the border entry
// for that size, or at least two coincidences of two items when no
// border is available. This is the yardstick every reduction
// criterion measures excesses against.
func (ps *PatternSet) sig(z, c int) bool {
	if z < 2 || c < 2 {
		return false
	}
	if z < len(ps.border) && ps.border[z] >= 0 {
		return c >= ps.border[z]
	}
	return true
}

// isSubset reports whether a is a proper subset of b (both sorted).
func isSubset(a, b []int) bool {
	if len(a) >= len(b) {
		return false
	}
	j := 0
	for _, it := range a {
		for j < len(b) && b[j] < it {
			j++
		}
		if j >= len(b) || b[j] != it {
			return false
		}
		j++
	}
	return true
}

// Reduce removes redundant patterns under the given criterion and
// returns the survivors in their original input order. For every
// subset/superset pair the criterion decides, from the pattern sizes
// and supports alone, whether the subset's excess occurrences and
// the superset's excess items stand on their own:
//
//	coins0/coins1   the subset survives iff its excess support over
//	                the superset (plus 0/1) is significant
//	items           the superset survives iff its size excess over
//	                the subset (plus the two shared boundary items)
//	                is significant at the superset's support
//	cover0/cover1   both directions are questioned independently
//	lenient0/1      like cover, but when both directions fail only
//	                the pattern covering fewer item occurrences falls
//	strict0/1       like cover, and when both directions fail both
//	                patterns fall
//
// With AddIsect set, the pairwise intersections of surviving
// patterns are added back (with the larger of the two supports) when
// they are significant on their own.
func (ps *PatternSet) Reduce(method RedMethod, addIsect bool) []Pattern {
	if method == RedNone || len(ps.pats) == 0 {
		out := make([]Pattern, len(ps.pats))
		copy(out, ps.pats)
		return out
	}
	// candidates ordered by descending size so that supersets are
	// judged before their subsets
	order := make([]int, len(ps.pats))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(ps.pats[order[a]].Items) > len(ps.pats[order[b]].Items)
	})
	removed := make([]bool, len(ps.pats))
	var kept []int
	for _, i := range order {
		p := &ps.pats[i]
		keep := true
		for _, k := range kept {
			if removed[k] {
				continue
			}
			q := &ps.pats[k]
			if !isSubset(p.Items, q.Items) {
				continue
			}
			keepSub, keepSup := ps.judge(method, p, q)
			if !keepSup {
				removed[k] = true
			}
			if !keepSub {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, i)
		} else {
			removed[i] = true
		}
	}
	survivors := make([]Pattern, 0, len(kept))
	for i := range ps.pats {
		if !removed[i] {
			survivors = append(survivors, ps.pats[i])
		}
	}
	if addIsect {
		survivors = ps.addIntersections(survivors)
	}
	return survivors
}

// judge applies the pairwise criterion to subset p and superset q
// and reports which of the two survive the comparison.
func (ps *PatternSet) judge(method RedMethod, p, q *Pattern) (keepSub, keepSup bool) {
	zp, zq := len(p.Items), len(q.Items)
	v := 0
	switch method {
	case RedCoins1, RedCover1, RedLenient1, RedStrict1:
		v = 1
	}
	exCoins := ps.sig(zp, p.Supp-q.Supp+v)
	exItems := ps.sig(zq-zp+2, q.Supp)
	switch method {
	case RedCoins0, RedCoins1:
		return exCoins, true
	case RedItems2:
		return true, exItems
	case RedCover0, RedCover1:
		return exCoins, exItems
	case RedLenient0, RedLenient1:
		if exCoins || exItems {
			return exCoins || !exItems, exItems || !exCoins
		}
		// neither stands alone: the weaker coverage falls
		if zp*p.Supp > zq*q.Supp {
			return true, false
		}
		return false, true
	case RedStrict0, RedStrict1:
		if !exCoins && !exItems {
			return false, false
		}
		return exCoins, exItems
	}
	return true, true
}

// addIntersections reinserts pairwise intersections of the surviving
// patterns when they are significant on their own.
func (ps *PatternSet) addIntersections(survivors []Pattern) []Pattern {
	present := make(map[string]bool, len(survivors))
	key := func(items []int) string {
		b := make([]byte, 0, len(items)*2)
		for _, it := range items {
			b = append(b, byte(it), byte(it>>8))
		}
		return string(b)
	}
	for i := range survivors {
		present[key(survivors[i].Items)] = true
	}
	n := len(survivors)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			inter := intersectSorted(survivors[i].Items, survivors[j].Items)
			if len(inter) < 2 || present[key(inter)] {
				continue
			}
			supp := survivors[i].Supp
			if survivors[j].Supp > supp {
				supp = survivors[j].Supp
			}
			if !ps.sig(len(inter), supp) {
				continue
			}
			present[key(inter)] = true
			survivors = append(survivors, Pattern{Items: inter, Supp: supp, Orig: -1})
		}
	}
	return survivors
}
