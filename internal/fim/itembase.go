package fim

import (
	"fmt"
	"sort"
)

// ItemBase maintains the bijection between external item objects
// (uniformly integers or uniformly strings) and the dense internal
// identifiers all engines work with. It also accumulates per-item
// support and the appearance flag used for rule mining, and buffers
// the transaction currently under construction.
type ItemBase struct {
	strMode bool
	intIDs  map[int64]int
	strIDs  map[string]int
	intObjs []int64
	strObjs []string
	freq    []int
	app     []int

	cur []int // item ids of the transaction under construction
}

// NewIntBase creates an item base for integer-valued items.
func NewIntBase() *ItemBase {
	return &ItemBase{intIDs: make(map[int64]int)}
}

// NewStrBase creates an item base for string-valued items.
func NewStrBase() *ItemBase {
	return &ItemBase{strMode: true, strIDs: make(map[string]int)}
}

// Cnt returns the number of registered items.
func (ib *ItemBase) Cnt() int { return len(ib.freq) }

// StrMode reports whether items are strings rather than integers.
func (ib *ItemBase) StrMode() bool { return ib.strMode }

func (ib *ItemBase) grow() int {
	id := len(ib.freq)
	ib.freq = append(ib.freq, 0)
	ib.app = append(ib.app, AppBoth)
	return id
}

// AddInt returns the identifier for an integer item, registering it
// on first use.
func (ib *ItemBase) AddInt(v int64) int {
	if id, ok := ib.intIDs[v]; ok {
		return id
	}
	id := ib.grow()
	ib.intIDs[v] = id
	ib.intObjs = append(ib.intObjs, v)
	return id
}

// AddStr returns the identifier for a string item, registering it on
// first use.
func (ib *ItemBase) AddStr(s string) int {
	if id, ok := ib.strIDs[s]; ok {
		return id
	}
	id := ib.grow()
	ib.strIDs[s] = id
	ib.strObjs = append(ib.strObjs, s)
	return id
}

// IntObj returns the external integer object of an item.
func (ib *ItemBase) IntObj(id int) int64 { return ib.intObjs[id] }

// StrObj returns the external string object of an item.
func (ib *ItemBase) StrObj(id int) string { return ib.strObjs[id] }

// Name renders the external object of an item for logs and errors.
func (ib *ItemBase) Name(id int) string {
	if ib.strMode {
		return ib.strObjs[id]
	}
	return fmt.Sprintf("%d", ib.intObjs[id])
}

// Freq returns the accumulated support of a single item.
func (ib *ItemBase) Freq(id int) int { return ib.freq[id] }

// SetApp sets the appearance flag of an item.
func (ib *ItemBase) SetApp(id, app int) { ib.app[id] = app }

// App returns the appearance flag of an item.
func (ib *ItemBase) App(id int) int { return ib.app[id] }

// Clear resets the transaction construction buffer.
func (ib *ItemBase) Clear() { ib.cur = ib.cur[:0] }

// Add2TAInt appends an integer item to the transaction under
// construction. Duplicates are tolerated and collapsed by FinTA.
func (ib *ItemBase) Add2TAInt(v int64) { ib.cur = append(ib.cur, ib.AddInt(v)) }

// Add2TAStr appends a string item to the transaction under
// construction.
func (ib *ItemBase) Add2TAStr(s string) { ib.cur = append(ib.cur, ib.AddStr(s)) }

// FinTA finalizes the transaction under construction: the collected
// items are sorted, duplicates are collapsed, and the transaction
// weight is added to the support of each distinct item.
func (ib *ItemBase) FinTA(wgt int) Transaction {
	sort.Ints(ib.cur)
	items := make([]int, 0, len(ib.cur))
	for i, id := range ib.cur {
		if i > 0 && id == ib.cur[i-1] {
			continue // silently collapse duplicate items
		}
		items = append(items, id)
		ib.freq[id] += wgt
	}
	ib.cur = ib.cur[:0]
	return Transaction{Items: items, Wgt: wgt}
}

// Recode drops all items with support below smin or with an
// appearance flag outside [appMin, appMax] (negative bounds disable
// the appearance check) and reassigns the identifiers of the kept
// items: sorted by ascending support for dir > 0, descending for
// dir < 0, in the original order for dir == 0. The returned slice
// maps each old identifier to its new one, -1 for dropped items.
func (ib *ItemBase) Recode(smin, appMin, appMax, dir int) []int {
	n := len(ib.freq)
	keep := make([]int, 0, n)
	for id := 0; id < n; id++ {
		if ib.freq[id] < smin {
			continue
		}
		if appMin >= 0 && ib.app[id] < appMin {
			continue
		}
		if appMax >= 0 && ib.app[id] > appMax {
			continue
		}
		keep = append(keep, id)
	}
	if dir > 0 {
		sort.SliceStable(keep, func(i, j int) bool {
			return ib.freq[keep[i]] < ib.freq[keep[j]]
		})
	} else if dir < 0 {
		sort.SliceStable(keep, func(i, j int) bool {
			return ib.freq[keep[i]] > ib.freq[keep[j]]
		})
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = -1
	}
	freq := make([]int, len(keep))
	app := make([]int, len(keep))
	var intObjs []int64
	var strObjs []string
	if ib.strMode {
		strObjs = make([]string, len(keep))
	} else {
		intObjs = make([]int64, len(keep))
	}
	for newID, oldID := range keep {
		perm[oldID] = newID
		freq[newID] = ib.freq[oldID]
		app[newID] = ib.app[oldID]
		if ib.strMode {
			strObjs[newID] = ib.strObjs[oldID]
		} else {
			intObjs[newID] = ib.intObjs[oldID]
		}
	}
	ib.freq, ib.app = freq, app
	if ib.strMode {
		ib.strObjs = strObjs
		ib.strIDs = make(map[string]int, len(keep))
		for id, s := range strObjs {
			ib.strIDs[s] = id
		}
	} else {
		ib.intObjs = intObjs
		ib.intIDs = make(map[int64]int, len(keep))
		for id, v := range intObjs {
			ib.intIDs[v] = id
		}
	}
	return perm
}
