package fim

import (
	"math/bits"
	"sort"
)

// packMax is the maximum number of lowest-identifier items that Pack
// moves into the bitmap prefix of each transaction. These are the most
// frequent items only when the bag was recoded by descending
// frequency; after an ascending recode they are the least frequent.
const packMax = 16

// Transaction is a sorted, duplicate-free sequence of item ids with a
// positive integer weight. After Pack, the items with identifiers
// below the pack threshold live in the Bits field instead of Items.
type Transaction struct {
	Bits  uint32
	Items []int
	Wgt   int
}

// Size returns the number of items in the transaction, bitmap prefix
// included.
func (t *Transaction) Size() int {
	return bits.OnesCount32(t.Bits) + len(t.Items)
}

// Expand appends all item ids of the transaction, in ascending order,
// to buf and returns the result.
func (t *Transaction) Expand(buf []int) []int {
	for b := t.Bits; b != 0; b &= b - 1 {
		buf = append(buf, bits.TrailingZeros32(b))
	}
	return append(buf, t.Items...)
}

// Bag owns a collection of transactions together with the underlying
// item base. Engines borrow the bag for the duration of a mining run;
// the bag never frees the item base on its own (ownership is fixed at
// construction, there is no destructor flag).
type Bag struct {
	base   *ItemBase
	trans  []Transaction
	wgt    int
	packed int // number of item ids packed into bitmaps, 0 if unpacked
}

// NewBag creates an empty transaction bag over the given item base.
func NewBag(base *ItemBase) *Bag {
	return &Bag{base: base}
}

// Base returns the underlying item base.
func (b *Bag) Base() *ItemBase { return b.base }

// Add appends a finalized transaction to the bag.
func (b *Bag) Add(t Transaction) {
	b.trans = append(b.trans, t)
	b.wgt += t.Wgt
}

// Cnt returns the number of transactions.
func (b *Bag) Cnt() int { return len(b.trans) }

// Wgt returns the total transaction weight.
func (b *Bag) Wgt() int { return b.wgt }

// Tract returns the i-th transaction.
func (b *Bag) Tract(i int) *Transaction { return &b.trans[i] }

// Extent returns the total number of item instances in the bag.
func (b *Bag) Extent() int {
	n := 0
	for i := range b.trans {
		n += b.trans[i].Size()
	}
	return n
}

// ItemCnt returns the number of items in the underlying base.
func (b *Bag) ItemCnt() int { return b.base.Cnt() }

// Recode recodes the item base (see ItemBase.Recode) and rewrites all
// transactions accordingly: dropped items are removed and the
// remaining items appear in the new identifier order. Transactions
// that become empty are kept so that the total weight is preserved.
func (b *Bag) Recode(smin, appMin, appMax, dir int) []int {
	perm := b.base.Recode(smin, appMin, appMax, dir)
	for i := range b.trans {
		t := &b.trans[i]
		items := t.Items[:0]
		for _, id := range t.Items {
			if n := perm[id]; n >= 0 {
				items = append(items, n)
			}
		}
		sort.Ints(items)
		t.Items = items
	}
	return perm
}

// Filter removes all transactions with fewer than zmin items.
func (b *Bag) Filter(zmin int) {
	if zmin <= 0 {
		return
	}
	kept := b.trans[:0]
	wgt := 0
	for i := range b.trans {
		if b.trans[i].Size() >= zmin {
			kept = append(kept, b.trans[i])
			wgt += b.trans[i].Wgt
		}
	}
	b.trans = kept
	b.wgt = wgt
}

// Pack moves the items with identifiers below k (at most 16) from the
// item array into the bitmap prefix of each transaction.
func (b *Bag) Pack(k int) {
	if k > packMax {
		k = packMax
	}
	if k <= 0 || b.packed > 0 {
		return
	}
	for i := range b.trans {
		t := &b.trans[i]
		items := t.Items[:0]
		for _, id := range t.Items {
			if id < k {
				t.Bits |= 1 << uint(id)
			} else {
				items = append(items, id)
			}
		}
		t.Items = items
	}
	b.packed = k
}

// PackCnt returns the number of item ids covered by the bitmap
// prefix, 0 if the bag is unpacked.
func (b *Bag) PackCnt() int { return b.packed }

func cmpTracts(a, c *Transaction) int {
	if a.Bits != c.Bits {
		if a.Bits < c.Bits {
			return -1
		}
		return 1
	}
	n := len(a.Items)
	if len(c.Items) < n {
		n = len(c.Items)
	}
	for i := 0; i < n; i++ {
		if a.Items[i] != c.Items[i] {
			if a.Items[i] < c.Items[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a.Items) < len(c.Items):
		return -1
	case len(a.Items) > len(c.Items):
		return 1
	}
	return 0
}

// Sort orders the transactions lexicographically on (bitmap, tail).
func (b *Bag) Sort() {
	sort.SliceStable(b.trans, func(i, j int) bool {
		return cmpTracts(&b.trans[i], &b.trans[j]) < 0
	})
}

// Reduce collapses equal adjacent transactions, summing their
// weights. The bag must have been sorted first; afterwards the
// transactions are strictly increasing lexicographically.
func (b *Bag) Reduce() {
	if len(b.trans) == 0 {
		return
	}
	out := b.trans[:1]
	for i := 1; i < len(b.trans); i++ {
		last := &out[len(out)-1]
		if cmpTracts(last, &b.trans[i]) == 0 {
			last.Wgt += b.trans[i].Wgt
		} else {
			out = append(out, b.trans[i])
		}
	}
	b.trans = out
}

// IsTab reports whether all transactions have the same number of
// items, which is required for shuffle surrogates.
func (b *Bag) IsTab() bool {
	if len(b.trans) == 0 {
		return true
	}
	n := b.trans[0].Size()
	for i := 1; i < len(b.trans); i++ {
		if b.trans[i].Size() != n {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the bag with its own item base: item
// frequencies and appearance flags are copied, and the identifier
// tables are shared until a recode replaces them. The copy is what
// surrogate generation and miner preprocessing mutate; the original
// bag and its item base stay untouched.
func (b *Bag) Clone() *Bag {
	base := *b.base
	base.freq = append([]int(nil), b.base.freq...)
	base.app = append([]int(nil), b.base.app...)
	base.cur = nil
	c := &Bag{base: &base, wgt: b.wgt, packed: b.packed}
	c.trans = make([]Transaction, len(b.trans))
	for i := range b.trans {
		t := b.trans[i]
		items := make([]int, len(t.Items))
		copy(items, t.Items)
		c.trans[i] = Transaction{Bits: t.Bits, Items: items, Wgt: t.Wgt}
	}
	return c
}
