package fim

// Carpenter mines closed (or maximal) item sets by row enumeration,
// which wins on wide, tall-narrow transposed data: every closed set
// is the intersection of the transactions that contain it, so the
// engine enumerates transaction subsets instead of item subsets.
// Rows that fully contain the current intersection are pulled into
// the support en bloc; a branch whose intersection is also contained
// in a skipped earlier row is a duplicate and is pruned. The 't'
// (table) and 'l' (tidlist) variants differ only in how row
// containment is tested.
type Carpenter struct {
	minerBase
	rows  [][]int
	wgts  []int
	table [][]bool
}

// NewCarpenter creates a carpenter miner. Only the closed and
// maximal targets are supported; the option parser enforces that.
func NewCarpenter(opts Options) *Carpenter {
	return &Carpenter{minerBase: minerBase{opts: opts}}
}

// Data attaches and preprocesses the transaction bag.
func (c *Carpenter) Data(bag *Bag) error {
	return c.prepare(bag, 1)
}

// Mine runs the row enumeration.
func (c *Carpenter) Mine() error {
	rep := c.newReporter()
	n := c.bag.ItemCnt()
	if n == 0 || c.bag.Cnt() == 0 {
		return rep.Finish()
	}
	c.rows = make([][]int, c.bag.Cnt())
	c.wgts = make([]int, c.bag.Cnt())
	for i := 0; i < c.bag.Cnt(); i++ {
		t := c.bag.Tract(i)
		c.rows[i] = t.Expand(nil)
		c.wgts[i] = t.Wgt
	}
	if c.variant() == 't' {
		c.table = make([][]bool, len(c.rows))
		for i, row := range c.rows {
			c.table[i] = make([]bool, n)
			for _, it := range row {
				c.table[i][it] = true
			}
		}
	}
	chosen := make([]bool, len(c.rows))
	for i := range c.rows {
		if len(c.rows[i]) == 0 {
			continue
		}
		chosen[i] = true
		if err := c.enum(rep, c.rows[i], c.wgts[i], i, chosen); err != nil {
			return err
		}
		chosen[i] = false
	}
	return rep.Finish()
}

func (c *Carpenter) variant() byte {
	if c.opts.Algo == 'l' {
		return 'l'
	}
	return 't' // auto and table
}

// containsAll reports whether row contains every item of set.
func (c *Carpenter) containsAll(row int, set []int) bool {
	if c.table != nil {
		for _, it := range set {
			if !c.table[row][it] {
				return false
			}
		}
		return true
	}
	items := c.rows[row]
	j := 0
	for _, it := range set {
		for j < len(items) && items[j] < it {
			j++
		}
		if j >= len(items) || items[j] != it {
			return false
		}
	}
	return true
}

// enum extends the current row set. set is the intersection of the
// chosen rows, supp their accumulated weight, last the index of the
// most recently chosen row.
func (c *Carpenter) enum(rep *Reporter, set []int, supp, last int, chosen []bool) error {
	// duplicate branch: a skipped earlier row containing the
	// intersection enumerates the same pattern with higher support
	for i := 0; i < last; i++ {
		if !chosen[i] && c.containsAll(i, set) {
			return nil
		}
	}
	// pull in every later row that contains the whole intersection
	pulled := make([]int, 0, 4)
	for i := last + 1; i < len(c.rows); i++ {
		if !chosen[i] && c.containsAll(i, set) {
			supp += c.wgts[i]
			chosen[i] = true
			pulled = append(pulled, i)
		}
	}
	if supp >= c.smin {
		for _, it := range set {
			rep.Add(it, supp)
		}
		err := rep.Report()
		for range set {
			rep.Remove()
		}
		if err != nil {
			return err
		}
	}
	// branch on the remaining rows: intersect and recurse
	for i := last + 1; i < len(c.rows); i++ {
		if chosen[i] {
			continue
		}
		inter := intersectSorted(set, c.rows[i])
		if len(inter) == 0 {
			continue
		}
		chosen[i] = true
		if err := c.enum(rep, inter, supp+c.wgts[i], i, chosen); err != nil {
			return err
		}
		chosen[i] = false
	}
	for _, i := range pulled {
		chosen[i] = false
	}
	return nil
}

// intersectSorted intersects two ascending item lists.
func intersectSorted(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
