package fim

import "testing"

func TestFinTACollapsesDuplicates(t *testing.T) {
	ib := NewIntBase()
	ib.Clear()
	for _, v := range []int64{7, 3, 7, 5, 3} {
		ib.Add2TAInt(v)
	}
	tr := ib.FinTA(2)
	if len(tr.Items) != 3 {
		t.Fatalf("expected 3 distinct items, got %d", len(tr.Items))
	}
	for i := 1; i < len(tr.Items); i++ {
		if tr.Items[i] <= tr.Items[i-1] {
			t.Fatalf("items not strictly ascending: %v", tr.Items)
		}
	}
	if ib.Freq(ib.AddInt(7)) != 2 {
		t.Errorf("duplicate item must count the weight once, got %d", ib.Freq(ib.AddInt(7)))
	}
}

func TestRecodeDirections(t *testing.T) {
	tracts := [][]int64{{1, 2, 3}, {1, 2}, {1, 3}, {2, 3}, {1}}
	tests := []struct {
		name string
		dir  int
		// frequency of the item that receives id 0
		frqAt0 int
	}{
		{"ascending", 1, 3},
		{"descending", -1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := makeBag(tracts, nil)
			perm := bag.Recode(2, -1, -1, tt.dir)
			if len(perm) != 3 {
				t.Fatalf("expected permutation over 3 items, got %d", len(perm))
			}
			if got := bag.Base().Freq(0); got != tt.frqAt0 {
				t.Errorf("item 0 frequency: got %d, want %d", got, tt.frqAt0)
			}
			// every transaction must hold only kept ids in ascending order
			for i := 0; i < bag.Cnt(); i++ {
				items := bag.Tract(i).Items
				for j := range items {
					if items[j] >= bag.ItemCnt() {
						t.Errorf("transaction %d holds dropped id %d", i, items[j])
					}
					if j > 0 && items[j] <= items[j-1] {
						t.Errorf("transaction %d not sorted after recode: %v", i, items)
					}
				}
			}
		})
	}
}

func TestRecodeDropsInfrequentAndIgnored(t *testing.T) {
	ib := NewIntBase()
	bag := NewBag(ib)
	for _, tr := range [][]int64{{1, 2, 9}, {1, 2}, {1, 9}} {
		ib.Clear()
		for _, v := range tr {
			ib.Add2TAInt(v)
		}
		bag.Add(ib.FinTA(1))
	}
	ib.SetApp(ib.AddInt(2), AppNone)
	perm := bag.Recode(2, AppBody, -1, -1)
	// item 2 is ignored, item 9 has support 2 and survives
	dropped := 0
	for _, p := range perm {
		if p < 0 {
			dropped++
		}
	}
	if dropped != 1 {
		t.Fatalf("expected exactly the ignored item to be dropped, perm=%v", perm)
	}
	if bag.ItemCnt() != 2 {
		t.Fatalf("expected 2 kept items, got %d", bag.ItemCnt())
	}
}

func TestPackSortReduce(t *testing.T) {
	tracts := [][]int64{{1, 2}, {1, 2}, {1, 2, 3}, {3}, {1, 2}}
	bag := makeBag(tracts, nil)
	bag.Recode(1, -1, -1, -1)
	bag.Pack(2)
	for i := 0; i < bag.Cnt(); i++ {
		for _, id := range bag.Tract(i).Items {
			if id < 2 {
				t.Fatalf("packed id %d left in item tail", id)
			}
		}
	}
	bag.Sort()
	bag.Reduce()
	if bag.Cnt() != 3 {
		t.Fatalf("expected 3 distinct transactions after reduce, got %d", bag.Cnt())
	}
	if bag.Wgt() != 5 {
		t.Fatalf("reduce must preserve total weight, got %d", bag.Wgt())
	}
	// the three {1,2} transactions collapse into one of weight 3
	found := false
	for i := 0; i < bag.Cnt(); i++ {
		tr := bag.Tract(i)
		if tr.Size() == 2 && tr.Wgt == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a collapsed transaction of weight 3")
	}
	// strictly increasing lexicographic order
	for i := 1; i < bag.Cnt(); i++ {
		if cmpTracts(bag.Tract(i-1), bag.Tract(i)) >= 0 {
			t.Errorf("transactions not strictly increasing at %d", i)
		}
	}
}

func TestExpandMergesBitsAndTail(t *testing.T) {
	tr := Transaction{Bits: 0b101, Items: []int{4, 7}, Wgt: 1}
	got := tr.Expand(nil)
	want := []int{0, 2, 4, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if tr.Size() != 4 {
		t.Errorf("Size: got %d, want 4", tr.Size())
	}
}

func TestIsTab(t *testing.T) {
	if !makeBag([][]int64{{1, 2}, {3, 4}, {1, 4}}, nil).IsTab() {
		t.Error("uniform sizes must form a table")
	}
	if makeBag([][]int64{{1, 2}, {3}}, nil).IsTab() {
		t.Error("mixed sizes must not form a table")
	}
}

func TestFilterRemovesShortTransactions(t *testing.T) {
	bag := makeBag([][]int64{{1, 2, 3}, {1}, {2, 3}}, nil)
	bag.Filter(2)
	if bag.Cnt() != 2 {
		t.Fatalf("expected 2 transactions, got %d", bag.Cnt())
	}
	if bag.Wgt() != 2 {
		t.Fatalf("expected weight 2, got %d", bag.Wgt())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	bag := makeBag([][]int64{{1, 2}, {2, 3}}, nil)
	cl := bag.Clone()
	cl.Tract(0).Items[0] = 99
	if bag.Tract(0).Items[0] == 99 {
		t.Error("clone shares transaction storage with the original")
	}
}
