package shadow

import (
	"testing"

	"github.com/rawblock/itemset-engine/internal/fim"
)

func buildBag(tracts [][]int64) *fim.Bag {
	ib := fim.NewIntBase()
	bag := fim.NewBag(ib)
	for _, tr := range tracts {
		ib.Clear()
		for _, v := range tr {
			ib.Add2TAInt(v)
		}
		bag.Add(ib.FinTA(1))
	}
	return bag
}

func TestCompareEquivalentEngines(t *testing.T) {
	bag := buildBag([][]int64{{1, 2, 3}, {1, 2}, {1, 3}, {2, 3}, {1}})
	opts := fim.DefaultOptions()
	opts.Supp = -2
	res, err := NewRunner("fpgrowth", "eclat").Compare(bag, opts)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Diverged {
		t.Errorf("fpgrowth and eclat must agree, got %+v", res)
	}
	if res.Jaccard != 1 || res.SupportAgree != 1 {
		t.Errorf("expected perfect agreement, got jaccard=%g supportAgree=%g",
			res.Jaccard, res.SupportAgree)
	}
	if res.ProdPatterns != 6 {
		t.Errorf("expected 6 patterns, got %d", res.ProdPatterns)
	}
}

func TestCompareLeavesInputIntact(t *testing.T) {
	bag := buildBag([][]int64{{1, 2}, {1, 2}, {2, 3}})
	before := bag.Cnt()
	opts := fim.DefaultOptions()
	opts.Supp = -1
	if _, err := NewRunner("apriori", "sam").Compare(bag, opts); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if bag.Cnt() != before {
		t.Errorf("Compare must clone the bag, original shrank from %d to %d", before, bag.Cnt())
	}
}

func TestCompareUnknownEngine(t *testing.T) {
	bag := buildBag([][]int64{{1, 2}})
	opts := fim.DefaultOptions()
	if _, err := NewRunner("fpgrowth", "nosuch").Compare(bag, opts); err == nil {
		t.Fatal("expected an error for an unknown shadow engine")
	}
}
