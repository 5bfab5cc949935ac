package fim

import (
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
)

func TestScenarioEIdentitySpectrum(t *testing.T) {
	bag := makeBag(scenarioTracts, nil)
	psp, err := GenPsp(bag, GenPspConfig{
		Target: TargetSets,
		Supp:   -2,
		ZMin:   1,
		ZMax:   -1,
		Cnt:    1,
		Surr:   SurrIdentity,
		Seed:   1,
	})
	if err != nil {
		t.Fatalf("GenPsp: %v", err)
	}
	want := map[[2]int]float64{
		{1, 3}: 2, // items 2 and 3
		{1, 4}: 1, // item 1
		{2, 2}: 3, // the three frequent pairs
	}
	for k, frq := range want {
		if got := psp.GetFrq(k[0], k[1]); got != frq {
			t.Errorf("psp[%d][%d]: got %g, want %g", k[0], k[1], got, frq)
		}
	}
	if psp.Total() != 6 {
		t.Errorf("total frequency: got %g, want 6", psp.Total())
	}
}

// TestSpectrumConservation checks that the spectrum counts exactly
// the patterns the surrogate runs reported.
func TestSpectrumConservation(t *testing.T) {
	bag := makeBag(scenarioTracts, nil)
	const runs = 8
	psp, err := GenPsp(bag, GenPspConfig{
		Target: TargetSets,
		Supp:   -2,
		ZMin:   1,
		ZMax:   -1,
		Cnt:    runs,
		Surr:   SurrSwap,
		Seed:   42,
		CPUs:   3,
	})
	if err != nil {
		t.Fatalf("GenPsp: %v", err)
	}
	if psp.Total() <= 0 {
		t.Fatal("expected a populated spectrum")
	}
	// the sum over all cells equals the total pattern count over all
	// runs, which is a whole number
	if math.Abs(psp.Total()-math.Round(psp.Total())) > 1e-9 {
		t.Errorf("spectrum total %g is not a whole pattern count", psp.Total())
	}
	// entries must be sorted and scaled consistently
	entries := psp.Entries(1.0 / runs)
	sum := 0.0
	for i, e := range entries {
		sum += e.Frq * runs
		if i > 0 {
			prev := entries[i-1]
			if e.Size < prev.Size || (e.Size == prev.Size && e.Supp <= prev.Supp) {
				t.Errorf("entries not ordered at %d: %+v after %+v", i, e, prev)
			}
		}
	}
	if math.Abs(sum-psp.Total()) > 1e-6 {
		t.Errorf("scaled entries sum %g, spectrum total %g", sum, psp.Total())
	}
}

func TestSwapSurrogatePreservesMarginals(t *testing.T) {
	bag := makeBag([][]int64{{1, 2, 3}, {2, 3, 4}, {1, 3, 4}, {1, 2, 4}}, nil)
	freqs := make([]int, bag.ItemCnt())
	for i := range freqs {
		freqs[i] = bag.Base().Freq(i)
	}
	sizes := make([]int, bag.Cnt())
	for i := range sizes {
		sizes[i] = bag.Tract(i).Size()
	}
	sw := bag.Clone()
	applySurrogate(sw, SurrSwap, rand.New(rand.NewSource(99)))
	for i := range sizes {
		if sw.Tract(i).Size() != sizes[i] {
			t.Errorf("swap changed the size of transaction %d", i)
		}
	}
	got := make([]int, bag.ItemCnt())
	var buf []int
	for i := 0; i < sw.Cnt(); i++ {
		buf = sw.Tract(i).Expand(buf[:0])
		for _, it := range buf {
			got[it] += sw.Tract(i).Wgt
		}
	}
	for i := range freqs {
		if got[i] != freqs[i] {
			t.Errorf("swap changed the frequency of item %d: %d != %d", i, got[i], freqs[i])
		}
	}
}

func TestShuffleRequiresTable(t *testing.T) {
	bag := makeBag([][]int64{{1, 2}, {3}}, nil)
	_, err := GenPsp(bag, GenPspConfig{
		Target: TargetSets, Supp: -1, ZMin: 1, ZMax: -1,
		Cnt: 2, Surr: SurrShuffle, Seed: 1,
	})
	if err == nil {
		t.Fatal("expected an error for shuffle surrogates on non-table data")
	}
}

func TestGenPspAbort(t *testing.T) {
	bag := makeBag(scenarioTracts, nil)
	var abort atomic.Bool
	abort.Store(true)
	_, err := GenPsp(bag, GenPspConfig{
		Target: TargetSets, Supp: -2, ZMin: 1, ZMax: -1,
		Cnt: 10, Surr: SurrSwap, Seed: 1, Abort: &abort,
	})
	if err != ErrAborted {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestEstPspShape(t *testing.T) {
	bag := makeBag(scenarioTracts, nil)
	bag.Recode(2, -1, -1, -2)
	psp := EstPsp(bag, EstPspConfig{
		Target: TargetSets, Supp: -2, ZMin: 1, ZMax: 3,
		Equiv: 100, Alpha: 0.5, Smpls: 50, Seed: 3,
	})
	// singleton cells are exact
	if got := psp.GetFrq(1, 4); got != 100 {
		t.Errorf("psp[1][4]: got %g, want 100 (equiv-scaled)", got)
	}
	if got := psp.GetFrq(1, 3); got != 200 {
		t.Errorf("psp[1][3]: got %g, want 200", got)
	}
	// estimated cells must never be negative and must not appear
	// below the minimum support
	for _, e := range psp.Entries(0.01) {
		if e.Frq < 0 {
			t.Errorf("negative estimate in cell (%d,%d)", e.Size, e.Supp)
		}
		if e.Supp < 2 {
			t.Errorf("estimate below minimum support in cell (%d,%d)", e.Size, e.Supp)
		}
	}
}

func TestPatSpecMerge(t *testing.T) {
	a, b := NewPatSpec(), NewPatSpec()
	a.Add(2, 3)
	a.Add(2, 3)
	b.Add(2, 3)
	b.Add(1, 5)
	a.Merge(b)
	if a.GetFrq(2, 3) != 3 || a.GetFrq(1, 5) != 1 || a.Total() != 4 {
		t.Errorf("merge result wrong: %g %g %g", a.GetFrq(2, 3), a.GetFrq(1, 5), a.Total())
	}
}
