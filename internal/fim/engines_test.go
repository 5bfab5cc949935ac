package fim

import (
	"fmt"
	"sort"
	"strings"
	"testing"
)

// scenarioTracts is the five-transaction database used throughout
// the end-to-end tests.
var scenarioTracts = [][]int64{
	{1, 2, 3},
	{1, 2},
	{1, 3},
	{2, 3},
	{1},
}

func makeBag(tracts [][]int64, wgts []int) *Bag {
	ib := NewIntBase()
	bag := NewBag(ib)
	for i, tr := range tracts {
		ib.Clear()
		for _, v := range tr {
			ib.Add2TAInt(v)
		}
		w := 1
		if wgts != nil {
			w = wgts[i]
		}
		bag.Add(ib.FinTA(w))
	}
	return bag
}

// setKey renders internal item ids as a canonical external key like
// "1,2,3".
func setKey(base *ItemBase, items []int) string {
	ext := make([]int64, len(items))
	for i, id := range items {
		ext[i] = base.IntObj(id)
	}
	sort.Slice(ext, func(i, j int) bool { return ext[i] < ext[j] })
	parts := make([]string, len(ext))
	for i, v := range ext {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

// mineSets runs one engine over the transactions and collects the
// reported (itemset, support) pairs keyed by external item values.
func mineSets(t *testing.T, engine string, opts Options, tracts [][]int64, wgts []int) map[string]int {
	t.Helper()
	bag := makeBag(tracts, wgts)
	m, err := NewMiner(engine, opts)
	if err != nil {
		t.Fatalf("NewMiner(%s): %v", engine, err)
	}
	if err := m.Data(bag); err != nil {
		t.Fatalf("%s.Data: %v", engine, err)
	}
	out := make(map[string]int)
	m.Report(func(items []int, supp int, info []float64) {
		key := setKey(bag.Base(), items)
		if old, dup := out[key]; dup {
			t.Errorf("%s reported %q twice (supp %d and %d)", engine, key, old, supp)
		}
		out[key] = supp
	}, nil)
	if err := m.Mine(); err != nil {
		t.Fatalf("%s.Mine: %v", engine, err)
	}
	return out
}

var allEngines = []string{"apriori", "eclat", "fpgrowth", "sam", "relim"}

func absOpts(target Target, smin int) Options {
	o := DefaultOptions()
	o.Target = target
	o.Supp = -float64(smin)
	return o
}

func TestScenarioAFrequentSets(t *testing.T) {
	want := map[string]int{
		"1": 4, "2": 3, "3": 3,
		"1,2": 2, "1,3": 2, "2,3": 2,
	}
	for _, engine := range allEngines {
		t.Run(engine, func(t *testing.T) {
			got := mineSets(t, engine, absOpts(TargetSets, 2), scenarioTracts, nil)
			if len(got) != len(want) {
				t.Fatalf("got %d sets %v, want %d", len(got), got, len(want))
			}
			for k, s := range want {
				if got[k] != s {
					t.Errorf("set %q: got support %d, want %d", k, got[k], s)
				}
			}
		})
	}
}

func TestScenarioBClosedSets(t *testing.T) {
	// every frequent set of scenario A is closed: no superset
	// matches its support
	want := map[string]int{
		"1": 4, "2": 3, "3": 3,
		"1,2": 2, "1,3": 2, "2,3": 2,
	}
	for _, engine := range append(allEngines, "carpenter", "ista") {
		t.Run(engine, func(t *testing.T) {
			got := mineSets(t, engine, absOpts(TargetClosed, 2), scenarioTracts, nil)
			if len(got) != len(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
			for k, s := range want {
				if got[k] != s {
					t.Errorf("closed set %q: got support %d, want %d", k, got[k], s)
				}
			}
		})
	}
}

func TestScenarioCMaximalSets(t *testing.T) {
	want := map[string]int{"1,2": 2, "1,3": 2, "2,3": 2}
	for _, engine := range append(allEngines, "carpenter", "ista") {
		t.Run(engine, func(t *testing.T) {
			got := mineSets(t, engine, absOpts(TargetMaximal, 2), scenarioTracts, nil)
			if len(got) != len(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
			for k, s := range want {
				if got[k] != s {
					t.Errorf("maximal set %q: got support %d, want %d", k, got[k], s)
				}
			}
		})
	}
}

func TestGeneratorsTarget(t *testing.T) {
	// on a database where {2,3} has the same support as {2}, the
	// larger set is no generator
	tracts := [][]int64{{2, 3}, {2, 3}, {1, 2, 3}, {1}}
	want := map[string]int{"1": 2, "2": 3, "3": 3, "1,2": 1, "1,3": 1}
	opts := absOpts(TargetGeneras, 1)
	for _, engine := range allEngines {
		t.Run(engine, func(t *testing.T) {
			got := mineSets(t, engine, opts, tracts, nil)
			if len(got) != len(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
			for k, s := range want {
				if got[k] != s {
					t.Errorf("generator %q: got support %d, want %d", k, got[k], s)
				}
			}
		})
	}
}

func TestScenarioDRules(t *testing.T) {
	type rule struct {
		supp int
		conf float64
	}
	want := map[string]rule{
		"2->1": {2, 2.0 / 3.0},
		"3->1": {2, 2.0 / 3.0},
		"2->3": {2, 2.0 / 3.0},
		"3->2": {2, 2.0 / 3.0},
		"1->2": {2, 0.5}, // below conf, must NOT appear
		"1->3": {2, 0.5},
	}
	for _, engine := range allEngines {
		t.Run(engine, func(t *testing.T) {
			bag := makeBag(scenarioTracts, nil)
			opts := DefaultOptions()
			opts.Target = TargetRules
			opts.Supp = -2
			opts.Conf = 60
			opts.Report = "aC"
			m, err := NewMiner(engine, opts)
			if err != nil {
				t.Fatal(err)
			}
			if err := m.Data(bag); err != nil {
				t.Fatal(err)
			}
			got := make(map[string]rule)
			m.Report(nil, func(head int, body []int, supp int, info []float64) {
				key := fmt.Sprintf("%s->%d", setKey(bag.Base(), body), bag.Base().IntObj(head))
				got[key] = rule{supp: supp, conf: info[1] / 100}
			})
			if err := m.Mine(); err != nil {
				t.Fatal(err)
			}
			if len(got) != 4 {
				t.Fatalf("expected 4 rules, got %v", got)
			}
			for k, r := range got {
				w, ok := want[k]
				if !ok {
					t.Errorf("unexpected rule %q", k)
					continue
				}
				if w.conf < 0.6 {
					t.Errorf("rule %q should have been rejected (conf %.2f)", k, w.conf)
				}
				if r.supp != w.supp {
					t.Errorf("rule %q: got support %d, want %d", k, r.supp, w.supp)
				}
				if diff := r.conf - w.conf; diff > 0.001 || diff < -0.001 {
					t.Errorf("rule %q: got confidence %.3f, want %.3f", k, r.conf, w.conf)
				}
			}
		})
	}
}

// TestEngineEquivalence cross-checks all engines and all eclat
// variants on a larger database: identical inputs must produce the
// identical (itemset, support) relation.
func TestEngineEquivalence(t *testing.T) {
	tracts := [][]int64{
		{1, 2, 3, 4}, {2, 3, 5}, {1, 4, 5}, {1, 2, 3}, {3, 4, 5},
		{1, 3, 4}, {2, 4}, {1, 2, 3, 5}, {3, 4}, {1, 3},
		{2, 3, 4, 5}, {1, 2}, {4, 5}, {1, 3, 5}, {2, 3},
	}
	wgts := []int{1, 2, 1, 1, 3, 1, 1, 1, 2, 1, 1, 1, 1, 2, 1}
	for _, smin := range []int{2, 3, 5} {
		ref := mineSets(t, "fpgrowth", absOpts(TargetSets, smin), tracts, wgts)
		for _, engine := range allEngines {
			got := mineSets(t, engine, absOpts(TargetSets, smin), tracts, wgts)
			if len(got) != len(ref) {
				t.Fatalf("smin=%d %s: %d sets, fpgrowth found %d", smin, engine, len(got), len(ref))
			}
			for k, s := range ref {
				if got[k] != s {
					t.Errorf("smin=%d %s: set %q support %d, want %d", smin, engine, k, got[k], s)
				}
			}
		}
		for _, algo := range []byte{'i', 'b', 't', 'd', 'r', 'o'} {
			opts := absOpts(TargetSets, smin)
			opts.Algo = algo
			got := mineSets(t, "eclat", opts, tracts, wgts)
			if len(got) != len(ref) {
				t.Fatalf("smin=%d eclat/%c: %d sets, want %d: %v", smin, algo, len(got), len(ref), got)
			}
			for k, s := range ref {
				if got[k] != s {
					t.Errorf("smin=%d eclat/%c: set %q support %d, want %d", smin, algo, k, got[k], s)
				}
			}
		}
	}
}

// TestSupportMonotonicity verifies supp(T) <= supp(S) for S subset
// of T over all reported sets.
func TestSupportMonotonicity(t *testing.T) {
	tracts := [][]int64{
		{1, 2, 3, 4}, {2, 3, 5}, {1, 4, 5}, {1, 2, 3}, {3, 4, 5}, {1, 3, 4},
	}
	got := mineSets(t, "eclat", absOpts(TargetSets, 1), tracts, nil)
	for a, sa := range got {
		for b, sb := range got {
			if a == b || !keySubset(a, b) {
				continue
			}
			if sb > sa {
				t.Errorf("support monotonicity violated: %q:%d superset %q:%d", a, sa, b, sb)
			}
		}
	}
}

func keySubset(a, b string) bool {
	bs := make(map[string]bool)
	for _, p := range strings.Split(b, ",") {
		bs[p] = true
	}
	for _, p := range strings.Split(a, ",") {
		if !bs[p] {
			return false
		}
	}
	return true
}

func TestBoundaryCases(t *testing.T) {
	t.Run("empty database", func(t *testing.T) {
		got := mineSets(t, "fpgrowth", absOpts(TargetSets, 1), nil, nil)
		if len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
	})
	t.Run("single transaction all subsets", func(t *testing.T) {
		got := mineSets(t, "eclat", absOpts(TargetSets, 1), [][]int64{{1, 2, 3, 4}}, nil)
		if len(got) != 15 {
			t.Errorf("expected 2^4-1 = 15 subsets, got %d: %v", len(got), got)
		}
	})
	t.Run("singletons only", func(t *testing.T) {
		opts := absOpts(TargetSets, 2)
		opts.ZMin, opts.ZMax = 1, 1
		got := mineSets(t, "apriori", opts, scenarioTracts, nil)
		want := map[string]int{"1": 4, "2": 3, "3": 3}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})
	t.Run("smin above total weight", func(t *testing.T) {
		got := mineSets(t, "sam", absOpts(TargetSets, 99), scenarioTracts, nil)
		if len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
	})
	t.Run("zero frequent items is not an error", func(t *testing.T) {
		bag := makeBag(scenarioTracts, nil)
		m := NewFPGrowth(absOpts(TargetSets, 99))
		if err := m.Data(bag); err != nil {
			t.Fatal(err)
		}
		m.Report(func([]int, int, []float64) { t.Error("unexpected emission") }, nil)
		if err := m.Mine(); err != nil {
			t.Fatalf("expected empty success, got %v", err)
		}
	})
}

func TestBorderFilter(t *testing.T) {
	opts := absOpts(TargetSets, 1)
	opts.Border = []int{-1, 4, 3} // size 1 needs supp 4, size 2 needs 3
	got := mineSets(t, "eclat", opts, scenarioTracts, nil)
	// size 3 has no border entry, so {1,2,3} only needs smin 1
	want := map[string]int{"1": 4, "1,2,3": 1}
	if len(got) != len(want) || got["1"] != 4 || got["1,2,3"] != 1 {
		t.Fatalf("border filter: got %v, want %v", got, want)
	}
	for k, s := range got {
		z := len(strings.Split(k, ","))
		if z < len(opts.Border) && opts.Border[z] >= 0 && s < opts.Border[z] {
			t.Errorf("set %q of size %d violates border %d", k, z, opts.Border[z])
		}
	}
}

func TestModeFlagVariants(t *testing.T) {
	// the operational toggles must not change the mined relation
	ref := mineSets(t, "eclat", absOpts(TargetSets, 2), scenarioTracts, nil)
	for _, mode := range []string{"x", "l", "i", "u", "xliu", "q?z"} {
		opts := absOpts(TargetSets, 2)
		opts.Mode = ParseMode(mode)
		got := mineSets(t, "eclat", opts, scenarioTracts, nil)
		if len(got) != len(ref) {
			t.Fatalf("mode %q: got %v, want %v", mode, got, ref)
		}
		for k, s := range ref {
			if got[k] != s {
				t.Errorf("mode %q: set %q support %d, want %d", mode, k, got[k], s)
			}
		}
	}
}

func TestPercentageSupport(t *testing.T) {
	// 40% of total weight 5 -> absolute support 2
	opts := DefaultOptions()
	opts.Supp = 40
	got := mineSets(t, "fpgrowth", opts, scenarioTracts, nil)
	if len(got) != 6 {
		t.Fatalf("40%% support: expected 6 sets, got %v", got)
	}
}
