package fim

import "testing"

func patKeys(pats []Pattern) map[string]int {
	out := make(map[string]int, len(pats))
	for _, p := range pats {
		key := ""
		for i, it := range p.Items {
			if i > 0 {
				key += ","
			}
			key += string(rune('0' + it))
		}
		out[key] = p.Supp
	}
	return out
}

func TestScenarioFCover1(t *testing.T) {
	ps := NewPatternSet(nil)
	ps.Add([]int{1, 2}, 2, 0)
	ps.Add([]int{1, 2, 3}, 2, 1)
	got := ps.Reduce(RedCover1, false)
	if len(got) != 1 {
		t.Fatalf("expected 1 survivor, got %d: %v", len(got), patKeys(got))
	}
	if len(got[0].Items) != 3 || got[0].Supp != 2 {
		t.Fatalf("expected the superset to survive, got %v", got[0])
	}
}

func TestCoinsKeepsSubsetWithExcess(t *testing.T) {
	// the subset occurs 5 times on its own beyond the superset's
	// support, which stands on its own under coins0
	ps := NewPatternSet(nil)
	ps.Add([]int{1, 2}, 7, 0)
	ps.Add([]int{1, 2, 3}, 2, 1)
	got := ps.Reduce(RedCoins0, false)
	if len(got) != 2 {
		t.Fatalf("expected both patterns to survive, got %v", patKeys(got))
	}
}

func TestItemsQuestionsSuperset(t *testing.T) {
	// under a border demanding support 5 at size 3, a size-3
	// superset of support 2 cannot justify its extra item
	ps := NewPatternSet([]int{-1, -1, -1, 5})
	ps.Add([]int{1, 2}, 7, 0)
	ps.Add([]int{1, 2, 3}, 2, 1)
	got := ps.Reduce(RedItems2, false)
	if len(got) != 1 {
		t.Fatalf("expected 1 survivor, got %v", patKeys(got))
	}
	if len(got[0].Items) != 2 {
		t.Fatalf("expected the subset to survive, got %v", got[0])
	}
}

func TestStrictRemovesBothWithoutEvidence(t *testing.T) {
	ps := NewPatternSet([]int{-1, -1, 99, 99})
	ps.Add([]int{1, 2}, 3, 0)
	ps.Add([]int{1, 2, 3}, 3, 1)
	got := ps.Reduce(RedStrict0, false)
	if len(got) != 0 {
		t.Fatalf("strict: expected no survivors, got %v", patKeys(got))
	}
}

func TestLenientKeepsStrongerCoverage(t *testing.T) {
	ps := NewPatternSet([]int{-1, -1, 99, 99})
	ps.Add([]int{1, 2}, 3, 0)
	ps.Add([]int{1, 2, 3}, 3, 1)
	got := ps.Reduce(RedLenient0, false)
	if len(got) != 1 {
		t.Fatalf("lenient: expected 1 survivor, got %v", patKeys(got))
	}
	// 3 items * 3 occurrences beats 2 * 3
	if len(got[0].Items) != 3 {
		t.Fatalf("lenient: expected the superset to survive, got %v", got[0])
	}
}

// TestReducerIdempotence applies each method twice; the second pass
// must change nothing.
func TestReducerIdempotence(t *testing.T) {
	methods := []RedMethod{
		RedCoins0, RedCoins1, RedItems2, RedCover0, RedCover1,
		RedLenient0, RedLenient1, RedStrict0, RedStrict1,
	}
	for _, method := range methods {
		ps := NewPatternSet([]int{-1, -1, 2, 3, 4})
		ps.Add([]int{1, 2}, 6, 0)
		ps.Add([]int{1, 2, 3}, 4, 1)
		ps.Add([]int{1, 2, 3, 4}, 4, 2)
		ps.Add([]int{2, 3}, 4, 3)
		ps.Add([]int{4, 5}, 2, 4)
		once := ps.Reduce(method, false)
		again := NewPatternSet([]int{-1, -1, 2, 3, 4})
		for i, p := range once {
			again.Add(p.Items, p.Supp, i)
		}
		twice := again.Reduce(method, false)
		a, b := patKeys(once), patKeys(twice)
		if len(a) != len(b) {
			t.Fatalf("method %d not idempotent: %v then %v", method, a, b)
		}
		for k, s := range a {
			if b[k] != s {
				t.Errorf("method %d not idempotent at %q: %d != %d", method, k, b[k], s)
			}
		}
	}
}

func TestReduceNoneKeepsEverything(t *testing.T) {
	ps := NewPatternSet(nil)
	ps.Add([]int{1, 2}, 2, 0)
	ps.Add([]int{1, 2, 3}, 2, 1)
	if got := ps.Reduce(RedNone, false); len(got) != 2 {
		t.Fatalf("none: expected 2 patterns, got %d", len(got))
	}
}

func TestAddIntersections(t *testing.T) {
	ps := NewPatternSet(nil)
	ps.Add([]int{1, 2, 3}, 4, 0)
	ps.Add([]int{2, 3, 4}, 5, 1)
	got := ps.Reduce(RedCoins0, true)
	found := false
	for _, p := range got {
		if len(p.Items) == 2 && p.Items[0] == 2 && p.Items[1] == 3 {
			found = true
			if p.Supp != 5 {
				t.Errorf("intersection support: got %d, want 5", p.Supp)
			}
			if p.Orig != -1 {
				t.Errorf("intersection must not map to an input pattern")
			}
		}
	}
	if !found {
		t.Fatalf("expected the intersection {2,3} to be added, got %v", patKeys(got))
	}
}
