package fim

import (
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestRuleEvalBasics(t *testing.T) {
	// supp(B+h)=20, supp(B)=40, supp(h)=50, W=100
	tests := []struct {
		name string
		m    Measure
		want float64
	}{
		{"support", EvalSupp, 0.2},
		{"confidence", EvalConf, 0.5},
		{"confdiff", EvalConfDiff, 0.0},
		{"lift", EvalLift, 1.0},
		{"liftdiff", EvalLiftDiff, 0.0},
		{"liftquot", EvalLiftQuot, 0.0},
		{"conviction", EvalCvct, 1.0},
		{"certainty", EvalCert, 0.0},
		{"chi2 at independence", EvalChi2, 0.0},
		{"info at independence", EvalInfo, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RuleEval(tt.m, 20, 40, 50, 100)
			if !almost(got, tt.want) {
				t.Errorf("got %g, want %g", got, tt.want)
			}
		})
	}
}

func TestRuleEvalDependence(t *testing.T) {
	// perfectly dependent: h occurs exactly with B
	// table: a=30, b=0, c=0, d=70, W=100
	if got := RuleEval(EvalConf, 30, 30, 30, 100); !almost(got, 1.0) {
		t.Errorf("conf: got %g, want 1", got)
	}
	if got := RuleEval(EvalLift, 30, 30, 30, 100); !almost(got, 100.0/30.0) {
		t.Errorf("lift: got %g, want %g", got, 100.0/30.0)
	}
	chi := RuleEval(EvalChi2, 30, 30, 30, 100)
	if !almost(chi, 100) {
		// for a perfect 2x2 association chi^2 equals W
		t.Errorf("chi2: got %g, want 100", chi)
	}
	p := RuleEval(EvalChi2PVal, 30, 30, 30, 100)
	if p > 1e-20 {
		t.Errorf("chi2 p-value of a perfect association too large: %g", p)
	}
}

func TestDegenerateMarginalsReturnZero(t *testing.T) {
	measures := []Measure{
		EvalConf, EvalLift, EvalChi2, EvalChi2PVal, EvalInfo,
		EvalFetProb, EvalFetSupp, EvalCvct, EvalCert, EvalImport,
	}
	for _, m := range measures {
		if got := RuleEval(m, 0, 0, 0, 100); got != 0 {
			t.Errorf("measure %d with zero marginals: got %g, want 0", m, got)
		}
		if got := RuleEval(m, 0, 0, 50, 100); got != 0 {
			t.Errorf("measure %d with zero body: got %g, want 0", m, got)
		}
	}
}

func TestChi2PValAgainstKnownQuantiles(t *testing.T) {
	// chi^2_1 critical values: P(X >= 3.841) = 0.05, P(X >= 6.635) = 0.01
	if p := chi2PVal(3.841459); math.Abs(p-0.05) > 1e-4 {
		t.Errorf("p(3.84): got %g, want 0.05", p)
	}
	if p := chi2PVal(6.634897); math.Abs(p-0.01) > 1e-4 {
		t.Errorf("p(6.63): got %g, want 0.01", p)
	}
	if p := chi2PVal(0); p != 1 {
		t.Errorf("p(0): got %g, want 1", p)
	}
}

func TestFisherTails(t *testing.T) {
	// Fisher's classic tea tasting table: a=3, body=4, head=4, n=8
	// one-sided upper tail: P(a=3) + P(a=4) = 16/70 + 1/70
	want := 17.0 / 70.0
	if got := RuleEval(EvalFetSupp, 3, 4, 4, 8); math.Abs(got-want) > 1e-9 {
		t.Errorf("fetsupp: got %g, want %g", got, want)
	}
	// the likelihood tail adds the symmetric opposite corner
	if got := RuleEval(EvalFetProb, 3, 4, 4, 8); got < want || got > 0.5 {
		t.Errorf("fetprob: got %g, expected in (%g, 0.5)", got, want)
	}
	// tails are probabilities
	for k := 0; k <= 4; k++ {
		p := RuleEval(EvalFetSupp, k, 4, 4, 8)
		if p < 0 || p > 1 {
			t.Errorf("fetsupp(%d) out of range: %g", k, p)
		}
	}
}

func TestInfoGTest(t *testing.T) {
	// G = 2*W*I must match the chi^2 approximation loosely on a
	// strongly associated table
	info := RuleEval(EvalInfo, 40, 50, 50, 100)
	if info <= 0 {
		t.Fatalf("info of an associated table must be positive, got %g", info)
	}
	p := RuleEval(EvalInfoPVal, 40, 50, 50, 100)
	if p <= 0 || p >= 0.05 {
		t.Errorf("infopval: got %g, expected a small positive value", p)
	}
}

func TestSetLdRatio(t *testing.T) {
	// supp 4 of 8, items with frequencies 4 and 4: lift of the pair
	// is 2, so the binary log of the quotient is 1
	got := SetLdRatio(4, []int{4, 4}, 8)
	if !almost(got, 1.0) {
		t.Errorf("ldratio: got %g, want 1", got)
	}
	if SetLdRatio(0, []int{4}, 8) != 0 {
		t.Error("zero support must yield 0")
	}
}

func TestLnGammaAndChoose(t *testing.T) {
	if !almost(math.Exp(lnGamma(5)), 24) {
		t.Errorf("gamma(5): got %g, want 24", math.Exp(lnGamma(5)))
	}
	if !almost(math.Exp(lnChoose(8, 4)), 70) {
		t.Errorf("C(8,4): got %g, want 70", math.Exp(lnChoose(8, 4)))
	}
}
