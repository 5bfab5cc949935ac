package fim

import "math"

// Measure identifies a rule or item set evaluation measure.
type Measure int

const (
	EvalNone      Measure = iota // no measure, filter passes everything
	EvalSupp                     // relative support of the set
	EvalConf                     // rule confidence
	EvalConfDiff                 // |confidence - head probability|
	EvalLift                     // lift
	EvalLiftDiff                 // |lift - 1|
	EvalLiftQuot                 // 1 - min(lift, 1/lift)
	EvalCvct                     // conviction
	EvalCvctDiff                 // |conviction - 1|
	EvalCvctQuot                 // 1 - min(cvct, 1/cvct)
	EvalCProb                    // conditional probability ratio
	EvalImport                   // importance: log10 of cprob
	EvalCert                     // certainty factor
	EvalChi2                     // chi^2 on the 2x2 contingency table
	EvalChi2PVal                 // upper tail p-value of chi^2
	EvalYates                    // Yates-corrected chi^2
	EvalYatesPVal                // upper tail p-value of Yates chi^2
	EvalInfo                     // mutual information (nats)
	EvalInfoPVal                 // G-test p-value (G = 2W*I under chi^2_1)
	EvalFetProb                  // Fisher exact, likelihood tail
	EvalFetChi2                  // Fisher exact, chi^2 tail
	EvalFetInfo                  // Fisher exact, information tail
	EvalFetSupp                  // Fisher exact, support tail
	EvalLdRatio                  // binary log of actual/expected support
)

// IsPVal reports whether a measure is a p-value, in which case the
// evaluation filter requires the value to be at most the threshold
// instead of at least.
func (m Measure) IsPVal() bool {
	switch m {
	case EvalChi2PVal, EvalYatesPVal, EvalInfoPVal,
		EvalFetProb, EvalFetChi2, EvalFetInfo, EvalFetSupp:
		return true
	}
	return false
}

// IsRuleMeasure reports whether a measure needs a body/head split.
func (m Measure) IsRuleMeasure() bool {
	return m != EvalNone && m != EvalSupp && m != EvalLdRatio
}

// RuleEval computes a rule measure from the supports of body+head,
// body, head and the total transaction weight. Every measure returns
// 0 when the total weight, the body support or the head support is
// zero.
func RuleEval(m Measure, supp, body, head, base int) float64 {
	if base <= 0 || body <= 0 || head <= 0 {
		return 0
	}
	s, b, h, n := float64(supp), float64(body), float64(head), float64(base)
	switch m {
	case EvalNone:
		return 0
	case EvalSupp:
		return s / n
	case EvalConf:
		return s / b
	case EvalConfDiff:
		return math.Abs(s/b - h/n)
	case EvalLift:
		return s * n / (b * h)
	case EvalLiftDiff:
		return math.Abs(s*n/(b*h) - 1)
	case EvalLiftQuot:
		q := s * n / (b * h)
		if q <= 0 {
			return 0
		}
		if q > 1 {
			q = 1 / q
		}
		return 1 - q
	case EvalCvct:
		d := b - s
		if d <= 0 {
			return 0 // clamp the infinite conviction of exact rules
		}
		return b * (n - h) / (n * d)
	case EvalCvctDiff:
		v := RuleEval(EvalCvct, supp, body, head, base)
		return math.Abs(v - 1)
	case EvalCvctQuot:
		v := RuleEval(EvalCvct, supp, body, head, base)
		if v <= 0 {
			return 0
		}
		if v > 1 {
			v = 1 / v
		}
		return 1 - v
	case EvalCProb:
		if n-b <= 0 {
			return 0
		}
		rest := (h - s) / (n - b)
		if rest <= 0 {
			return 0
		}
		return (s / b) / rest
	case EvalImport:
		v := RuleEval(EvalCProb, supp, body, head, base)
		if v <= 0 {
			return 0
		}
		return math.Log10(v)
	case EvalCert:
		p := h / n
		c := s / b
		switch {
		case c > p && p < 1:
			return (c - p) / (1 - p)
		case c < p && p > 0:
			return (c - p) / p
		}
		return 0
	case EvalChi2:
		return chi2(s, b, h, n, 0)
	case EvalChi2PVal:
		return chi2PVal(chi2(s, b, h, n, 0))
	case EvalYates:
		return chi2(s, b, h, n, 0.5)
	case EvalYatesPVal:
		return chi2PVal(chi2(s, b, h, n, 0.5))
	case EvalInfo:
		return mutualInfo(s, b, h, n)
	case EvalInfoPVal:
		return chi2PVal(2 * n * mutualInfo(s, b, h, n))
	case EvalFetProb:
		return fetTail(supp, body, head, base, fetModeProb)
	case EvalFetChi2:
		return fetTail(supp, body, head, base, fetModeChi2)
	case EvalFetInfo:
		return fetTail(supp, body, head, base, fetModeInfo)
	case EvalFetSupp:
		return fetTail(supp, body, head, base, fetModeSupp)
	}
	return 0
}

// chi2 computes the (optionally Yates-corrected) chi^2 statistic of
// the 2x2 contingency table of body vs head.
func chi2(s, b, h, n, corr float64) float64 {
	if b <= 0 || h <= 0 || b >= n || h >= n {
		return 0
	}
	d := math.Abs(s*n-b*h) - corr*n
	if d < 0 {
		d = 0
	}
	return n * d * d / (b * h * (n - b) * (n - h))
}

// chi2PVal is the upper tail probability of the chi^2 distribution
// with one degree of freedom.
func chi2PVal(x float64) float64 {
	if x <= 0 {
		return 1
	}
	return gammaQ(0.5, x/2)
}

// mutualInfo computes the mutual information of the 2x2 table in nats.
func mutualInfo(s, b, h, n float64) float64 {
	if b <= 0 || h <= 0 || b >= n || h >= n {
		return 0
	}
	cell := func(o, eb, eh float64) float64 {
		if o <= 0 {
			return 0
		}
		return o / n * math.Log(o*n/(eb*eh))
	}
	info := cell(s, b, h) +
		cell(b-s, b, n-h) +
		cell(h-s, n-b, h) +
		cell(n-b-h+s, n-b, n-h)
	if info < 0 {
		return 0 // numerical noise near independence
	}
	return info
}

const (
	fetModeProb = iota
	fetModeChi2
	fetModeInfo
	fetModeSupp
)

// fetTail computes Fisher's exact test on the 2x2 table: the sum of
// hypergeometric probabilities of all tables at least as extreme as
// the observed one, where extremity is judged by the table
// probability itself, by the chi^2 statistic, by the mutual
// information, or by the joint support.
func fetTail(supp, body, head, base, mode int) float64 {
	if body <= 0 || head <= 0 || body >= base || head >= base {
		return 0
	}
	lo := body + head - base
	if lo < 0 {
		lo = 0
	}
	hi := body
	if head < hi {
		hi = head
	}
	if supp < lo || supp > hi {
		return 0
	}
	// log P(X = k) for the hypergeometric distribution of the table
	lp := func(k int) float64 {
		return lnChoose(head, k) + lnChoose(base-head, body-k) -
			lnChoose(base, body)
	}
	obs := lp(supp)
	var stat func(k int) float64
	switch mode {
	case fetModeChi2:
		stat = func(k int) float64 {
			return chi2(float64(k), float64(body), float64(head), float64(base), 0)
		}
	case fetModeInfo:
		stat = func(k int) float64 {
			return mutualInfo(float64(k), float64(body), float64(head), float64(base))
		}
	}
	sum := 0.0
	for k := lo; k <= hi; k++ {
		switch mode {
		case fetModeProb:
			if lp(k) <= obs+1e-12 {
				sum += math.Exp(lp(k))
			}
		case fetModeSupp:
			if k >= supp {
				sum += math.Exp(lp(k))
			}
		default:
			if stat(k) >= stat(supp)-1e-12 {
				sum += math.Exp(lp(k))
			}
		}
	}
	if sum > 1 {
		sum = 1
	}
	return sum
}

// SetLdRatio computes the binary logarithm of the quotient of the
// actual support of a set and its expected support under full item
// independence.
func SetLdRatio(supp int, freqs []int, base int) float64 {
	if supp <= 0 || base <= 0 {
		return 0
	}
	v := math.Log2(float64(supp) / float64(base))
	for _, f := range freqs {
		if f <= 0 {
			return 0
		}
		v -= math.Log2(float64(f) / float64(base))
	}
	return v
}

/*--------------------------------------------------------------------
  Special functions. Kept local: the corpus carries no statistics
  dependency and the engine only needs the chi^2 tail and log-binomial
  coefficients.
--------------------------------------------------------------------*/

var lanczos = [...]float64{
	676.5203681218851, -1259.1392167224028, 771.32342877765313,
	-176.61502916214059, 12.507343278686905, -0.13857109526572012,
	9.9843695780195716e-6, 1.5056327351493116e-7,
}

// lnGamma computes the natural logarithm of the gamma function for
// positive arguments (Lanczos approximation, g=7, n=9).
func lnGamma(x float64) float64 {
	if x < 0.5 {
		// reflection formula
		return math.Log(math.Pi/math.Sin(math.Pi*x)) - lnGamma(1-x)
	}
	x--
	a := 0.99999999999980993
	for i, c := range lanczos {
		a += c / (x + float64(i) + 1)
	}
	t := x + 7.5
	return 0.5*math.Log(2*math.Pi) + (x+0.5)*math.Log(t) - t + math.Log(a)
}

// lnChoose computes log of the binomial coefficient n over k.
func lnChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	return lnGamma(float64(n)+1) - lnGamma(float64(k)+1) - lnGamma(float64(n-k)+1)
}

// gammaQ is the regularized upper incomplete gamma function Q(a, x),
// computed by series expansion for x < a+1 and by continued fraction
// otherwise.
func gammaQ(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return 1
	}
	if x == 0 {
		return 1
	}
	if x < a+1 {
		// P(a,x) via series, Q = 1 - P
		ap := a
		sum := 1.0 / a
		del := sum
		for i := 0; i < 200; i++ {
			ap++
			del *= x / ap
			sum += del
			if math.Abs(del) < math.Abs(sum)*1e-15 {
				break
			}
		}
		return 1 - sum*math.Exp(-x+a*math.Log(x)-lnGamma(a))
	}
	// continued fraction (modified Lentz)
	const tiny = 1e-300
	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	h := d
	for i := 1; i < 200; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < 1e-15 {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-lnGamma(a)) * h
}
