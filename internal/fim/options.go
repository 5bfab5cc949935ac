package fim

import (
	"fmt"
	"strings"
)

// Target selects what the mining run reports.
type Target int

const (
	TargetSets    Target = iota // all frequent item sets
	TargetClosed                // closed frequent item sets
	TargetMaximal               // maximal frequent item sets
	TargetGeneras               // generators (free sets)
	TargetRules                 // association rules
)

// Appearance flags restrict where an item may occur in a rule.
const (
	AppNone = 0 // item is ignored entirely
	AppBody = 1 // antecedent only
	AppHead = 2 // consequent only
	AppBoth = 3 // antecedent and consequent
)

// Agg selects how per-head rule measures are aggregated when a set
// target is combined with a rule evaluation measure.
type Agg int

const (
	AggNone Agg = iota
	AggMin
	AggMax
	AggAvg
)

// Surrogate identifies the surrogate data generation method used for
// pattern spectrum estimation.
type Surrogate int

const (
	SurrIdentity Surrogate = iota // original data, single run
	SurrRandom                    // per-occurrence random item replacement
	SurrSwap                      // pairwise item swaps between transactions
	SurrShuffle                   // column-wise shuffle (table data only)
)

// RedMethod identifies a pattern set reduction criterion.
type RedMethod int

const (
	RedNone RedMethod = iota
	RedCoins0
	RedCoins1
	RedItems2
	RedCover0
	RedCover1
	RedLenient0
	RedLenient1
	RedStrict0
	RedStrict1
)

// ModeFlags are the single-character operation toggles shared by all
// mining engines. Unknown characters in a mode string are ignored so
// that engine-specific extensions remain possible.
type ModeFlags struct {
	OrigSupp  bool // 'o': count support against the original database
	NoPex     bool // 'x': disable perfect extension pruning
	NoPack    bool // 'l': disable 16-item bitmap packing
	NoReorder bool // 'i': do not reorder items by frequency
	NoTail    bool // 'u': disable tail/chain handling in eclat
}

// ParseMode decodes a mode string into typed flags.
func ParseMode(s string) ModeFlags {
	var m ModeFlags
	for _, c := range s {
		switch c {
		case 'o':
			m.OrigSupp = true
		case 'x':
			m.NoPex = true
		case 'l':
			m.NoPack = true
		case 'i':
			m.NoReorder = true
		case 'u':
			m.NoTail = true
		}
	}
	return m
}

// ParseTarget translates a target name or single-character code.
// Accepted codes are a subset per miner: e.g. carpenter and ista only
// support closed and maximal targets.
func ParseTarget(s string, allowed string) (Target, error) {
	switch strings.ToLower(s) {
	case "set", "sets", "all", "allset", "allsets", "frq", "freq",
		"frequent", "frqset", "frqsets", "freqset", "freqsets":
		s = "s"
	case "cls", "clsd", "closed":
		s = "c"
	case "max", "maxi", "maximal":
		s = "m"
	case "gen", "gens", "generas", "generators":
		s = "g"
	case "rule", "rules", "arule", "arules":
		s = "r"
	case "":
		s = "s"
	}
	if len(s) != 1 || !strings.Contains(allowed, s) {
		return 0, fmt.Errorf("invalid target %q", s)
	}
	switch s[0] {
	case 's', 'a', 'f':
		return TargetSets, nil
	case 'c':
		return TargetClosed, nil
	case 'm':
		return TargetMaximal, nil
	case 'g':
		return TargetGeneras, nil
	case 'r':
		return TargetRules, nil
	}
	return 0, fmt.Errorf("invalid target %q", s)
}

// ParseEval translates an evaluation measure name or code.
func ParseEval(s string) (Measure, error) {
	switch strings.ToLower(s) {
	case "none", "":
		s = "x"
	case "supp", "support":
		s = "o"
	case "conf", "confidence":
		s = "c"
	case "confdiff":
		s = "d"
	case "lift":
		s = "l"
	case "liftdiff":
		s = "a"
	case "liftquot":
		s = "q"
	case "cvct", "conviction":
		s = "v"
	case "cvctdiff":
		s = "e"
	case "cvctquot":
		s = "r"
	case "cprob":
		s = "k"
	case "import", "importance":
		s = "j"
	case "cert":
		s = "z"
	case "chi2", "x2":
		s = "n"
	case "chi2pval", "x2pval":
		s = "p"
	case "yates":
		s = "y"
	case "yatespval":
		s = "t"
	case "info":
		s = "i"
	case "infopval", "gpval":
		s = "g"
	case "fetprob":
		s = "f"
	case "fetchi2", "fetx2":
		s = "h"
	case "fetinfo":
		s = "m"
	case "fetsupp":
		s = "s"
	case "ldratio":
		s = "b"
	}
	if len(s) == 1 {
		if m, ok := evalCodes[s[0]]; ok {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid evaluation measure %q", s)
}

var evalCodes = map[byte]Measure{
	'x': EvalNone, 'o': EvalSupp, 'c': EvalConf, 'd': EvalConfDiff,
	'l': EvalLift, 'a': EvalLiftDiff, 'q': EvalLiftQuot, 'v': EvalCvct,
	'e': EvalCvctDiff, 'r': EvalCvctQuot, 'k': EvalCProb, 'j': EvalImport,
	'z': EvalCert, 'n': EvalChi2, 'p': EvalChi2PVal, 'y': EvalYates,
	't': EvalYatesPVal, 'i': EvalInfo, 'g': EvalInfoPVal, 'f': EvalFetProb,
	'h': EvalFetChi2, 'm': EvalFetInfo, 's': EvalFetSupp, 'b': EvalLdRatio,
}

// ParseStat translates a statistic name for the accretion-style
// significance filter. Statistics map onto the p-value measures.
func ParseStat(s string) (Measure, error) {
	switch strings.ToLower(s) {
	case "none":
		return EvalNone, nil
	case "x2", "chi2", "x2pval", "chi2pval":
		return EvalChi2PVal, nil
	case "yates", "yatespval":
		return EvalYatesPVal, nil
	case "info", "infopval", "gpval":
		return EvalInfoPVal, nil
	case "fetprob":
		return EvalFetProb, nil
	case "fetx2", "fetchi2":
		return EvalFetChi2, nil
	case "fetinfo":
		return EvalFetInfo, nil
	case "fetsupp":
		return EvalFetSupp, nil
	}
	if len(s) == 1 {
		switch s[0] {
		case 'x':
			return EvalNone, nil
		case 'c', 'p', 'n':
			return EvalChi2PVal, nil
		case 'y', 't':
			return EvalYatesPVal, nil
		case 'i', 'g':
			return EvalInfoPVal, nil
		case 'f':
			return EvalFetProb, nil
		case 'h':
			return EvalFetChi2, nil
		case 'm':
			return EvalFetInfo, nil
		case 's':
			return EvalFetSupp, nil
		}
	}
	return 0, fmt.Errorf("invalid statistic %q", s)
}

// ParseAgg translates an aggregation mode name or code.
func ParseAgg(s string) (Agg, error) {
	switch strings.ToLower(s) {
	case "none", "x", "":
		return AggNone, nil
	case "min", "minimum", "m":
		return AggMin, nil
	case "max", "maximum", "n":
		return AggMax, nil
	case "avg", "average", "a":
		return AggAvg, nil
	}
	return 0, fmt.Errorf("invalid aggregation mode %q", s)
}

// ParseSurrogate translates a surrogate method name or code.
func ParseSurrogate(s string) (Surrogate, error) {
	switch strings.ToLower(s) {
	case "ident", "identity", "i":
		return SurrIdentity, nil
	case "random", "randomize", "r":
		return SurrRandom, nil
	case "swap", "perm", "permute", "s":
		return SurrSwap, nil
	case "shuffle", "h":
		return SurrShuffle, nil
	}
	return 0, fmt.Errorf("invalid surrogate method %q", s)
}

// ParseRedMethod translates a pattern set reduction method name.
func ParseRedMethod(s string) (RedMethod, error) {
	switch s {
	case "none", "x":
		return RedNone, nil
	case "coins", "coins0", "c":
		return RedCoins0, nil
	case "coins1", "coins+1", "C":
		return RedCoins1, nil
	case "items", "items2", "neurons", "i":
		return RedItems2, nil
	case "cover", "cover0", "covered", "covered0", "s":
		return RedCover0, nil
	case "cover1", "covered1", "S":
		return RedCover1, nil
	case "leni", "leni0", "lenient", "lenient0", "l":
		return RedLenient0, nil
	case "leni1", "lenient1", "L":
		return RedLenient1, nil
	case "strict", "strict0", "t":
		return RedStrict0, nil
	case "strict1", "T":
		return RedStrict1, nil
	}
	return 0, fmt.Errorf("invalid reduction method %q", s)
}

// algoAliases maps the textual algorithm variant names of each
// engine to their single-character codes. Note that "table" and
// "tids" are distinct carpenter variants (the historical option
// table listed "table" twice, shadowing the tidlist alias).
var algoAliases = map[string]map[string]byte{
	"apriori": {
		"auto": 'a', "basic": 'b',
	},
	"eclat": {
		"auto": 'a', "basic": 'e', "lists": 'i', "tids": 'i',
		"bits": 'b', "table": 't', "simple": 's', "ranges": 'r',
		"occdlv": 'o', "occdeliver": 'o', "diffs": 'd', "diffsets": 'd',
	},
	"fpgrowth": {
		"auto": 's', "simple": 's', "complex": 'c', "single": 'd',
		"topdown": 't',
	},
	"sam": {
		"auto": 'b', "basic": 's', "bsearch": 'b', "double": 'd',
		"tree": 't',
	},
	"relim": {
		"auto": 's', "basic": 's',
	},
	"carpenter": {
		"auto": 'a', "table": 't', "tids": 'l', "tidlist": 'l',
	},
	"ista": {
		"auto": 'a', "prefix": 'x', "patricia": 'p',
	},
}

var algoCodes = map[string]string{
	"apriori":   "ab",
	"eclat":     "aeibtsrod",
	"fpgrowth":  "scdt",
	"sam":       "sbdt",
	"relim":     "s",
	"carpenter": "atl",
	"ista":      "axp",
}

// ParseAlgo translates an algorithm variant name or single-character
// code for the given engine.
func ParseAlgo(engine, s string) (byte, error) {
	engine = strings.ToLower(engine)
	aliases, ok := algoAliases[engine]
	if !ok {
		return 0, fmt.Errorf("unknown mining engine %q", engine)
	}
	if s == "" {
		s = "auto"
	}
	if c, ok := aliases[strings.ToLower(s)]; ok {
		return c, nil
	}
	if len(s) == 1 && strings.Contains(algoCodes[engine], s) {
		return s[0], nil
	}
	return 0, fmt.Errorf("invalid %s algorithm %q", engine, s)
}

// ParseApp translates an item appearance indicator given as a string:
// a character ('-', 'a', 'c', 'x' and common single-letter aliases) or
// a textual alias. Bit-encoded integer indicators (bit 0 = body,
// bit 1 = head) are not accepted here; the API converter decodes them
// itself.
func ParseApp(s string) (int, error) {
	if len(s) == 1 {
		switch s[0] {
		case 'n':
			s = "-"
		case 'i', 'b':
			s = "a"
		case 'o', 'h':
			s = "c"
		}
	} else {
		switch strings.ToLower(s) {
		case "none", "neither", "ign", "ignore":
			s = "-"
		case "in", "inp", "input", "ante", "antecedent", "body":
			s = "a"
		case "out", "output", "cons", "consequent", "head":
			s = "c"
		case "io", "i&o", "o&i", "inout", "in&out", "ac", "a&c", "c&a",
			"canda", "bh", "b&h", "h&b", "both":
			s = "x"
		}
	}
	switch s {
	case "-":
		return AppNone, nil
	case "a":
		return AppBody, nil
	case "c":
		return AppHead, nil
	case "x":
		return AppBoth, nil
	}
	return 0, fmt.Errorf("invalid appearance indicator %q", s)
}

// Options is the fully decoded parameter block every miner consumes.
// Host-facing strings are parsed exactly once at the boundary; the
// engines only ever see this struct.
type Options struct {
	Target Target
	Supp   float64 // >= 0: percent of total weight, < 0: absolute
	Conf   float64 // minimum rule confidence in percent
	ZMin   int
	ZMax   int // < 0 means unbounded
	Eval   Measure
	Agg    Agg
	Thresh float64
	Prune  int // minimum size at which the evaluation filter applies
	Algo   byte
	Mode   ModeFlags
	Border []int // per-size minimum support; < 0 disables that size
	Report string
}

// DefaultOptions mirrors the historical defaults: 10% support, 80%
// confidence, unbounded size, no evaluation filter.
func DefaultOptions() Options {
	return Options{
		Target: TargetSets,
		Supp:   10.0,
		Conf:   80.0,
		ZMin:   1,
		ZMax:   -1,
		Eval:   EvalNone,
		Agg:    AggNone,
		Thresh: 10.0,
		Algo:   'a',
		Report: "a",
	}
}

// Validate checks the option combination shared by all engines.
func (o *Options) Validate() error {
	if o.ZMin < 0 {
		return fmt.Errorf("invalid zmin %d (must be >= 0)", o.ZMin)
	}
	if o.ZMax >= 0 && o.ZMax < o.ZMin {
		return fmt.Errorf("invalid zmax %d (must be >= zmin)", o.ZMax)
	}
	if o.Conf < 0 || o.Conf > 100 {
		return fmt.Errorf("invalid conf %g (must be in [0,100])", o.Conf)
	}
	return nil
}

// AbsSupp converts the support parameter into an absolute minimum
// support for a database of total weight wgt. Percentages are scaled
// by (1-eps) before rounding up so that e.g. 10% of 20 yields 2.
func (o *Options) AbsSupp(wgt int) int {
	s := o.Supp
	if s >= 0 {
		s = s / 100.0 * float64(wgt) * (1 - 1e-12)
	} else {
		s = -s
	}
	smin := int(s)
	if float64(smin) < s {
		smin++
	}
	if smin < 1 {
		smin = 1
	}
	return smin
}

// zmaxOr returns the effective maximum size bound.
func (o *Options) zmaxOr(n int) int {
	if o.ZMax < 0 || o.ZMax > n {
		return n
	}
	return o.ZMax
}
