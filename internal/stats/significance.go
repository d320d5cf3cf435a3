// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"math"
	"sort"
)

// TestKind names the significance test that produced a result.
type TestKind string

// Significance test kinds.
const (
	TestInsufficientData TestKind = "insufficient_data"
	TestWelch            TestKind = "welch_t_test"
	TestStudent          TestKind = "student_t_test"
	TestMannWhitney      TestKind = "mann_whitney_u"
)

// Config controls the analyzer thresholds.
type Config struct {
	SignificanceLevel float64
	MinimumSampleSize int
	MaximumSampleSize int
	ConfidenceLevel   float64
	PValueMode        PValueMode
	EqualVariance     bool
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		SignificanceLevel: 0.05,
		MinimumSampleSize: 5,
		MaximumSampleSize: 10000,
		ConfidenceLevel:   0.95,
		PValueMode:        PValueApprox,
	}
}

// Interval is a closed numeric interval.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SignificanceResult is the outcome of comparing two samples.
type SignificanceResult struct {
	Test               TestKind   `json:"test"`
	PValue             *float64   `json:"pValue"`
	Significant        bool       `json:"significant"`
	Statistic          *float64   `json:"statistic"`
	DegreesOfFreedom   float64    `json:"degreesOfFreedom,omitempty"`
	MeanDifference     float64    `json:"meanDifference"`
	ConfidenceInterval *Interval  `json:"confidenceInterval,omitempty"`
	Effect             EffectSize `json:"effectSize"`
	Normality1         Normality  `json:"normality1"`
	Normality2         Normality  `json:"normality2"`
	Interpretation     string     `json:"interpretation"`
}

// TTestResult holds a two-sample t-test.
type TTestResult struct {
	Statistic          float64
	DegreesOfFreedom   float64
	PValue             float64
	MeanDifference     float64
	StandardError      float64
	ConfidenceInterval Interval
}

// MannWhitneyResult holds a Mann-Whitney U test with normal approximation.
type MannWhitneyResult struct {
	U              float64
	U1             float64
	U2             float64
	Z              float64
	PValue         float64
	MeanDifference float64
}

// Analyzer runs significance tests with a fixed configuration.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an Analyzer, filling unset config fields with defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.SignificanceLevel <= 0 {
		cfg.SignificanceLevel = def.SignificanceLevel
	}
	if cfg.MinimumSampleSize <= 0 {
		cfg.MinimumSampleSize = def.MinimumSampleSize
	}
	if cfg.MaximumSampleSize <= 0 {
		cfg.MaximumSampleSize = def.MaximumSampleSize
	}
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = def.ConfidenceLevel
	}
	if cfg.PValueMode == "" {
		cfg.PValueMode = def.PValueMode
	}
	return &Analyzer{cfg: cfg}
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// SignificanceTest compares two samples. Samples below the minimum size
// produce the insufficient-data sentinel. Normal samples use a t-test,
// others use Mann-Whitney U.
func (a *Analyzer) SignificanceTest(x, y []float64) SignificanceResult {
	x = Finite(x)
	y = Finite(y)
	if len(x) < a.cfg.MinimumSampleSize || len(y) < a.cfg.MinimumSampleSize {
		return SignificanceResult{
			Test:           TestInsufficientData,
			Interpretation: fmt.Sprintf("insufficient data: each sample needs at least %d values", a.cfg.MinimumSampleSize),
		}
	}

	s1 := Describe(x)
	s2 := Describe(y)
	res := SignificanceResult{
		MeanDifference: s1.Mean - s2.Mean,
		Effect:         effectSizes(s1, s2),
		Normality1:     CheckNormality(x),
		Normality2:     CheckNormality(y),
	}

	var p, statistic float64
	if res.Normality1.IsNormal && res.Normality2.IsNormal {
		tt := a.tTest(s1, s2)
		res.Test = TestWelch
		if a.cfg.EqualVariance {
			res.Test = TestStudent
		}
		p, statistic = tt.PValue, tt.Statistic
		res.DegreesOfFreedom = tt.DegreesOfFreedom
		ci := tt.ConfidenceInterval
		res.ConfidenceInterval = &ci
	} else {
		mw := a.MannWhitneyU(x, y)
		res.Test = TestMannWhitney
		p, statistic = mw.PValue, mw.U
	}
	res.PValue = &p
	res.Statistic = &statistic
	res.Significant = p < a.cfg.SignificanceLevel
	res.Interpretation = interpret(res.Significant, p, res.Effect.Magnitude)
	return res
}

// TTest runs a two-sample t-test using the analyzer's variance assumption.
func (a *Analyzer) TTest(x, y []float64) TTestResult {
	return a.tTest(Describe(x), Describe(y))
}

func (a *Analyzer) tTest(s1, s2 BasicStatistics) TTestResult {
	n1 := float64(s1.Count)
	n2 := float64(s2.Count)
	res := TTestResult{MeanDifference: s1.Mean - s2.Mean}
	if s1.Count < 2 || s2.Count < 2 {
		res.PValue = 1
		return res
	}

	if a.cfg.EqualVariance {
		pooled := pooledVariance(s1, s2)
		res.StandardError = math.Sqrt(pooled * (1/n1 + 1/n2))
		res.DegreesOfFreedom = n1 + n2 - 2
	} else {
		v1 := s1.Variance / n1
		v2 := s2.Variance / n2
		res.StandardError = math.Sqrt(v1 + v2)
		den := v1*v1/(n1-1) + v2*v2/(n2-1)
		if den > 0 {
			res.DegreesOfFreedom = math.Pow(v1+v2, 2) / den
		} else {
			res.DegreesOfFreedom = n1 + n2 - 2
		}
	}

	res.Statistic = standardized(res.MeanDifference, res.StandardError)
	res.PValue = a.cfg.PValueMode.tTwoSided(res.Statistic, res.DegreesOfFreedom)
	margin := a.cfg.PValueMode.criticalValue(a.cfg.ConfidenceLevel, res.DegreesOfFreedom) * res.StandardError
	res.ConfidenceInterval = Interval{Low: res.MeanDifference - margin, High: res.MeanDifference + margin}
	return res
}

type rankedValue struct {
	value float64
	group int
}

// MannWhitneyU runs a rank-sum test. Ties share their average rank.
func (a *Analyzer) MannWhitneyU(x, y []float64) MannWhitneyResult {
	x = Finite(x)
	y = Finite(y)
	n1 := float64(len(x))
	n2 := float64(len(y))
	res := MannWhitneyResult{PValue: 1}
	if len(x) == 0 || len(y) == 0 {
		return res
	}
	res.MeanDifference = Describe(x).Mean - Describe(y).Mean

	combined := make([]rankedValue, 0, len(x)+len(y))
	for _, v := range x {
		combined = append(combined, rankedValue{value: v, group: 1})
	}
	for _, v := range y {
		combined = append(combined, rankedValue{value: v, group: 2})
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].value < combined[j].value
	})

	var rankSum1 float64
	for i := 0; i < len(combined); {
		j := i
		for j+1 < len(combined) && combined[j+1].value == combined[i].value {
			j++
		}
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if combined[k].group == 1 {
				rankSum1 += rank
			}
		}
		i = j + 1
	}

	res.U1 = rankSum1 - n1*(n1+1)/2
	res.U2 = n1*n2 - res.U1
	res.U = math.Min(res.U1, res.U2)

	mean := n1 * n2 / 2
	sd := math.Sqrt(n1 * n2 * (n1 + n2 + 1) / 12)
	if sd == 0 {
		return res
	}
	res.Z = (res.U - mean) / sd
	res.PValue = a.cfg.PValueMode.zTwoSided(res.Z)
	return res
}

func interpret(significant bool, p float64, magnitude Magnitude) string {
	if significant {
		return fmt.Sprintf("statistically significant difference (p=%.4f) with %s effect", p, magnitude)
	}
	return fmt.Sprintf("no statistically significant difference (p=%.4f), %s effect", p, magnitude)
}
