// Package stats contains statistics calculations and reporting.
package stats

import "math"

// Magnitude buckets an effect size.
type Magnitude string

// Effect size magnitudes.
const (
	MagnitudeNegligible Magnitude = "negligible"
	MagnitudeSmall      Magnitude = "small"
	MagnitudeMedium     Magnitude = "medium"
	MagnitudeLarge      Magnitude = "large"
)

// EffectSize holds standardized mean differences for two samples.
type EffectSize struct {
	CohensD    float64   `json:"cohensD"`
	HedgesG    float64   `json:"hedgesG"`
	GlassDelta float64   `json:"glassDelta"`
	Magnitude  Magnitude `json:"magnitude"`
}

// ClassifyEffect buckets |d| into a magnitude band.
func ClassifyEffect(d float64) Magnitude {
	d = math.Abs(d)
	switch {
	case d < 0.2:
		return MagnitudeNegligible
	case d < 0.5:
		return MagnitudeSmall
	case d < 0.8:
		return MagnitudeMedium
	default:
		return MagnitudeLarge
	}
}

// PooledVariance returns the pooled sample variance, or 0 when either
// sample has fewer than two values.
func PooledVariance(a, b []float64) float64 {
	s1 := Describe(a)
	s2 := Describe(b)
	return pooledVariance(s1, s2)
}

func pooledVariance(s1, s2 BasicStatistics) float64 {
	if s1.Count <= 1 || s2.Count <= 1 {
		return 0
	}
	n1 := float64(s1.Count)
	n2 := float64(s2.Count)
	return ((n1-1)*s1.Variance + (n2-1)*s2.Variance) / (n1 + n2 - 2)
}

// CohensD computes (mean(a)-mean(b)) / pooled standard deviation.
func CohensD(a, b []float64) float64 {
	return cohensD(Describe(a), Describe(b))
}

func cohensD(s1, s2 BasicStatistics) float64 {
	return standardized(s1.Mean-s2.Mean, math.Sqrt(pooledVariance(s1, s2)))
}

// EffectSizes computes Cohen's d with its Hedges and Glass variants.
func EffectSizes(a, b []float64) EffectSize {
	return effectSizes(Describe(a), Describe(b))
}

func effectSizes(s1, s2 BasicStatistics) EffectSize {
	d := cohensD(s1, s2)
	res := EffectSize{
		CohensD:    d,
		HedgesG:    d,
		GlassDelta: standardized(s1.Mean-s2.Mean, s2.StandardDeviation),
		Magnitude:  ClassifyEffect(d),
	}
	df := float64(s1.Count + s2.Count - 2)
	if df > 0 {
		res.HedgesG = d * (1 - 3/(4*df-1))
	}
	return res
}

// standardized divides diff by sd. A zero sd yields 0 for equal means and
// a signed infinity otherwise.
func standardized(diff, sd float64) float64 {
	if sd > 0 {
		return diff / sd
	}
	switch {
	case diff > 0:
		return math.Inf(1)
	case diff < 0:
		return math.Inf(-1)
	default:
		return 0
	}
}
