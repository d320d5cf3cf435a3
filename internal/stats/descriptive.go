// Package stats contains statistics calculations and reporting.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BasicStatistics summarizes a numeric sample.
type BasicStatistics struct {
	Count             int     `json:"count"`
	Mean              float64 `json:"mean"`
	Variance          float64 `json:"variance"`
	StandardDeviation float64 `json:"standardDeviation"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Median            float64 `json:"median"`
	Q1                float64 `json:"q1"`
	Q3                float64 `json:"q3"`
	Skewness          float64 `json:"skewness"`
	Kurtosis          float64 `json:"kurtosis"`
}

// Finite returns the finite values of data in their original order.
func Finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Describe computes descriptive statistics over the finite values of data.
// Empty input yields the zero value.
func Describe(data []float64) BasicStatistics {
	values := Finite(data)
	n := len(values)
	if n == 0 {
		return BasicStatistics{}
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	res := BasicStatistics{
		Count:  n,
		Mean:   stat.Mean(values, nil),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Median: quantileSorted(sorted, 0.5),
		Q1:     quantileSorted(sorted, 0.25),
		Q3:     quantileSorted(sorted, 0.75),
	}
	if n > 1 {
		res.Variance = stat.Variance(values, nil)
		res.StandardDeviation = math.Sqrt(res.Variance)
	}
	if n >= 3 && res.StandardDeviation > 0 {
		res.Skewness = stat.Skew(values, nil)
	}
	if n >= 4 && res.StandardDeviation > 0 {
		res.Kurtosis = stat.ExKurtosis(values, nil)
	}
	return res
}

// Quantile returns the q-th quantile of data using linear interpolation
// between closest ranks at index (n-1)q.
func Quantile(data []float64, q float64) float64 {
	values := Finite(data)
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	return quantileSorted(values, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := float64(n-1) * q
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// StandardError returns the standard error of the mean.
func StandardError(data []float64) float64 {
	s := Describe(data)
	if s.Count == 0 {
		return 0
	}
	return s.StandardDeviation / math.Sqrt(float64(s.Count))
}

// CoefficientOfVariation returns |sd/mean|, or 0 when the mean is zero.
func CoefficientOfVariation(data []float64) float64 {
	s := Describe(data)
	if s.Mean == 0 {
		return 0
	}
	return math.Abs(s.StandardDeviation / s.Mean)
}

// Normality reports a skewness/kurtosis based normality check.
type Normality struct {
	IsNormal bool    `json:"isNormal"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
	Score    float64 `json:"score"`
	Test     string  `json:"test"`
}

const (
	normalitySkewLimit     = 2.0
	normalityKurtosisLimit = 7.0
	normalityScoreFloor    = 0.5
	largeSampleSize        = 50
)

// CheckNormality checks whether data is plausibly normal. Large samples use
// hard skewness and kurtosis limits; small samples use a blended score.
func CheckNormality(data []float64) Normality {
	s := Describe(data)
	if s.Count < 3 {
		return Normality{Test: "insufficient_data"}
	}
	res := Normality{Skewness: s.Skewness, Kurtosis: s.Kurtosis}
	if s.Count > largeSampleSize {
		res.Test = "skewness_kurtosis"
		res.IsNormal = math.Abs(s.Skewness) < normalitySkewLimit && math.Abs(s.Kurtosis) < normalityKurtosisLimit
		if res.IsNormal {
			res.Score = 1
		}
		return res
	}
	res.Test = "small_sample_heuristic"
	res.Score = 1 - (math.Abs(s.Skewness)/3 + math.Abs(s.Kurtosis)/10)
	res.IsNormal = res.Score > normalityScoreFloor
	return res
}
