// Package stats contains statistics calculations and reporting.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// PValueMode selects how tail probabilities are computed.
type PValueMode string

const (
	// PValueApprox uses closed-form approximations with no table lookups.
	PValueApprox PValueMode = "approx"
	// PValueExact uses the Student t and normal CDFs.
	PValueExact PValueMode = "exact"
)

// Abramowitz and Stegun 7.1.26.
const (
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
	erfP  = 0.3275911
)

// Erf approximates the error function with a maximum error of 1.5e-7.
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	x = math.Abs(x)
	t := 1 / (1 + erfP*x)
	y := 1 - (((((erfA5*t+erfA4)*t)+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// NormalCDF is the standard normal CDF built on Erf.
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + Erf(x/math.Sqrt2))
}

func (m PValueMode) normalCDF(x float64) float64 {
	if m == PValueExact {
		return distuv.UnitNormal.CDF(x)
	}
	return NormalCDF(x)
}

// tTwoSided returns the two-sided p-value for a t statistic.
func (m PValueMode) tTwoSided(t, df float64) float64 {
	if math.IsInf(t, 0) {
		return 0
	}
	t = math.Abs(t)
	var tail float64
	switch {
	case m == PValueExact && df > 0:
		tail = distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
	case df > 30:
		tail = 1 - NormalCDF(t)
	default:
		tail = 0.5 * math.Pow(1+t*t/df, -(df+1)/2)
	}
	return math.Min(1, 2*tail)
}

// zTwoSided returns the two-sided p-value for a standard normal statistic.
func (m PValueMode) zTwoSided(z float64) float64 {
	return math.Min(1, 2*(1-m.normalCDF(math.Abs(z))))
}

var zCritical = map[float64]float64{
	0.90:  1.645,
	0.95:  1.960,
	0.99:  2.576,
	0.999: 3.291,
}

// criticalValue returns the two-sided critical value for a confidence level.
func (m PValueMode) criticalValue(confidence, df float64) float64 {
	if m == PValueExact && df > 0 && confidence > 0 && confidence < 1 {
		return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(1 - (1-confidence)/2)
	}
	z, ok := zCritical[confidence]
	if !ok {
		z = 1.96
	}
	if df > 0 && df <= 30 {
		return z * (1 + (z*z+1)/(4*df))
	}
	return z
}
