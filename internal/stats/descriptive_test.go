package stats

import (
	"math"
	"math/rand"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDescribeEmpty(t *testing.T) {
	if got := Describe(nil); got != (BasicStatistics{}) {
		t.Fatalf("expected zero stats, got %+v", got)
	}
	if got := Describe([]float64{math.NaN(), math.Inf(1)}); got != (BasicStatistics{}) {
		t.Fatalf("expected zero stats for non-finite input, got %+v", got)
	}
}

func TestDescribeKnownValues(t *testing.T) {
	s := Describe([]float64{5, 1, math.NaN(), 4, 2, 3})
	if s.Count != 5 {
		t.Fatalf("expected 5 finite values, got %d", s.Count)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"mean", s.Mean, 3},
		{"variance", s.Variance, 2.5},
		{"sd", s.StandardDeviation, math.Sqrt(2.5)},
		{"min", s.Min, 1},
		{"max", s.Max, 5},
		{"median", s.Median, 3},
		{"q1", s.Q1, 2},
		{"q3", s.Q3, 4},
		{"skewness", s.Skewness, 0},
		{"kurtosis", s.Kurtosis, -1.2},
	}
	for _, c := range checks {
		if !approxEqual(c.got, c.want, 1e-9) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestDescribeSingleValue(t *testing.T) {
	s := Describe([]float64{7})
	if s.Variance != 0 || s.StandardDeviation != 0 {
		t.Fatalf("expected zero variance for one value, got %+v", s)
	}
	if s.Min != 7 || s.Median != 7 || s.Max != 7 {
		t.Fatalf("unexpected single-value stats: %+v", s)
	}
}

func TestDescribeOrderInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rnd.Intn(40)
		data := make([]float64, n)
		for j := range data {
			data[j] = rnd.NormFloat64()*100 + 50
		}
		s := Describe(data)
		if !(s.Min <= s.Q1 && s.Q1 <= s.Median && s.Median <= s.Q3 && s.Q3 <= s.Max) {
			t.Fatalf("order violated for %v: %+v", data, s)
		}
	}
}

func TestQuantileInterpolates(t *testing.T) {
	if got := Quantile([]float64{4, 1, 3, 2}, 0.25); !approxEqual(got, 1.75, 1e-12) {
		t.Fatalf("expected 1.75, got %v", got)
	}
	if got := Quantile(nil, 0.5); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}

func TestStandardErrorAndCV(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	if got := StandardError(data); !approxEqual(got, math.Sqrt(2.5)/math.Sqrt(5), 1e-12) {
		t.Fatalf("unexpected standard error %v", got)
	}
	if got := CoefficientOfVariation(data); !approxEqual(got, math.Sqrt(2.5)/3, 1e-12) {
		t.Fatalf("unexpected cv %v", got)
	}
	if got := CoefficientOfVariation([]float64{-1, 1}); got != 0 {
		t.Fatalf("expected 0 cv for zero mean, got %v", got)
	}
}

func TestNormality(t *testing.T) {
	small := CheckNormality([]float64{1, 2})
	if small.IsNormal || small.Test != "insufficient_data" {
		t.Fatalf("expected insufficient data, got %+v", small)
	}
	sym := CheckNormality([]float64{1, 2, 3, 4, 5})
	if !sym.IsNormal || !approxEqual(sym.Score, 0.88, 1e-9) {
		t.Fatalf("expected normal with score 0.88, got %+v", sym)
	}
	skewed := CheckNormality([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 100})
	if skewed.IsNormal {
		t.Fatalf("expected skewed sample to fail normality, got %+v", skewed)
	}
	large := make([]float64, 60)
	for i := range large {
		large[i] = float64(i % 10)
	}
	if got := CheckNormality(large); !got.IsNormal || got.Test != "skewness_kurtosis" {
		t.Fatalf("expected large uniform-ish sample to pass, got %+v", got)
	}
}

func TestErf(t *testing.T) {
	if got := Erf(0); !approxEqual(got, 0, 1e-7) {
		t.Fatalf("erf(0) = %v", got)
	}
	for _, x := range []float64{-2, -0.5, 0.3, 1, 2.5} {
		if got := Erf(x); !approxEqual(got, math.Erf(x), 2e-7) {
			t.Fatalf("erf(%v): expected %v, got %v", x, math.Erf(x), got)
		}
	}
	if got := NormalCDF(1.96); !approxEqual(got, 0.975, 1e-4) {
		t.Fatalf("normal cdf(1.96) = %v", got)
	}
}
