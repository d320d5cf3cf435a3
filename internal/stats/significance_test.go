package stats

import (
	"math"
	"strings"
	"testing"
)

func TestSignificanceInsufficientData(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	cases := [][2][]float64{
		{{1, 2, 3, 4}, {1, 2, 3, 4, 5}},
		{{1, 2, 3, 4, 5}, {}},
		{{1, 2, 3, 4, math.NaN()}, {9, 9, 9, 9, 9, 9}},
	}
	for i, c := range cases {
		res := a.SignificanceTest(c[0], c[1])
		if res.Test != TestInsufficientData {
			t.Fatalf("case %d: expected insufficient data, got %s", i, res.Test)
		}
		if res.Significant || res.Statistic != nil || res.PValue != nil {
			t.Fatalf("case %d: sentinel must be non-significant with nil statistic: %+v", i, res)
		}
	}
}

func TestSignificanceWelch(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	res := a.SignificanceTest([]float64{10, 11, 12, 13, 14}, []float64{20, 21, 22, 23, 24})
	if res.Test != TestWelch {
		t.Fatalf("expected welch test, got %s", res.Test)
	}
	if res.Statistic == nil || !approxEqual(*res.Statistic, -10, 1e-9) {
		t.Fatalf("expected t=-10, got %v", res.Statistic)
	}
	if !approxEqual(res.DegreesOfFreedom, 8, 1e-9) {
		t.Fatalf("expected df=8, got %v", res.DegreesOfFreedom)
	}
	wantP := 2 * 0.5 * math.Pow(1+100.0/8, -4.5)
	if res.PValue == nil || !approxEqual(*res.PValue, wantP, 1e-15) {
		t.Fatalf("expected p=%v, got %v", wantP, res.PValue)
	}
	if !res.Significant {
		t.Fatalf("expected significant result")
	}
	if res.MeanDifference != -10 {
		t.Fatalf("expected mean difference -10, got %v", res.MeanDifference)
	}
	ci := res.ConfidenceInterval
	crit := 1.96 * (1 + (1.96*1.96+1)/32)
	if ci == nil || !approxEqual(ci.Low, -10-crit, 1e-9) || !approxEqual(ci.High, -10+crit, 1e-9) {
		t.Fatalf("unexpected confidence interval %+v", ci)
	}
	if res.Effect.Magnitude != MagnitudeLarge {
		t.Fatalf("expected large effect, got %s", res.Effect.Magnitude)
	}
}

func TestSignificanceEqualVariance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EqualVariance = true
	res := NewAnalyzer(cfg).SignificanceTest([]float64{10, 11, 12, 13, 14}, []float64{20, 21, 22, 23, 24})
	if res.Test != TestStudent {
		t.Fatalf("expected student t-test, got %s", res.Test)
	}
	if !approxEqual(res.DegreesOfFreedom, 8, 1e-9) {
		t.Fatalf("expected df=8, got %v", res.DegreesOfFreedom)
	}
}

func TestSignificanceZeroVariance(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	res := a.SignificanceTest([]float64{100, 100, 100, 100, 100}, []float64{500, 500, 500, 500, 500})
	if !res.Significant || *res.PValue != 0 || !math.IsInf(*res.Statistic, -1) {
		t.Fatalf("expected significant infinite statistic, got %+v", res)
	}
	same := a.SignificanceTest([]float64{5, 5, 5, 5, 5}, []float64{5, 5, 5, 5, 5})
	if same.Significant || *same.PValue != 1 || *same.Statistic != 0 {
		t.Fatalf("expected identical constant samples to be non-significant, got %+v", same)
	}
}

func TestSignificanceMannWhitney(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	x := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 100}
	y := []float64{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	res := a.SignificanceTest(x, y)
	if res.Test != TestMannWhitney {
		t.Fatalf("expected mann-whitney, got %s", res.Test)
	}
	if *res.Statistic != 10 {
		t.Fatalf("expected U=10, got %v", *res.Statistic)
	}
	z := (10 - 50) / math.Sqrt(175)
	wantP := 2 * (1 - NormalCDF(math.Abs(z)))
	if !approxEqual(*res.PValue, wantP, 1e-12) || !res.Significant {
		t.Fatalf("expected p=%v significant, got %v", wantP, *res.PValue)
	}
	if !strings.Contains(res.Interpretation, "significant") {
		t.Fatalf("unexpected interpretation %q", res.Interpretation)
	}
}

func TestMannWhitneyTies(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	res := a.MannWhitneyU([]float64{1, 2}, []float64{2, 3})
	if res.U1 != 0.5 || res.U2 != 3.5 || res.U != 0.5 {
		t.Fatalf("unexpected tie handling: %+v", res)
	}
	if res.MeanDifference != -1 {
		t.Fatalf("expected mean difference -1, got %v", res.MeanDifference)
	}
}

func TestExactPValueMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PValueMode = PValueExact
	res := NewAnalyzer(cfg).SignificanceTest([]float64{10, 11, 12, 13, 14}, []float64{20, 21, 22, 23, 24})
	if *res.PValue <= 0 || *res.PValue > 1e-4 {
		t.Fatalf("expected tiny exact p-value, got %v", *res.PValue)
	}
	tt := NewAnalyzer(cfg).TTest([]float64{1, 2, 3}, []float64{1, 2, 3})
	if tt.PValue != 1 {
		t.Fatalf("expected p=1 for identical samples, got %v", tt.PValue)
	}
}

func TestEffectSizes(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 3, 4, 5, 6}
	d := CohensD(x, y)
	if !approxEqual(d, -1/math.Sqrt(2.5), 1e-12) {
		t.Fatalf("unexpected cohen's d %v", d)
	}
	es := EffectSizes(x, y)
	if es.Magnitude != MagnitudeMedium {
		t.Fatalf("expected medium effect, got %s", es.Magnitude)
	}
	if !approxEqual(es.HedgesG, d*(1-3.0/31), 1e-12) {
		t.Fatalf("unexpected hedges g %v", es.HedgesG)
	}
	if !approxEqual(es.GlassDelta, -1/math.Sqrt(2.5), 1e-12) {
		t.Fatalf("unexpected glass delta %v", es.GlassDelta)
	}
	if got := PooledVariance([]float64{1}, y); got != 0 {
		t.Fatalf("expected zero pooled variance for n=1, got %v", got)
	}
	bands := map[float64]Magnitude{0.1: MagnitudeNegligible, -0.3: MagnitudeSmall, 0.79: MagnitudeMedium, 2: MagnitudeLarge}
	for v, want := range bands {
		if got := ClassifyEffect(v); got != want {
			t.Fatalf("ClassifyEffect(%v) = %s, want %s", v, got, want)
		}
	}
}

func TestValidateAndReport(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	nan := math.NaN()
	bad := a.ValidateData([]float64{1, nan, nan, nan}, []float64{nan})
	if bad.Valid || len(bad.Errors) == 0 {
		t.Fatalf("expected invalid data, got %+v", bad)
	}
	warn := a.ValidateData([]float64{1, 2, 3, 4, nan}, []float64{1, 2, 3, 4, 5})
	if !warn.Valid || len(warn.Warnings) == 0 {
		t.Fatalf("expected warnings, got %+v", warn)
	}

	rep := a.Report([]float64{1, 2, 3, 4, 5}, []float64{1.1, 2, 3, 4, 5})
	if rep.Descriptive1.Count != 5 || rep.Test.Test != TestWelch {
		t.Fatalf("unexpected report: %+v", rep)
	}
	joined := strings.Join(rep.Recommendations, "\n")
	if !strings.Contains(joined, "at least 30") || !strings.Contains(joined, "negligible") {
		t.Fatalf("unexpected recommendations: %v", rep.Recommendations)
	}
}
