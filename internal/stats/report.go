// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"math"
)

// DataValidation describes the usability of two samples.
type DataValidation struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	ValidRatio float64  `json:"validRatio"`
}

// Report bundles descriptive statistics, validation and a significance test.
type Report struct {
	Descriptive1    BasicStatistics    `json:"descriptive1"`
	Descriptive2    BasicStatistics    `json:"descriptive2"`
	Validation      DataValidation     `json:"validation"`
	Test            SignificanceResult `json:"test"`
	Recommendations []string           `json:"recommendations"`
}

const (
	validRatioError   = 0.5
	validRatioWarning = 0.8
	reliableSample    = 30
)

// ValidateData checks the share of finite values and sample sizes.
func (a *Analyzer) ValidateData(x, y []float64) DataValidation {
	res := DataValidation{Valid: true}
	total := len(x) + len(y)
	if total == 0 {
		res.Valid = false
		res.Errors = append(res.Errors, "both samples are empty")
		return res
	}
	fx := Finite(x)
	fy := Finite(y)
	res.ValidRatio = float64(len(fx)+len(fy)) / float64(total)
	switch {
	case res.ValidRatio < validRatioError:
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("only %.0f%% of values are valid numbers", res.ValidRatio*100))
	case res.ValidRatio < validRatioWarning:
		res.Warnings = append(res.Warnings, fmt.Sprintf("%.0f%% of values are invalid", (1-res.ValidRatio)*100))
	}
	for i, sample := range [][]float64{fx, fy} {
		if len(sample) < a.cfg.MinimumSampleSize {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sample %d has %d values, below the minimum of %d", i+1, len(sample), a.cfg.MinimumSampleSize))
		}
		if len(sample) > a.cfg.MaximumSampleSize {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sample %d has %d values, above the maximum of %d", i+1, len(sample), a.cfg.MaximumSampleSize))
		}
	}
	return res
}

// Report runs the full two-sample analysis.
func (a *Analyzer) Report(x, y []float64) Report {
	rep := Report{
		Descriptive1: Describe(x),
		Descriptive2: Describe(y),
		Validation:   a.ValidateData(x, y),
		Test:         a.SignificanceTest(x, y),
	}
	if !rep.Validation.Valid {
		rep.Recommendations = append(rep.Recommendations, "improve data quality before drawing conclusions")
	}
	if rep.Descriptive1.Count < reliableSample || rep.Descriptive2.Count < reliableSample {
		rep.Recommendations = append(rep.Recommendations, fmt.Sprintf("collect at least %d values per sample for reliable results", reliableSample))
	}
	if rep.Test.Test != TestInsufficientData && rep.Test.Effect.Magnitude == MagnitudeNegligible {
		rep.Recommendations = append(rep.Recommendations, "the difference is practically negligible")
	}
	return rep
}

// Summary formats the headline of a significance result.
func (r SignificanceResult) Summary() string {
	if r.Test == TestInsufficientData {
		return r.Interpretation
	}
	stat := "n/a"
	if r.Statistic != nil {
		stat = formatFloat(*r.Statistic)
	}
	p := "n/a"
	if r.PValue != nil {
		p = formatFloat(*r.PValue)
	}
	return fmt.Sprintf("%s: statistic=%s p=%s d=%s (%s)", r.Test, stat, p, formatFloat(r.Effect.CohensD), r.Effect.Magnitude)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	return fmt.Sprintf("%.4g", v)
}
