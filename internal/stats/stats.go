// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
// Leading points average over the values seen so far.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		n := i + 1
		if i >= window {
			sum -= values[i-window]
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	values = Finite(values)
	if len(values) == 0 {
		return ""
	}
	s := Describe(values)
	span := s.Max - s.Min
	if span < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	last := float64(len(sparkChars) - 1)
	var b strings.Builder
	for _, v := range values {
		idx := int(math.Round((v - s.Min) / span * last))
		b.WriteByte(sparkChars[clampInt(idx, 0, len(sparkChars)-1)])
	}
	return b.String()
}

// DescriptiveTable builds a table of descriptive statistics, one row per
// labelled sample.
func DescriptiveTable(labels []string, samples []BasicStatistics) Table {
	t := Table{
		Headers:    []string{"Sample", "N", "Mean", "SD", "Min", "Q1", "Median", "Q3", "Max", "Skew", "Kurt"},
		RightAlign: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true, 10: true},
	}
	for i, s := range samples {
		label := fmt.Sprintf("#%d", i+1)
		if i < len(labels) {
			label = labels[i]
		}
		t.Rows = append(t.Rows, []string{
			label,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.2f", s.Mean),
			fmt.Sprintf("%.2f", s.StandardDeviation),
			fmt.Sprintf("%.2f", s.Min),
			fmt.Sprintf("%.2f", s.Q1),
			fmt.Sprintf("%.2f", s.Median),
			fmt.Sprintf("%.2f", s.Q3),
			fmt.Sprintf("%.2f", s.Max),
			fmt.Sprintf("%.3f", s.Skewness),
			fmt.Sprintf("%.3f", s.Kurtosis),
		})
	}
	return t
}

// RenderReport prints a two-sample analysis report.
func RenderReport(w io.Writer, labels [2]string, rep Report) error {
	if _, err := fmt.Fprintln(w, "Descriptive Statistics"); err != nil {
		return err
	}
	if err := DescriptiveTable(labels[:], []BasicStatistics{rep.Descriptive1, rep.Descriptive2}).Write(w); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "Significance"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, rep.Test.Summary()); err != nil {
		return err
	}
	if rep.Test.ConfidenceInterval != nil {
		ci := rep.Test.ConfidenceInterval
		if _, err := fmt.Fprintf(w, "Mean difference: %.4g [%.4g, %.4g]\n", rep.Test.MeanDifference, ci.Low, ci.High); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, rep.Test.Interpretation); err != nil {
		return err
	}
	for _, msg := range rep.Validation.Errors {
		if _, err := fmt.Fprintf(w, "error: %s\n", msg); err != nil {
			return err
		}
	}
	for _, msg := range rep.Validation.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", msg); err != nil {
			return err
		}
	}
	for _, msg := range rep.Recommendations {
		if _, err := fmt.Fprintf(w, "- %s\n", msg); err != nil {
			return err
		}
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
