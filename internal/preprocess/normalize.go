// Package preprocess validates, normalizes and resamples comparison datasets.
package preprocess

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/popkit/internal/stats"
)

// Method selects a normalization strategy.
type Method string

// Normalization methods.
const (
	NormalizeNone   Method = "none"
	NormalizeZScore Method = "zscore"
	NormalizeMinMax Method = "minmax"
	NormalizeRobust Method = "robust"
)

// ParseMethod accepts the method names used in config files and flags.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", NormalizeNone:
		return NormalizeNone, nil
	case NormalizeZScore, "z-score":
		return NormalizeZScore, nil
	case NormalizeMinMax, "min-max":
		return NormalizeMinMax, nil
	case NormalizeRobust:
		return NormalizeRobust, nil
	}
	return "", fmt.Errorf("unknown normalization method %q", s)
}

// Normalized carries normalized data and the parameters used to produce it.
type Normalized struct {
	Data       []float64          `json:"data"`
	Method     Method             `json:"method"`
	Parameters map[string]float64 `json:"parameters"`
	Applied    bool               `json:"applied"`
}

// Normalize rescales data. A zero divisor returns a copy of the input.
func Normalize(data []float64, method Method, targetMin, targetMax float64) []float64 {
	return NormalizeWithParameters(data, method, targetMin, targetMax).Data
}

// NormalizeWithParameters rescales data and reports the parameters used.
func NormalizeWithParameters(data []float64, method Method, targetMin, targetMax float64) Normalized {
	out := make([]float64, len(data))
	copy(out, data)
	res := Normalized{Data: out, Method: method, Parameters: map[string]float64{}}
	if len(out) == 0 {
		return res
	}

	switch method {
	case NormalizeZScore:
		mean, sd := stat.PopMeanStdDev(out, nil)
		res.Parameters["mean"] = mean
		res.Parameters["standardDeviation"] = sd
		if constant(out) || sd == 0 {
			return res
		}
		floats.AddConst(-mean, out)
		floats.Scale(1/sd, out)
	case NormalizeMinMax:
		if targetMin == 0 && targetMax == 0 {
			targetMax = 1
		}
		lo, hi := floats.Min(out), floats.Max(out)
		res.Parameters["min"] = lo
		res.Parameters["max"] = hi
		res.Parameters["targetMin"] = targetMin
		res.Parameters["targetMax"] = targetMax
		if hi == lo {
			return res
		}
		floats.AddConst(-lo, out)
		floats.Scale((targetMax-targetMin)/(hi-lo), out)
		floats.AddConst(targetMin, out)
	case NormalizeRobust:
		median := stats.Quantile(out, 0.5)
		iqr := stats.Quantile(out, 0.75) - stats.Quantile(out, 0.25)
		res.Parameters["median"] = median
		res.Parameters["iqr"] = iqr
		if iqr == 0 {
			return res
		}
		floats.AddConst(-median, out)
		floats.Scale(1/iqr, out)
	default:
		return res
	}
	res.Applied = true
	return res
}

// OutlierReport records the effect of outlier removal on one dataset.
type OutlierReport struct {
	Original int `json:"original"`
	Cleaned  int `json:"cleaned"`
	Removed  int `json:"removed"`
}

// RemoveOutliers keeps values whose population z-score magnitude is at most
// threshold. Zero-variance data is returned unchanged.
func RemoveOutliers(data []float64, threshold float64) ([]float64, OutlierReport) {
	rep := OutlierReport{Original: len(data)}
	out := make([]float64, 0, len(data))
	if len(data) == 0 {
		return out, rep
	}
	mean, sd := stat.PopMeanStdDev(data, nil)
	flat := constant(data) || sd == 0
	for _, v := range data {
		if flat || abs((v-mean)/sd) <= threshold {
			out = append(out, v)
		}
	}
	rep.Cleaned = len(out)
	rep.Removed = rep.Original - rep.Cleaned
	return out, rep
}

func countOutliers(data []float64, threshold float64) int {
	if len(data) == 0 {
		return 0
	}
	mean, sd := stat.PopMeanStdDev(data, nil)
	if constant(data) || sd == 0 {
		return 0
	}
	n := 0
	for _, v := range data {
		if abs((v-mean)/sd) > threshold {
			n++
		}
	}
	return n
}

// constant reports whether all values are equal. Rounding in the mean can
// leave a tiny non-zero deviation for such data.
func constant(data []float64) bool {
	return len(data) == 0 || floats.Min(data) == floats.Max(data)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
