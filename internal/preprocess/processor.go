// Package preprocess validates, normalizes and resamples comparison datasets.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/popkit/internal/stats"
)

// ErrUnknownMetric is returned by Metric for unsupported metric names.
var ErrUnknownMetric = errors.New("unknown metric")

// Config holds processor limits.
type Config struct {
	OutlierThreshold float64
	MinimumSize      int
	MaximumSize      int
	SamplingRate     float64
}

// DefaultConfig returns the processor defaults.
func DefaultConfig() Config {
	return Config{
		OutlierThreshold: 2.5,
		MinimumSize:      5,
		MaximumSize:      10000,
		SamplingRate:     0.1,
	}
}

// Options selects the optional pipeline stages.
type Options struct {
	Normalize        Method
	TargetMin        float64
	TargetMax        float64
	RemoveOutliers   bool
	OutlierThreshold float64
	Sampling         SamplingMethod
	SamplingRate     float64
}

// Dataset is one side of a comparison. Total counts every raw entry,
// including the ones that were not usable numbers.
type Dataset struct {
	Values []float64
	Total  int
}

// NewDataset builds a Dataset from numbers, dropping non-finite values.
func NewDataset(values []float64) Dataset {
	return Dataset{Values: stats.Finite(values), Total: len(values)}
}

// Validation is the structural and statistical check of a dataset pair.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Quality  float64  `json:"quality"`
}

// SamplingReport records a sampling step.
type SamplingReport struct {
	Method   SamplingMethod `json:"method"`
	Rate     float64        `json:"rate"`
	Original [2]int         `json:"original"`
	Sampled  [2]int         `json:"sampled"`
}

// Metadata describes what the pipeline did.
type Metadata struct {
	OriginalSize  [2]int                `json:"originalSize"`
	FinalSize     [2]int                `json:"finalSize"`
	Normalization Method                `json:"normalization"`
	Parameters    [2]map[string]float64 `json:"parameters"`
	Outliers      *[2]OutlierReport     `json:"outliers,omitempty"`
	Sampling      *SamplingReport       `json:"sampling,omitempty"`
	Quality       QualityReport         `json:"quality"`
	ProcessedAt   time.Time             `json:"processedAt"`
}

// Result is the pipeline output. Structural errors set Error and leave
// Success false; everything else is reported as warnings.
type Result struct {
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	Data1      []float64  `json:"data1"`
	Data2      []float64  `json:"data2"`
	Validation Validation `json:"validation"`
	Metadata   Metadata   `json:"metadata"`
	Warnings   []string   `json:"warnings"`
}

// Processor runs the preprocessing pipeline.
type Processor struct {
	cfg    Config
	rnd    *rand.Rand
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Processor. A nil rnd is seeded with the current time and a
// nil logger discards output.
func New(cfg Config, rnd *rand.Rand, logger *zap.Logger) *Processor {
	def := DefaultConfig()
	if cfg.OutlierThreshold <= 0 {
		cfg.OutlierThreshold = def.OutlierThreshold
	}
	if cfg.MinimumSize <= 0 {
		cfg.MinimumSize = def.MinimumSize
	}
	if cfg.MaximumSize <= 0 {
		cfg.MaximumSize = def.MaximumSize
	}
	if cfg.SamplingRate <= 0 || cfg.SamplingRate > 1 {
		cfg.SamplingRate = def.SamplingRate
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{cfg: cfg, rnd: rnd, logger: logger, now: time.Now}
}

// ParseRaw extracts dataset1 and dataset2 from a JSON document. Entries that
// are not numbers are counted but not kept.
func ParseRaw(raw []byte) (Dataset, Dataset, []string) {
	if !gjson.ValidBytes(raw) {
		return Dataset{}, Dataset{}, []string{"comparison data is not valid JSON"}
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Dataset{}, Dataset{}, []string{"comparison data must be an object"}
	}
	var errs []string
	var sets [2]Dataset
	for i, key := range []string{"dataset1", "dataset2"} {
		field := doc.Get(key)
		switch {
		case !field.Exists():
			errs = append(errs, fmt.Sprintf("%s is required", key))
			continue
		case !field.IsArray():
			errs = append(errs, fmt.Sprintf("%s must be an array", key))
			continue
		}
		entries := field.Array()
		sets[i].Total = len(entries)
		for _, e := range entries {
			if e.Type != gjson.Number {
				continue
			}
			if v := e.Float(); !math.IsNaN(v) && !math.IsInf(v, 0) {
				sets[i].Values = append(sets[i].Values, v)
			}
		}
	}
	return sets[0], sets[1], errs
}

// Validate checks a dataset pair. Errors make the pair unusable.
func (p *Processor) Validate(d1, d2 Dataset) Validation {
	v := Validation{Valid: true}
	for i, d := range []Dataset{d1, d2} {
		name := fmt.Sprintf("dataset%d", i+1)
		if d.Total == 0 {
			v.Errors = append(v.Errors, fmt.Sprintf("%s is empty", name))
			continue
		}
		ratio := completeness(d)
		switch {
		case ratio < 0.5:
			v.Errors = append(v.Errors, fmt.Sprintf("%s has only %.0f%% valid numbers", name, ratio*100))
			continue
		case ratio < 0.8:
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s has %.0f%% invalid entries", name, (1-ratio)*100))
		}
		if hasVariance(d) == 0 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s has no variance", name))
		}
		if n := countOutliers(d.Values, p.cfg.OutlierThreshold); float64(n) > 0.1*float64(len(d.Values)) {
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s has %d outliers (more than 10%%)", name, n))
		}
		if len(d.Values) < p.cfg.MinimumSize {
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s has %d values, below the minimum of %d", name, len(d.Values), p.cfg.MinimumSize))
		}
	}
	if len(v.Errors) > 0 {
		v.Valid = false
		return v
	}
	q := p.Quality(d1, d2)
	v.Quality = q.Overall * (0.8 + 0.2*sizeRatio(len(d1.Values), len(d2.Values)))
	return v
}

// PreprocessJSON parses raw JSON and runs the pipeline.
func (p *Processor) PreprocessJSON(raw []byte, opts Options) Result {
	d1, d2, errs := ParseRaw(raw)
	if len(errs) > 0 {
		return p.failure(Validation{Errors: errs})
	}
	return p.Preprocess(d1, d2, opts)
}

// Preprocess validates, normalizes, optionally removes outliers, and samples
// datasets that exceed the maximum size.
func (p *Processor) Preprocess(d1, d2 Dataset, opts Options) Result {
	validation := p.Validate(d1, d2)
	if !validation.Valid {
		return p.failure(validation)
	}
	if opts.Normalize == "" {
		opts.Normalize = NormalizeNone
	}

	res := Result{Success: true, Validation: validation}
	res.Metadata.OriginalSize = [2]int{d1.Total, d2.Total}
	res.Metadata.Normalization = opts.Normalize
	res.Metadata.ProcessedAt = p.now()

	n1 := NormalizeWithParameters(d1.Values, opts.Normalize, opts.TargetMin, opts.TargetMax)
	n2 := NormalizeWithParameters(d2.Values, opts.Normalize, opts.TargetMin, opts.TargetMax)
	data1, data2 := n1.Data, n2.Data
	res.Metadata.Parameters = [2]map[string]float64{n1.Parameters, n2.Parameters}

	if opts.RemoveOutliers {
		threshold := opts.OutlierThreshold
		if threshold <= 0 {
			threshold = p.cfg.OutlierThreshold
		}
		var r1, r2 OutlierReport
		data1, r1 = RemoveOutliers(data1, threshold)
		data2, r2 = RemoveOutliers(data2, threshold)
		res.Metadata.Outliers = &[2]OutlierReport{r1, r2}
		p.logger.Debug("removed outliers", zap.Int("dataset1", r1.Removed), zap.Int("dataset2", r2.Removed))
	}

	if len(data1) > p.cfg.MaximumSize || len(data2) > p.cfg.MaximumSize {
		rate := opts.SamplingRate
		if rate <= 0 || rate > 1 {
			rate = p.cfg.SamplingRate
		}
		method := opts.Sampling
		if method == "" {
			method = SampleRandom
		}
		report := &SamplingReport{Method: method, Rate: rate, Original: [2]int{len(data1), len(data2)}}
		data1 = Sample(p.rnd, data1, SampleSize(len(data1), rate), method)
		data2 = Sample(p.rnd, data2, SampleSize(len(data2), rate), method)
		report.Sampled = [2]int{len(data1), len(data2)}
		res.Metadata.Sampling = report
		p.logger.Debug("sampled datasets", zap.String("method", string(method)), zap.Ints("sizes", report.Sampled[:]))
	}

	res.Data1, res.Data2 = data1, data2
	res.Metadata.FinalSize = [2]int{len(data1), len(data2)}
	res.Metadata.Quality = p.Quality(d1, d2)
	res.Warnings = append(res.Warnings, validation.Warnings...)
	if len(data1) < p.cfg.MinimumSize || len(data2) < p.cfg.MinimumSize {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sample size below the recommended minimum of %d", p.cfg.MinimumSize))
	}
	if ratio := sizeRatio(len(data1), len(data2)); ratio < 0.5 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("datasets are imbalanced (size ratio %.2f)", ratio))
	}
	if validation.Quality < 0.5 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("data quality is %s (%.2f)", QualityLevel(validation.Quality), validation.Quality))
	}
	return res
}

func (p *Processor) failure(v Validation) Result {
	v.Valid = false
	p.logger.Debug("comparison data rejected", zap.Strings("errors", v.Errors))
	return Result{
		Error:      strings.Join(v.Errors, "; "),
		Validation: v,
		Warnings:   v.Warnings,
	}
}

// Metric computes a named summary metric over data: mean, median, stddev,
// range or count. Empty data yields 0.
func Metric(data []float64, name string) (float64, error) {
	values := stats.Finite(data)
	switch name {
	case "count":
		return float64(len(values)), nil
	case "mean", "median", "stddev", "range":
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	if len(values) == 0 {
		return 0, nil
	}
	switch name {
	case "mean":
		return stat.Mean(values, nil), nil
	case "median":
		return stats.Quantile(values, 0.5), nil
	case "stddev":
		_, sd := stat.PopMeanStdDev(values, nil)
		return sd, nil
	default:
		s := stats.Describe(values)
		return s.Max - s.Min, nil
	}
}
