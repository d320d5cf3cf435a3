// Package preprocess validates, normalizes and resamples comparison datasets.
package preprocess

import "math"

// Quality levels.
const (
	QualityExcellent  = "excellent"
	QualityGood       = "good"
	QualityAcceptable = "acceptable"
	QualityPoor       = "poor"
	QualityVeryPoor   = "very_poor"
)

// QualityLevel buckets a 0..1 quality score.
func QualityLevel(score float64) string {
	switch {
	case score >= 0.9:
		return QualityExcellent
	case score >= 0.7:
		return QualityGood
	case score >= 0.5:
		return QualityAcceptable
	case score >= 0.3:
		return QualityPoor
	default:
		return QualityVeryPoor
	}
}

// QualityReport breaks down the quality of a dataset pair.
type QualityReport struct {
	Overall      float64 `json:"overall"`
	Level        string  `json:"level"`
	Dataset1     float64 `json:"dataset1"`
	Dataset2     float64 `json:"dataset2"`
	Completeness float64 `json:"completeness"`
	Variance     float64 `json:"variance"`
	Size         float64 `json:"size"`
	Balance      float64 `json:"balance"`
}

func completeness(d Dataset) float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(len(d.Values)) / float64(d.Total)
}

func hasVariance(d Dataset) float64 {
	if len(d.Values) < 2 || constant(d.Values) {
		return 0
	}
	return 1
}

func sizeAdequacy(d Dataset, minimum int) float64 {
	if minimum <= 0 {
		return 1
	}
	return math.Min(1, float64(len(d.Values))/float64(minimum))
}

// datasetQuality is 0.4 completeness + 0.3 has-variance + 0.3 size adequacy.
func datasetQuality(d Dataset, minimum int) float64 {
	return 0.4*completeness(d) + 0.3*hasVariance(d) + 0.3*sizeAdequacy(d, minimum)
}

// sizeRatio is the smaller dataset size over the larger one.
func sizeRatio(n1, n2 int) float64 {
	hi := max(n1, n2)
	if hi == 0 {
		return 0
	}
	return float64(min(n1, n2)) / float64(hi)
}

// Quality computes the pair quality report for two datasets.
func (p *Processor) Quality(d1, d2 Dataset) QualityReport {
	q1 := datasetQuality(d1, p.cfg.MinimumSize)
	q2 := datasetQuality(d2, p.cfg.MinimumSize)
	rep := QualityReport{
		Overall:      (q1 + q2) / 2,
		Dataset1:     q1,
		Dataset2:     q2,
		Completeness: (completeness(d1) + completeness(d2)) / 2,
		Variance:     (hasVariance(d1) + hasVariance(d2)) / 2,
		Size:         (sizeAdequacy(d1, p.cfg.MinimumSize) + sizeAdequacy(d2, p.cfg.MinimumSize)) / 2,
		Balance:      sizeRatio(len(d1.Values), len(d2.Values)),
	}
	rep.Level = QualityLevel(rep.Overall)
	return rep
}
