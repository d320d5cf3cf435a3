package stage

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/popkit/internal/model"
	"github.com/verte-zerg/popkit/internal/stats"
)

const (
	trendSlope        = 50
	masteryWindow     = 5
	recentWindow      = 5
	plateauWindow     = 10
	plateauVariation  = 0.1
	highScore         = 5000
	lowScore          = 1000
	highAccuracy      = 0.9
	lowAccuracy       = 0.6
	highConsistency   = 0.8
	lowConsistency    = 0.4
	slowTime          = 300
	ratingScoreScale  = 1000
	ratingTimeScale   = 300
	minimumTrendPlays = 3
)

func scoreOf(p model.Play) float64    { return p.Score }
func timeOf(p model.Play) float64     { return p.CompletionTime }
func accuracyOf(p model.Play) float64 { return p.Accuracy }

func column(plays []model.Play, get func(model.Play) float64) []float64 {
	out := make([]float64, len(plays))
	for i, p := range plays {
		out[i] = get(p)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func tail(plays []model.Play, n int) []model.Play {
	if len(plays) <= n {
		return plays
	}
	return plays[len(plays)-n:]
}

func lastPlayed(plays []model.Play) *time.Time {
	var latest time.Time
	for _, p := range plays {
		if p.Timestamp.After(latest) {
			latest = p.Timestamp
		}
	}
	if latest.IsZero() {
		return nil
	}
	return &latest
}

// TrendOf classifies the least-squares slope of scores.
func TrendOf(scores []float64) Trend {
	if len(scores) < minimumTrendPlays {
		return TrendInsufficientData
	}
	x := make([]float64, len(scores))
	for i := range x {
		x[i] = float64(i)
	}
	_, slope := stat.LinearRegression(x, scores, nil, false)
	switch {
	case slope > trendSlope:
		return TrendImproving
	case slope < -trendSlope:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func (a *Analyzer) improvementTrend(plays []model.Play) Trend {
	if len(plays) < minimumTrendPlays {
		return TrendInsufficientData
	}
	return TrendOf(column(tail(plays, a.cfg.TrendWindow), scoreOf))
}

func (a *Analyzer) recentTrend(plays []model.Play) Trend {
	return a.improvementTrend(tail(plays, recentWindow))
}

// consistency is one minus the coefficient of variation of scores, floored
// at zero.
func consistency(plays []model.Play) float64 {
	if len(plays) < 2 {
		return 0
	}
	s := stats.Describe(column(plays, scoreOf))
	if s.Mean == 0 {
		return 0
	}
	return math.Max(0, 1-s.StandardDeviation/s.Mean)
}

// performanceRating blends mean score, time and accuracy into 0..100.
func performanceRating(plays []model.Play) float64 {
	if len(plays) == 0 {
		return 0
	}
	score := mean(column(plays, scoreOf))
	secs := mean(column(plays, timeOf))
	acc := mean(column(plays, accuracyOf))

	scorePart := math.Min(100, score/ratingScoreScale*100)
	var timePart float64
	if secs > 0 {
		timePart = math.Max(0, 100-secs/ratingTimeScale*100)
	}
	return scorePart*0.4 + timePart*0.3 + acc*100*0.3
}

func masteryLevel(plays []model.Play) float64 {
	if len(plays) == 0 {
		return 0
	}
	recent := tail(plays, masteryWindow)
	return (mean(column(recent, accuracyOf)) + consistency(recent)) / 2
}

func scorePerSecond(plays []model.Play) stats.BasicStatistics {
	var rates []float64
	for _, p := range plays {
		if p.Score > 0 && p.CompletionTime > 0 {
			rates = append(rates, p.Score/p.CompletionTime)
		}
	}
	return stats.Describe(rates)
}

func accuracyConsistency(plays []model.Play) float64 {
	return 1 - stats.Describe(column(plays, accuracyOf)).StandardDeviation/100
}

func timeConsistency(plays []model.Play) float64 {
	var times []float64
	for _, p := range plays {
		if p.CompletionTime > 0 {
			times = append(times, p.CompletionTime)
		}
	}
	if len(times) == 0 {
		return 0
	}
	s := stats.Describe(times)
	cv := 1.0
	if s.Mean > 0 {
		cv = s.StandardDeviation / s.Mean
	}
	return math.Max(0, 1-cv)
}

// learningRate is the mean score change between consecutive plays.
func learningRate(plays []model.Play) float64 {
	if len(plays) < 3 {
		return 0
	}
	diffs := make([]float64, len(plays)-1)
	for i := 1; i < len(plays); i++ {
		diffs[i-1] = plays[i].Score - plays[i-1].Score
	}
	return mean(diffs)
}

func (a *Analyzer) plateau(plays []model.Play) Plateau {
	if len(plays) < plateauWindow {
		return Plateau{}
	}
	recent := tail(plays, plateauWindow)
	s := stats.Describe(column(recent, scoreOf))
	var cv float64
	if s.Mean > 0 {
		cv = s.StandardDeviation / s.Mean
	}
	low := cv < plateauVariation
	trend := TrendOf(column(recent, scoreOf))
	p := Plateau{
		OnPlateau:            low && trend == TrendStable,
		Confidence:           0.3,
		VariationCoefficient: cv,
		Trend:                trend,
	}
	if low {
		p.Confidence = 0.8
	}
	return p
}

func relativePerformance(st StageStats, all map[string]StageStats) RelativePerformance {
	means := make([]float64, 0, len(all))
	for _, other := range all {
		means = append(means, other.Scores.Mean)
	}
	overall := mean(means)
	var rp RelativePerformance
	if overall > 0 {
		rp.RelativeScore = st.Scores.Mean / overall
	}
	rp.PercentileRank = percentileRank(st.Scores.Mean, means)
	return rp
}

// percentileRank is the share of values at or below v, in percent.
func percentileRank(v float64, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, x := range values {
		if x <= v {
			n++
		}
	}
	return float64(n) / float64(len(values)) * 100
}

func strengths(st StageStats) []string {
	var out []string
	if st.Scores.Mean > highScore {
		out = append(out, "high_score")
	}
	if st.Accuracy.Mean > highAccuracy {
		out = append(out, "high_accuracy")
	}
	if st.Consistency > highConsistency {
		out = append(out, "consistency")
	}
	if st.ImprovementTrend == TrendImproving {
		out = append(out, "steady_improvement")
	}
	return out
}

func weaknesses(st StageStats) []string {
	var out []string
	if st.Scores.Mean < lowScore {
		out = append(out, "low_score")
	}
	if st.Accuracy.Mean < lowAccuracy {
		out = append(out, "low_accuracy")
	}
	if st.Consistency < lowConsistency {
		out = append(out, "inconsistent")
	}
	if st.Times.Mean > slowTime {
		out = append(out, "slow_completion")
	}
	return out
}
