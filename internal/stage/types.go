// Package stage compares gameplay performance across stages.
package stage

import (
	"time"

	"github.com/verte-zerg/popkit/internal/stats"
)

// Difficulty is the difficulty inferred for a stage.
type Difficulty string

// Difficulty levels.
const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyNormal  Difficulty = "normal"
	DifficultyHard    Difficulty = "hard"
	DifficultyExpert  Difficulty = "expert"
	DifficultyUnknown Difficulty = "unknown"
)

// DifficultyOrder is the progression used for mastery rates.
var DifficultyOrder = []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyExpert}

// DefaultDifficultyFactors scale scores and times across difficulties.
func DefaultDifficultyFactors() map[Difficulty]float64 {
	return map[Difficulty]float64{
		DifficultyEasy:    0.7,
		DifficultyNormal:  1.0,
		DifficultyHard:    1.3,
		DifficultyExpert:  1.6,
		DifficultyUnknown: 1.0,
	}
}

// Trend classifies the direction of recent scores.
type Trend string

// Trends.
const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// SkillLevel buckets the difficulty-normalized overall score.
type SkillLevel string

// Skill levels.
const (
	SkillNovice       SkillLevel = "novice"
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// Priority ranks recommendations and opportunities.
type Priority string

// Priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// StageStats summarizes the plays of one stage.
type StageStats struct {
	StageID           string                `json:"stageId"`
	PlayCount         int                   `json:"playCount"`
	Scores            stats.BasicStatistics `json:"scores"`
	Times             stats.BasicStatistics `json:"times"`
	Accuracy          stats.BasicStatistics `json:"accuracy"`
	Difficulty        Difficulty            `json:"difficultyLevel"`
	LastPlayed        *time.Time            `json:"lastPlayed"`
	ImprovementTrend  Trend                 `json:"improvementTrend"`
	Consistency       float64               `json:"consistency"`
	PerformanceRating float64               `json:"performanceRating"`
	MasteryLevel      float64               `json:"masteryLevel"`
}

// MetricComparisons holds the significance tests of a stage pair.
type MetricComparisons struct {
	Score    stats.SignificanceResult `json:"score"`
	Time     stats.SignificanceResult `json:"time"`
	Accuracy stats.SignificanceResult `json:"accuracy"`
}

// PairComparison compares two stages metric by metric.
type PairComparison struct {
	Stage1          string            `json:"stage1"`
	Stage2          string            `json:"stage2"`
	Comparisons     MetricComparisons `json:"comparisons"`
	Summary         []string          `json:"summary"`
	Recommendations []string          `json:"recommendations"`
}

// Plateau reports whether recent scores have stopped moving.
type Plateau struct {
	OnPlateau            bool    `json:"isOnPlateau"`
	Confidence           float64 `json:"confidence"`
	VariationCoefficient float64 `json:"variationCoefficient"`
	Trend                Trend   `json:"trend,omitempty"`
}

// RelativePerformance places a stage among all stages.
type RelativePerformance struct {
	RelativeScore  float64 `json:"relativeScore"`
	PercentileRank float64 `json:"percentileRank"`
}

// PerformanceMetrics are the detailed metrics of a stage. They are only
// computed for stages with enough plays; otherwise InsufficientData is set.
type PerformanceMetrics struct {
	InsufficientData    bool                  `json:"insufficientData,omitempty"`
	ScorePerSecond      stats.BasicStatistics `json:"scorePerSecond"`
	AccuracyConsistency float64               `json:"accuracyConsistency"`
	TimeConsistency     float64               `json:"timeConsistency"`
	LearningRate        float64               `json:"learningRate"`
	MasteryLevel        float64               `json:"masteryLevel"`
	Plateau             Plateau               `json:"plateauDetection"`
	Relative            RelativePerformance   `json:"relativePerformance"`
	Strengths           []string              `json:"strengthAreas"`
	Weaknesses          []string              `json:"weaknessAreas"`
	RecentTrend         Trend                 `json:"recentTrend"`
}

// NormalizedPerformance is stage performance with difficulty factored out.
type NormalizedPerformance struct {
	Score    float64 `json:"score"`
	Time     float64 `json:"time"`
	Accuracy float64 `json:"accuracy"`
	Overall  float64 `json:"overall"`
}

// AdjustedMetrics are difficulty-adjusted stage metrics.
type AdjustedMetrics struct {
	Score      float64               `json:"adjustedScore"`
	Time       float64               `json:"adjustedTime"`
	Accuracy   float64               `json:"adjustedAccuracy"`
	Factor     float64               `json:"difficultyAdjustmentFactor"`
	Normalized NormalizedPerformance `json:"normalizedPerformance"`
	SkillLevel SkillLevel            `json:"skillLevel"`
}

// Ranking is a stage with its performance rating.
type Ranking struct {
	ID     string  `json:"id"`
	Rating float64 `json:"rating"`
}

// Opportunity flags a stage that could improve.
type Opportunity struct {
	Stage    string   `json:"stage"`
	Type     string   `json:"type"`
	Priority Priority `json:"priority"`
}

// MasteryProgression tracks mastery across difficulty levels.
type MasteryProgression struct {
	Overall         float64                `json:"overallMastery"`
	ByDifficulty    map[Difficulty]float64 `json:"masteryByDifficulty"`
	ProgressionRate float64                `json:"progressionRate"`
}

// OverallPerformance describes stage means across all stages.
type OverallPerformance struct {
	AverageScore    stats.BasicStatistics `json:"averageScore"`
	AverageTime     stats.BasicStatistics `json:"averageTime"`
	AverageAccuracy stats.BasicStatistics `json:"averageAccuracy"`
}

// OverallTrends aggregates all stages.
type OverallTrends struct {
	InsufficientData         bool                `json:"insufficientData,omitempty"`
	Performance              OverallPerformance  `json:"overallPerformance"`
	ConsistencyAcrossStages  float64             `json:"consistencyAcrossStages"`
	Strongest                []Ranking           `json:"strongestStages"`
	Weakest                  []Ranking           `json:"weakestStages"`
	ImprovementOpportunities []Opportunity       `json:"improvementOpportunities"`
	Mastery                  *MasteryProgression `json:"masteryProgression,omitempty"`
}

// RecommendationType names a recommendation rule.
type RecommendationType string

// Recommendation types.
const (
	RecommendPracticeMore      RecommendationType = "practice_more"
	RecommendBreakPlateau      RecommendationType = "break_plateau"
	RecommendFocusWeakAreas    RecommendationType = "focus_weak_areas"
	RecommendLeverageStrengths RecommendationType = "leverage_strengths"
)

// Recommendation is advice about one stage.
type Recommendation struct {
	Type     RecommendationType `json:"type"`
	Priority Priority           `json:"priority"`
	Stage    string             `json:"stage"`
	Message  string             `json:"message"`
}

// Comparison is the full cross-stage analysis.
type Comparison struct {
	Timestamp       time.Time                     `json:"timestamp"`
	Stages          []string                      `json:"stages"`
	Summary         map[string]StageStats         `json:"stageSummary"`
	Individual      map[string]PairComparison     `json:"individualComparisons"`
	Performance     map[string]PerformanceMetrics `json:"performanceMetrics"`
	Adjusted        map[string]AdjustedMetrics    `json:"difficultyAdjustedMetrics"`
	Trends          OverallTrends                 `json:"overallTrends"`
	Recommendations []Recommendation              `json:"recommendations"`
}

// PairKey returns the Individual key for a stage pair.
func PairKey(a, b string) string {
	return a + "_vs_" + b
}
