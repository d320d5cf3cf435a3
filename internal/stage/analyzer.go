package stage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/popkit/internal/model"
	"github.com/verte-zerg/popkit/internal/stats"
)

// Config controls stage analysis.
type Config struct {
	MinimumPlays      int
	MaxStages         int
	TrendWindow       int
	DifficultyFactors map[Difficulty]float64
}

// DefaultConfig returns the stage analysis defaults.
func DefaultConfig() Config {
	return Config{
		MinimumPlays:      3,
		MaxStages:         50,
		TrendWindow:       10,
		DifficultyFactors: DefaultDifficultyFactors(),
	}
}

// Analyzer compares stages using a statistics analyzer.
type Analyzer struct {
	stats  *stats.Analyzer
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New returns an Analyzer. A nil sa uses the default statistics config and
// a nil logger discards output. Missing difficulty factors fall back to the
// defaults.
func New(sa *stats.Analyzer, cfg Config, logger *zap.Logger) *Analyzer {
	def := DefaultConfig()
	if sa == nil {
		sa = stats.NewAnalyzer(stats.DefaultConfig())
	}
	if cfg.MinimumPlays <= 0 {
		cfg.MinimumPlays = def.MinimumPlays
	}
	if cfg.MaxStages <= 0 {
		cfg.MaxStages = def.MaxStages
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = def.TrendWindow
	}
	factors := DefaultDifficultyFactors()
	for k, v := range cfg.DifficultyFactors {
		if v > 0 {
			factors[k] = v
		}
	}
	cfg.DifficultyFactors = factors
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{stats: sa, cfg: cfg, logger: logger, now: time.Now}
}

// Compare analyzes every stage in data. Plays are taken in the given order,
// oldest first.
func (a *Analyzer) Compare(data map[string][]model.Play) Comparison {
	ids := model.StageIDs(data)
	cmp := Comparison{
		Timestamp:   a.now(),
		Stages:      ids,
		Summary:     make(map[string]StageStats, len(ids)),
		Individual:  map[string]PairComparison{},
		Performance: make(map[string]PerformanceMetrics, len(ids)),
		Adjusted:    make(map[string]AdjustedMetrics, len(ids)),
	}
	for _, id := range ids {
		cmp.Summary[id] = a.stageStats(id, data[id])
	}
	if len(ids) >= 2 {
		limited := ids
		if len(limited) > a.cfg.MaxStages {
			limited = limited[:a.cfg.MaxStages]
		}
		for i := 0; i < len(limited); i++ {
			for j := i + 1; j < len(limited); j++ {
				s1, s2 := limited[i], limited[j]
				cmp.Individual[PairKey(s1, s2)] = a.CompareStages(s1, s2, data[s1], data[s2], cmp.Summary[s1], cmp.Summary[s2])
			}
		}
	}
	for _, id := range ids {
		cmp.Performance[id] = a.performance(data[id], cmp.Summary[id], cmp.Summary)
		cmp.Adjusted[id] = a.adjusted(cmp.Summary[id])
	}
	cmp.Trends = a.overallTrends(ids, cmp.Summary)
	cmp.Recommendations = a.recommendations(ids, cmp)
	a.logger.Debug("compared stages", zap.Int("stages", len(ids)), zap.Int("pairs", len(cmp.Individual)))
	return cmp
}

// DifficultyFor infers a stage difficulty from keywords in its id.
func DifficultyFor(stageID string) Difficulty {
	id := strings.ToLower(stageID)
	switch {
	case strings.Contains(id, "easy") || strings.Contains(id, "tutorial"):
		return DifficultyEasy
	case strings.Contains(id, "expert") || strings.Contains(id, "master"):
		return DifficultyExpert
	case strings.Contains(id, "hard"):
		return DifficultyHard
	default:
		return DifficultyNormal
	}
}

func (a *Analyzer) stageStats(id string, plays []model.Play) StageStats {
	st := StageStats{
		StageID:          id,
		PlayCount:        len(plays),
		Difficulty:       DifficultyUnknown,
		ImprovementTrend: TrendInsufficientData,
	}
	if len(plays) == 0 {
		return st
	}
	var scores, times, accuracy []float64
	for _, p := range plays {
		if p.Score > 0 {
			scores = append(scores, p.Score)
		}
		if p.CompletionTime > 0 {
			times = append(times, p.CompletionTime)
		}
		if p.Accuracy >= 0 {
			accuracy = append(accuracy, p.Accuracy)
		}
	}
	st.Scores = stats.Describe(scores)
	st.Times = stats.Describe(times)
	st.Accuracy = stats.Describe(accuracy)
	st.Difficulty = DifficultyFor(id)
	st.LastPlayed = lastPlayed(plays)
	st.ImprovementTrend = a.improvementTrend(plays)
	st.Consistency = consistency(plays)
	st.PerformanceRating = performanceRating(plays)
	st.MasteryLevel = masteryLevel(plays)
	return st
}

// CompareStages runs the significance tests for one stage pair.
func (a *Analyzer) CompareStages(id1, id2 string, plays1, plays2 []model.Play, st1, st2 StageStats) PairComparison {
	pc := PairComparison{
		Stage1: id1,
		Stage2: id2,
		Comparisons: MetricComparisons{
			Score:    a.stats.SignificanceTest(column(plays1, scoreOf), column(plays2, scoreOf)),
			Time:     a.stats.SignificanceTest(column(plays1, timeOf), column(plays2, timeOf)),
			Accuracy: a.stats.SignificanceTest(column(plays1, accuracyOf), column(plays2, accuracyOf)),
		},
	}
	pc.Summary = comparisonSummary(id1, id2, pc.Comparisons)
	pc.Recommendations = pairRecommendations(id1, st1, st2)
	return pc
}

func comparisonSummary(id1, id2 string, c MetricComparisons) []string {
	var out []string
	if c.Score.Significant {
		out = append(out, fmt.Sprintf("score: %s is significantly better", pick(c.Score.MeanDifference > 0, id1, id2)))
	}
	if c.Time.Significant {
		out = append(out, fmt.Sprintf("time: %s is significantly faster", pick(c.Time.MeanDifference < 0, id1, id2)))
	}
	if c.Accuracy.Significant {
		out = append(out, fmt.Sprintf("accuracy: %s is significantly more accurate", pick(c.Accuracy.MeanDifference > 0, id1, id2)))
	}
	if len(out) == 0 {
		return []string{"no significant difference"}
	}
	return out
}

func pairRecommendations(id1 string, st1, st2 StageStats) []string {
	var out []string
	if st1.Scores.Mean < st2.Scores.Mean*0.8 {
		out = append(out, fmt.Sprintf("focus on raising the score in %s", id1))
	}
	if st1.Times.Mean > st2.Times.Mean*1.2 {
		out = append(out, fmt.Sprintf("work on completion time in %s", id1))
	}
	return out
}

func pick(first bool, a, b string) string {
	if first {
		return a
	}
	return b
}

func (a *Analyzer) performance(plays []model.Play, st StageStats, all map[string]StageStats) PerformanceMetrics {
	if st.PlayCount < a.cfg.MinimumPlays {
		return PerformanceMetrics{InsufficientData: true}
	}
	return PerformanceMetrics{
		ScorePerSecond:      scorePerSecond(plays),
		AccuracyConsistency: accuracyConsistency(plays),
		TimeConsistency:     timeConsistency(plays),
		LearningRate:        learningRate(plays),
		MasteryLevel:        masteryLevel(plays),
		Plateau:             a.plateau(plays),
		Relative:            relativePerformance(st, all),
		Strengths:           strengths(st),
		Weaknesses:          weaknesses(st),
		RecentTrend:         a.recentTrend(plays),
	}
}

func (a *Analyzer) factor(d Difficulty) float64 {
	if f, ok := a.cfg.DifficultyFactors[d]; ok {
		return f
	}
	return 1
}

func (a *Analyzer) adjusted(st StageStats) AdjustedMetrics {
	f := a.factor(st.Difficulty)
	norm := normalizedPerformance(st, f)
	return AdjustedMetrics{
		Score:      st.Scores.Mean / f,
		Time:       st.Times.Mean * f,
		Accuracy:   st.Accuracy.Mean,
		Factor:     f,
		Normalized: norm,
		SkillLevel: SkillFor(norm.Overall),
	}
}

func normalizedPerformance(st StageStats, f float64) NormalizedPerformance {
	return NormalizedPerformance{
		Score:    st.Scores.Mean / f,
		Time:     st.Times.Mean * f,
		Accuracy: st.Accuracy.Mean,
		Overall:  (st.Scores.Mean/f + st.Accuracy.Mean*100) / 2,
	}
}

// SkillFor buckets a normalized overall score.
func SkillFor(overall float64) SkillLevel {
	switch {
	case overall >= 80:
		return SkillExpert
	case overall >= 60:
		return SkillAdvanced
	case overall >= 40:
		return SkillIntermediate
	case overall >= 20:
		return SkillBeginner
	default:
		return SkillNovice
	}
}

func (a *Analyzer) overallTrends(ids []string, summary map[string]StageStats) OverallTrends {
	if len(ids) == 0 {
		return OverallTrends{InsufficientData: true}
	}
	scores := make([]float64, len(ids))
	times := make([]float64, len(ids))
	accuracy := make([]float64, len(ids))
	ratings := make([]float64, len(ids))
	for i, id := range ids {
		st := summary[id]
		scores[i] = st.Scores.Mean
		times[i] = st.Times.Mean
		accuracy[i] = st.Accuracy.Mean
		ratings[i] = st.PerformanceRating
	}
	t := OverallTrends{
		Performance: OverallPerformance{
			AverageScore:    stats.Describe(scores),
			AverageTime:     stats.Describe(times),
			AverageAccuracy: stats.Describe(accuracy),
		},
	}
	if r := stats.Describe(ratings); r.Mean > 0 {
		t.ConsistencyAcrossStages = 1 - r.StandardDeviation/r.Mean
	}

	var all, qualified []Ranking
	for _, id := range ids {
		st := summary[id]
		r := Ranking{ID: id, Rating: st.PerformanceRating}
		all = append(all, r)
		if st.PlayCount >= a.cfg.MinimumPlays {
			qualified = append(qualified, r)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Rating > all[j].Rating })
	sort.SliceStable(qualified, func(i, j int) bool { return qualified[i].Rating < qualified[j].Rating })
	t.Strongest = all[:min(3, len(all))]
	t.Weakest = qualified[:min(3, len(qualified))]

	for _, id := range ids {
		st := summary[id]
		if st.PlayCount < a.cfg.MinimumPlays {
			continue
		}
		if st.ImprovementTrend == TrendDeclining {
			t.ImprovementOpportunities = append(t.ImprovementOpportunities, Opportunity{Stage: id, Type: "declining_performance", Priority: PriorityHigh})
		}
		if st.Consistency < 0.5 {
			t.ImprovementOpportunities = append(t.ImprovementOpportunities, Opportunity{Stage: id, Type: "inconsistent_performance", Priority: PriorityMedium})
		}
		if st.Accuracy.Mean < 0.7 {
			t.ImprovementOpportunities = append(t.ImprovementOpportunities, Opportunity{Stage: id, Type: "low_accuracy", Priority: PriorityHigh})
		}
	}
	t.Mastery = a.masteryProgression(ids, summary)
	return t
}

type stageMastery struct {
	mastery    float64
	difficulty Difficulty
}

// masteryProgression uses each qualifying stage's mean accuracy as a
// single-play mastery estimate.
func (a *Analyzer) masteryProgression(ids []string, summary map[string]StageStats) *MasteryProgression {
	var levels []stageMastery
	for _, id := range ids {
		st := summary[id]
		if st.PlayCount < a.cfg.MinimumPlays {
			continue
		}
		levels = append(levels, stageMastery{
			mastery:    masteryLevel([]model.Play{{Accuracy: st.Accuracy.Mean}}),
			difficulty: st.Difficulty,
		})
	}
	if len(levels) == 0 {
		return nil
	}
	mp := &MasteryProgression{ByDifficulty: map[Difficulty]float64{}}
	counts := map[Difficulty]int{}
	for _, l := range levels {
		mp.Overall += l.mastery
		mp.ByDifficulty[l.difficulty] += l.mastery
		counts[l.difficulty]++
	}
	mp.Overall /= float64(len(levels))
	for d, n := range counts {
		mp.ByDifficulty[d] /= float64(n)
	}
	var steps []float64
	for i := 0; i+1 < len(DifficultyOrder); i++ {
		cur, okCur := mp.ByDifficulty[DifficultyOrder[i]]
		next, okNext := mp.ByDifficulty[DifficultyOrder[i+1]]
		if okCur && okNext {
			steps = append(steps, next-cur)
		}
	}
	if len(steps) > 0 {
		mp.ProgressionRate = stats.Describe(steps).Mean
	}
	return mp
}

func (a *Analyzer) recommendations(ids []string, cmp Comparison) []Recommendation {
	var out []Recommendation
	for _, id := range ids {
		if cmp.Summary[id].PlayCount < a.cfg.MinimumPlays {
			out = append(out, Recommendation{
				Type:     RecommendPracticeMore,
				Priority: PriorityMedium,
				Stage:    id,
				Message:  fmt.Sprintf("%s has few plays; more practice will make the analysis reliable", id),
			})
		}
	}
	for _, id := range ids {
		if cmp.Performance[id].Plateau.OnPlateau {
			out = append(out, Recommendation{
				Type:     RecommendBreakPlateau,
				Priority: PriorityHigh,
				Stage:    id,
				Message:  fmt.Sprintf("performance in %s has plateaued; try a different practice approach", id),
			})
		}
	}
	for _, r := range cmp.Trends.Weakest {
		out = append(out, Recommendation{
			Type:     RecommendFocusWeakAreas,
			Priority: PriorityHigh,
			Stage:    r.ID,
			Message:  fmt.Sprintf("%s is relatively weak; focus practice there", r.ID),
		})
	}
	for _, r := range cmp.Trends.Strongest[:min(2, len(cmp.Trends.Strongest))] {
		out = append(out, Recommendation{
			Type:     RecommendLeverageStrengths,
			Priority: PriorityLow,
			Stage:    r.ID,
			Message:  fmt.Sprintf("%s is a strength; carry what works there to other stages", r.ID),
		})
	}
	return out
}
