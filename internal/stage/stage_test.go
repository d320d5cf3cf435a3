package stage

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/popkit/internal/model"
)

func repeatPlays(n int, score, secs, acc float64) []model.Play {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Play, n)
	for i := range out {
		out[i] = model.Play{Score: score, CompletionTime: secs, Accuracy: acc, Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func scorePlays(scores ...float64) []model.Play {
	out := make([]model.Play, len(scores))
	for i, s := range scores {
		out[i] = model.Play{Score: s, CompletionTime: 60, Accuracy: 0.8}
	}
	return out
}

func TestCompareFavorsHigherScoringStage(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	cmp := a.Compare(map[string][]model.Play{
		"A": repeatPlays(5, 100, 10, 0.9),
		"B": repeatPlays(5, 500, 10, 0.9),
	})

	pc, ok := cmp.Individual["A_vs_B"]
	require.True(t, ok)
	require.True(t, pc.Comparisons.Score.Significant)
	require.False(t, pc.Comparisons.Time.Significant)
	require.False(t, pc.Comparisons.Accuracy.Significant)
	require.Equal(t, []string{"score: B is significantly better"}, pc.Summary)
	require.Contains(t, pc.Recommendations, "focus on raising the score in A")

	require.InDelta(t, 60, cmp.Summary["A"].PerformanceRating, 1e-9)
	require.InDelta(t, 76, cmp.Summary["B"].PerformanceRating, 1e-9)
	require.Equal(t, 1.0, cmp.Summary["A"].Consistency)
	require.Equal(t, "B", cmp.Trends.Strongest[0].ID)
	require.Equal(t, "A", cmp.Trends.Weakest[0].ID)
	require.NotNil(t, cmp.Summary["B"].LastPlayed)
}

func TestCompareNoSignificantDifference(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	cmp := a.Compare(map[string][]model.Play{
		"A": repeatPlays(5, 300, 10, 0.9),
		"B": repeatPlays(5, 300, 10, 0.9),
	})
	require.Equal(t, []string{"no significant difference"}, cmp.Individual["A_vs_B"].Summary)
}

func TestEmptyStage(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	cmp := a.Compare(map[string][]model.Play{"ghost": nil})
	st := cmp.Summary["ghost"]
	require.Equal(t, DifficultyUnknown, st.Difficulty)
	require.Equal(t, TrendInsufficientData, st.ImprovementTrend)
	require.Nil(t, st.LastPlayed)
	require.True(t, cmp.Performance["ghost"].InsufficientData)
	require.Empty(t, cmp.Individual)
	require.Equal(t, RecommendPracticeMore, cmp.Recommendations[0].Type)
}

func TestDifficultyFor(t *testing.T) {
	cases := map[string]Difficulty{
		"tutorial-1":  DifficultyEasy,
		"Easy-2":      DifficultyEasy,
		"hard-3":      DifficultyHard,
		"expert-zone": DifficultyExpert,
		"master-1":    DifficultyExpert,
		"hard-expert": DifficultyExpert,
		"level-4":     DifficultyNormal,
	}
	for id, want := range cases {
		require.Equal(t, want, DifficultyFor(id), id)
	}
}

func TestCompareAdjustsExpertStages(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	cmp := a.Compare(map[string][]model.Play{
		"expert-1": repeatPlays(3, 1600, 30, 0.8),
		"master-1": repeatPlays(3, 1600, 30, 0.8),
	})
	for _, id := range []string{"expert-1", "master-1"} {
		require.Equal(t, DifficultyExpert, cmp.Summary[id].Difficulty, id)
		require.Equal(t, 1.6, cmp.Adjusted[id].Factor, id)
		require.InDelta(t, 1000, cmp.Adjusted[id].Score, 1e-9, id)
	}
}

func TestTrendOf(t *testing.T) {
	require.Equal(t, TrendInsufficientData, TrendOf([]float64{1, 2}))
	require.Equal(t, TrendImproving, TrendOf([]float64{100, 200, 300}))
	require.Equal(t, TrendDeclining, TrendOf([]float64{300, 200, 100}))
	require.Equal(t, TrendStable, TrendOf([]float64{100, 120, 110, 105}))
}

func TestImprovementTrendUsesRecentWindow(t *testing.T) {
	a := New(nil, Config{TrendWindow: 3}, nil)
	plays := scorePlays(1000, 900, 800, 700, 100, 200, 300)
	require.Equal(t, TrendImproving, a.improvementTrend(plays))
}

func TestPlateauDetection(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	flat := scorePlays(1000, 1010, 990, 1005, 995, 1000, 1010, 990, 1005, 995)
	cmp := a.Compare(map[string][]model.Play{"flat": flat})
	p := cmp.Performance["flat"].Plateau
	require.True(t, p.OnPlateau)
	require.Equal(t, 0.8, p.Confidence)
	require.Equal(t, TrendStable, p.Trend)

	var types []RecommendationType
	for _, r := range cmp.Recommendations {
		types = append(types, r.Type)
	}
	require.Contains(t, types, RecommendBreakPlateau)
	require.Contains(t, types, RecommendLeverageStrengths)

	short := a.Compare(map[string][]model.Play{"short": scorePlays(1, 2, 3)})
	require.False(t, short.Performance["short"].Plateau.OnPlateau)
}

func TestPerformanceMetrics(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	plays := []model.Play{
		{Score: 100, CompletionTime: 10, Accuracy: 0.5},
		{Score: 300, CompletionTime: 10, Accuracy: 0.5},
		{Score: 500, CompletionTime: 10, Accuracy: 0.5},
	}
	cmp := a.Compare(map[string][]model.Play{"s": plays})
	m := cmp.Performance["s"]
	require.InDelta(t, 200, m.LearningRate, 1e-9)
	require.InDelta(t, 30, m.ScorePerSecond.Mean, 1e-9)
	require.Equal(t, 1.0, m.TimeConsistency)
	require.Equal(t, 1.0, m.AccuracyConsistency)
	require.Equal(t, 100.0, m.Relative.PercentileRank)
	require.Equal(t, 1.0, m.Relative.RelativeScore)
	require.Contains(t, m.Weaknesses, "low_score")
	require.Contains(t, m.Weaknesses, "low_accuracy")
	require.Equal(t, TrendImproving, cmp.Summary["s"].ImprovementTrend)
}

func TestDifficultyAdjustment(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	cmp := a.Compare(map[string][]model.Play{
		"easy-1": repeatPlays(3, 70, 10, 0.8),
		"hard-1": repeatPlays(3, 130, 10, 0.8),
	})
	easy := cmp.Adjusted["easy-1"]
	hard := cmp.Adjusted["hard-1"]
	require.InDelta(t, 100, easy.Score, 1e-9)
	require.InDelta(t, 100, hard.Score, 1e-9)
	require.InDelta(t, 7, easy.Time, 1e-9)
	require.InDelta(t, 13, hard.Time, 1e-9)
	require.InDelta(t, 90, easy.Normalized.Overall, 1e-9)
	require.Equal(t, SkillExpert, easy.SkillLevel)
}

func TestSkillFor(t *testing.T) {
	require.Equal(t, SkillExpert, SkillFor(80))
	require.Equal(t, SkillAdvanced, SkillFor(79.9))
	require.Equal(t, SkillIntermediate, SkillFor(40))
	require.Equal(t, SkillBeginner, SkillFor(20))
	require.Equal(t, SkillNovice, SkillFor(19.99))
}

func TestMasteryProgression(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	cmp := a.Compare(map[string][]model.Play{
		"easy-1":  repeatPlays(3, 100, 10, 0.8),
		"level-1": repeatPlays(3, 100, 10, 0.6),
		"new-1":   repeatPlays(1, 100, 10, 0.1),
	})
	mp := cmp.Trends.Mastery
	require.NotNil(t, mp)
	require.InDelta(t, 0.35, mp.Overall, 1e-9)
	require.InDelta(t, 0.4, mp.ByDifficulty[DifficultyEasy], 1e-9)
	require.InDelta(t, -0.1, mp.ProgressionRate, 1e-9)
	require.Len(t, cmp.Trends.Weakest, 2)
	require.Len(t, cmp.Trends.Strongest, 3)
}

func TestRenderReport(t *testing.T) {
	a := New(nil, DefaultConfig(), nil)
	data := map[string][]model.Play{
		"A": repeatPlays(5, 100, 10, 0.9),
		"B": repeatPlays(5, 500, 10, 0.9),
	}
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, a.Compare(data), RenderOptions{Plays: data, CurveWindow: 2}))
	out := buf.String()
	require.Contains(t, out, "A_vs_B")
	require.Contains(t, out, "0.0000*")
	require.Contains(t, out, "score: B is significantly better")
	require.Contains(t, out, "Score trend")

	buf.Reset()
	require.NoError(t, RenderReport(&buf, a.Compare(nil), RenderOptions{}))
	require.Equal(t, "No plays recorded.\n", buf.String())
}

func TestPercentileRank(t *testing.T) {
	require.Equal(t, 0.0, percentileRank(1, nil))
	require.InDelta(t, 200.0/3, percentileRank(2, []float64{3, 1, 2}), 1e-9)
	require.False(t, math.IsNaN(percentileRank(0, []float64{1})))
}
