package stage

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/popkit/internal/model"
	"github.com/verte-zerg/popkit/internal/stats"
)

// RenderOptions controls the optional score curves of RenderReport.
type RenderOptions struct {
	Plays       map[string][]model.Play
	CurveWindow int
	Plot        bool
	PlotWidth   int
}

// SummaryTable lays out one row per stage.
func SummaryTable(cmp Comparison) stats.Table {
	t := stats.Table{
		Headers:    []string{"Stage", "Plays", "Difficulty", "Score", "Time", "Accuracy", "Trend", "Consistency", "Rating", "Skill"},
		RightAlign: map[int]bool{1: true, 3: true, 4: true, 5: true, 7: true, 8: true},
	}
	for _, id := range cmp.Stages {
		st := cmp.Summary[id]
		t.Rows = append(t.Rows, []string{
			id,
			fmt.Sprintf("%d", st.PlayCount),
			string(st.Difficulty),
			fmt.Sprintf("%.1f", st.Scores.Mean),
			fmt.Sprintf("%.1fs", st.Times.Mean),
			fmt.Sprintf("%.1f%%", st.Accuracy.Mean*100),
			string(st.ImprovementTrend),
			fmt.Sprintf("%.2f", st.Consistency),
			fmt.Sprintf("%.1f", st.PerformanceRating),
			string(cmp.Adjusted[id].SkillLevel),
		})
	}
	return t
}

// PairTable lays out one row per stage pair.
func PairTable(cmp Comparison) stats.Table {
	t := stats.Table{
		Headers:    []string{"Pair", "Score p", "Time p", "Accuracy p", "Summary"},
		RightAlign: map[int]bool{1: true, 2: true, 3: true},
	}
	for i, a := range cmp.Stages {
		for _, b := range cmp.Stages[i+1:] {
			pc, ok := cmp.Individual[PairKey(a, b)]
			if !ok {
				continue
			}
			t.Rows = append(t.Rows, []string{
				PairKey(a, b),
				pValue(pc.Comparisons.Score),
				pValue(pc.Comparisons.Time),
				pValue(pc.Comparisons.Accuracy),
				strings.Join(pc.Summary, "; "),
			})
		}
	}
	return t
}

func pValue(r stats.SignificanceResult) string {
	if r.PValue == nil {
		return "n/a"
	}
	mark := ""
	if r.Significant {
		mark = "*"
	}
	return fmt.Sprintf("%.4f%s", *r.PValue, mark)
}

// RenderReport prints a stage comparison as text.
func RenderReport(w io.Writer, cmp Comparison, opts RenderOptions) error {
	if len(cmp.Stages) == 0 {
		_, err := fmt.Fprintln(w, "No plays recorded.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Stages"); err != nil {
		return err
	}
	if err := SummaryTable(cmp).Write(w); err != nil {
		return err
	}
	if len(cmp.Individual) > 0 {
		if _, err := fmt.Fprintln(w, "Pairwise comparisons (* significant)"); err != nil {
			return err
		}
		if err := PairTable(cmp).Write(w); err != nil {
			return err
		}
	}
	if err := renderCurves(w, cmp.Stages, opts); err != nil {
		return err
	}
	if len(cmp.Recommendations) > 0 {
		if _, err := fmt.Fprintln(w, "Recommendations"); err != nil {
			return err
		}
		for _, r := range cmp.Recommendations {
			if _, err := fmt.Fprintf(w, "- [%s] %s\n", r.Priority, r.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderCurves(w io.Writer, ids []string, opts RenderOptions) error {
	if len(opts.Plays) == 0 {
		return nil
	}
	window := opts.CurveWindow
	if window <= 0 {
		window = 5
	}
	var series []stats.Series
	for _, id := range ids {
		scores := column(opts.Plays[id], scoreOf)
		if len(scores) == 0 {
			continue
		}
		series = append(series, stats.Series{Name: id, Values: stats.MovingAverage(scores, window)})
	}
	if len(series) == 0 {
		return nil
	}
	if opts.Plot {
		return stats.PlotSeries(w, fmt.Sprintf("Score (moving average, window %d)", window), series, opts.PlotWidth, 0)
	}
	t := stats.Table{Headers: []string{"Stage", "Score trend"}}
	for _, s := range series {
		t.Rows = append(t.Rows, []string{s.Name, stats.Sparkline(s.Values)})
	}
	if _, err := fmt.Fprintf(w, "Score trend (moving average, window %d)\n", window); err != nil {
		return err
	}
	return t.Write(w)
}
