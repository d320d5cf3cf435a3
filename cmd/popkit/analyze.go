package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/popkit/internal/config"
	"github.com/verte-zerg/popkit/internal/datafile"
	"github.com/verte-zerg/popkit/internal/generator"
	"github.com/verte-zerg/popkit/internal/model"
	"github.com/verte-zerg/popkit/internal/stage"
	"github.com/verte-zerg/popkit/internal/stats"
	"github.com/verte-zerg/popkit/internal/statsui"
)

// testFlags are the significance test settings shared by analyze and compare.
type testFlags struct {
	significance  float64
	minSample     int
	pValueMode    string
	equalVariance bool
}

func (f *testFlags) register(cmd *cobra.Command) {
	def := stats.DefaultConfig()
	cmd.Flags().Float64Var(&f.significance, "significance-level", def.SignificanceLevel, "alpha for significance tests")
	cmd.Flags().IntVar(&f.minSample, "min-sample-size", def.MinimumSampleSize, "minimum sample size per group")
	cmd.Flags().StringVar(&f.pValueMode, "p-value-mode", string(def.PValueMode), "p-value computation (approx or exact)")
	cmd.Flags().BoolVar(&f.equalVariance, "equal-variance", def.EqualVariance, "use the Student t test instead of Welch")
}

func (f *testFlags) apply(cmd *cobra.Command, c config.AnalysisConfig) {
	applyFloatConfig(cmd, "significance-level", &f.significance, c.SignificanceLevel)
	applyIntConfig(cmd, "min-sample-size", &f.minSample, c.MinSampleSize)
	applyStringConfig(cmd, "p-value-mode", &f.pValueMode, c.PValueMode)
	applyBoolConfig(cmd, "equal-variance", &f.equalVariance, c.EqualVariance)
}

func (f *testFlags) analyzer() (*stats.Analyzer, error) {
	if f.significance <= 0 || f.significance >= 1 {
		return nil, fmt.Errorf("--significance-level must be between 0 and 1")
	}
	if f.minSample < 2 {
		return nil, fmt.Errorf("--min-sample-size must be >= 2")
	}
	mode, err := parsePValueMode(f.pValueMode)
	if err != nil {
		return nil, err
	}
	cfg := stats.DefaultConfig()
	cfg.SignificanceLevel = f.significance
	cfg.MinimumSampleSize = f.minSample
	cfg.PValueMode = mode
	cfg.EqualVariance = f.equalVariance
	return stats.NewAnalyzer(cfg), nil
}

func parsePValueMode(s string) (stats.PValueMode, error) {
	switch stats.PValueMode(s) {
	case "", stats.PValueApprox:
		return stats.PValueApprox, nil
	case stats.PValueExact:
		return stats.PValueExact, nil
	}
	return "", fmt.Errorf("unknown p-value mode %q (use approx or exact)", s)
}

var (
	analyzeFile        string
	analyzeStages      string
	analyzeSince       string
	analyzeLast        int
	analyzeCurveWindow int
	analyzePlot        bool
	analyzeTUI         bool
	analyzeJSON        bool
	analyzeTest        testFlags
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare performance across stages",
		Args:  cobra.NoArgs,
		RunE:  runAnalyzeCmd,
	}
	cmd.Flags().StringVar(&analyzeFile, "file", "", "play log to analyze instead of the database (- for stdin)")
	cmd.Flags().StringVar(&analyzeStages, "stages", "", "comma separated stage filter")
	cmd.Flags().StringVar(&analyzeSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&analyzeLast, "last", 0, "limit to the last N plays per stage")
	cmd.Flags().IntVar(&analyzeCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&analyzePlot, "plot", false, "draw score curves")
	cmd.Flags().BoolVar(&analyzeTUI, "tui", false, "open the interactive report")
	cmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the comparison as JSON")
	analyzeTest.register(cmd)
	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	analyzeTest.apply(cmd, fileCfg.Analysis)
	applyIntConfig(cmd, "last", &analyzeLast, fileCfg.Analysis.Last)
	applyIntConfig(cmd, "curve-window", &analyzeCurveWindow, fileCfg.Analysis.CurveWindow)
	applyBoolConfig(cmd, "plot", &analyzePlot, fileCfg.Analysis.Plot)

	if analyzeLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if analyzeCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	since, err := parseSince(analyzeSince)
	if err != nil {
		return err
	}
	sa, err := analyzeTest.analyzer()
	if err != nil {
		return err
	}
	analyzer := stage.New(sa, stage.DefaultConfig(), logger)
	filter := model.PlayFilter{Stages: splitList(analyzeStages), Since: since, Last: analyzeLast}

	var src statsui.PlaySource
	if analyzeFile != "" {
		plays, warnings, err := datafile.ReadPlaysFile(analyzeFile)
		for _, w := range warnings {
			logErrf("warning: %s\n", w)
		}
		if err != nil {
			return fmt.Errorf("failed to read play log: %w", err)
		}
		src = statsui.StaticPlays(plays)
	} else {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(st)
		src = st
	}

	if analyzeTUI {
		m := statsui.NewModel(src, analyzer, model.AnalyzeConfig{PlayFilter: filter, CurveWindow: analyzeCurveWindow})
		program := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}

	plays, err := src.ListPlays(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to load plays: %w", err)
	}
	grouped := model.GroupByStage(plays)
	cmp := analyzer.Compare(grouped)
	out := cmd.OutOrStdout()
	if analyzeJSON {
		return writeJSON(out, cmp)
	}
	return stage.RenderReport(out, cmp, stage.RenderOptions{
		Plays:       grouped,
		CurveWindow: analyzeCurveWindow,
		Plot:        analyzePlot,
	})
}

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <play-log>",
		Short: "Import a play log into the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecordCmd,
	}
}

func runRecordCmd(cmd *cobra.Command, args []string) error {
	plays, warnings, err := datafile.ReadPlaysFile(args[0])
	for _, w := range warnings {
		logErrf("warning: %s\n", w)
	}
	if err != nil {
		return fmt.Errorf("failed to read play log: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	if err := st.InsertPlays(cmd.Context(), plays); err != nil {
		return fmt.Errorf("failed to record plays: %w", err)
	}
	logErrf("Recorded %d plays from %d stages\n", len(plays), len(model.GroupByStage(plays)))
	return nil
}

var (
	simulateStages int
	simulatePlays  int
	simulateStep   float64
	simulateSeed   int64
	simulateOut    string
	simulateRecord bool
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic play log",
		Args:  cobra.NoArgs,
		RunE:  runSimulateCmd,
	}
	cmd.Flags().IntVar(&simulateStages, "stages", 3, "number of stages")
	cmd.Flags().IntVar(&simulatePlays, "plays", 20, "plays per stage")
	cmd.Flags().Float64Var(&simulateStep, "step", 0.25, "difficulty increase per stage")
	cmd.Flags().Int64Var(&simulateSeed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().StringVar(&simulateOut, "out", "-", "output file (- for stdout)")
	cmd.Flags().BoolVar(&simulateRecord, "record", false, "insert the plays into the database instead of writing them")
	return cmd
}

func runSimulateCmd(cmd *cobra.Command, _ []string) error {
	if simulateStages <= 0 {
		return fmt.Errorf("--stages must be > 0")
	}
	if simulatePlays <= 0 {
		return fmt.Errorf("--plays must be > 0")
	}
	if simulateStep < 0 {
		return fmt.Errorf("--step must be >= 0")
	}
	gen := generator.New()
	if simulateSeed != 0 {
		gen = generator.NewSeeded(simulateSeed)
	}
	start := time.Now().Add(-time.Duration(simulatePlays) * time.Hour).Truncate(time.Second)
	plays := flattenStages(gen.Stages(simulateStages, simulatePlays, generator.DefaultProfile(), simulateStep, start))

	if simulateRecord {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(st)
		if err := st.InsertPlays(cmd.Context(), plays); err != nil {
			return fmt.Errorf("failed to record plays: %w", err)
		}
		logErrf("Recorded %d simulated plays\n", len(plays))
		return nil
	}

	if simulateOut == "-" {
		return datafile.WritePlays(cmd.OutOrStdout(), plays)
	}
	f, err := os.Create(simulateOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", simulateOut, err)
	}
	if err := datafile.WritePlays(f, plays); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", simulateOut, err)
	}
	logErrf("Wrote %d plays to %s\n", len(plays), simulateOut)
	return nil
}

func flattenStages(byStage map[string][]model.Play) []model.Play {
	ids := make([]string, 0, len(byStage))
	for id := range byStage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []model.Play
	for _, id := range ids {
		out = append(out, byStage[id]...)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func writeJSONLine(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
