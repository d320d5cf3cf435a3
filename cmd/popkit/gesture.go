package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/popkit/internal/adaptation"
	"github.com/verte-zerg/popkit/internal/config"
	"github.com/verte-zerg/popkit/internal/datafile"
	"github.com/verte-zerg/popkit/internal/generator"
	"github.com/verte-zerg/popkit/internal/gesture"
	"github.com/verte-zerg/popkit/internal/stats"
)

// engineFlags configure a recognition engine.
type engineFlags struct {
	threshold       float64
	predictionFloor float64
	bufferSize      int
	oneHanded       bool
	patterns        string
	usePrefs        bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	def := gesture.DefaultConfig()
	cmd.Flags().Float64Var(&f.threshold, "threshold", def.Threshold, "minimum confidence to recognize a gesture")
	cmd.Flags().Float64Var(&f.predictionFloor, "prediction-floor", def.PredictionFloor, "minimum confidence for predictions")
	cmd.Flags().IntVar(&f.bufferSize, "buffer-size", def.BufferSize, "samples kept for learning")
	cmd.Flags().BoolVar(&f.oneHanded, "one-handed", def.OneHanded, "enable one-handed gestures")
	cmd.Flags().StringVar(&f.patterns, "patterns", "", "YAML file with custom patterns")
	cmd.Flags().BoolVar(&f.usePrefs, "prefs", false, "apply the stored adaptation preferences")
}

func (f *engineFlags) apply(cmd *cobra.Command, c config.GestureConfig) {
	applyFloatConfig(cmd, "threshold", &f.threshold, c.Threshold)
	applyFloatConfig(cmd, "prediction-floor", &f.predictionFloor, c.PredictionFloor)
	applyIntConfig(cmd, "buffer-size", &f.bufferSize, c.BufferSize)
	applyBoolConfig(cmd, "one-handed", &f.oneHanded, c.OneHanded)
	applyStringConfig(cmd, "patterns", &f.patterns, c.Patterns)
}

func (f *engineFlags) build(cmd *cobra.Command) (*gesture.Engine, error) {
	if f.threshold <= 0 || f.threshold > 1 {
		return nil, fmt.Errorf("--threshold must be in (0, 1]")
	}
	if f.predictionFloor < 0 || f.predictionFloor > 1 {
		return nil, fmt.Errorf("--prediction-floor must be between 0 and 1")
	}
	if f.bufferSize <= 0 {
		return nil, fmt.Errorf("--buffer-size must be > 0")
	}
	engine := gesture.New(gesture.Config{
		Threshold:       f.threshold,
		PredictionFloor: f.predictionFloor,
		BufferSize:      f.bufferSize,
		OneHanded:       f.oneHanded,
	}, logger)

	// The default pattern file is optional; an explicit one must exist.
	path := f.patterns
	explicit := path != ""
	if !explicit {
		path = config.DefaultPatternsPath()
	}
	if _, err := os.Stat(path); err == nil || explicit {
		n, err := engine.LoadPatternFile(path)
		if err != nil {
			return nil, err
		}
		logger.Sugar().Debugf("loaded %d custom patterns from %s", n, path)
	}

	if f.usePrefs {
		st, err := openStore()
		if err != nil {
			return nil, err
		}
		defer closeStore(st)
		sys := adaptation.New(adaptation.WithStore(st), adaptation.WithLogger(logger))
		sys.Load(cmd.Context())
		if err := sys.Configure(engine); err != nil {
			return nil, fmt.Errorf("failed to apply preferences: %w", err)
		}
	}
	return engine, nil
}

func newGestureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gesture",
		Short: "Recognize gestures and inspect patterns",
	}
	cmd.AddCommand(newGestureRecognizeCmd())
	cmd.AddCommand(newGesturePatternsCmd())
	return cmd
}

var (
	recognizeEngine   engineFlags
	recognizePredict  bool
	recognizeSequence bool
	recognizeLearn    bool
	recognizeStats    bool
)

func newGestureRecognizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recognize [samples]",
		Short: "Recognize gesture samples read as JSON lines",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGestureRecognizeCmd,
	}
	recognizeEngine.register(cmd)
	cmd.Flags().BoolVar(&recognizePredict, "predict", false, "treat samples as partial gestures")
	cmd.Flags().BoolVar(&recognizeSequence, "sequence", false, "match the samples as one gesture sequence")
	cmd.Flags().BoolVar(&recognizeLearn, "learn", false, "widen patterns from the recognized samples")
	cmd.Flags().BoolVar(&recognizeStats, "stats", false, "print engine statistics to stderr")
	return cmd
}

type recognition struct {
	Index      int             `json:"index"`
	Recognized bool            `json:"recognized"`
	Result     *gesture.Result `json:"result,omitempty"`
}

func runGestureRecognizeCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	recognizeEngine.apply(cmd, fileCfg.Gesture)
	if recognizePredict && recognizeSequence {
		return fmt.Errorf("--predict and --sequence cannot be combined")
	}
	engine, err := recognizeEngine.build(cmd)
	if err != nil {
		return err
	}
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	samples, err := datafile.ReadLinesFile[gesture.Sample](path)
	if err != nil {
		return fmt.Errorf("failed to read samples: %w", err)
	}

	out := cmd.OutOrStdout()
	if recognizeSequence {
		res, ok := engine.RecognizeSequence(samples)
		rec := recognition{Recognized: ok}
		if ok {
			rec.Result = &res
		}
		return writeJSON(out, rec)
	}

	for i, s := range samples {
		var res gesture.Result
		var ok bool
		if recognizePredict {
			res, ok = engine.Predict(s)
		} else {
			res, ok = engine.Recognize(s)
		}
		rec := recognition{Index: i, Recognized: ok}
		if ok {
			rec.Result = &res
			if recognizeLearn {
				engine.AddToBuffer(s)
			}
		}
		if err := writeJSONLine(out, rec); err != nil {
			return err
		}
	}
	if recognizeLearn {
		for _, adj := range engine.LearnFromBuffer() {
			logErrf("widened %s %s: %.2f-%.2f -> %.2f-%.2f\n", adj.Kind, adj.Parameter, adj.Old.Low, adj.Old.High, adj.New.Low, adj.New.High)
		}
	}
	if recognizeStats {
		s := engine.Stats()
		logErrf("recognized %d, rejected %d, predictions %d, rate %.2f, mean confidence %.2f\n",
			s.Recognized, s.Rejected, s.Predictions, s.RecognitionRate, s.AverageConfidence)
	}
	return nil
}

var (
	patternsEngine     engineFlags
	patternsCustomOnly bool
	patternsExport     bool
)

func newGesturePatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List registered gesture patterns",
		Args:  cobra.NoArgs,
		RunE:  runGesturePatternsCmd,
	}
	patternsEngine.register(cmd)
	cmd.Flags().BoolVar(&patternsCustomOnly, "custom", false, "list only custom patterns")
	cmd.Flags().BoolVar(&patternsExport, "export", false, "print the custom configuration as JSON")
	return cmd
}

func runGesturePatternsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	patternsEngine.apply(cmd, fileCfg.Gesture)
	engine, err := patternsEngine.build(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if patternsExport {
		data, err := engine.Export(time.Now())
		if err != nil {
			return fmt.Errorf("failed to export patterns: %w", err)
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	patterns := engine.Patterns()
	if patternsCustomOnly {
		patterns = engine.CustomPatterns()
	}
	return patternTable(patterns).Write(out)
}

func patternTable(patterns []gesture.Pattern) stats.Table {
	t := stats.Table{
		Headers:    []string{"Gesture", "Type", "Fingers", "Action", "Ranges"},
		RightAlign: map[int]bool{2: true},
	}
	for _, p := range patterns {
		fingers := "-"
		if p.Fingers > 0 {
			fingers = fmt.Sprint(p.Fingers)
		}
		t.Rows = append(t.Rows, []string{p.Label(), string(p.Type), fingers, string(p.Action), rangeSummary(p)})
	}
	return t
}

func rangeSummary(p gesture.Pattern) string {
	var parts []string
	add := func(name string, r *gesture.Range) {
		if r != nil {
			parts = append(parts, fmt.Sprintf("%s %g-%g", name, r.Low, r.High))
		}
	}
	add("duration", p.Duration)
	add("distance", p.Distance)
	add("velocity", p.Velocity)
	add("direction", p.Direction)
	add("scale", p.Scale)
	add("interval", p.Interval)
	add("movement", p.Movement)
	if p.Edge != "" {
		parts = append(parts, "edge "+string(p.Edge))
	}
	if p.Corner != "" {
		parts = append(parts, "corner "+string(p.Corner))
	}
	return strings.Join(parts, ", ")
}

var (
	adaptSimulate      int
	adaptSuccessRate   float64
	adaptViewportWidth float64
	adaptLearning      bool
	adaptApply         bool
	adaptHand          string
	adaptSeed          int64
	adaptJSON          bool
)

func newAdaptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adapt [outcomes]",
		Short: "Learn from gesture outcomes and suggest adjustments",
		Long: `Replays gesture outcomes (JSON lines with gesture, sample, success and
viewportWidth) into the adaptation system, saves what was learned and
prints the resulting suggestions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAdaptCmd,
	}
	cmd.Flags().IntVar(&adaptSimulate, "simulate", 0, "replay N simulated outcomes instead of reading a file")
	cmd.Flags().Float64Var(&adaptSuccessRate, "success-rate", 0.7, "success rate of simulated outcomes")
	cmd.Flags().Float64Var(&adaptViewportWidth, "viewport-width", defaultViewportWidth, "viewport width for outcomes that do not carry one")
	cmd.Flags().BoolVar(&adaptLearning, "learning", true, "learn from the outcomes")
	cmd.Flags().BoolVar(&adaptApply, "apply", false, "apply suggestions that need no input")
	cmd.Flags().StringVar(&adaptHand, "one-handed", "", "enable one-handed mode for a hand (left or right)")
	cmd.Flags().Int64Var(&adaptSeed, "seed", 0, "random seed for simulated outcomes (0 picks one)")
	cmd.Flags().BoolVar(&adaptJSON, "json", false, "print the adaptation status as JSON")
	return cmd
}

func runAdaptCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyBoolConfig(cmd, "learning", &adaptLearning, fileCfg.Adaptation.Learning)
	applyFloatConfig(cmd, "viewport-width", &adaptViewportWidth, fileCfg.Adaptation.ViewportWidth)
	applyBoolConfig(cmd, "apply", &adaptApply, fileCfg.Adaptation.Apply)

	if adaptViewportWidth <= 0 {
		return fmt.Errorf("--viewport-width must be > 0")
	}
	if adaptSuccessRate < 0 || adaptSuccessRate > 1 {
		return fmt.Errorf("--success-rate must be between 0 and 1")
	}
	var hand adaptation.Hand
	switch adaptation.Hand(adaptHand) {
	case "":
	case adaptation.HandLeft, adaptation.HandRight:
		hand = adaptation.Hand(adaptHand)
	default:
		return fmt.Errorf("--one-handed must be left or right")
	}

	var outcomes []adaptation.Outcome
	switch {
	case adaptSimulate > 0 && len(args) == 1:
		return fmt.Errorf("--simulate cannot be combined with an outcomes file")
	case adaptSimulate > 0:
		gen := generator.New()
		if adaptSeed != 0 {
			gen = generator.NewSeeded(adaptSeed)
		}
		outcomes = gen.Outcomes(adaptSimulate, adaptSuccessRate, adaptViewportWidth, time.Now())
	case len(args) == 1:
		outcomes, err = datafile.ReadLinesFile[adaptation.Outcome](args[0])
		if err != nil {
			return fmt.Errorf("failed to read outcomes: %w", err)
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	sys := adaptation.New(adaptation.WithStore(st), adaptation.WithRecords(st), adaptation.WithLogger(logger))
	sys.Load(ctx)
	sys.SetLearning(adaptLearning)
	if hand != "" {
		sys.EnableOneHanded(hand)
	}
	for _, o := range outcomes {
		if o.ViewportWidth <= 0 {
			o.ViewportWidth = adaptViewportWidth
		}
		sys.Observe(o)
	}

	if adaptApply {
		for _, sug := range sys.Suggestions() {
			err := sys.Apply(sug)
			switch {
			case err == nil:
				logErrf("applied: %s\n", sug.Message)
			case errors.Is(err, adaptation.ErrUnsupportedAction):
				continue
			default:
				return fmt.Errorf("failed to apply suggestion: %w", err)
			}
		}
	}
	sys.Sync(ctx)

	status := sys.Status()
	out := cmd.OutOrStdout()
	if adaptJSON {
		return writeJSON(out, status)
	}
	return renderAdaptStatus(out, status, sys.Stats())
}

func renderAdaptStatus(w io.Writer, status adaptation.Status, st adaptation.Stats) error {
	p := status.Profile
	lines := []string{
		fmt.Sprintf("Observed %d gestures, %d successful, %d failed", st.Recognized, st.Successful, st.Failed),
		fmt.Sprintf("Profile: hand %s, reach %s, precision %s, speed %s", p.DominantHand, p.Reachability, p.Precision, p.Speed),
		fmt.Sprintf("One-handed mode: %t, complexity: %s, learning: %t", status.OneHanded, status.Complexity, status.Learning),
	}
	if len(st.ByType) > 0 {
		kinds := make([]string, 0, len(st.ByType))
		for k := range st.ByType {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		counts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			counts = append(counts, fmt.Sprintf("%s %d", k, st.ByType[k]))
		}
		lines = append(lines, "By gesture: "+strings.Join(counts, ", "))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if len(status.Suggestions) == 0 {
		_, err := fmt.Fprintln(w, "No suggestions.")
		return err
	}
	t := stats.Table{Headers: []string{"Priority", "Type", "Action", "Suggestion"}}
	for _, s := range status.Suggestions {
		t.Rows = append(t.Rows, []string{string(s.Priority), string(s.Type), string(s.Action), s.Message})
	}
	if _, err := fmt.Fprintln(w, "Suggestions"); err != nil {
		return err
	}
	return t.Write(w)
}
