package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/popkit/internal/config"
	"github.com/verte-zerg/popkit/internal/preprocess"
	"github.com/verte-zerg/popkit/internal/stats"
)

// pipelineFlags are the preprocessing settings shared by compare and preprocess.
type pipelineFlags struct {
	normalize        string
	targetMin        float64
	targetMax        float64
	removeOutliers   bool
	outlierThreshold float64
	sampling         string
	samplingRate     float64
	maxSize          int
	seed             int64
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	def := preprocess.DefaultConfig()
	cmd.Flags().StringVar(&f.normalize, "normalize", string(preprocess.NormalizeNone), "normalization (none, zscore, minmax, robust)")
	cmd.Flags().Float64Var(&f.targetMin, "target-min", 0, "lower bound for minmax normalization")
	cmd.Flags().Float64Var(&f.targetMax, "target-max", defaultTargetMax, "upper bound for minmax normalization")
	cmd.Flags().BoolVar(&f.removeOutliers, "remove-outliers", false, "drop outliers before comparing")
	cmd.Flags().Float64Var(&f.outlierThreshold, "outlier-threshold", def.OutlierThreshold, "z-score cutoff for outliers")
	cmd.Flags().StringVar(&f.sampling, "sampling", string(preprocess.SampleRandom), "sampling for oversized datasets (random, systematic, stratified)")
	cmd.Flags().Float64Var(&f.samplingRate, "sampling-rate", def.SamplingRate, "fraction kept when sampling")
	cmd.Flags().IntVar(&f.maxSize, "max-size", def.MaximumSize, "datasets above this size are sampled")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed for sampling (0 picks one)")
}

func (f *pipelineFlags) apply(cmd *cobra.Command, c config.PreprocessConfig) {
	applyStringConfig(cmd, "normalize", &f.normalize, c.Normalize)
	applyBoolConfig(cmd, "remove-outliers", &f.removeOutliers, c.RemoveOutliers)
	applyFloatConfig(cmd, "outlier-threshold", &f.outlierThreshold, c.OutlierThreshold)
	applyStringConfig(cmd, "sampling", &f.sampling, c.Sampling)
	applyFloatConfig(cmd, "sampling-rate", &f.samplingRate, c.SamplingRate)
	applyIntConfig(cmd, "max-size", &f.maxSize, c.MaxSize)
}

// active reports whether any stage of the pipeline would change the data.
func (f *pipelineFlags) active() bool {
	return f.removeOutliers || (f.normalize != "" && f.normalize != string(preprocess.NormalizeNone))
}

func (f *pipelineFlags) build() (*preprocess.Processor, preprocess.Options, error) {
	method, err := preprocess.ParseMethod(f.normalize)
	if err != nil {
		return nil, preprocess.Options{}, err
	}
	sampling, err := preprocess.ParseSamplingMethod(f.sampling)
	if err != nil {
		return nil, preprocess.Options{}, err
	}
	if f.samplingRate <= 0 || f.samplingRate > 1 {
		return nil, preprocess.Options{}, fmt.Errorf("--sampling-rate must be in (0, 1]")
	}
	if f.outlierThreshold <= 0 {
		return nil, preprocess.Options{}, fmt.Errorf("--outlier-threshold must be > 0")
	}
	if f.maxSize <= 0 {
		return nil, preprocess.Options{}, fmt.Errorf("--max-size must be > 0")
	}
	if method == preprocess.NormalizeMinMax && f.targetMin >= f.targetMax {
		return nil, preprocess.Options{}, fmt.Errorf("--target-min must be below --target-max")
	}
	cfg := preprocess.DefaultConfig()
	cfg.OutlierThreshold = f.outlierThreshold
	cfg.SamplingRate = f.samplingRate
	cfg.MaximumSize = f.maxSize

	seed := f.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := preprocess.New(cfg, rand.New(rand.NewSource(seed)), logger)
	opts := preprocess.Options{
		Normalize:        method,
		TargetMin:        f.targetMin,
		TargetMax:        f.targetMax,
		RemoveOutliers:   f.removeOutliers,
		OutlierThreshold: f.outlierThreshold,
		Sampling:         sampling,
		SamplingRate:     f.samplingRate,
	}
	return p, opts, nil
}

var (
	compareLabels   string
	compareJSON     bool
	compareTest     testFlags
	comparePipeline pipelineFlags
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <file>",
		Short: "Test whether two datasets differ significantly",
		Long: `Reads a JSON object with numeric arrays "dataset1" and "dataset2"
(use - for stdin) and prints descriptive statistics, a significance
test and recommendations.`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}
	cmd.Flags().StringVar(&compareLabels, "labels", "A,B", "comma separated labels for the two datasets")
	cmd.Flags().BoolVar(&compareJSON, "json", false, "print the report as JSON")
	compareTest.register(cmd)
	comparePipeline.register(cmd)
	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	compareTest.apply(cmd, fileCfg.Analysis)
	comparePipeline.apply(cmd, fileCfg.Preprocess)

	labels, err := parseLabels(compareLabels)
	if err != nil {
		return err
	}
	analyzer, err := compareTest.analyzer()
	if err != nil {
		return err
	}
	raw, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	d1, d2, errs := preprocess.ParseRaw(raw)
	if len(errs) > 0 {
		return fmt.Errorf("invalid comparison data: %s", strings.Join(errs, "; "))
	}
	x, y := d1.Values, d2.Values
	if comparePipeline.active() {
		p, opts, err := comparePipeline.build()
		if err != nil {
			return err
		}
		res := p.Preprocess(d1, d2, opts)
		if !res.Success {
			return fmt.Errorf("preprocessing failed: %s", res.Error)
		}
		for _, w := range res.Warnings {
			logErrf("warning: %s\n", w)
		}
		x, y = res.Data1, res.Data2
	}

	rep := analyzer.Report(x, y)
	out := cmd.OutOrStdout()
	if compareJSON {
		return writeJSON(out, rep)
	}
	return stats.RenderReport(out, labels, rep)
}

func parseLabels(s string) ([2]string, error) {
	parts := splitList(s)
	if len(parts) != 2 {
		return [2]string{}, fmt.Errorf("--labels needs exactly two names, got %q", s)
	}
	return [2]string{parts[0], parts[1]}, nil
}

var preprocessFlags pipelineFlags

func newPreprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess <file>",
		Short: "Validate, clean and normalize comparison data",
		Long: `Runs the preprocessing pipeline over a JSON object with "dataset1" and
"dataset2" (use - for stdin) and prints the result as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: runPreprocessCmd,
	}
	preprocessFlags.register(cmd)
	return cmd
}

func runPreprocessCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	preprocessFlags.apply(cmd, fileCfg.Preprocess)
	p, opts, err := preprocessFlags.build()
	if err != nil {
		return err
	}
	raw, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	res := p.PreprocessJSON(raw, opts)
	if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("preprocessing failed: %s", res.Error)
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
