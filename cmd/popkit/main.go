// Package main provides the CLI entrypoint for popkit.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/popkit/internal/config"
	"github.com/verte-zerg/popkit/internal/gesture"
	"github.com/verte-zerg/popkit/internal/preprocess"
	"github.com/verte-zerg/popkit/internal/stats"
	"github.com/verte-zerg/popkit/internal/store"
)

const (
	defaultCurveWindow   = 5
	defaultViewportWidth = 400.0
	defaultRefresh       = 5 * time.Minute
	defaultTargetMax     = 1.0
)

var (
	appEnv config.Env
	logger = zap.NewNop()
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "popkit",
		Short:             "Stage analytics, gesture tuning and challenge tools for the bubble game",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: setupRuntime,
		PersistentPostRun: func(*cobra.Command, []string) {
			if err := logger.Sync(); err != nil {
				// Best-effort flush; syncing stderr fails on some terminals.
				_ = err
			}
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newPreprocessCmd())
	rootCmd.AddCommand(newGestureCmd())
	rootCmd.AddCommand(newAdaptCmd())
	rootCmd.AddCommand(newChallengesCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func setupRuntime(_ *cobra.Command, _ []string) error {
	e, err := config.LoadEnv()
	if err != nil {
		return err
	}
	l, err := e.Logger()
	if err != nil {
		return err
	}
	appEnv = e
	logger = l
	return nil
}

func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(appEnv.ConfigPath)
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(appEnv.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := appEnv.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func defaultConfigTemplate() string {
	sc := stats.DefaultConfig()
	pc := preprocess.DefaultConfig()
	gc := gesture.DefaultConfig()
	return fmt.Sprintf(`# popkit configuration
# Uncomment a value to enable it. CLI flags override config values.

[analysis]
# significance-level = %.2f   # Alpha for significance tests
# min-sample-size = %d         # Smaller samples are reported as insufficient
# p-value-mode = %q       # "approx" or "exact"
# equal-variance = false       # Student t test instead of Welch
# last = 0                     # Keep only the last N plays per stage (0 = all)
# curve-window = %d            # Moving average window for score curves
# plot = false                 # Draw score curves instead of sparklines

[preprocess]
# normalize = "none"           # none, zscore, minmax or robust
# remove-outliers = false      # Drop values beyond the outlier threshold
# outlier-threshold = %.1f     # Z-score cutoff for outliers
# sampling = %q          # random, systematic or stratified
# sampling-rate = %.2f         # Fraction kept when a dataset is oversized
# max-size = %d             # Datasets above this size are sampled

[gesture]
# threshold = %.2f             # Minimum confidence to recognize a gesture
# prediction-floor = %.2f      # Minimum confidence for predictions
# buffer-size = %d             # Samples kept for learning
# one-handed = false           # Enable one-handed gestures
# patterns = %q  # YAML file with custom patterns

[adaptation]
# learning = true              # Learn from gesture outcomes
# viewport-width = %.0f        # Width used to infer the dominant hand
# apply = false                # Apply suggestions that need no input

[challenges]
# file = %q  # Challenge document watched by "challenges watch"
# refresh = %q                # Periodic reload interval
# sort = "priority"            # priority, difficulty, progress, deadline, title or type
# validate = true              # Reject invalid entries on import
`,
		sc.SignificanceLevel,
		sc.MinimumSampleSize,
		string(sc.PValueMode),
		defaultCurveWindow,
		pc.OutlierThreshold,
		string(preprocess.SampleRandom),
		pc.SamplingRate,
		pc.MaximumSize,
		gc.Threshold,
		gc.PredictionFloor,
		gc.BufferSize,
		config.DefaultPatternsPath(),
		defaultViewportWidth,
		config.DefaultChallengesPath(),
		defaultRefresh.String(),
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
