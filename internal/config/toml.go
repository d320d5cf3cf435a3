// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Analysis   AnalysisConfig   `toml:"analysis"`
	Preprocess PreprocessConfig `toml:"preprocess"`
	Gesture    GestureConfig    `toml:"gesture"`
	Adaptation AdaptationConfig `toml:"adaptation"`
	Challenges ChallengesConfig `toml:"challenges"`
}

// AnalysisConfig maps statistics and stage report settings.
type AnalysisConfig struct {
	SignificanceLevel *float64 `toml:"significance-level"`
	MinSampleSize     *int     `toml:"min-sample-size"`
	PValueMode        *string  `toml:"p-value-mode"`
	EqualVariance     *bool    `toml:"equal-variance"`
	Last              *int     `toml:"last"`
	CurveWindow       *int     `toml:"curve-window"`
	Plot              *bool    `toml:"plot"`
}

// PreprocessConfig maps comparison preprocessing settings.
type PreprocessConfig struct {
	Normalize        *string  `toml:"normalize"`
	RemoveOutliers   *bool    `toml:"remove-outliers"`
	OutlierThreshold *float64 `toml:"outlier-threshold"`
	Sampling         *string  `toml:"sampling"`
	SamplingRate     *float64 `toml:"sampling-rate"`
	MaxSize          *int     `toml:"max-size"`
}

// GestureConfig maps recognition engine settings.
type GestureConfig struct {
	Threshold       *float64 `toml:"threshold"`
	PredictionFloor *float64 `toml:"prediction-floor"`
	BufferSize      *int     `toml:"buffer-size"`
	OneHanded       *bool    `toml:"one-handed"`
	Patterns        *string  `toml:"patterns"`
}

// AdaptationConfig maps gesture adaptation settings.
type AdaptationConfig struct {
	Learning      *bool    `toml:"learning"`
	ViewportWidth *float64 `toml:"viewport-width"`
	Apply         *bool    `toml:"apply"`
}

// ChallengesConfig maps challenge data settings.
type ChallengesConfig struct {
	File     *string   `toml:"file"`
	Refresh  *Duration `toml:"refresh"`
	Sort     *string   `toml:"sort"`
	Validate *bool     `toml:"validate"`
}

// Duration is a time.Duration written as a string such as "5m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
