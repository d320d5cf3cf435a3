package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing config, got %v", err)
	}
	if cfg.Gesture.Threshold != nil || cfg.Challenges.File != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `
[analysis]
significance-level = 0.01
p-value-mode = "exact"
curve-window = 5

[preprocess]
normalize = "robust"
remove-outliers = true

[gesture]
threshold = 0.75
one-handed = true
patterns = "/tmp/patterns.yaml"

[adaptation]
learning = false
viewport-width = 390.0

[challenges]
file = "challenges.json"
refresh = "90s"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Analysis.SignificanceLevel == nil || *cfg.Analysis.SignificanceLevel != 0.01 {
		t.Fatalf("unexpected significance level: %v", cfg.Analysis.SignificanceLevel)
	}
	if cfg.Analysis.PValueMode == nil || *cfg.Analysis.PValueMode != "exact" {
		t.Fatalf("unexpected p-value mode: %v", cfg.Analysis.PValueMode)
	}
	if cfg.Analysis.Last != nil {
		t.Fatalf("expected unset last to stay nil")
	}
	if cfg.Preprocess.RemoveOutliers == nil || !*cfg.Preprocess.RemoveOutliers {
		t.Fatalf("expected remove-outliers to be set")
	}
	if cfg.Gesture.Threshold == nil || *cfg.Gesture.Threshold != 0.75 {
		t.Fatalf("unexpected threshold: %v", cfg.Gesture.Threshold)
	}
	if cfg.Adaptation.Learning == nil || *cfg.Adaptation.Learning {
		t.Fatalf("expected learning=false to be kept distinct from unset")
	}
	if cfg.Challenges.Refresh == nil || cfg.Challenges.Refresh.Duration != 90*time.Second {
		t.Fatalf("unexpected refresh interval: %v", cfg.Challenges.Refresh)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "[gesture]\nthreshhold = 0.7\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "threshhold") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "[challenges]\nrefresh = \"soon\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	dataHome := t.TempDir()
	configHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("POPKIT_DB_PATH", "")
	t.Setenv("POPKIT_CONFIG", "")
	t.Setenv("POPKIT_LOG_LEVEL", "")

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if e.DBPath != filepath.Join(dataHome, "popkit", "popkit.db") {
		t.Fatalf("unexpected db path: %s", e.DBPath)
	}
	if e.ConfigPath != filepath.Join(configHome, "popkit", "config.toml") {
		t.Fatalf("unexpected config path: %s", e.ConfigPath)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POPKIT_DB_PATH", "/data/popkit.db")
	t.Setenv("POPKIT_LOG_LEVEL", "debug")
	t.Setenv("POPKIT_LOG_JSON", "true")

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if e.DBPath != "/data/popkit.db" || e.LogLevel != "debug" || !e.LogJSON {
		t.Fatalf("unexpected env: %+v", e)
	}
	logger, err := e.Logger()
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level to be enabled")
	}
}

func TestLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := (Env{LogLevel: "chatty"}).Logger(); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}
