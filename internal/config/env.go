package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Env holds settings read from POPKIT_* environment variables. Empty paths
// fall back to the XDG defaults.
type Env struct {
	DBPath     string `env:"POPKIT_DB_PATH"`
	ConfigPath string `env:"POPKIT_CONFIG"`
	LogLevel   string `env:"POPKIT_LOG_LEVEL" envDefault:"warn"`
	LogJSON    bool   `env:"POPKIT_LOG_JSON"`
}

// LoadEnv parses the environment and fills default paths.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("failed to parse env: %w", err)
	}
	if e.DBPath == "" {
		e.DBPath = DefaultDBPath()
	}
	if e.ConfigPath == "" {
		e.ConfigPath = DefaultConfigPath()
	}
	return e, nil
}

// Logger builds a zap logger at the configured level. JSON output uses the
// production encoder; otherwise a console encoder is used.
func (e Env) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(e.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid POPKIT_LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if !e.LogJSON {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
