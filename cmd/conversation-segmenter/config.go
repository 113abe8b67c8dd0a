package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	ConfigFile string        `mapstructure:"config"`
	InputPath  string        `mapstructure:"in"`
	OutputDir  string        `mapstructure:"out"`
	Gap        time.Duration `mapstructure:"gap"`
	LogLevel   string        `mapstructure:"log-level"`
	LogJSON    bool          `mapstructure:"log-json"`
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("missing --in")
	}
	if c.OutputDir == "" {
		return errors.New("missing --out")
	}
	if c.Gap <= 0 {
		return errors.New("gap must be > 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputPath: filepath.FromSlash("data/events.csv"),
		OutputDir: filepath.FromSlash("data/out"),
		Gap:       4 * time.Hour,
		LogLevel:  "info",
	}
}

func registerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Optional config file (yaml/json/toml) with flag-named keys")
	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Path to the event log CSV")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory for staged_events.csv and conversation_features.csv")
	fs.DurationVar(&cfg.Gap, "gap", cfg.Gap, "Silence longer than this starts a new conversation")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Log as JSON instead of console text")
}
