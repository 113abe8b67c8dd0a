package main

import (
	"errors"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/theimaginaryfoundation/fan-lens/analytics"
)

type Config struct {
	ConfigFile   string `mapstructure:"config"`
	StagedPath   string `mapstructure:"in"`
	ProfilesPath string `mapstructure:"profiles"`
	OutputPath   string `mapstructure:"out"`

	Model      string `mapstructure:"model"`
	Dimensions int64  `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch-size"`
	APIKey     string `mapstructure:"api-key"`

	LogLevel string `mapstructure:"log-level"`
	LogJSON  bool   `mapstructure:"log-json"`
}

func (c Config) Validate() error {
	if c.StagedPath == "" {
		return errors.New("missing --in")
	}
	if c.OutputPath == "" {
		return errors.New("missing --out")
	}
	if c.Model == "" {
		return errors.New("missing --model")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch-size must be > 0")
	}
	if c.Dimensions < 0 {
		return errors.New("dimensions must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		StagedPath:   filepath.FromSlash("data/out/staged_events.csv"),
		ProfilesPath: filepath.FromSlash("data/out/fan_profiles.csv"),
		OutputPath:   filepath.FromSlash("data/out/stage_embeddings.jsonl"),
		Model:        "text-embedding-3-small",
		BatchSize:    analytics.DefaultEmbedBatchSize,
		LogLevel:     "info",
	}
}

func registerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Optional config file (yaml/json/toml) with flag-named keys")
	fs.StringVar(&cfg.StagedPath, "in", cfg.StagedPath, "Staged events CSV written by conversation-segmenter")
	fs.StringVar(&cfg.ProfilesPath, "profiles", cfg.ProfilesPath, "Fan profile CSV to join by fan_model_id (empty skips profile features)")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "JSONL output with one record per (fan_model_id, stage)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI embedding model (uses OPENAI_API_KEY)")
	fs.Int64Var(&cfg.Dimensions, "dimensions", cfg.Dimensions, "Requested embedding dimensions (0 = model default)")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Texts per embedding request")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Log as JSON instead of console text")
}
