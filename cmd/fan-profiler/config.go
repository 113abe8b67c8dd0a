package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/theimaginaryfoundation/fan-lens/analytics"
)

type Config struct {
	ConfigFile     string `mapstructure:"config"`
	InputPath      string `mapstructure:"in"`
	OutputPath     string `mapstructure:"out"`
	CheckpointPath string `mapstructure:"checkpoint"`

	CacheBackend string `mapstructure:"cache-backend"`
	CacheDir     string `mapstructure:"cache-dir"`
	CacheDSN     string `mapstructure:"cache-dsn"`

	Model            string `mapstructure:"model"`
	APIKey           string `mapstructure:"api-key"`
	MaxOutputTokens  int64  `mapstructure:"max-output-tokens"`
	StructuredOutput bool   `mapstructure:"structured-output"`
	Flex             bool   `mapstructure:"flex"`

	BatchSize int           `mapstructure:"batch-size"`
	Pause     time.Duration `mapstructure:"pause"`
	MaxFans   int           `mapstructure:"max-fans"`

	LogLevel string `mapstructure:"log-level"`
	LogJSON  bool   `mapstructure:"log-json"`
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("missing --in")
	}
	if c.OutputPath == "" {
		return errors.New("missing --out")
	}
	if c.Model == "" {
		return errors.New("missing --model")
	}
	switch c.CacheBackend {
	case "file", "sqlite":
		if c.CacheDir == "" && c.CacheDSN == "" {
			return errors.New("missing --cache-dir")
		}
	case "postgres":
		if c.CacheDSN == "" {
			return errors.New("postgres cache needs --cache-dsn (or DATABASE_URL)")
		}
	default:
		return errors.New("cache-backend must be file|sqlite|postgres")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch-size must be > 0")
	}
	if c.Pause < 0 || c.MaxFans < 0 || c.MaxOutputTokens < 0 {
		return errors.New("pause/max-fans/max-output-tokens must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputPath:      filepath.FromSlash("data/events.csv"),
		OutputPath:     filepath.FromSlash("data/out/fan_profiles.csv"),
		CheckpointPath: filepath.FromSlash("data/out/fan_profiles.checkpoint.jsonl"),
		CacheBackend:   "file",
		CacheDir:       filepath.FromSlash("cache/llm_cache"),
		Model:          "gpt-5-mini",
		BatchSize:      analytics.DefaultProfileBatchSize,
		Pause:          analytics.DefaultBatchPause,
		LogLevel:       "info",
	}
}

func registerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Optional config file (yaml/json/toml) with flag-named keys")
	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Path to the event log CSV")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Path of the fan profile CSV to write")
	fs.StringVar(&cfg.CheckpointPath, "checkpoint", cfg.CheckpointPath, "JSONL file that receives each finished batch (empty disables)")

	fs.StringVar(&cfg.CacheBackend, "cache-backend", cfg.CacheBackend, "Profile cache backend: file|sqlite|postgres")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for the file cache (and default sqlite database)")
	fs.StringVar(&cfg.CacheDSN, "cache-dsn", cfg.CacheDSN, "Database DSN for sqlite/postgres caches (falls back to DATABASE_URL)")

	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model used for profiling (uses OPENAI_API_KEY)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.Int64Var(&cfg.MaxOutputTokens, "max-output-tokens", cfg.MaxOutputTokens, "Max output tokens per batch request (0 = provider default)")
	fs.BoolVar(&cfg.StructuredOutput, "structured-output", cfg.StructuredOutput, "Ask the API to enforce the profile JSON schema")
	fs.BoolVar(&cfg.Flex, "flex", cfg.Flex, "Use the flex service tier")

	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Fans per batch (one model request per batch at most)")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Delay after every batch")
	fs.IntVar(&cfg.MaxFans, "max-fans", cfg.MaxFans, "Limit number of fans profiled (0 = all)")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Log as JSON instead of console text")
}
