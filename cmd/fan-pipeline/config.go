package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/pflag"

	"github.com/theimaginaryfoundation/fan-lens/analytics"
)

var allStages = []string{"segment", "profile", "embed"}

type Config struct {
	ConfigFile string `mapstructure:"config"`
	EventsPath string `mapstructure:"events"`
	BaseDir    string `mapstructure:"base-dir"`

	FromStage string `mapstructure:"from-stage"`
	OnlyStage string `mapstructure:"only-stage"`
	Overwrite bool   `mapstructure:"overwrite"`

	Gap time.Duration `mapstructure:"gap"`

	Model            string        `mapstructure:"model"`
	StructuredOutput bool          `mapstructure:"structured-output"`
	Flex             bool          `mapstructure:"flex"`
	BatchSize        int           `mapstructure:"batch-size"`
	Pause            time.Duration `mapstructure:"pause"`
	MaxFans          int           `mapstructure:"max-fans"`

	CacheBackend string `mapstructure:"cache-backend"`
	CacheDir     string `mapstructure:"cache-dir"`
	CacheDSN     string `mapstructure:"cache-dsn"`

	EmbeddingModel string `mapstructure:"embedding-model"`
	Dimensions     int64  `mapstructure:"dimensions"`
	EmbedBatchSize int    `mapstructure:"embed-batch-size"`

	APIKey string `mapstructure:"api-key"`

	LogLevel string `mapstructure:"log-level"`
	LogJSON  bool   `mapstructure:"log-json"`
}

func (c Config) Validate() error {
	if c.EventsPath == "" {
		return errors.New("missing --events")
	}
	if c.BaseDir == "" {
		return errors.New("missing --base-dir")
	}
	if c.OnlyStage != "" && c.FromStage != "" {
		return errors.New("use only one of --only-stage or --from-stage")
	}
	for _, s := range []string{c.OnlyStage, c.FromStage} {
		if s != "" && !slices.Contains(allStages, s) {
			return fmt.Errorf("unknown stage %q (want segment|profile|embed)", s)
		}
	}
	if c.Model == "" || c.EmbeddingModel == "" {
		return errors.New("missing --model or --embedding-model")
	}
	switch c.CacheBackend {
	case "file", "sqlite":
	case "postgres":
		if c.CacheDSN == "" {
			return errors.New("postgres cache needs --cache-dsn (or DATABASE_URL)")
		}
	default:
		return errors.New("cache-backend must be file|sqlite|postgres")
	}
	if c.BatchSize <= 0 || c.EmbedBatchSize <= 0 {
		return errors.New("batch-size and embed-batch-size must be > 0")
	}
	if c.Gap < 0 || c.Pause < 0 || c.MaxFans < 0 || c.Dimensions < 0 {
		return errors.New("gap/pause/max-fans/dimensions must be >= 0")
	}
	return nil
}

// stages returns the stages to run in order.
func (c Config) stages() []string {
	if c.OnlyStage != "" {
		return []string{c.OnlyStage}
	}
	if c.FromStage != "" {
		return stagesFrom(allStages, c.FromStage)
	}
	return allStages
}

func stagesFrom(all []string, from string) []string {
	for i, s := range all {
		if s == from {
			return all[i:]
		}
	}
	return all
}

func defaultConfig() Config {
	return Config{
		EventsPath:     filepath.FromSlash("data/events.csv"),
		BaseDir:        filepath.FromSlash("data/out"),
		Gap:            analytics.ConversationGap,
		Model:          "gpt-5-mini",
		BatchSize:      analytics.DefaultProfileBatchSize,
		Pause:          analytics.DefaultBatchPause,
		CacheBackend:   "file",
		EmbeddingModel: "text-embedding-3-small",
		EmbedBatchSize: analytics.DefaultEmbedBatchSize,
		LogLevel:       "info",
	}
}

func registerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Optional config file (yaml/json/toml) with flag-named keys")
	fs.StringVar(&cfg.EventsPath, "events", cfg.EventsPath, "Path to the event log CSV")
	fs.StringVar(&cfg.BaseDir, "base-dir", cfg.BaseDir, "Directory that receives every stage's output")

	fs.StringVar(&cfg.FromStage, "from-stage", "", "Start at stage: segment|profile|embed")
	fs.StringVar(&cfg.OnlyStage, "only-stage", "", "Run only one stage: segment|profile|embed")
	fs.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "Rerun stages whose output already exists")

	fs.DurationVar(&cfg.Gap, "gap", cfg.Gap, "Inactivity gap that starts a new conversation")

	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model used for profiling (uses OPENAI_API_KEY)")
	fs.BoolVar(&cfg.StructuredOutput, "structured-output", cfg.StructuredOutput, "Ask the API to enforce the profile JSON schema")
	fs.BoolVar(&cfg.Flex, "flex", cfg.Flex, "Use the flex service tier for profiling")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Fans per profiling batch")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Delay after every profiling batch")
	fs.IntVar(&cfg.MaxFans, "max-fans", cfg.MaxFans, "Limit number of fans profiled (0 = all)")

	fs.StringVar(&cfg.CacheBackend, "cache-backend", cfg.CacheBackend, "Profile cache backend: file|sqlite|postgres")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Profile cache directory (defaults to <base-dir>/llm_cache)")
	fs.StringVar(&cfg.CacheDSN, "cache-dsn", cfg.CacheDSN, "Database DSN for sqlite/postgres caches (falls back to DATABASE_URL)")

	fs.StringVar(&cfg.EmbeddingModel, "embedding-model", cfg.EmbeddingModel, "OpenAI embedding model")
	fs.Int64Var(&cfg.Dimensions, "dimensions", cfg.Dimensions, "Requested embedding dimensions (0 = model default)")
	fs.IntVar(&cfg.EmbedBatchSize, "embed-batch-size", cfg.EmbedBatchSize, "Texts per embedding request")

	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Log as JSON instead of console text")
}
