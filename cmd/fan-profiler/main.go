package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics/profilecache"
	"github.com/theimaginaryfoundation/fan-lens/analytics/provider"
	"github.com/theimaginaryfoundation/fan-lens/internal/config"
	"github.com/theimaginaryfoundation/fan-lens/internal/logging"
	"github.com/theimaginaryfoundation/fan-lens/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cfg := defaultConfig()
	cmd := &cobra.Command{
		Use:          "fan-profiler",
		Short:        "Generate cached per-fan profiles from a chat log",
		Example:      "  go run ./cmd/fan-profiler --in data/events.csv --out data/out/fan_profiles.csv",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := loadConfig(cmd.Flags(), cfg)
			if err != nil {
				return err
			}
			return run(cmd.Context(), resolved)
		},
	}
	registerFlags(cmd.Flags(), &cfg)
	return cmd
}

func loadConfig(fs *pflag.FlagSet, cfg Config) (Config, error) {
	if err := config.Load(fs, &cfg); err != nil {
		return Config{}, err
	}
	cfg.InputPath = filepath.Clean(cfg.InputPath)
	cfg.OutputPath = filepath.Clean(cfg.OutputPath)
	if cfg.CheckpointPath != "" {
		cfg.CheckpointPath = filepath.Clean(cfg.CheckpointPath)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg Config) error {
	if cfg.APIKey == "" {
		return errors.New("missing OPENAI_API_KEY (or pass --api-key)")
	}

	base, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()
	log := logging.ForRun(base, "fan-profiler")

	cache, closeCache, err := profilecache.Open(ctx, cfg.CacheBackend, pipeline.CacheLocation(cfg.CacheBackend, cfg.CacheDir, cfg.CacheDSN))
	if err != nil {
		return fmt.Errorf("open profile cache: %w", err)
	}
	defer func() { _ = closeCache() }()

	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	svc, err := provider.NewOpenAIProfiler(&client, provider.ProfilerConfig{
		Model:            cfg.Model,
		MaxOutputTokens:  cfg.MaxOutputTokens,
		StructuredOutput: cfg.StructuredOutput,
		Flex:             cfg.Flex,
	})
	if err != nil {
		return err
	}

	res, err := pipeline.Profile(ctx, pipeline.ProfileParams{
		EventsPath:     cfg.InputPath,
		OutPath:        cfg.OutputPath,
		CheckpointPath: cfg.CheckpointPath,
		Cache:          cache,
		Service:        svc,
		BatchSize:      cfg.BatchSize,
		Pause:          cfg.Pause,
		MaxFans:        cfg.MaxFans,
	}, log)
	if err != nil {
		log.Error("profiling stopped", zap.Error(err), zap.Int("batches_done", res.Stats.Batches))
		return err
	}

	s := res.Stats
	fmt.Fprintf(os.Stdout, "fans=%d duplicates=%d batches=%d cache_hits=%d generated=%d placeholders=%d external_calls=%d cache_errors=%d out=%s\n",
		s.Fans, s.DuplicateFans, s.Batches, s.CacheHits, s.Generated, s.Placeholders, s.ExternalCalls, s.CacheErrors, res.OutPath)
	return nil
}
