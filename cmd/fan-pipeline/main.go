package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics"
	"github.com/theimaginaryfoundation/fan-lens/analytics/fileutils"
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
		Use:          "fan-pipeline",
		Short:        "Run segment, profile and embed end to end",
		Example:      "  go run ./cmd/fan-pipeline --events data/events.csv --base-dir data/out --from-stage profile",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := loadConfig(cmd.Flags(), cfg)
			if err != nil {
				return err
			}
			return run(cmd.Context(), resolved, cmd.OutOrStdout())
		},
	}
	registerFlags(cmd.Flags(), &cfg)
	return cmd
}

func loadConfig(fs *pflag.FlagSet, cfg Config) (Config, error) {
	if err := config.Load(fs, &cfg); err != nil {
		return Config{}, err
	}
	cfg.EventsPath = filepath.Clean(cfg.EventsPath)
	cfg.BaseDir = filepath.Clean(cfg.BaseDir)
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.BaseDir, "llm_cache")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// services holds the external collaborators of the profile and embed stages.
type services struct {
	cache    analytics.ProfileCache
	profiler analytics.ProfileService
	embedder analytics.Embedder
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	base, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()
	log := logging.ForRun(base, "fan-pipeline")

	stages := cfg.stages()
	var svc services
	needsProfile := slices.Contains(stages, "profile")
	needsEmbed := slices.Contains(stages, "embed")
	if needsProfile || needsEmbed {
		if cfg.APIKey == "" {
			return errors.New("missing OPENAI_API_KEY (or pass --api-key)")
		}
		client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
		if needsProfile {
			cache, closeCache, err := profilecache.Open(ctx, cfg.CacheBackend, pipeline.CacheLocation(cfg.CacheBackend, cfg.CacheDir, cfg.CacheDSN))
			if err != nil {
				return fmt.Errorf("open profile cache: %w", err)
			}
			defer func() { _ = closeCache() }()
			svc.cache = cache
			svc.profiler, err = provider.NewOpenAIProfiler(&client, provider.ProfilerConfig{
				Model:            cfg.Model,
				StructuredOutput: cfg.StructuredOutput,
				Flex:             cfg.Flex,
			})
			if err != nil {
				return err
			}
		}
		if needsEmbed {
			svc.embedder, err = provider.NewOpenAIEmbedder(&client, cfg.EmbeddingModel, cfg.Dimensions)
			if err != nil {
				return err
			}
		}
	}

	return runStages(ctx, cfg, stages, svc, log, out)
}

func runStages(ctx context.Context, cfg Config, stages []string, svc services, log *zap.Logger, out io.Writer) error {
	stagedPath := filepath.Join(cfg.BaseDir, pipeline.StagedEventsFile)
	profilesPath := filepath.Join(cfg.BaseDir, pipeline.ProfilesFile)
	embeddingsPath := filepath.Join(cfg.BaseDir, pipeline.HybridEmbeddingsFile)

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch stage {
		case "segment":
			if !cfg.Overwrite && fileutils.FileExists(stagedPath) {
				fmt.Fprintln(out, "skip segment: staged events already exist")
				continue
			}
			res, err := pipeline.Segment(pipeline.SegmentParams{
				EventsPath: cfg.EventsPath,
				OutDir:     cfg.BaseDir,
				Gap:        cfg.Gap,
			}, log)
			if err != nil {
				return fmt.Errorf("segment: %w", err)
			}
			fmt.Fprintf(out, "segment: events=%d system_dropped=%d conversations=%d fans=%d\n",
				res.Events, res.SystemDropped, res.Conversations, res.Fans)
		case "profile":
			if !cfg.Overwrite && fileutils.FileExists(profilesPath) {
				fmt.Fprintln(out, "skip profile: profiles already exist")
				continue
			}
			res, err := pipeline.Profile(ctx, pipeline.ProfileParams{
				EventsPath:     cfg.EventsPath,
				OutPath:        profilesPath,
				CheckpointPath: filepath.Join(cfg.BaseDir, pipeline.ProfileCheckpointFile),
				Cache:          svc.cache,
				Service:        svc.profiler,
				BatchSize:      cfg.BatchSize,
				Pause:          cfg.Pause,
				MaxFans:        cfg.MaxFans,
			}, log)
			if err != nil {
				return fmt.Errorf("profile: %w", err)
			}
			s := res.Stats
			fmt.Fprintf(out, "profile: fans=%d cache_hits=%d generated=%d placeholders=%d external_calls=%d\n",
				s.Fans, s.CacheHits, s.Generated, s.Placeholders, s.ExternalCalls)
		case "embed":
			if !cfg.Overwrite && fileutils.FileExists(embeddingsPath) {
				fmt.Fprintln(out, "skip embed: embeddings already exist")
				continue
			}
			profiles := profilesPath
			if !fileutils.FileExists(profiles) {
				log.Warn("no profile table; embedding without profile features", zap.String("path", profiles))
				profiles = ""
			}
			res, err := pipeline.Embed(ctx, pipeline.EmbedParams{
				StagedPath:   stagedPath,
				ProfilesPath: profiles,
				OutPath:      embeddingsPath,
				Embedder:     svc.embedder,
				BatchSize:    cfg.EmbedBatchSize,
			}, log)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			fmt.Fprintf(out, "embed: stage_texts=%d skipped_blank=%d embedded=%d with_profile=%d\n",
				res.StageTexts, res.Skipped, res.Embedded, res.Join.Matched)
		default:
			return fmt.Errorf("unknown stage: %s", stage)
		}
	}
	return nil
}
