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
		Use:          "stage-embedder",
		Short:        "Embed per-stage fan text and join it with fan profiles",
		Example:      "  go run ./cmd/stage-embedder --in data/out/staged_events.csv --profiles data/out/fan_profiles.csv",
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
	cfg.StagedPath = filepath.Clean(cfg.StagedPath)
	cfg.OutputPath = filepath.Clean(cfg.OutputPath)
	if cfg.ProfilesPath != "" {
		cfg.ProfilesPath = filepath.Clean(cfg.ProfilesPath)
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
	log := logging.ForRun(base, "stage-embedder")

	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	emb, err := provider.NewOpenAIEmbedder(&client, cfg.Model, cfg.Dimensions)
	if err != nil {
		return err
	}

	res, err := pipeline.Embed(ctx, pipeline.EmbedParams{
		StagedPath:   cfg.StagedPath,
		ProfilesPath: cfg.ProfilesPath,
		OutPath:      cfg.OutputPath,
		Embedder:     emb,
		BatchSize:    cfg.BatchSize,
	}, log)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "stage_texts=%d skipped_blank=%d embedded=%d with_profile=%d fans_without_profile=%d out=%s\n",
		res.StageTexts, res.Skipped, res.Embedded, res.Join.Matched, len(res.Join.MissingProfiles), res.OutPath)
	return nil
}
