package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

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
		Use:          "conversation-segmenter",
		Short:        "Split a fan chat log into conversations and purchase stages",
		Example:      "  go run ./cmd/conversation-segmenter --in data/events.csv --out data/out",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := loadConfig(cmd.Flags(), cfg)
			if err != nil {
				return err
			}
			return run(resolved)
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
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func run(cfg Config) error {
	base, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()
	log := logging.ForRun(base, "conversation-segmenter")

	res, err := pipeline.Segment(pipeline.SegmentParams{
		EventsPath: cfg.InputPath,
		OutDir:     cfg.OutputDir,
		Gap:        cfg.Gap,
	}, log)
	if err != nil {
		return fmt.Errorf("segment %s: %w", cfg.InputPath, err)
	}

	fmt.Fprintf(os.Stdout, "events=%d system_dropped=%d conversations=%d fans=%d staged=%s features=%s\n",
		res.Events, res.SystemDropped, res.Conversations, res.Fans, res.StagedPath, res.FeaturesPath)
	return nil
}
