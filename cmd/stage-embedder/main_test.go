package main

import (
	"context"
	"testing"

	"github.com/spf13/pflag"
)

func parseArgs(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cfg := defaultConfig()
	fs := pflag.NewFlagSet("stage-embedder", pflag.ContinueOnError)
	registerFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return loadConfig(fs, cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := parseArgs(t,
		"--in", "out/staged.csv",
		"--profiles", "",
		"--out", "out/emb.jsonl",
		"--model", "text-embedding-3-large",
		"--dimensions", "256",
		"--batch-size", "50",
	)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ProfilesPath != "" {
		t.Fatalf("ProfilesPath=%q, want empty", cfg.ProfilesPath)
	}
	if cfg.Model != "text-embedding-3-large" || cfg.Dimensions != 256 || cfg.BatchSize != 50 {
		t.Fatalf("model/dims/batch=%q/%d/%d", cfg.Model, cfg.Dimensions, cfg.BatchSize)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error")
	}
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	c := defaultConfig()
	c.Dimensions = -1
	if err := c.Validate(); err == nil {
		t.Fatalf("negative dimensions should fail")
	}
}

func TestRun_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	c := defaultConfig()
	c.APIKey = ""
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := run(ctx, c); err == nil {
		t.Fatalf("expected missing key error")
	}
}
