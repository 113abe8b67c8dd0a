package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics/profilecache"
	"github.com/theimaginaryfoundation/fan-lens/internal/pipeline"
)

func parseArgs(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cfg := defaultConfig()
	fs := pflag.NewFlagSet("fan-pipeline", pflag.ContinueOnError)
	registerFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return loadConfig(fs, cfg)
}

func TestLoadConfig_CacheDirDefaultsUnderBaseDir(t *testing.T) {
	t.Parallel()

	cfg, err := parseArgs(t, "--base-dir", "runs/today/")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if want := filepath.Join("runs", "today", "llm_cache"); cfg.CacheDir != want {
		t.Fatalf("CacheDir=%q, want %q", cfg.CacheDir, want)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	c := defaultConfig()
	c.OnlyStage = "profile"
	c.FromStage = "segment"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for both stage selectors")
	}

	c = defaultConfig()
	c.FromStage = "rollup"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown stage")
	}

	c = defaultConfig()
	c.EmbedBatchSize = 0
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for zero embed batch size")
	}
}

func TestConfig_Stages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, only string
		want       []string
	}{
		{want: []string{"segment", "profile", "embed"}},
		{from: "profile", want: []string{"profile", "embed"}},
		{from: "embed", want: []string{"embed"}},
		{only: "profile", want: []string{"profile"}},
	}
	for _, tc := range cases {
		c := defaultConfig()
		c.FromStage, c.OnlyStage = tc.from, tc.only
		if diff := cmp.Diff(tc.want, c.stages()); diff != "" {
			t.Fatalf("from=%q only=%q (-want +got):\n%s", tc.from, tc.only, diff)
		}
	}
}

type fakeProfiler struct{ calls int }

func (f *fakeProfiler) ProfileTranscripts(_ context.Context, texts []string) (string, error) {
	f.calls++
	items := make([]string, len(texts))
	for i := range texts {
		items[i] = `{"communication_style":"playful"}`
	}
	return "[" + strings.Join(items, ",") + "]", nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

func TestRunStages_EndToEndThenSkips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	events := filepath.Join(dir, "events.csv")
	log := "fan_id,model_id,timestamp,message_text,purchase\n" +
		"f1,m1,2024-01-01T10:00:00Z,hey,FALSE\n" +
		"f1,m1,2024-01-01T10:10:00Z,sent,TRUE\n" +
		"f2,m1,2024-01-01T11:00:00Z,hello,FALSE\n"
	if err := os.WriteFile(events, []byte(log), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}

	cfg := defaultConfig()
	cfg.EventsPath = events
	cfg.BaseDir = filepath.Join(dir, "out")
	cfg.Pause = 0

	cache, err := profilecache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	prof := &fakeProfiler{}
	svc := services{cache: cache, profiler: prof, embedder: fakeEmbedder{}}

	var out bytes.Buffer
	if err := runStages(context.Background(), cfg, cfg.stages(), svc, zap.NewNop(), &out); err != nil {
		t.Fatalf("runStages: %v\n%s", err, out.String())
	}
	for _, name := range []string{pipeline.StagedEventsFile, pipeline.ConversationFeaturesFile, pipeline.ProfilesFile, pipeline.HybridEmbeddingsFile} {
		if _, err := os.Stat(filepath.Join(cfg.BaseDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if prof.calls != 1 {
		t.Fatalf("profiler calls=%d, want 1", prof.calls)
	}

	out.Reset()
	if err := runStages(context.Background(), cfg, cfg.stages(), svc, zap.NewNop(), &out); err != nil {
		t.Fatalf("second runStages: %v", err)
	}
	if got := strings.Count(out.String(), "skip "); got != 3 {
		t.Fatalf("expected every stage skipped, got output:\n%s", out.String())
	}
	if prof.calls != 1 {
		t.Fatalf("skipped run called profiler: calls=%d", prof.calls)
	}
}

func TestRunStages_EmbedWithoutProfiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	events := filepath.Join(dir, "events.csv")
	log := "fan_id,model_id,timestamp,message_text,purchase\nf1,m1,2024-01-01T10:00:00Z,hey,FALSE\n"
	if err := os.WriteFile(events, []byte(log), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}

	cfg := defaultConfig()
	cfg.EventsPath = events
	cfg.BaseDir = filepath.Join(dir, "out")

	var out bytes.Buffer
	stages := []string{"segment", "embed"}
	if err := runStages(context.Background(), cfg, stages, services{embedder: fakeEmbedder{}}, zap.NewNop(), &out); err != nil {
		t.Fatalf("runStages: %v", err)
	}
	if !strings.Contains(out.String(), "with_profile=0") {
		t.Fatalf("expected no profile matches:\n%s", out.String())
	}
}
