package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics"
	"github.com/theimaginaryfoundation/fan-lens/analytics/fileutils"
	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

type ProfileParams struct {
	EventsPath     string
	OutPath        string
	CheckpointPath string

	Cache   analytics.ProfileCache
	Service analytics.ProfileService

	BatchSize int
	Pause     time.Duration
	// MaxFans limits how many fans are profiled (0 = all), for trial runs.
	MaxFans int
	Sleep   func(ctx context.Context, d time.Duration) error
}

type ProfileResult struct {
	OutPath string
	Stats   analytics.ProfileRunStats
}

// Profile builds one transcript per fan from the event log, runs the batch profiler and writes
// the profile table. Each finished batch is appended to the checkpoint file first, so an
// interrupted run leaves every completed batch on disk.
func Profile(ctx context.Context, p ProfileParams, log *zap.Logger) (ProfileResult, error) {
	res := ProfileResult{OutPath: p.OutPath}

	events, _, err := LoadEvents(p.EventsPath)
	if err != nil {
		return res, err
	}
	convs := analytics.SegmentConversations(events, analytics.SegmentOptions{})
	fans := analytics.BuildFanTranscripts(convs)
	if p.MaxFans > 0 && len(fans) > p.MaxFans {
		fans = fans[:p.MaxFans]
	}

	var sink analytics.BatchSink
	if p.CheckpointPath != "" {
		if err := os.Remove(p.CheckpointPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return res, fmt.Errorf("Profile: reset checkpoint: %w", err)
		}
		sink = func(_ context.Context, _ int, profiles []profile.Profile) error {
			return fileutils.AppendJSONLines(p.CheckpointPath, profiles)
		}
	}

	bp, err := analytics.NewBatchProfiler(analytics.ProfilerOptions{
		Cache:     p.Cache,
		Service:   p.Service,
		BatchSize: p.BatchSize,
		Pause:     p.Pause,
		Sink:      sink,
		Logger:    log,
		Sleep:     p.Sleep,
	})
	if err != nil {
		return res, err
	}

	profiles, stats, err := bp.Run(ctx, fans)
	res.Stats = stats
	if err != nil {
		return res, err
	}

	var buf bytes.Buffer
	if err := analytics.WriteProfiles(&buf, profiles); err != nil {
		return res, fmt.Errorf("Profile: encode: %w", err)
	}
	if err := fileutils.WriteFileAtomicSameDir(p.OutPath, buf.Bytes(), 0o644); err != nil {
		return res, fmt.Errorf("Profile: write %s: %w", p.OutPath, err)
	}

	log.Info("profiled fans",
		zap.Int("fans", stats.Fans),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("generated", stats.Generated),
		zap.Int("placeholders", stats.Placeholders),
		zap.Int("external_calls", stats.ExternalCalls))
	return res, nil
}

// CacheLocation picks the location argument for profilecache.Open: the directory for the file
// backend, otherwise the DSN, falling back to a database file inside dir for sqlite.
func CacheLocation(backend, dir, dsn string) string {
	switch backend {
	case "", "file":
		return dir
	case "sqlite":
		if dsn == "" {
			return filepath.Join(dir, "profile_cache.db")
		}
	}
	return dsn
}
