package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics/fileutils"
	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

const (
	DefaultProfileBatchSize = 20
	DefaultBatchPause       = 2 * time.Second
)

// ProfileService sends transcripts to the profiling model in one request and returns the raw
// text of its answer, which should contain a JSON array with one object per transcript.
type ProfileService interface {
	ProfileTranscripts(ctx context.Context, transcripts []string) (string, error)
}

// ProfileCache is the subset of profilecache.Cache the profiler needs.
type ProfileCache interface {
	Lookup(ctx context.Context, text string) (profile.Profile, bool, error)
	Store(ctx context.Context, text string, p profile.Profile) error
}

// BatchSink receives each finished batch in order before the next one starts. An error stops
// the run.
type BatchSink func(ctx context.Context, batch int, profiles []profile.Profile) error

type ProfilerOptions struct {
	Cache   ProfileCache
	Service ProfileService

	BatchSize int
	Pause     time.Duration

	Sink   BatchSink
	Logger *zap.Logger
	// Sleep waits between batches; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type ProfileRunStats struct {
	Fans          int
	DuplicateFans int
	Batches       int
	CacheHits     int
	Generated     int
	Placeholders  int
	BlankSkipped  int
	ExternalCalls int
	CacheErrors   int
}

// BatchProfiler turns fan transcripts into profiles, reusing cached profiles and making at most
// one model request per batch for the rest.
type BatchProfiler struct {
	opts ProfilerOptions
	log  *zap.Logger
}

func NewBatchProfiler(opts ProfilerOptions) (*BatchProfiler, error) {
	if opts.Cache == nil {
		return nil, errors.New("NewBatchProfiler: nil cache")
	}
	if opts.Service == nil {
		return nil, errors.New("NewBatchProfiler: nil service")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultProfileBatchSize
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchProfiler{opts: opts, log: log}, nil
}

// Run profiles every fan exactly once and returns the profiles in input order. Fans whose profile
// could not be generated get a placeholder carrying only their id. On cancellation the profiles of
// completed batches are returned with the context error.
func (bp *BatchProfiler) Run(ctx context.Context, fans []FanTranscript) ([]profile.Profile, ProfileRunStats, error) {
	unique := bp.dedupeFans(fans)
	stats := ProfileRunStats{Fans: len(unique), DuplicateFans: len(fans) - len(unique)}
	fans = unique

	out := make([]profile.Profile, 0, len(fans))
	for start, batchNo := 0, 0; start < len(fans); start, batchNo = start+bp.opts.BatchSize, batchNo+1 {
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}
		end := min(start+bp.opts.BatchSize, len(fans))

		results, err := bp.runBatch(ctx, fans[start:end], &stats)
		if err != nil {
			return out, stats, err
		}
		stats.Batches++

		if bp.opts.Sink != nil {
			if err := bp.opts.Sink(ctx, batchNo, results); err != nil {
				return out, stats, fmt.Errorf("BatchProfiler.Run: sink batch %d: %w", batchNo, err)
			}
		}
		out = append(out, results...)

		bp.log.Info("profiled batch",
			zap.Int("batch", batchNo),
			zap.Int("done", end),
			zap.Int("total", len(fans)),
			zap.Int("cache_hits", stats.CacheHits),
			zap.Int("placeholders", stats.Placeholders))

		if err := bp.opts.Sleep(ctx, bp.opts.Pause); err != nil {
			return out, stats, err
		}
	}
	return out, stats, nil
}

// dedupeFans keeps the first transcript of each fan_model_id so every fan gets exactly one
// profile row.
func (bp *BatchProfiler) dedupeFans(fans []FanTranscript) []FanTranscript {
	seen := make(map[string]bool, len(fans))
	out := make([]FanTranscript, 0, len(fans))
	for _, f := range fans {
		if seen[f.FanModelID] {
			bp.log.Warn("duplicate fan in input; keeping first transcript", zap.String("fan_model_id", f.FanModelID))
			continue
		}
		seen[f.FanModelID] = true
		out = append(out, f)
	}
	return out
}

func (bp *BatchProfiler) runBatch(ctx context.Context, batch []FanTranscript, stats *ProfileRunStats) ([]profile.Profile, error) {
	results := make([]profile.Profile, len(batch))
	var pending []int

	for i, f := range batch {
		if strings.TrimSpace(f.Text) == "" {
			results[i] = profile.Placeholder(f.FanModelID)
			stats.BlankSkipped++
			stats.Placeholders++
			continue
		}
		p, ok, err := bp.opts.Cache.Lookup(ctx, f.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			stats.CacheErrors++
			bp.log.Warn("cache lookup failed; treating as miss", zap.String("fan_model_id", f.FanModelID), zap.Error(err))
			ok = false
		}
		if ok {
			results[i] = p.WithFan(f.FanModelID)
			stats.CacheHits++
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	// Fans with identical transcripts share one slot in the request.
	slot := make(map[string]int, len(pending))
	var texts []string
	for _, i := range pending {
		t := batch[i].Text
		if _, ok := slot[t]; !ok {
			slot[t] = len(texts)
			texts = append(texts, t)
		}
	}

	generated, reason, raw := bp.generate(ctx, texts, stats)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if generated == nil {
		bp.log.Warn("profile generation failed; emitting placeholders",
			zap.Int("fans", len(pending)),
			zap.String("reason", reason),
			zap.String("response", fileutils.Truncate(raw, responseExcerptRunes)))
		for _, i := range pending {
			results[i] = profile.Placeholder(batch[i].FanModelID)
			stats.Placeholders++
		}
		return results, nil
	}

	for j, text := range texts {
		p := generated[j]
		if p.IsPlaceholder() {
			continue
		}
		if err := bp.opts.Cache.Store(ctx, text, p); err != nil {
			stats.CacheErrors++
			bp.log.Warn("cache store failed", zap.Error(err))
		}
	}
	for _, i := range pending {
		p := generated[slot[batch[i].Text]].WithFan(batch[i].FanModelID)
		if p.IsPlaceholder() {
			stats.Placeholders++
		} else {
			stats.Generated++
		}
		results[i] = p
	}
	return results, nil
}

const responseExcerptRunes = 500

// generate returns one profile per text, or nil and a reason when the response cannot be used.
// The raw response is returned either way for logging.
// A response with the wrong number of profiles is rejected as a whole; associating it
// positionally would attach profiles to the wrong fans.
func (bp *BatchProfiler) generate(ctx context.Context, texts []string, stats *ProfileRunStats) ([]profile.Profile, string, string) {
	stats.ExternalCalls++
	raw, err := bp.opts.Service.ProfileTranscripts(ctx, texts)
	if err != nil {
		return nil, "service error: " + err.Error(), ""
	}
	res := fileutils.DecodeModelArray(raw)
	if !res.OK {
		return nil, res.Reason, raw
	}
	if len(res.Items) != len(texts) {
		return nil, fmt.Sprintf("expected %d profiles, got %d: %v", len(texts), len(res.Items), ErrCardinality), raw
	}

	profiles := make([]profile.Profile, len(res.Items))
	for i, item := range res.Items {
		p, dropped := profile.FromMap(item)
		if len(dropped) > 0 {
			bp.log.Debug("dropped unknown profile keys", zap.Strings("keys", dropped))
		}
		profiles[i] = p
	}
	return profiles, "", raw
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
