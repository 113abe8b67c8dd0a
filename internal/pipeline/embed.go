package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics"
	"github.com/theimaginaryfoundation/fan-lens/analytics/fileutils"
	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

type EmbedParams struct {
	StagedPath string
	// ProfilesPath is optional; without it records carry no profile fields.
	ProfilesPath string
	OutPath      string
	Embedder     analytics.Embedder
	BatchSize    int
}

type EmbedResult struct {
	StageTexts int
	Skipped    int
	Embedded   int
	Join       analytics.JoinReport
	OutPath    string
}

// Embed builds stage texts from the staged event table, embeds them, joins each embedding with
// its fan's profile by fan_model_id and writes one JSON line per record.
func Embed(ctx context.Context, p EmbedParams, log *zap.Logger) (EmbedResult, error) {
	res := EmbedResult{OutPath: p.OutPath}

	f, err := os.Open(p.StagedPath)
	if err != nil {
		return res, fmt.Errorf("open staged events: %w", err)
	}
	staged, err := analytics.ReadStagedEvents(f)
	_ = f.Close()
	if err != nil {
		return res, err
	}

	var profiles []profile.Profile
	if p.ProfilesPath != "" {
		pf, err := os.Open(p.ProfilesPath)
		if err != nil {
			return res, fmt.Errorf("open profiles: %w", err)
		}
		profiles, err = analytics.ReadProfiles(pf)
		_ = pf.Close()
		if err != nil {
			return res, err
		}
	}

	texts := analytics.BuildStageTexts(staged)
	res.StageTexts = len(texts)

	embs, skipped, err := analytics.EmbedStageTexts(ctx, p.Embedder, texts, analytics.EmbedOptions{
		BatchSize: p.BatchSize,
		Logger:    log,
	})
	res.Skipped = len(skipped)
	if err != nil {
		return res, err
	}
	res.Embedded = len(embs)

	records, rep, err := analytics.JoinProfiles(embs, profiles, log)
	res.Join = rep
	if err != nil {
		return res, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return res, fmt.Errorf("Embed: encode: %w", err)
		}
	}
	if err := fileutils.WriteFileAtomicSameDir(p.OutPath, buf.Bytes(), 0o644); err != nil {
		return res, fmt.Errorf("Embed: write %s: %w", p.OutPath, err)
	}

	log.Info("embedded stage texts",
		zap.Int("stage_texts", res.StageTexts),
		zap.Int("skipped_blank", res.Skipped),
		zap.Int("embedded", res.Embedded),
		zap.Int("with_profile", rep.Matched))
	return res, nil
}
