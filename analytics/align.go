package analytics

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

// ErrDuplicateFan is returned when a table that must have one row per fan_model_id has more.
var ErrDuplicateFan = errors.New("duplicate fan_model_id")

// HybridRecord is one stage embedding joined with its fan's profile, ready for clustering.
type HybridRecord struct {
	FanModelID string          `json:"fan_model_id"`
	Stage      Stage           `json:"stage"`
	TextChars  int             `json:"text_chars"`
	Embedding  []float64       `json:"embedding"`
	HasProfile bool            `json:"has_profile"`
	Profile    profile.Profile `json:"profile"`
}

type JoinReport struct {
	Rows             int
	Matched          int
	MissingProfiles  []string
	UnusedProfiles   []string
	DuplicateProfile string
}

// JoinProfiles left-joins embeddings with profiles on fan_model_id. Every embedding yields exactly
// one record; embeddings without a profile get an empty one with HasProfile=false. Duplicate
// profile keys are rejected rather than resolved arbitrarily.
func JoinProfiles(embs []StageEmbedding, profiles []profile.Profile, log *zap.Logger) ([]HybridRecord, JoinReport, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var rep JoinReport

	byFan := make(map[string]profile.Profile, len(profiles))
	for _, p := range profiles {
		if _, dup := byFan[p.FanModelID]; dup {
			rep.DuplicateProfile = p.FanModelID
			return nil, rep, fmt.Errorf("JoinProfiles: %q: %w", p.FanModelID, ErrDuplicateFan)
		}
		byFan[p.FanModelID] = p
	}

	used := make(map[string]bool, len(byFan))
	missing := make(map[string]bool)
	out := make([]HybridRecord, 0, len(embs))
	for _, e := range embs {
		rec := HybridRecord{
			FanModelID: e.FanModelID,
			Stage:      e.Stage,
			TextChars:  e.TextChars,
			Embedding:  e.Vector,
		}
		if p, ok := byFan[e.FanModelID]; ok {
			rec.Profile = p
			rec.HasProfile = true
			used[e.FanModelID] = true
			rep.Matched++
		} else {
			rec.Profile = profile.Placeholder(e.FanModelID)
			missing[e.FanModelID] = true
		}
		out = append(out, rec)
	}
	rep.Rows = len(out)

	for k := range missing {
		rep.MissingProfiles = append(rep.MissingProfiles, k)
	}
	for k := range byFan {
		if !used[k] {
			rep.UnusedProfiles = append(rep.UnusedProfiles, k)
		}
	}
	sort.Strings(rep.MissingProfiles)
	sort.Strings(rep.UnusedProfiles)

	if len(rep.MissingProfiles) > 0 || len(rep.UnusedProfiles) > 0 {
		log.Warn("profile join incomplete",
			zap.Int("rows", rep.Rows),
			zap.Int("matched", rep.Matched),
			zap.Int("fans_without_profile", len(rep.MissingProfiles)),
			zap.Int("profiles_without_embedding", len(rep.UnusedProfiles)))
	}
	return out, rep, nil
}
