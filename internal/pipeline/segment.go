// Package pipeline wires the analytics stages to files so each command, and the end-to-end
// pipeline command, run the same code.
package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/fan-lens/analytics"
	"github.com/theimaginaryfoundation/fan-lens/analytics/fileutils"
)

const (
	StagedEventsFile         = "staged_events.csv"
	ConversationFeaturesFile = "conversation_features.csv"
	ProfilesFile             = "fan_profiles.csv"
	ProfileCheckpointFile    = "fan_profiles.checkpoint.jsonl"
	HybridEmbeddingsFile     = "stage_embeddings.jsonl"
)

// LoadEvents reads the event log at path and drops system events.
func LoadEvents(path string) ([]analytics.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	events, err := analytics.ReadEvents(f)
	if err != nil {
		return nil, 0, err
	}
	kept := analytics.DropSystemEvents(events)
	return kept, len(events) - len(kept), nil
}

type SegmentParams struct {
	EventsPath string
	OutDir     string
	Gap        time.Duration
}

type SegmentResult struct {
	Events        int
	SystemDropped int
	Conversations int
	Fans          int
	StagedPath    string
	FeaturesPath  string
}

// Segment reads the event log, splits it into conversations and stages, and writes the staged
// event table and the conversation feature table into OutDir.
func Segment(p SegmentParams, log *zap.Logger) (SegmentResult, error) {
	var res SegmentResult
	events, dropped, err := LoadEvents(p.EventsPath)
	if err != nil {
		return res, err
	}
	res.Events = len(events)
	res.SystemDropped = dropped

	convs := analytics.SegmentConversations(events, analytics.SegmentOptions{Gap: p.Gap})
	staged := analytics.StageConversations(convs)
	feats := analytics.ComputeConversationFeatures(convs)

	fans := make(map[string]struct{})
	for _, c := range convs {
		fans[c.FanModelID] = struct{}{}
	}
	res.Conversations = len(convs)
	res.Fans = len(fans)

	var buf bytes.Buffer
	if err := analytics.WriteStagedEvents(&buf, staged); err != nil {
		return res, fmt.Errorf("Segment: staged events: %w", err)
	}
	res.StagedPath = filepath.Join(p.OutDir, StagedEventsFile)
	if err := fileutils.WriteFileAtomicSameDir(res.StagedPath, buf.Bytes(), 0o644); err != nil {
		return res, fmt.Errorf("Segment: write %s: %w", res.StagedPath, err)
	}

	buf.Reset()
	if err := analytics.WriteConversationFeatures(&buf, feats); err != nil {
		return res, fmt.Errorf("Segment: features: %w", err)
	}
	res.FeaturesPath = filepath.Join(p.OutDir, ConversationFeaturesFile)
	if err := fileutils.WriteFileAtomicSameDir(res.FeaturesPath, buf.Bytes(), 0o644); err != nil {
		return res, fmt.Errorf("Segment: write %s: %w", res.FeaturesPath, err)
	}

	log.Info("segmented event log",
		zap.Int("events", res.Events),
		zap.Int("system_dropped", res.SystemDropped),
		zap.Int("conversations", res.Conversations),
		zap.Int("fans", res.Fans))
	return res, nil
}
