package analytics

import (
	"sort"
	"strings"
)

// FanTranscript is everything one fan said to one model, oldest first, newline-separated.
type FanTranscript struct {
	FanModelID string
	Text       string
}

// BuildFanTranscripts concatenates the message texts of each fan_model_id across all of its
// conversations. Empty messages are skipped. Output is sorted by fan_model_id.
func BuildFanTranscripts(convs []Conversation) []FanTranscript {
	byFan := make(map[string][]string)
	var keys []string
	for _, c := range convs {
		if _, ok := byFan[c.FanModelID]; !ok {
			keys = append(keys, c.FanModelID)
			byFan[c.FanModelID] = nil
		}
		for _, e := range c.Events {
			if e.MessageText == "" {
				continue
			}
			byFan[c.FanModelID] = append(byFan[c.FanModelID], e.MessageText)
		}
	}
	sort.Strings(keys)

	out := make([]FanTranscript, 0, len(keys))
	for _, k := range keys {
		out = append(out, FanTranscript{FanModelID: k, Text: strings.Join(byFan[k], "\n")})
	}
	return out
}

// StageKey identifies one fan's text in one engagement stage.
type StageKey struct {
	FanModelID string
	Stage      Stage
}

type StageText struct {
	StageKey
	Text string
}

// BuildStageTexts joins each (fan_model_id, stage) group's messages with single spaces, oldest
// first. Output is sorted by fan_model_id then stage. Groups whose text is empty are kept; the
// embedding step decides what to submit.
func BuildStageTexts(staged []StagedEvent) []StageText {
	sorted := make([]StagedEvent, len(staged))
	copy(sorted, staged)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.FanModelID() != b.FanModelID() {
			return a.FanModelID() < b.FanModelID()
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Row < b.Row
	})

	var out []StageText
	var parts []string
	var cur StageKey
	flush := func() {
		out = append(out, StageText{StageKey: cur, Text: strings.Join(parts, " ")})
		parts = parts[:0]
	}
	for i, e := range sorted {
		key := StageKey{FanModelID: e.FanModelID(), Stage: e.Stage}
		if i > 0 && key != cur {
			flush()
		}
		cur = key
		if e.MessageText != "" {
			parts = append(parts, e.MessageText)
		}
	}
	if len(sorted) > 0 {
		flush()
	}
	return out
}
