package analytics

import (
	"fmt"
	"sort"
	"time"
)

// ConversationGap is the longest silence that still continues a conversation.
const ConversationGap = 4 * time.Hour

// Conversation is a maximal run of one fan_model_id's events with no gap above the threshold
// and no model switch.
type Conversation struct {
	ID         string
	FanModelID string
	Seq        int
	Events     []Event
}

func ConversationID(fanModelID string, seq int) string {
	return fmt.Sprintf("%s_C%d", fanModelID, seq)
}

type SegmentOptions struct {
	// Gap overrides ConversationGap when > 0.
	Gap time.Duration
}

// SegmentConversations partitions events into conversations. Each fan_model_id's events are
// stably sorted by timestamp (ties keep input row order) and split whenever the model changes or
// the gap to the previous event exceeds the threshold. Output is ordered by fan_model_id then
// sequence number. Message content never affects boundaries.
func SegmentConversations(events []Event, opts SegmentOptions) []Conversation {
	gap := opts.Gap
	if gap <= 0 {
		gap = ConversationGap
	}

	groups := make(map[string][]Event)
	var keys []string
	for _, e := range events {
		k := e.FanModelID()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}
	sort.Strings(keys)

	var out []Conversation
	for _, k := range keys {
		evs := groups[k]
		sort.SliceStable(evs, func(i, j int) bool {
			if !evs[i].Timestamp.Equal(evs[j].Timestamp) {
				return evs[i].Timestamp.Before(evs[j].Timestamp)
			}
			return evs[i].Row < evs[j].Row
		})

		seq := 0
		start := 0
		for i := 1; i <= len(evs); i++ {
			split := i == len(evs)
			if !split {
				prev, cur := evs[i-1], evs[i]
				split = cur.ModelID != prev.ModelID || cur.Timestamp.Sub(prev.Timestamp) > gap
			}
			if !split {
				continue
			}
			out = append(out, Conversation{
				ID:         ConversationID(k, seq),
				FanModelID: k,
				Seq:        seq,
				Events:     evs[start:i:i],
			})
			seq++
			start = i
		}
	}
	return out
}
