package analytics

import "time"

type Stage string

const (
	StagePrePurchase Stage = "stage_1"
	StageBuying      Stage = "stage_2"
	StagePostBuying  Stage = "stage_3"
)

var Stages = []Stage{StagePrePurchase, StageBuying, StagePostBuying}

// StagedEvent is an event labelled with its conversation and purchase-relative stage.
type StagedEvent struct {
	Event
	ConversationID string
	Stage          Stage
}

// purchaseSpan returns the first and last purchase timestamps of a conversation.
func purchaseSpan(events []Event) (first, last time.Time, ok bool) {
	for _, e := range events {
		if !e.Purchase {
			continue
		}
		if !ok || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if !ok || e.Timestamp.After(last) {
			last = e.Timestamp
		}
		ok = true
	}
	return first, last, ok
}

// AssignStages labels every event of one conversation. Without purchases everything is stage_1.
// Otherwise events at or before the first purchase are stage_1, those after it up to and
// including the last purchase are stage_2, and later ones are stage_3.
func AssignStages(conv Conversation) []StagedEvent {
	out := make([]StagedEvent, len(conv.Events))
	first, last, ok := purchaseSpan(conv.Events)
	for i, e := range conv.Events {
		stage := StagePrePurchase
		if ok {
			switch {
			case !e.Timestamp.After(first):
				stage = StagePrePurchase
			case !e.Timestamp.After(last):
				stage = StageBuying
			default:
				stage = StagePostBuying
			}
		}
		out[i] = StagedEvent{Event: e, ConversationID: conv.ID, Stage: stage}
	}
	return out
}

// StageConversations applies AssignStages to every conversation, keeping conversation order.
func StageConversations(convs []Conversation) []StagedEvent {
	var out []StagedEvent
	for _, c := range convs {
		out = append(out, AssignStages(c)...)
	}
	return out
}
