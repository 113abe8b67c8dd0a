package analytics

import "time"

// ActiveWindow is how recent a conversation's last message must be, relative to the newest
// message in the dataset, for the conversation to count as active.
const ActiveWindow = 2 * 24 * time.Hour

type ConversationFeatures struct {
	ConversationID              string
	FanModelID                  string
	Start                       time.Time
	End                         time.Time
	MessageCount                int
	PurchaseCount               int
	PurchaseRate                float64
	DurationHours               float64
	MessagesBeforeFirstPurchase int
	// HoursToFirstPurchase is nil when the conversation has no purchase.
	HoursToFirstPurchase         *float64
	DaysBetweenFirstLastPurchase int
	DaysSinceLastMessage         int
	Active                       bool
}

// ComputeConversationFeatures derives one feature row per conversation. Recency is measured
// against the latest timestamp across all conversations, not the wall clock, so reruns on the
// same data are stable.
func ComputeConversationFeatures(convs []Conversation) []ConversationFeatures {
	var datasetMax time.Time
	for _, c := range convs {
		if n := len(c.Events); n > 0 && c.Events[n-1].Timestamp.After(datasetMax) {
			datasetMax = c.Events[n-1].Timestamp
		}
	}

	out := make([]ConversationFeatures, 0, len(convs))
	for _, c := range convs {
		if len(c.Events) == 0 {
			continue
		}
		start := c.Events[0].Timestamp
		end := c.Events[len(c.Events)-1].Timestamp

		f := ConversationFeatures{
			ConversationID:              c.ID,
			FanModelID:                  c.FanModelID,
			Start:                       start,
			End:                         end,
			MessageCount:                len(c.Events),
			DurationHours:               end.Sub(start).Hours(),
			MessagesBeforeFirstPurchase: len(c.Events),
		}

		firstIdx := -1
		for i, e := range c.Events {
			if !e.Purchase {
				continue
			}
			f.PurchaseCount++
			if firstIdx == -1 {
				firstIdx = i
			}
		}
		f.PurchaseRate = float64(f.PurchaseCount) / float64(f.MessageCount)

		if firstIdx >= 0 {
			f.MessagesBeforeFirstPurchase = firstIdx
			h := c.Events[firstIdx].Timestamp.Sub(start).Hours()
			f.HoursToFirstPurchase = &h
		}
		if f.PurchaseCount > 1 {
			first, last, _ := purchaseSpan(c.Events)
			f.DaysBetweenFirstLastPurchase = wholeDays(last.Sub(first))
		}

		since := datasetMax.Sub(end)
		f.DaysSinceLastMessage = wholeDays(since)
		f.Active = since < ActiveWindow
		out = append(out, f)
	}
	return out
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
