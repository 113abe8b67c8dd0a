package analytics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func ev(row int, fan, model string, offset time.Duration, text string, purchase bool) Event {
	return Event{Row: row, FanID: fan, ModelID: model, Timestamp: t0.Add(offset), MessageText: text, Purchase: purchase}
}

func convIDs(convs []Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func TestSegmentConversations_GapSplits(t *testing.T) {
	t.Parallel()

	events := []Event{
		ev(0, "f1", "m1", 0, "a", false),
		ev(1, "f1", "m1", 5*time.Hour, "b", false),
	}
	got := SegmentConversations(events, SegmentOptions{})
	if diff := cmp.Diff([]string{"f1_m1_C0", "f1_m1_C1"}, convIDs(got)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentConversations_WithinGapAndExactBoundary(t *testing.T) {
	t.Parallel()

	events := []Event{
		ev(0, "f1", "m1", 0, "a", false),
		ev(1, "f1", "m1", 3*time.Hour, "b", false),
		ev(2, "f1", "m1", 7*time.Hour, "c", false), // exactly 4h later: same conversation
	}
	got := SegmentConversations(events, SegmentOptions{})
	if len(got) != 1 || got[0].ID != "f1_m1_C0" || len(got[0].Events) != 3 {
		t.Fatalf("got=%v", convIDs(got))
	}
}

func TestSegmentConversations_ModelSwitch(t *testing.T) {
	t.Parallel()

	// "a_b" with model "c" and "a" with model "b_c" share a fan_model_id; the model switch
	// still separates them.
	events := []Event{
		ev(0, "a_b", "c", 0, "x", false),
		ev(1, "a", "b_c", time.Minute, "y", false),
	}
	got := SegmentConversations(events, SegmentOptions{})
	if diff := cmp.Diff([]string{"a_b_c_C0", "a_b_c_C1"}, convIDs(got)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentConversations_PartitionAndOrdering(t *testing.T) {
	t.Parallel()

	events := []Event{
		ev(0, "f2", "m1", 10*time.Hour, "late", false),
		ev(1, "f1", "m1", 2*time.Hour, "second", false),
		ev(2, "f1", "m1", 0, "first", false),
		ev(3, "f2", "m1", 0, "early", false),
		ev(4, "f1", "m1", 2*time.Hour, "tie after second", false),
		ev(5, "f1", "m2", time.Hour, "other model", false),
	}
	got := SegmentConversations(events, SegmentOptions{})

	want := []string{"f1_m1_C0", "f1_m2_C0", "f2_m1_C0", "f2_m1_C1"}
	if diff := cmp.Diff(want, convIDs(got)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	var texts []string
	total := 0
	for _, c := range got {
		total += len(c.Events)
		for _, e := range c.Events {
			texts = append(texts, e.MessageText)
		}
	}
	if total != len(events) {
		t.Fatalf("events in conversations=%d, want %d", total, len(events))
	}
	wantTexts := []string{"first", "second", "tie after second", "other model", "early", "late"}
	if diff := cmp.Diff(wantTexts, texts); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentConversations_InputOrderIndependent(t *testing.T) {
	t.Parallel()

	var events []Event
	offsets := []time.Duration{0, time.Hour, 6 * time.Hour, 6 * time.Hour, 20 * time.Hour, 21 * time.Hour}
	for i, off := range offsets {
		events = append(events, ev(i, "f1", "m1", off, string(rune('a'+i)), false))
		events = append(events, ev(100+i, "f2", "m1", off*2, string(rune('A'+i)), false))
	}
	want := SegmentConversations(events, SegmentOptions{})

	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 5; n++ {
		shuffled := append([]Event(nil), events...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := SegmentConversations(shuffled, SegmentOptions{})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("shuffle %d changed segmentation (-want +got):\n%s", n, diff)
		}
	}
}

func TestSegmentConversations_SingleEventAndCustomGap(t *testing.T) {
	t.Parallel()

	got := SegmentConversations([]Event{ev(0, "f", "m", 0, "", false)}, SegmentOptions{})
	if len(got) != 1 || got[0].Seq != 0 || len(got[0].Events) != 1 {
		t.Fatalf("got=%+v", got)
	}

	events := []Event{ev(0, "f", "m", 0, "", false), ev(1, "f", "m", 2*time.Hour, "", false)}
	got = SegmentConversations(events, SegmentOptions{Gap: time.Hour})
	if len(got) != 2 {
		t.Fatalf("custom gap: len=%d, want 2", len(got))
	}
	if got := SegmentConversations(nil, SegmentOptions{}); len(got) != 0 {
		t.Fatalf("nil input produced %d conversations", len(got))
	}
}
