package analytics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBuildFanTranscripts(t *testing.T) {
	t.Parallel()

	events := []Event{
		ev(0, "f2", "m", 0, "hey", false),
		ev(1, "f1", "m", time.Hour, "second", false),
		ev(2, "f1", "m", 0, "first", false),
		ev(3, "f1", "m", 20*time.Hour, "", true),
		ev(4, "f1", "m", 21*time.Hour, "next day", false),
		ev(5, "f3", "m", 0, "", true),
	}
	got := BuildFanTranscripts(SegmentConversations(events, SegmentOptions{}))
	want := []FanTranscript{
		{FanModelID: "f1_m", Text: "first\nsecond\nnext day"},
		{FanModelID: "f2_m", Text: "hey"},
		{FanModelID: "f3_m", Text: ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("transcripts mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildStageTexts(t *testing.T) {
	t.Parallel()

	events := []Event{
		ev(0, "f1", "m", 0, "hello", false),
		ev(1, "f1", "m", time.Minute, "buying", true),
		ev(2, "f1", "m", 2*time.Minute, "thanks", false),
		ev(3, "f1", "m", 3*time.Minute, "", false),
		ev(4, "f0", "m", 0, "lurker", false),
	}
	staged := StageConversations(SegmentConversations(events, SegmentOptions{}))
	got := BuildStageTexts(staged)

	want := []StageText{
		{StageKey: StageKey{FanModelID: "f0_m", Stage: StagePrePurchase}, Text: "lurker"},
		{StageKey: StageKey{FanModelID: "f1_m", Stage: StagePrePurchase}, Text: "hello buying"},
		{StageKey: StageKey{FanModelID: "f1_m", Stage: StagePostBuying}, Text: "thanks"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stage texts mismatch (-want +got):\n%s", diff)
	}
	if got := BuildStageTexts(nil); len(got) != 0 {
		t.Fatalf("nil input produced %d texts", len(got))
	}
}
