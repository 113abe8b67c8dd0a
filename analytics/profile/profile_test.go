package profile

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromMap_NormalizesHumanAndSnakeKeys(t *testing.T) {
	t.Parallel()

	got, dropped := FromMap(map[string]any{
		"Age indicators":       "late 20s",
		"job_or_career":        " nurse ",
		"Location hints":       nil,
		"Personality traits":   []any{"shy", "funny", nil},
		"Emotional needs":      map[string]any{"k": "v"},
		"Purchase motivations": 3.0,
		"Life events":          true,
		"age indicators":       "wrong case",
		"Favourite colour":     "blue",
	})

	want := Profile{
		AgeIndicators:       "late 20s",
		JobOrCareer:         "nurse",
		PersonalityTraits:   "shy, funny",
		EmotionalNeeds:      `{"k":"v"}`,
		PurchaseMotivations: "3",
		LifeEvents:          "true",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FromMap mismatch (-want +got):\n%s", diff)
	}

	sort.Strings(dropped)
	if diff := cmp.Diff([]string{"Favourite colour", "age indicators"}, dropped); diff != "" {
		t.Fatalf("dropped mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeKey_CoversEveryField(t *testing.T) {
	t.Parallel()

	if len(Fields) != 9 || len(HumanLabels) != len(Fields) {
		t.Fatalf("fields=%d labels=%d", len(Fields), len(HumanLabels))
	}
	for i, label := range HumanLabels {
		got, ok := NormalizeKey(label)
		if !ok || got != Fields[i] {
			t.Fatalf("NormalizeKey(%q)=%q,%v want %q", label, got, ok, Fields[i])
		}
		var p Profile
		if !p.Set(got, "x") {
			t.Fatalf("Set(%q) rejected", got)
		}
		if p.Values()[i] != "x" {
			t.Fatalf("Set(%q) wrote the wrong column: %v", got, p.Values())
		}
	}
}

func TestPlaceholder(t *testing.T) {
	t.Parallel()

	p := Placeholder("f1_m1")
	if p.FanModelID != "f1_m1" || !p.IsPlaceholder() {
		t.Fatalf("placeholder=%+v", p)
	}
	if (Profile{LifeEvents: "moved"}).IsPlaceholder() {
		t.Fatalf("non-empty profile reported as placeholder")
	}
	if got := (Profile{}).WithFan("a_b").FanModelID; got != "a_b" {
		t.Fatalf("WithFan=%q", got)
	}
}
