package provider

import (
	"fmt"
	"strings"

	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

const profilerSystemPrompt = "You are an expert profiler. Your output must be ONLY a JSON array. No explanation or text."

// buildProfilePrompt lists every transcript under a numbered heading. The model must answer with
// one object per fan in the same order.
func buildProfilePrompt(transcripts []string) string {
	var b strings.Builder
	b.WriteString("Analyze the following fans' messages to a creator and infer a profile for each fan.\n")
	b.WriteString("For each fan return one JSON object with exactly these keys:\n")
	for i, label := range profile.HumanLabels {
		fmt.Fprintf(&b, "- %q (%s)\n", profile.Fields[i], label)
	}
	b.WriteString("Use an empty string when the messages give no evidence for a field.\n")
	fmt.Fprintf(&b, "Return a JSON array of exactly %d objects, in the same order as the fans below. ", len(transcripts))
	b.WriteString("Do not add commentary, markdown or keys that are not listed.\n")

	for i, t := range transcripts {
		fmt.Fprintf(&b, "\nFan #%d messages:\n%s\n", i+1, t)
	}
	return b.String()
}
