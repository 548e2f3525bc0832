package scorer

import (
	"context"
	"strings"
)

// OfflineOracle is a deterministic stand-in for a hosted classifier. It reads
// the prospect role and industry back out of the prompt and applies keyword
// heuristics. Use it for local runs without API keys.
type OfflineOracle struct{}

// Classify implements Oracle.
func (OfflineOracle) Classify(_ context.Context, prompt string) (string, error) {
	role := strings.ToLower(promptField(prompt, "Prospect:", "- Role: "))
	industry := strings.ToLower(promptField(prompt, "Prospect:", "- Industry: "))

	decision := containsAny(role, decisionMakerKeywords)
	influencer := containsAny(role, influencerKeywords)
	adjacent := containsAny(industry, adjacentKeywords)

	switch {
	case decision && adjacent:
		return "High. Senior decision maker in a technology-adjacent industry (offline heuristic).", nil
	case decision || (influencer && adjacent):
		return "Medium. Relevant seniority or industry fit, but not both (offline heuristic).", nil
	default:
		return "Low. No strong role or industry signal (offline heuristic).", nil
	}
}

// promptField returns the value of the first line starting with prefix after
// the section header.
func promptField(prompt, section, prefix string) string {
	_, rest, ok := strings.Cut(prompt, section)
	if !ok {
		return ""
	}
	for _, line := range strings.Split(rest, "\n") {
		if v, found := strings.CutPrefix(line, prefix); found {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
