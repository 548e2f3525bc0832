// Package scorer computes the rule-based and qualitative sub-scores for a lead
// and combines them into a final score.
package scorer

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadscore/internal/model"
)

// ReasonSeparator joins rationale fragments.
const ReasonSeparator = " | "

// Rule factor caps.
const (
	RoleMax         = 20
	IndustryMax     = 20
	CompletenessMax = 10
)

var (
	decisionMakerKeywords = []string{"ceo", "founder", "owner"}
	influencerKeywords    = []string{"manager", "director", "vp", "head of"}
	adjacentKeywords      = []string{"tech", "saas", "software", "enterprise", "startup", "technology"}
)

// ScoreRules evaluates a lead against an offer with fixed heuristics. It is a
// pure function: identical inputs always produce identical outcomes. The
// score is in [0, model.MaxSubScore].
func ScoreRules(lead model.Lead, offer model.Offer) model.ScoreOutcome {
	role, roleReason := scoreRole(lead.Role)
	industry, industryReason := scoreIndustry(lead.Industry, offer.IdealUseCases)
	complete, completeReason := scoreCompleteness(lead)

	total := role + industry + complete
	if total > model.MaxSubScore {
		total = model.MaxSubScore
	}

	return model.ScoreOutcome{
		Score:  total,
		Reason: strings.Join([]string{roleReason, industryReason, completeReason}, ReasonSeparator),
	}
}

func scoreRole(role string) (int, string) {
	r := strings.ToLower(strings.TrimSpace(role))
	switch {
	case r == "":
		return 0, "Role: Not provided (+0)"
	case containsAny(r, decisionMakerKeywords):
		return RoleMax, fmt.Sprintf("Role: Decision maker (+%d)", RoleMax)
	case containsAny(r, influencerKeywords):
		return 10, "Role: Influencer (+10)"
	default:
		return 0, "Role: No matching role (+0)"
	}
}

func scoreIndustry(industry string, useCases []string) (int, string) {
	ind := strings.ToLower(strings.TrimSpace(industry))

	cases := make([]string, 0, len(useCases))
	for _, uc := range useCases {
		if uc = strings.ToLower(strings.TrimSpace(uc)); uc != "" {
			cases = append(cases, uc)
		}
	}

	if ind == "" || len(cases) == 0 {
		return 0, "Industry: Not provided (+0)"
	}

	for _, uc := range cases {
		if strings.Contains(ind, uc) || strings.Contains(uc, ind) {
			return IndustryMax, fmt.Sprintf("Industry: Exact ICP match (+%d)", IndustryMax)
		}
	}

	if containsAny(ind, adjacentKeywords) {
		return 10, "Industry: Adjacent industry (+10)"
	}
	for _, uc := range cases {
		if containsAny(uc, adjacentKeywords) {
			return 10, "Industry: Adjacent industry (+10)"
		}
	}

	return 0, "Industry: No match (+0)"
}

// completenessFields are the attributes counted for data completeness.
const completenessFields = 5

func scoreCompleteness(lead model.Lead) (int, string) {
	present := 0
	for _, v := range []string{lead.Name, lead.Email, lead.Role, lead.Company, lead.Industry} {
		if strings.TrimSpace(v) != "" {
			present++
		}
	}

	switch present {
	case completenessFields:
		return CompletenessMax, fmt.Sprintf("Data completeness: All fields present (+%d)", CompletenessMax)
	case 0:
		return 0, "Data completeness: No fields present (+0)"
	default:
		return 5, fmt.Sprintf("Data completeness: %d/%d fields present (+5)", present, completenessFields)
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
