package scorer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadscore/internal/model"
)

func aiOutreach() model.Offer {
	return model.Offer{
		ID:            "offer-1",
		Name:          "AI Outreach",
		ValueProps:    []string{"x"},
		IdealUseCases: []string{"B2B SaaS"},
	}
}

func TestScoreRules_PerfectLead(t *testing.T) {
	t.Parallel()

	lead := model.Lead{
		Name:     "Ada",
		Email:    "ada@acme.io",
		Role:     "CEO",
		Company:  "Acme",
		Industry: "B2B SaaS",
	}
	got := ScoreRules(lead, aiOutreach())

	assert.Equal(t, 50, got.Score)
	assert.Equal(t,
		"Role: Decision maker (+20) | Industry: Exact ICP match (+20) | Data completeness: All fields present (+10)",
		got.Reason)
}

func TestScoreRules_MissingCompanyAndIndustry(t *testing.T) {
	t.Parallel()

	lead := model.Lead{Name: "Ada", Email: "ada@acme.io", Role: "Intern"}
	got := ScoreRules(lead, aiOutreach())

	assert.Equal(t, 5, got.Score)
	assert.Equal(t,
		"Role: No matching role (+0) | Industry: Not provided (+0) | Data completeness: 3/5 fields present (+5)",
		got.Reason)
}

func TestScoreRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role   string
		want   int
		reason string
	}{
		{"CEO", 20, "Decision maker"},
		{"Co-Founder & CTO", 20, "Decision maker"},
		{"business owner", 20, "Decision maker"},
		{"Engineering Manager", 10, "Influencer"},
		{"Director of Sales", 10, "Influencer"},
		{"SVP Marketing", 10, "Influencer"},
		{"Head of Growth", 10, "Influencer"},
		{"Software Engineer", 0, "No matching role"},
		{"", 0, "Not provided"},
		{"   ", 0, "Not provided"},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			got, reason := scoreRole(tt.role)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, reason, tt.reason)
			assert.True(t, strings.HasPrefix(reason, "Role: "))
		})
	}
}

func TestScoreIndustry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		industry string
		cases    []string
		want     int
		reason   string
	}{
		{"exact", "B2B SaaS", []string{"B2B SaaS"}, 20, "Exact ICP match"},
		{"industry contains use case", "Enterprise B2B SaaS platforms", []string{"b2b saas"}, 20, "Exact ICP match"},
		{"use case contains industry", "fintech", []string{"Fintech lenders"}, 20, "Exact ICP match"},
		{"adjacent via industry", "Software consulting", []string{"Healthcare"}, 10, "Adjacent industry"},
		{"adjacent via use case", "Retail", []string{"Startup founders"}, 10, "Adjacent industry"},
		{"no match", "Agriculture", []string{"Healthcare"}, 0, "No match"},
		{"empty industry", "", []string{"B2B SaaS"}, 0, "Not provided"},
		{"empty use cases", "SaaS", nil, 0, "Not provided"},
		{"blank use cases", "SaaS", []string{"  "}, 0, "Not provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, reason := scoreIndustry(tt.industry, tt.cases)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestScoreCompleteness(t *testing.T) {
	t.Parallel()

	full := model.Lead{Name: "a", Email: "a@b.co", Role: "r", Company: "c", Industry: "i"}
	got, reason := scoreCompleteness(full)
	assert.Equal(t, 10, got)
	assert.Equal(t, "Data completeness: All fields present (+10)", reason)

	got, reason = scoreCompleteness(model.Lead{Email: "a@b.co", Company: " "})
	assert.Equal(t, 5, got)
	assert.Equal(t, "Data completeness: 1/5 fields present (+5)", reason)

	got, reason = scoreCompleteness(model.Lead{})
	assert.Equal(t, 0, got)
	assert.Equal(t, "Data completeness: No fields present (+0)", reason)
}

func TestScoreRules_DeterministicAndBounded(t *testing.T) {
	t.Parallel()

	leads := []model.Lead{
		{},
		{Role: "CEO", Industry: "SaaS"},
		{Name: "a", Email: "a@b.co", Role: "VP", Company: "c", Industry: "tech"},
	}
	for _, l := range leads {
		first := ScoreRules(l, aiOutreach())
		second := ScoreRules(l, aiOutreach())
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first.Score, 0)
		assert.LessOrEqual(t, first.Score, model.MaxSubScore)
		assert.Len(t, strings.Split(first.Reason, ReasonSeparator), 3)
	}
}
