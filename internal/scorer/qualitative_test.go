package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
)

// MockOracle implements Oracle for testing.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Classify(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func sampleLead() model.Lead {
	return model.Lead{
		ID:       "lead-1",
		Name:     "Ada Lovelace",
		Email:    "ada@acme.io",
		Role:     "CEO",
		Company:  "Acme",
		Industry: "B2B SaaS",
		LinkedIn: "https://linkedin.com/in/ada",
	}
}

func TestQualitativeScorer_Buckets(t *testing.T) {
	tests := []struct {
		response string
		want     int
	}{
		{"High. Decision maker at a SaaS company.", 50},
		{"INTENT: high", 50},
		{"Medium - relevant role but weak industry fit.", 30},
		{"Low. No signal.", 10},
		{"Unclear.", 10},
		{"Medium or high, hard to say", 50},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			oracle := new(MockOracle)
			oracle.On("Classify", mock.Anything, mock.Anything).Return(tt.response, nil).Once()

			got := NewQualitativeScorer(oracle).Score(context.Background(), sampleLead(), aiOutreach())
			assert.Equal(t, tt.want, got.Score)
			assert.Equal(t, "Qualitative assessment: "+tt.response, got.Reason)
			oracle.AssertNumberOfCalls(t, "Classify", 1)
		})
	}
}

func TestQualitativeScorer_FallbackOnError(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("Classify", mock.Anything, mock.Anything).Return("", errors.New("timeout")).Once()

	got := NewQualitativeScorer(oracle).Score(context.Background(), sampleLead(), aiOutreach())
	assert.Equal(t, 10, got.Score)
	assert.Equal(t, FallbackReason, got.Reason)
	oracle.AssertExpectations(t)
}

func TestQualitativeScorer_FallbackOnEmpty(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("Classify", mock.Anything, mock.Anything).Return("  \n ", nil).Once()

	got := NewQualitativeScorer(oracle).Score(context.Background(), sampleLead(), aiOutreach())
	assert.Equal(t, model.ScoreOutcome{Score: 10, Reason: FallbackReason}, got)
}

func TestQualitativeScorer_PromptContents(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("Classify", mock.Anything, mock.MatchedBy(func(p string) bool {
		return p == BuildPrompt(sampleLead(), aiOutreach())
	})).Return("High", nil).Once()

	NewQualitativeScorer(oracle).Score(context.Background(), sampleLead(), aiOutreach())
	oracle.AssertExpectations(t)
}

func TestBuildPrompt(t *testing.T) {
	offer := model.Offer{
		Name:          "AI Outreach",
		ValueProps:    []string{"24/7 outreach", "6x more meetings"},
		IdealUseCases: []string{"B2B SaaS mid-market"},
	}
	p := BuildPrompt(sampleLead(), offer)

	for _, want := range []string{
		"- Name: AI Outreach",
		"- Value propositions: 24/7 outreach; 6x more meetings",
		"- Ideal use cases: B2B SaaS mid-market",
		"- Name: Ada Lovelace",
		"- Role: CEO",
		"- Company: Acme",
		"- Industry: B2B SaaS",
		"- LinkedIn: https://linkedin.com/in/ada",
		"High, Medium, or Low",
		"1-2 sentence justification",
	} {
		assert.Contains(t, p, want)
	}

	p = BuildPrompt(model.Lead{Name: "Bo"}, offer)
	assert.Contains(t, p, "- Company: Not provided")
	assert.Contains(t, p, "- LinkedIn: Not provided")
}

func TestMapVerdict(t *testing.T) {
	assert.Equal(t, QualitativeHigh, MapVerdict("HIGH"))
	assert.Equal(t, QualitativeMedium, MapVerdict("medium"))
	assert.Equal(t, QualitativeLow, MapVerdict("low"))
	assert.Equal(t, QualitativeLow, MapVerdict(""))
}

func TestOracleFunc(t *testing.T) {
	var got string
	f := OracleFunc(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "ok", nil
	})
	out, err := f.Classify(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "p", got)
}
