package scorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
)

// Oracle is an external classifier: a prompt in, free text out.
type Oracle interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

// Classify calls f.
func (f OracleFunc) Classify(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Qualitative sub-scores by verdict bucket.
const (
	QualitativeHigh   = 50
	QualitativeMedium = 30
	QualitativeLow    = 10
)

const (
	// FallbackReason is the rationale recorded when the oracle fails.
	FallbackReason = "Qualitative assessment unavailable, default score assigned"

	qualitativeLabel = "Qualitative assessment: "
)

// QualitativeScorer asks the oracle for a buying-intent verdict and maps it
// to a sub-score. It never returns an error: any oracle failure yields the
// fallback outcome.
type QualitativeScorer struct {
	oracle Oracle
}

// NewQualitativeScorer creates a scorer backed by oracle.
func NewQualitativeScorer(oracle Oracle) *QualitativeScorer {
	return &QualitativeScorer{oracle: oracle}
}

// Score invokes the oracle exactly once for the lead.
func (s *QualitativeScorer) Score(ctx context.Context, lead model.Lead, offer model.Offer) model.ScoreOutcome {
	text, err := s.oracle.Classify(ctx, BuildPrompt(lead, offer))
	if err == nil && strings.TrimSpace(text) == "" {
		err = eris.Wrap(model.ErrExternalService, "scorer: empty oracle response")
	}
	if err != nil {
		zap.L().Warn("scorer: qualitative assessment failed, using fallback",
			zap.String("lead_id", lead.ID),
			zap.String("email", lead.Email),
			zap.Error(err),
		)
		return model.ScoreOutcome{Score: QualitativeLow, Reason: FallbackReason}
	}

	text = strings.TrimSpace(text)
	return model.ScoreOutcome{
		Score:  MapVerdict(text),
		Reason: qualitativeLabel + text,
	}
}

// MapVerdict converts free text to a sub-score by case-insensitive substring
// search: "high" wins over "medium", anything else is low.
func MapVerdict(text string) int {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "high"):
		return QualitativeHigh
	case strings.Contains(t, "medium"):
		return QualitativeMedium
	default:
		return QualitativeLow
	}
}

// BuildPrompt renders the fixed classification prompt for a lead and offer.
func BuildPrompt(lead model.Lead, offer model.Offer) string {
	var b strings.Builder
	b.WriteString("You are a B2B sales analyst. Assess the buying intent of the prospect below for the product offer.\n\n")

	b.WriteString("Product/Offer:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNotProvided(offer.Name))
	fmt.Fprintf(&b, "- Value propositions: %s\n", orNotProvided(strings.Join(offer.ValueProps, "; ")))
	fmt.Fprintf(&b, "- Ideal use cases: %s\n\n", orNotProvided(strings.Join(offer.IdealUseCases, "; ")))

	b.WriteString("Prospect:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNotProvided(lead.Name))
	fmt.Fprintf(&b, "- Role: %s\n", orNotProvided(lead.Role))
	fmt.Fprintf(&b, "- Company: %s\n", orNotProvided(lead.Company))
	fmt.Fprintf(&b, "- Industry: %s\n", orNotProvided(lead.Industry))
	fmt.Fprintf(&b, "- LinkedIn: %s\n\n", orNotProvided(lead.LinkedIn))

	b.WriteString("Classify the buying intent as High, Medium, or Low. ")
	b.WriteString("Start your answer with the intent level, then give a 1-2 sentence justification.")
	return b.String()
}

func orNotProvided(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "Not provided"
	}
	return s
}
