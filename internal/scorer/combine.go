package scorer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sells-group/leadscore/internal/model"
)

// Weights of the two sub-scores in the final score.
const (
	RuleWeight        = 0.5
	QualitativeWeight = 0.5
)

// Combine merges the two sub-scores. The weighted sum is rounded half away
// from zero, so rule 5 + qualitative 10 gives 8.
func Combine(rule, ai model.ScoreOutcome) model.ScoreOutcome {
	score := int(math.Round(float64(rule.Score)*RuleWeight + float64(ai.Score)*QualitativeWeight))
	score = max(0, min(score, model.MaxScore))
	return model.ScoreOutcome{
		Score:  score,
		Reason: fmt.Sprintf("Rule-based: %s | AI: %s", rule.Reason, ai.Reason),
	}
}

// ScoreWriter persists the processed state of one lead atomically.
type ScoreWriter interface {
	ApplyScore(ctx context.Context, leadID string, update model.ScoreUpdate) error
}

// Engine runs the rule scorer, the qualitative scorer and the combiner for
// one lead and writes the result.
type Engine struct {
	qualitative *QualitativeScorer
	now         func() time.Time
}

// NewEngine creates an Engine backed by oracle.
func NewEngine(oracle Oracle) *Engine {
	return &Engine{qualitative: NewQualitativeScorer(oracle), now: time.Now}
}

// ScoreLead scores lead against offer and applies the transition through w.
// The returned outcome is the persisted final score.
func (e *Engine) ScoreLead(ctx context.Context, w ScoreWriter, lead model.Lead, offer model.Offer) (model.ScoreOutcome, error) {
	rule := ScoreRules(lead, offer)
	ai := e.qualitative.Score(ctx, lead, offer)
	final := Combine(rule, ai)

	err := w.ApplyScore(ctx, lead.ID, model.ScoreUpdate{
		Score:       final.Score,
		ScoreReason: final.Reason,
		ProcessedAt: e.now().UTC(),
		OfferID:     offer.ID,
	})
	if err != nil {
		return model.ScoreOutcome{}, err
	}
	return final, nil
}
