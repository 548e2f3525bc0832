package pipeline

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscore/internal/model"
)

// RecentLimit is the number of recently processed leads in a Summary.
const RecentLimit = 5

// SummaryStore is the read side the aggregator needs.
type SummaryStore interface {
	LeadCounts(ctx context.Context) (model.LeadCounts, error)
	RecentProcessed(ctx context.Context, n int) ([]model.RecentLead, error)
}

// Aggregator computes distributional statistics over scored leads.
type Aggregator struct {
	store SummaryStore
}

// NewAggregator creates an Aggregator.
func NewAggregator(st SummaryStore) *Aggregator {
	return &Aggregator{store: st}
}

// Summary reads the committed lead state and builds the report.
func (a *Aggregator) Summary(ctx context.Context) (*model.Summary, error) {
	var (
		counts model.LeadCounts
		recent []model.RecentLead
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = a.store.LeadCounts(gctx)
		return eris.Wrap(err, "summary: lead counts")
	})
	g.Go(func() error {
		var err error
		recent, err = a.store.RecentProcessed(gctx, RecentLimit)
		return eris.Wrap(err, "summary: recent leads")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := BuildSummary(counts, recent)
	return &s, nil
}

// BuildSummary is the pure part of the report. Bucket percentages are
// shares of processed leads, the processed percentage is a share of all
// leads, and both are rounded to whole numbers. The average is over
// processed leads, rounded to 2 decimals, and 0 when none are processed.
func BuildSummary(c model.LeadCounts, recent []model.RecentLead) model.Summary {
	if recent == nil {
		recent = []model.RecentLead{}
	}
	s := model.Summary{
		TotalLeads:          c.Total,
		ProcessedLeads:      c.Processed,
		ProcessedPercentage: percent(c.Processed, c.Total),
		High:                model.Bucket{Count: c.High, Percentage: percent(c.High, c.Processed)},
		Medium:              model.Bucket{Count: c.Medium, Percentage: percent(c.Medium, c.Processed)},
		Low:                 model.Bucket{Count: c.Low, Percentage: percent(c.Low, c.Processed)},
		Recent:              recent,
	}
	if c.Processed > 0 {
		s.AverageScore = round2(float64(c.ScoreSum) / float64(c.Processed))
	}
	return s
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part) * 100 / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
