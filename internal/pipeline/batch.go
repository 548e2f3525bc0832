package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/config"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/scorer"
	"github.com/sells-group/leadscore/internal/store"
)

// BatchStore is the part of the store the batch processor needs.
type BatchStore interface {
	GetOffer(ctx context.Context, id string) (*model.Offer, error)
	BeginBatch(ctx context.Context) (store.UnitOfWork, error)
}

// LeadScorer scores one lead and writes the result through w.
// *scorer.Engine implements it.
type LeadScorer interface {
	ScoreLead(ctx context.Context, w scorer.ScoreWriter, lead model.Lead, offer model.Offer) (model.ScoreOutcome, error)
}

// Processor runs scoring batches: select unprocessed leads under lock, score
// each in selection order, and commit them as one unit of work.
type Processor struct {
	store  BatchStore
	scorer LeadScorer
	limits config.BatchConfig
	now    func() time.Time
}

// NewProcessor creates a Processor. Zero limits fall back to 10 / 100.
func NewProcessor(st BatchStore, sc LeadScorer, limits config.BatchConfig) *Processor {
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = 10
	}
	if limits.MaxLimit <= 0 {
		limits.MaxLimit = 100
	}
	return &Processor{store: st, scorer: sc, limits: limits, now: time.Now}
}

// Run executes one batch. The returned result is never nil; on failure its
// State is BatchAborted and nothing the batch wrote is visible.
//
// Cancelling ctx stops new leads from starting. The lead in flight finishes,
// and whatever completed is committed with Cancelled set.
func (p *Processor) Run(ctx context.Context, req model.BatchRequest) (*model.BatchResult, error) {
	res := &model.BatchResult{State: model.BatchSelecting, LeadIDs: []string{}, StartedAt: p.now().UTC()}
	log := zap.L().With(zap.String("offer_id", req.OfferID), zap.Int("limit", req.Limit))

	abort := func(err error) (*model.BatchResult, error) {
		res.State = model.BatchAborted
		res.Processed, res.TotalScore, res.AverageScore = 0, 0, 0
		res.LeadIDs = []string{}
		res.FinishedAt = p.now().UTC()
		log.Error("batch: aborted", zap.Error(err))
		return res, err
	}

	limit, err := p.resolveLimit(req)
	if err != nil {
		return abort(err)
	}

	// Storage and oracle calls for a lead already started must outlive the
	// caller; only the loop below watches ctx.
	workCtx := context.WithoutCancel(ctx)

	log.Info("batch: selecting")
	offer, err := p.store.GetOffer(workCtx, req.OfferID)
	if err != nil {
		return abort(eris.Wrap(err, "batch: get offer"))
	}

	uow, err := p.store.BeginBatch(workCtx)
	if err != nil {
		return abort(eris.Wrapf(model.ErrStorageTransaction, "batch: begin: %v", err))
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := uow.Rollback(workCtx); rbErr != nil {
			log.Error("batch: rollback failed", zap.Error(rbErr))
		}
	}()

	leads, err := uow.ClaimUnprocessedLeads(workCtx, limit)
	if err != nil {
		return abort(eris.Wrapf(model.ErrStorageTransaction, "batch: claim leads: %v", err))
	}
	log.Info("batch: leads claimed", zap.Int("count", len(leads)))

	res.State = model.BatchScoring
	for _, lead := range leads {
		if ctx.Err() != nil {
			res.Cancelled = true
			log.Warn("batch: cancelled, not starting remaining leads",
				zap.Int("remaining", len(leads)-res.Processed-len(res.Skipped)))
			break
		}

		out, err := p.scoreOne(workCtx, uow, lead, *offer)
		if err != nil {
			log.Error("batch: lead skipped",
				zap.String("lead_id", lead.ID),
				zap.String("email", lead.Email),
				zap.Error(err),
			)
			res.Skipped = append(res.Skipped, model.SkippedLead{LeadID: lead.ID, Reason: err.Error()})
			continue
		}
		res.Processed++
		res.TotalScore += out.Score
		res.LeadIDs = append(res.LeadIDs, lead.ID)
	}

	res.State = model.BatchCommitting
	log.Info("batch: committing", zap.Int("processed", res.Processed), zap.Int("skipped", len(res.Skipped)))
	if err := uow.Commit(workCtx); err != nil {
		return abort(err)
	}
	committed = true

	res.State = model.BatchCommitted
	if res.Processed > 0 {
		res.AverageScore = round2(float64(res.TotalScore) / float64(res.Processed))
	}
	res.FinishedAt = p.now().UTC()
	log.Info("batch: committed",
		zap.Int("processed", res.Processed),
		zap.Int("total_score", res.TotalScore),
		zap.Float64("average_score", res.AverageScore),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// scoreOne isolates one lead so a panic in any scorer skips only that lead.
func (p *Processor) scoreOne(ctx context.Context, uow store.UnitOfWork, lead model.Lead, offer model.Offer) (out model.ScoreOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic while scoring: %v", r)
		}
	}()
	return p.scorer.ScoreLead(ctx, uow, lead, offer)
}

func (p *Processor) resolveLimit(req model.BatchRequest) (int, error) {
	if req.OfferID == "" {
		return 0, eris.Wrap(model.ErrValidation, "batch: offerId is required")
	}
	switch {
	case req.Limit == 0:
		return p.limits.DefaultLimit, nil
	case req.Limit < 0 || req.Limit > p.limits.MaxLimit:
		return 0, eris.Wrapf(model.ErrValidation, "batch: limit must be between 1 and %d", p.limits.MaxLimit)
	}
	return req.Limit, nil
}
