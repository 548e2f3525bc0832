package store

import (
	"context"
	"strings"

	"github.com/sells-group/leadscore/internal/model"
)

// Store defines the persistence interface for the lead scoring pipeline.
type Store interface {
	// Leads
	InsertLeads(ctx context.Context, leads []model.Lead) (model.InsertResult, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, int, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	DeleteLead(ctx context.Context, id string) error

	// Offers
	CreateOffer(ctx context.Context, offer model.Offer) (*model.Offer, error)
	UpdateOffer(ctx context.Context, offer model.Offer) (*model.Offer, error)
	GetOffer(ctx context.Context, id string) (*model.Offer, error)
	ListOffers(ctx context.Context) ([]model.Offer, error)
	DeleteOffer(ctx context.Context, id string) error

	// Reporting
	LeadCounts(ctx context.Context) (model.LeadCounts, error)
	RecentProcessed(ctx context.Context, n int) ([]model.RecentLead, error)

	// Batches
	BeginBatch(ctx context.Context) (UnitOfWork, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// UnitOfWork is one scoring batch's transaction. Leads claimed through it
// are invisible to every other open UnitOfWork until it ends. Each
// ApplyScore is atomic on its own; Commit publishes all of them together and
// Rollback discards all of them.
type UnitOfWork interface {
	ClaimUnprocessedLeads(ctx context.Context, limit int) ([]model.Lead, error)
	ApplyScore(ctx context.Context, leadID string, update model.ScoreUpdate) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// leadColumns is the canonical column order used by both backends.
const leadColumns = `id, name, email, role, industry, company, linkedin, phone,
	score, score_reason, is_processed, processed_at, offer_id, created_at`

// orderClause renders a validated sort for ListLeads. The id tiebreak keeps
// pagination stable.
func orderClause(f model.LeadFilter) string {
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	return " ORDER BY " + string(f.Sort) + " " + dir + ", id " + dir
}

// buildInsertResult maps the set of inserted emails back onto the input
// order. The first occurrence of an inserted email is the inserted row; any
// later occurrence in the same batch is a duplicate.
func buildInsertResult(leads []model.Lead, inserted []string) model.InsertResult {
	fresh := make(map[string]bool, len(inserted))
	for _, e := range inserted {
		fresh[e] = true
	}
	res := model.InsertResult{Outcomes: make([]model.InsertOutcome, len(leads))}
	for i, l := range leads {
		status := model.InsertStatusDuplicate
		if fresh[l.Email] {
			status = model.InsertStatusInserted
			delete(fresh, l.Email)
		}
		res.Outcomes[i] = model.InsertOutcome{Email: l.Email, Status: status}
	}
	return res
}

// leadWhere renders the filter predicates. ph renders the placeholder for
// the nth argument.
func leadWhere(f model.LeadFilter, ph func(n int) string) (string, []any) {
	var conds []string
	var args []any
	if f.Processed != nil {
		args = append(args, *f.Processed)
		conds = append(conds, "is_processed = "+ph(len(args)))
	}
	if f.OfferID != "" {
		args = append(args, f.OfferID)
		conds = append(conds, "offer_id = "+ph(len(args)))
	}
	if f.MinScore != nil {
		args = append(args, *f.MinScore)
		conds = append(conds, "score >= "+ph(len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
