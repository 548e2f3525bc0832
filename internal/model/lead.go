package model

import "time"

// Lead is a prospect record subject to scoring.
type Lead struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Industry    string     `json:"industry"`
	Company     string     `json:"company"`
	LinkedIn    string     `json:"linkedin"`
	Phone       string     `json:"phone"`
	Score       int        `json:"score"`
	ScoreReason string     `json:"score_reason"`
	IsProcessed bool       `json:"is_processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	OfferID     string     `json:"offer_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ScoreUpdate is the single state transition applied to a Lead when it is
// scored. It is written atomically or not at all.
type ScoreUpdate struct {
	Score       int       `json:"score"`
	ScoreReason string    `json:"score_reason"`
	ProcessedAt time.Time `json:"processed_at"`
	OfferID     string    `json:"offer_id"`
}

// LeadSort names a sortable Lead column.
type LeadSort string

const (
	LeadSortCreatedAt   LeadSort = "created_at"
	LeadSortScore       LeadSort = "score"
	LeadSortProcessedAt LeadSort = "processed_at"
)

// Valid reports whether s is a known sort column.
func (s LeadSort) Valid() bool {
	switch s {
	case LeadSortCreatedAt, LeadSortScore, LeadSortProcessedAt:
		return true
	}
	return false
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Processed *bool    `json:"processed,omitempty"`
	OfferID   string   `json:"offer_id,omitempty"`
	MinScore  *int     `json:"min_score,omitempty"`
	Sort      LeadSort `json:"sort,omitempty"`
	Desc      bool     `json:"desc,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

const (
	DefaultLeadListLimit = 50
	MaxLeadListLimit     = 500
)

// Normalize fills defaults and clamps the page size.
func (f LeadFilter) Normalize() LeadFilter {
	if !f.Sort.Valid() {
		f.Sort = LeadSortCreatedAt
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLeadListLimit
	}
	if f.Limit > MaxLeadListLimit {
		f.Limit = MaxLeadListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// InsertStatus is the per-record outcome of a bulk lead insert.
type InsertStatus string

const (
	InsertStatusInserted  InsertStatus = "inserted"
	InsertStatusDuplicate InsertStatus = "duplicate"
)

// InsertOutcome records what happened to one lead in a bulk insert.
type InsertOutcome struct {
	Email  string       `json:"email"`
	Status InsertStatus `json:"status"`
}

// InsertResult is the outcome set of a best-effort bulk insert.
type InsertResult struct {
	Outcomes []InsertOutcome `json:"outcomes"`
}

// Inserted counts the records actually committed.
func (r InsertResult) Inserted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == InsertStatusInserted {
			n++
		}
	}
	return n
}

// Duplicates counts the records rejected by the unique email constraint.
func (r InsertResult) Duplicates() int {
	return len(r.Outcomes) - r.Inserted()
}
