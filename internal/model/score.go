package model

import "time"

const (
	// MaxSubScore caps both the rule and the qualitative sub-score.
	MaxSubScore = 50
	// MaxScore caps the combined final score.
	MaxScore = 100
)

// ScoreOutcome is a sub-score with its rationale. It is produced by a scorer
// and consumed immediately by the combiner; it is never persisted on its own.
type ScoreOutcome struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// BatchState is a state of the batch processor.
type BatchState string

const (
	BatchSelecting  BatchState = "selecting"
	BatchScoring    BatchState = "scoring"
	BatchCommitting BatchState = "committing"
	BatchCommitted  BatchState = "committed"
	BatchAborted    BatchState = "aborted"
)

// BatchRequest asks for up to Limit unprocessed leads to be scored against
// one offer.
type BatchRequest struct {
	OfferID string `json:"offerId"`
	Limit   int    `json:"limit"`
}

// SkippedLead records a lead whose processing failed and was left
// unprocessed.
type SkippedLead struct {
	LeadID string `json:"leadId"`
	Reason string `json:"reason"`
}

// BatchResult is the terminal report of a batch run.
type BatchResult struct {
	State        BatchState    `json:"state"`
	Processed    int           `json:"processed"`
	TotalScore   int           `json:"totalScore"`
	AverageScore float64       `json:"averageScore"`
	LeadIDs      []string      `json:"leadIds"`
	Skipped      []SkippedLead `json:"skipped,omitempty"`
	Cancelled    bool          `json:"cancelled,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
}

// IngestError is a rejected CSV row.
type IngestError struct {
	Row     int               `json:"row"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
}

// IngestResult is the outcome of one CSV upload.
type IngestResult struct {
	RowCount      int           `json:"totalRows"`
	AcceptedCount int           `json:"accepted"`
	InsertedCount int           `json:"inserted"`
	Duplicates    int           `json:"duplicates"`
	Errors        int           `json:"errors"`
	ErrorDetails  []IngestError `json:"errorDetails"`
}
