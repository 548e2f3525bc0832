package model

import "time"

// Score bucket bounds.
const (
	HighScoreMin   = 70
	MediumScoreMin = 40
)

// LeadCounts is the raw aggregate the store computes over the lead table.
type LeadCounts struct {
	Total     int
	Processed int
	High      int
	Medium    int
	Low       int
	// ScoreSum is the sum of scores over processed leads.
	ScoreSum int64
}

// RecentLead is the reduced projection of a recently processed lead.
type RecentLead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Company     string    `json:"company"`
	Score       int       `json:"score"`
	OfferID     string    `json:"offerId"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Bucket is a count and its share of processed leads.
type Bucket struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary is the distributional report over scored leads.
type Summary struct {
	TotalLeads          int          `json:"totalLeads"`
	ProcessedLeads      int          `json:"processedLeads"`
	ProcessedPercentage float64      `json:"processedPercentage"`
	High                Bucket       `json:"high"`
	Medium              Bucket       `json:"medium"`
	Low                 Bucket       `json:"low"`
	AverageScore        float64      `json:"averageScore"`
	Recent              []RecentLead `json:"recent"`
}
