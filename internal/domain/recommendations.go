package domain

import (
	"time"
)

// RecommendationState tracks the lifecycle of a recommendation.
// pending may defer (stay pending) or move to sent/discarded; sent and
// discarded are terminal.
type RecommendationState string

const (
	RecommendationStatePending   RecommendationState = "pending"
	RecommendationStateSent      RecommendationState = "sent"
	RecommendationStateDiscarded RecommendationState = "discarded"
)

// Valid reports whether s is a known state.
func (s RecommendationState) Valid() bool {
	switch s {
	case RecommendationStatePending, RecommendationStateSent, RecommendationStateDiscarded:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s RecommendationState) Terminal() bool {
	return s == RecommendationStateSent || s == RecommendationStateDiscarded
}

// Recommendation is a suggested outreach for one customer: a composed
// message plus ranked product options. Header and detail lines are
// created atomically and details are immutable afterwards.
type Recommendation struct {
	ID            int64                  `json:"id"`
	CustomerID    int64                  `json:"customer_id"`
	CustomerName  string                 `json:"customer_name,omitempty"`
	GeneratedAt   time.Time              `json:"generated_at"`
	State         RecommendationState    `json:"state"`
	NextActionAt  *time.Time             `json:"next_action_at,omitempty"`
	Justification string                 `json:"justification"`
	Details       []RecommendationDetail `json:"details,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// RecommendationDetail is one ranked product option. Priority is the
// 1-based rank, contiguous and unique within a recommendation.
type RecommendationDetail struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Priority    int     `json:"priority"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason,omitempty"`
}

// Due-window buckets derived from NextActionAt for listing filters.
const (
	DueOverdue  = "overdue"
	DueToday    = "today"
	DueUpcoming = "upcoming"
)

// ValidDueWindow reports whether s names a due-window bucket.
func ValidDueWindow(s string) bool {
	return s == DueOverdue || s == DueToday || s == DueUpcoming
}

// DueWindow buckets a recommendation by NextActionAt relative to today.
// Terminal records (nil NextActionAt) have no bucket.
func (r Recommendation) DueWindow(today time.Time) string {
	if r.NextActionAt == nil {
		return ""
	}
	next := DateOnly(*r.NextActionAt)
	today = DateOnly(today)
	switch {
	case next.Before(today):
		return DueOverdue
	case next.Equal(today):
		return DueToday
	default:
		return DueUpcoming
	}
}

// DateOnly truncates t to midnight UTC. Recommendation dates are
// calendar dates, not instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RecommendationFilters for listing recommendations.
type RecommendationFilters struct {
	State    string
	Due      string // overdue, today, upcoming
	Search   string // free text over customer name/phone/email
	Page     int
	PageSize int
}

// GenerateRequest is the input for the manual generate endpoint.
type GenerateRequest struct {
	CustomerID int64 `json:"customer_id"`
	TopN       int   `json:"top_n,omitempty"`
	Notify     bool  `json:"notify,omitempty"`
}

// DeferRequest is the input for deferring a pending recommendation.
type DeferRequest struct {
	Days int `json:"days"`
}

// RecommendationsListResponse is the paginated list response.
type RecommendationsListResponse struct {
	Items    []Recommendation `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// CandidatesResponse wraps the raw candidate inspection endpoint.
type CandidatesResponse struct {
	Items []CandidateEntry `json:"items"`
	Total int              `json:"total"`
}
