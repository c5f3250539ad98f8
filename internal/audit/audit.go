// Package audit provides the best-effort activity log for back-office
// actions. Recommendation state transitions record who did what and
// when; a failed audit write never blocks the operation it describes.
package audit

import (
	"context"
	"time"
)

// Event is a single recorded activity.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"` // username or "system"
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Detail       string    `json:"detail,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
}

// ListOptions filters and paginates event listings.
type ListOptions struct {
	Limit        int
	Offset       int
	Actor        string
	Action       string
	ResourceType string
	Since        *time.Time
}

// ActivityLogger records and lists activity events.
type ActivityLogger interface {
	// Log records an event. Implementations assign ID and Timestamp when
	// unset. Errors are for the caller to log, never to propagate.
	Log(ctx context.Context, event *Event) error

	// List retrieves events, newest first, with the filtered total.
	List(ctx context.Context, opts ListOptions) ([]*Event, int, error)
}

// Actions recorded for recommendations.
const (
	ActionGenerate = "generate"
	ActionDefer    = "defer"
	ActionDiscard  = "discard"
	ActionMarkSent = "mark_sent"
	ActionRefresh  = "refresh"
)

// Resource types.
const (
	ResourceRecommendation = "recommendation"
	ResourceCandidates     = "candidates"
)

// ActorSystem identifies actions taken by the scheduler rather than a
// person.
const ActorSystem = "system"

// nullable maps empty strings to SQL NULL for the database loggers.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
