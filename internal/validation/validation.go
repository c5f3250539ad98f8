// Package validation holds input validation helpers shared by the API
// layer and the outreach service.
package validation

import (
	"fmt"

	"postventa/internal/domain"
)

// Error is a field-level validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewError creates a field validation error.
func NewError(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

// MinDeferDays is the smallest accepted deferral.
const MinDeferDays = 1

// ClampDeferDays normalizes a deferral request. Anything below the
// minimum becomes the minimum.
func ClampDeferDays(days int) int {
	if days < MinDeferDays {
		return MinDeferDays
	}
	return days
}

// CustomerID validates a customer identifier.
func CustomerID(id int64) error {
	if id <= 0 {
		return NewError("customer_id", "must be a positive integer")
	}
	return nil
}

// TopN validates a requested option count. Zero is accepted and means
// the server default.
func TopN(n int) error {
	if n < 0 || n > 5 {
		return NewError("top_n", "must be between 1 and 5")
	}
	return nil
}

// State validates a recommendation state filter. Empty means no filter.
func State(s string) error {
	if s == "" {
		return nil
	}
	if !domain.RecommendationState(s).Valid() {
		return NewError("state", "must be pending, sent or discarded")
	}
	return nil
}

// DueWindow validates a due-window filter. Empty means no filter.
func DueWindow(s string) error {
	if s == "" {
		return nil
	}
	if !domain.ValidDueWindow(s) {
		return NewError("due", "must be overdue, today or upcoming")
	}
	return nil
}
