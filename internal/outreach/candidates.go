package outreach

import (
	"context"
	"fmt"

	"postventa/internal/domain"
	"postventa/internal/storage"
)

// CandidateSource wraps the candidate store and normalizes its output
// to one reason per customer. SQL backends may keep one row per
// matching reason; the lowest-weight reason wins.
type CandidateSource struct {
	store storage.CandidateStore
}

// NewCandidateSource creates a candidate source over the given store.
func NewCandidateSource(store storage.CandidateStore) *CandidateSource {
	return &CandidateSource{store: store}
}

// Refresh rebuilds the candidate signal from current sales data.
func (s *CandidateSource) Refresh(ctx context.Context) error {
	if err := s.store.RefreshCandidates(ctx); err != nil {
		return fmt.Errorf("refresh candidates: %w", err)
	}
	return nil
}

// List returns candidates, one entry per customer, in the store's
// order of first appearance. customerID 0 means all customers.
func (s *CandidateSource) List(ctx context.Context, customerID int64) ([]domain.CandidateEntry, error) {
	raw, err := s.store.ListCandidates(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	best := make(map[int64]int, len(raw))
	out := make([]domain.CandidateEntry, 0, len(raw))
	for _, entry := range raw {
		if !entry.Reason.Valid() {
			continue
		}
		idx, seen := best[entry.CustomerID]
		if !seen {
			best[entry.CustomerID] = len(out)
			out = append(out, entry)
			continue
		}
		if entry.Reason.Weight() < out[idx].Reason.Weight() {
			out[idx].Reason = entry.Reason
		}
	}
	return out, nil
}
