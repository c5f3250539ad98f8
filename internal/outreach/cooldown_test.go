package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"postventa/internal/domain"
)

// fakeRecStore stubs the recommendation store for guard tests. Only
// HasActiveSince matters here.
type fakeRecStore struct {
	active map[int64]bool
	err    error
	calls  int
}

func (f *fakeRecStore) CreateRecommendation(context.Context, domain.Recommendation) (domain.Recommendation, error) {
	return domain.Recommendation{}, nil
}

func (f *fakeRecStore) GetRecommendation(context.Context, int64) (*domain.Recommendation, error) {
	return nil, nil
}

func (f *fakeRecStore) ListRecommendations(context.Context, domain.RecommendationFilters) ([]domain.Recommendation, int, error) {
	return nil, 0, nil
}

func (f *fakeRecStore) UpdateRecommendationState(context.Context, int64, domain.RecommendationState, *time.Time) error {
	return nil
}

func (f *fakeRecStore) HasActiveSince(_ context.Context, customerID int64, _ time.Time) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.active[customerID], nil
}

func candidatesOf(ids ...int64) []domain.CandidateEntry {
	out := make([]domain.CandidateEntry, len(ids))
	for i, id := range ids {
		out[i] = domain.CandidateEntry{CustomerID: id, Reason: domain.ReasonCycle}
	}
	return out
}

func TestCooldownGuardAllowList(t *testing.T) {
	guard := NewCooldownGuard(&fakeRecStore{}, 0, 0, []domain.Reason{domain.ReasonCycle})
	in := []domain.CandidateEntry{
		{CustomerID: 1, Reason: domain.ReasonCycle},
		{CustomerID: 2, Reason: domain.ReasonDormant},
		{CustomerID: 3, Reason: domain.ReasonNoPurchase},
		{CustomerID: 4, Reason: domain.ReasonCycle},
	}

	kept, skipped, err := guard.Filter(context.Background(), in, rankNow)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", skipped)
	}
	if len(kept) != 2 || kept[0].CustomerID != 1 || kept[1].CustomerID != 4 {
		t.Fatalf("expected customers 1 and 4, got %+v", kept)
	}
}

func TestCooldownGuardSkipsActiveCustomers(t *testing.T) {
	store := &fakeRecStore{active: map[int64]bool{2: true, 3: true}}
	guard := NewCooldownGuard(store, 14, 0, nil)

	kept, skipped, err := guard.Filter(context.Background(), candidatesOf(1, 2, 3, 4), rankNow)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", skipped)
	}
	if len(kept) != 2 || kept[0].CustomerID != 1 || kept[1].CustomerID != 4 {
		t.Fatalf("expected customers 1 and 4, got %+v", kept)
	}
}

func TestCooldownGuardDailyCapPreservesOrder(t *testing.T) {
	guard := NewCooldownGuard(&fakeRecStore{}, 14, 2, nil)

	kept, skipped, err := guard.Filter(context.Background(), candidatesOf(5, 4, 3, 2, 1), rankNow)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", skipped)
	}
	if len(kept) != 2 || kept[0].CustomerID != 5 || kept[1].CustomerID != 4 {
		t.Fatalf("expected first two candidates in order, got %+v", kept)
	}
}

func TestCooldownGuardZeroCooldownSkipsLookups(t *testing.T) {
	store := &fakeRecStore{active: map[int64]bool{1: true}}
	guard := NewCooldownGuard(store, 0, 0, nil)

	kept, _, err := guard.Filter(context.Background(), candidatesOf(1, 2), rankNow)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if store.calls != 0 {
		t.Errorf("expected no store lookups, got %d", store.calls)
	}
	if len(kept) != 2 {
		t.Fatalf("expected both candidates kept, got %+v", kept)
	}
}

func TestCooldownGuardPropagatesStoreError(t *testing.T) {
	wantErr := errors.New("db down")
	guard := NewCooldownGuard(&fakeRecStore{err: wantErr}, 14, 0, nil)

	_, _, err := guard.Filter(context.Background(), candidatesOf(1), rankNow)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
