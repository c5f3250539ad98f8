package outreach

import (
	"context"
	"errors"
	"testing"

	"postventa/internal/domain"
)

// fakeCandidateStore returns canned candidate rows, possibly several per
// customer the way the SQL backends do.
type fakeCandidateStore struct {
	entries    []domain.CandidateEntry
	refreshErr error
	listErr    error
}

func (f *fakeCandidateStore) RefreshCandidates(context.Context) error { return f.refreshErr }

func (f *fakeCandidateStore) ListCandidates(_ context.Context, customerID int64) ([]domain.CandidateEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if customerID <= 0 {
		return f.entries, nil
	}
	var out []domain.CandidateEntry
	for _, e := range f.entries {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestCandidateSourceListPicksLowestWeightReason(t *testing.T) {
	src := NewCandidateSource(&fakeCandidateStore{entries: []domain.CandidateEntry{
		{CustomerID: 1, Reason: domain.ReasonDormant},
		{CustomerID: 2, Reason: domain.ReasonNoPurchase},
		{CustomerID: 1, Reason: domain.ReasonCycle},
	}})

	out, err := src.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	// Customer 1 keeps its first-appearance slot but upgrades to cycle.
	if out[0].CustomerID != 1 || out[0].Reason != domain.ReasonCycle {
		t.Errorf("expected customer 1 with reason cycle first, got %+v", out[0])
	}
	if out[1].CustomerID != 2 || out[1].Reason != domain.ReasonNoPurchase {
		t.Errorf("expected customer 2 with reason no_purchase, got %+v", out[1])
	}
}

func TestCandidateSourceListDropsUnknownReasons(t *testing.T) {
	src := NewCandidateSource(&fakeCandidateStore{entries: []domain.CandidateEntry{
		{CustomerID: 1, Reason: domain.Reason("bogus")},
		{CustomerID: 2, Reason: domain.ReasonDormant},
	}})

	out, err := src.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].CustomerID != 2 {
		t.Fatalf("expected only customer 2, got %+v", out)
	}
}

func TestCandidateSourceListFiltersByCustomer(t *testing.T) {
	src := NewCandidateSource(&fakeCandidateStore{entries: []domain.CandidateEntry{
		{CustomerID: 1, Reason: domain.ReasonCycle},
		{CustomerID: 2, Reason: domain.ReasonDormant},
	}})

	out, err := src.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].CustomerID != 2 {
		t.Fatalf("expected only customer 2, got %+v", out)
	}
}

func TestCandidateSourceRefreshWrapsError(t *testing.T) {
	wantErr := errors.New("db down")
	src := NewCandidateSource(&fakeCandidateStore{refreshErr: wantErr})

	if err := src.Refresh(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
