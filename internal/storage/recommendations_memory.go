package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"postventa/internal/domain"
)

// MemoryRecommendationStore is the in-memory RecommendationStore. It
// shares the MemoryStore mutex, which makes the header+details create a
// single critical section.
type MemoryRecommendationStore struct {
	store *MemoryStore
	recs  map[int64]domain.Recommendation

	nextID int64
}

// NewMemoryRecommendationStore creates an in-memory recommendation store.
func NewMemoryRecommendationStore(store *MemoryStore) *MemoryRecommendationStore {
	return &MemoryRecommendationStore{
		store: store,
		recs:  make(map[int64]domain.Recommendation),
	}
}

var _ RecommendationStore = (*MemoryRecommendationStore)(nil)

func (m *MemoryRecommendationStore) CreateRecommendation(_ context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	if len(rec.Details) == 0 {
		return domain.Recommendation{}, fmt.Errorf("%w: recommendation requires at least one detail line", ErrValidation)
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	rec.Details = append([]domain.RecommendationDetail(nil), rec.Details...)
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
	if c, ok := m.store.customers[rec.CustomerID]; ok {
		rec.CustomerName = c.DisplayName()
	}
	m.recs[rec.ID] = rec
	return rec, nil
}

func (m *MemoryRecommendationStore) GetRecommendation(_ context.Context, id int64) (*domain.Recommendation, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	r, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Details = append([]domain.RecommendationDetail(nil), r.Details...)
	sort.Slice(r.Details, func(i, j int) bool { return r.Details[i].Priority < r.Details[j].Priority })
	return &r, nil
}

func (m *MemoryRecommendationStore) ListRecommendations(_ context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, int, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	today := time.Now().UTC()
	search := strings.ToLower(strings.TrimSpace(filters.Search))

	var filtered []domain.Recommendation
	for _, r := range m.recs {
		if filters.State != "" && string(r.State) != filters.State {
			continue
		}
		if filters.Due != "" && r.DueWindow(today) != filters.Due {
			continue
		}
		if search != "" && !m.matchesCustomer(r.CustomerID, search) {
			continue
		}
		filtered = append(filtered, r)
	}

	// Newest first, stable on id for equal timestamps.
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].ID > filtered[j].ID
	})

	total := len(filtered)
	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > total {
		return []domain.Recommendation{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

// matchesCustomer reports whether the recommendation's customer matches
// the lowercased search term. Caller holds the read lock.
func (m *MemoryRecommendationStore) matchesCustomer(customerID int64, search string) bool {
	c, ok := m.store.customers[customerID]
	if !ok {
		return false
	}
	for _, field := range []string{c.FirstName, c.LastName, c.Phone, c.Email} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (m *MemoryRecommendationStore) UpdateRecommendationState(_ context.Context, id int64, state domain.RecommendationState, nextActionAt *time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	r, ok := m.recs[id]
	if !ok {
		return ErrNotFound
	}
	// Transitions only leave pending. Checking under the write lock
	// keeps a concurrent defer from reviving a just-finalized record.
	if r.State.Terminal() {
		return fmt.Errorf("%w: recommendation %d is %s", ErrConflict, id, r.State)
	}
	r.State = state
	r.NextActionAt = nextActionAt
	r.UpdatedAt = time.Now().UTC()
	m.recs[id] = r
	return nil
}

func (m *MemoryRecommendationStore) HasActiveSince(_ context.Context, customerID int64, since time.Time) (bool, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	for _, r := range m.recs {
		if r.CustomerID != customerID {
			continue
		}
		if r.State != domain.RecommendationStatePending && r.State != domain.RecommendationStateSent {
			continue
		}
		if !r.GeneratedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}
