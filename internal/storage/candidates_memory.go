package storage

import (
	"context"
	"time"

	"postventa/internal/domain"
)

// MemoryCandidateStore keeps the derived candidate signal in memory,
// rebuilt on each refresh from the shared MemoryStore's sales data.
type MemoryCandidateStore struct {
	store *MemoryStore // shared mutex and raw data
	now   func() time.Time

	candidates []domain.CandidateEntry
}

// NewMemoryCandidateStore creates a candidate store over the given
// MemoryStore. The signal is empty until the first refresh.
func NewMemoryCandidateStore(store *MemoryStore) *MemoryCandidateStore {
	return &MemoryCandidateStore{store: store, now: time.Now}
}

var _ CandidateStore = (*MemoryCandidateStore)(nil)

// SetClock overrides the time source. Test hook.
func (m *MemoryCandidateStore) SetClock(now func() time.Time) { m.now = now }

func (m *MemoryCandidateStore) RefreshCandidates(_ context.Context) error {
	customers, products, sales := m.store.snapshot()
	derived := domain.DeriveCandidates(customers, products, sales, m.now())

	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.candidates = derived
	return nil
}

func (m *MemoryCandidateStore) ListCandidates(_ context.Context, customerID int64) ([]domain.CandidateEntry, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	out := make([]domain.CandidateEntry, 0, len(m.candidates))
	for _, c := range m.candidates {
		if customerID > 0 && c.CustomerID != customerID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
