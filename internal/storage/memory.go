package storage

import (
	"context"
	"sort"
	"sync"

	"postventa/internal/domain"
)

// MemoryStore is the default in-memory Store implementation. It backs
// development, tests and builds without a database tag. The single mutex
// is shared with the candidate and recommendation sub-stores so that the
// atomic create has one critical section.
type MemoryStore struct {
	mu sync.RWMutex

	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	sales     []domain.Sale

	nextCustomerID int64
	nextProductID  int64
	nextSaleID     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]domain.Product),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) GetCustomer(_ context.Context, id int64) (domain.Customer, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	return c, ok, nil
}

func (m *MemoryStore) CreateCustomer(_ context.Context, c domain.Customer) (domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCustomerID++
	c.ID = m.nextCustomerID
	m.customers[c.ID] = c
	return c, nil
}

func (m *MemoryStore) ListActiveProducts(_ context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Product
	for _, p := range m.products {
		if p.Active && p.Stock > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	p.ID = m.nextProductID
	m.products[p.ID] = p
	return p, nil
}

func (m *MemoryStore) RecordSale(_ context.Context, s domain.Sale) (domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSaleID++
	s.ID = m.nextSaleID
	s.Lines = append([]domain.SaleLine(nil), s.Lines...)
	m.sales = append(m.sales, s)
	return s, nil
}

func (m *MemoryStore) PurchaseHistory(_ context.Context, customerID int64) ([]domain.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Sale
	for _, s := range m.sales {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GlobalPopularity(_ context.Context, recentSales int) ([]domain.ProductSales, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sales := append([]domain.Sale(nil), m.sales...)
	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].Date.Equal(sales[j].Date) {
			return sales[i].Date.After(sales[j].Date)
		}
		return sales[i].ID > sales[j].ID
	})
	if recentSales > 0 && len(sales) > recentSales {
		sales = sales[:recentSales]
	}

	units := make(map[int64]int)
	for _, s := range sales {
		for _, l := range s.Lines {
			units[l.ProductID] += l.Quantity
		}
	}

	out := make([]domain.ProductSales, 0, len(units))
	for id, u := range units {
		out = append(out, domain.ProductSales{ProductID: id, Units: u})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// snapshot returns copies of the raw data needed for candidate
// derivation. Callers must not hold the lock.
func (m *MemoryStore) snapshot() ([]domain.Customer, map[int64]domain.Product, []domain.Sale) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })

	products := make(map[int64]domain.Product, len(m.products))
	for id, p := range m.products {
		products[id] = p
	}
	sales := append([]domain.Sale(nil), m.sales...)
	return customers, products, sales
}
