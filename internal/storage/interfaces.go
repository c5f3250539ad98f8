package storage

import (
	"context"
	"time"

	"postventa/internal/domain"
)

// Store is the back-office storage contract the outreach engine consumes.
// Customer, product and sales data are read-only to the engine; the write
// methods exist for the surrounding CRUD plumbing and for seeding.
type Store interface {
	// GetCustomer returns a customer by id. ok is false when absent.
	GetCustomer(ctx context.Context, id int64) (domain.Customer, bool, error)

	// CreateCustomer persists a new customer and assigns its id.
	CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error)

	// ListActiveProducts returns catalog items with active=true and stock>0.
	ListActiveProducts(ctx context.Context) ([]domain.Product, error)

	// CreateProduct persists a new product and assigns its id.
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)

	// RecordSale persists a sale with its line items.
	RecordSale(ctx context.Context, s domain.Sale) (domain.Sale, error)

	// PurchaseHistory returns the customer's sales, most recent first,
	// with line items populated.
	PurchaseHistory(ctx context.Context, customerID int64) ([]domain.Sale, error)

	// GlobalPopularity aggregates units sold per product across the most
	// recent sales (all customers), ordered by units descending.
	GlobalPopularity(ctx context.Context, recentSales int) ([]domain.ProductSales, error)

	// Close releases the underlying connection, if any.
	Close() error
}

// CandidateStore owns the derived outreach candidate signal (the
// materialized-view analog). Refresh rebuilds it; List reads it.
type CandidateStore interface {
	// RefreshCandidates recomputes the candidate set from current sales
	// data. Callers that tolerate stale data treat failure as non-fatal.
	RefreshCandidates(ctx context.Context) error

	// ListCandidates returns current candidates, optionally scoped to one
	// customer (customerID > 0).
	ListCandidates(ctx context.Context, customerID int64) ([]domain.CandidateEntry, error)
}

// RecommendationStore owns recommendation persistence. CreateRecommendation
// writes the header and all detail lines as one atomic unit; state updates
// are single-row.
type RecommendationStore interface {
	// CreateRecommendation persists rec (header + details) atomically and
	// returns it with its assigned id. No partial rows survive an error.
	CreateRecommendation(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error)

	// GetRecommendation returns a recommendation with details ordered by
	// priority, or ErrNotFound.
	GetRecommendation(ctx context.Context, id int64) (*domain.Recommendation, error)

	// ListRecommendations returns paginated recommendations matching the
	// filters, newest first, plus the total match count.
	ListRecommendations(ctx context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, int, error)

	// UpdateRecommendationState sets state and nextActionAt on one row.
	// Returns ErrNotFound for unknown ids. Lifecycle rules are enforced by
	// the service layer, not here.
	UpdateRecommendationState(ctx context.Context, id int64, state domain.RecommendationState, nextActionAt *time.Time) error

	// HasActiveSince reports whether the customer has a pending or sent
	// recommendation generated on or after since. Used by the cooldown
	// guard.
	HasActiveSince(ctx context.Context, customerID int64, since time.Time) (bool, error)
}
