//go:build sqlite

package sqlite

import (
	"context"
	"fmt"
	"time"

	"postventa/internal/domain"
)

// RefreshCandidates recomputes the rec_candidates table from current
// customer and sales data, replacing its contents in one transaction.
func (s *SQLiteStore) RefreshCandidates(ctx context.Context) error {
	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return err
	}
	products, err := s.loadProducts(ctx)
	if err != nil {
		return err
	}
	sales, err := s.loadSales(ctx)
	if err != nil {
		return err
	}

	entries := domain.DeriveCandidates(customers, products, sales, time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin candidates tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rec_candidates`); err != nil {
		return fmt.Errorf("clear candidates: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rec_candidates (customer_id, reason) VALUES (?, ?)`,
			e.CustomerID, string(e.Reason)); err != nil {
			return fmt.Errorf("insert candidate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit candidates: %w", err)
	}
	return nil
}

// ListCandidates reads the candidate table, optionally scoped to one
// customer.
func (s *SQLiteStore) ListCandidates(ctx context.Context, customerID int64) ([]domain.CandidateEntry, error) {
	query := `SELECT customer_id, reason FROM rec_candidates`
	var args []any
	if customerID > 0 {
		query += ` WHERE customer_id = ?`
		args = append(args, customerID)
	}
	query += ` ORDER BY customer_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.CandidateEntry
	for rows.Next() {
		var e domain.CandidateEntry
		var reason string
		if err := rows.Scan(&e.CustomerID, &reason); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		e.Reason = domain.Reason(reason)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, phone, email, created_at FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		var createdAt string
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadProducts(ctx context.Context) (map[int64]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sku, unit, category, unit_price, stock, active, cycle_days FROM products`)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]domain.Product)
	for rows.Next() {
		var p domain.Product
		var active int
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Unit, &p.Category, &p.UnitPrice, &p.Stock, &active, &p.CycleDays); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Active = active != 0
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.customer_id, s.date, l.product_id, l.quantity, l.unit_price
		 FROM sales s JOIN sale_lines l ON l.sale_id = s.id
		 ORDER BY s.date DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	defer rows.Close()
	return collectSales(rows)
}
