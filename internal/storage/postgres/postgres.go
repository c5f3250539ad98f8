//go:build postgres

// Package postgres provides the PostgreSQL storage backend over a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postventa/internal/domain"
	"postventa/internal/storage"
)

// PostgresStore implements storage.Store, storage.CandidateStore and
// storage.RecommendationStore over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var (
	_ storage.Store               = (*PostgresStore)(nil)
	_ storage.CandidateStore      = (*PostgresStore)(nil)
	_ storage.RecommendationStore = (*PostgresStore)(nil)
)

// New connects to the database at dsn and runs migrations.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies connectivity for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGSERIAL PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			stock BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			cycle_days INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id BIGSERIAL PRIMARY KEY,
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			date TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_customer ON sales(customer_id, date DESC)`,
		`CREATE TABLE IF NOT EXISTS sale_lines (
			sale_id BIGINT NOT NULL REFERENCES sales(id),
			product_id BIGINT NOT NULL REFERENCES products(id),
			quantity BIGINT NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS rec_candidates (
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			reason TEXT NOT NULL,
			PRIMARY KEY (customer_id, reason)
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id BIGSERIAL PRIMARY KEY,
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			generated_at TIMESTAMPTZ NOT NULL,
			state TEXT NOT NULL,
			next_action_at TIMESTAMPTZ,
			justification TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_customer ON recommendations(customer_id, generated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS recommendation_details (
			recommendation_id BIGINT NOT NULL REFERENCES recommendations(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL,
			product_name TEXT NOT NULL DEFAULT '',
			sku TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			priority INT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (recommendation_id, priority)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id int64) (domain.Customer, bool, error) {
	var c domain.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, phone, email, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, false, nil
	}
	if err != nil {
		return domain.Customer{}, false, fmt.Errorf("get customer: %w", err)
	}
	return c, true, nil
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customers (first_name, last_name, phone, email, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.FirstName, c.LastName, c.Phone, c.Email, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, sku, unit, category, unit_price, stock, active, cycle_days
		 FROM products WHERE active AND stock > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Unit, &p.Category, &p.UnitPrice, &p.Stock, &p.Active, &p.CycleDays); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (name, sku, unit, category, unit_price, stock, active, cycle_days)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.Name, p.SKU, p.Unit, p.Category, p.UnitPrice, p.Stock, p.Active, p.CycleDays).Scan(&p.ID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) RecordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin sale tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO sales (customer_id, date) VALUES ($1, $2) RETURNING id`,
		sale.CustomerID, sale.Date).Scan(&sale.ID); err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}
	for _, line := range sale.Lines {
		if _, err := tx.Exec(ctx,
			`INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`,
			sale.ID, line.ProductID, line.Quantity, line.UnitPrice); err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale line: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Sale{}, fmt.Errorf("commit sale: %w", err)
	}
	return sale, nil
}

func (s *PostgresStore) PurchaseHistory(ctx context.Context, customerID int64) ([]domain.Sale, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.customer_id, s.date, l.product_id, l.quantity, l.unit_price
		 FROM sales s JOIN sale_lines l ON l.sale_id = s.id
		 WHERE s.customer_id = $1
		 ORDER BY s.date DESC, s.id DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("purchase history: %w", err)
	}
	defer rows.Close()
	return collectSales(rows)
}

func (s *PostgresStore) GlobalPopularity(ctx context.Context, recentSales int) ([]domain.ProductSales, error) {
	if recentSales <= 0 {
		recentSales = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT l.product_id, SUM(l.quantity) AS units
		 FROM sale_lines l
		 WHERE l.sale_id IN (SELECT id FROM sales ORDER BY date DESC, id DESC LIMIT $1)
		 GROUP BY l.product_id
		 ORDER BY units DESC, l.product_id ASC`, recentSales)
	if err != nil {
		return nil, fmt.Errorf("global popularity: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductSales
	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Units); err != nil {
			return nil, fmt.Errorf("scan popularity: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func collectSales(rows pgx.Rows) ([]domain.Sale, error) {
	var out []domain.Sale
	var cur *domain.Sale
	for rows.Next() {
		var saleID, customerID int64
		var date time.Time
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &customerID, &date, &line.ProductID, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if cur == nil || cur.ID != saleID {
			out = append(out, domain.Sale{ID: saleID, CustomerID: customerID, Date: date})
			cur = &out[len(out)-1]
		}
		cur.Lines = append(cur.Lines, line)
	}
	return out, rows.Err()
}
