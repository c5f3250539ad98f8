//go:build sqlite

// Package sqlite provides the SQLite storage backend using the
// CGO-less modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"postventa/internal/domain"
	"postventa/internal/storage"
)

// SQLiteStore implements storage.Store, storage.CandidateStore and
// storage.RecommendationStore over one database file.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ storage.Store               = (*SQLiteStore)(nil)
	_ storage.CandidateStore      = (*SQLiteStore)(nil)
	_ storage.RecommendationStore = (*SQLiteStore)(nil)
)

// New opens the database at dsn and runs migrations.
func New(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying connection so collaborators (activity log)
// can share the file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping verifies the connection for readiness checks.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			unit_price REAL NOT NULL DEFAULT 0,
			stock INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			cycle_days INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			date TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_customer ON sales(customer_id, date DESC)`,
		`CREATE TABLE IF NOT EXISTS sale_lines (
			sale_id INTEGER NOT NULL REFERENCES sales(id),
			product_id INTEGER NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			unit_price REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS rec_candidates (
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			reason TEXT NOT NULL,
			PRIMARY KEY (customer_id, reason)
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			generated_at TEXT NOT NULL,
			state TEXT NOT NULL,
			next_action_at TEXT,
			justification TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_customer ON recommendations(customer_id, generated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS recommendation_details (
			recommendation_id INTEGER NOT NULL REFERENCES recommendations(id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL,
			product_name TEXT NOT NULL DEFAULT '',
			sku TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL,
			score REAL NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (recommendation_id, priority)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, id int64) (domain.Customer, bool, error) {
	var c domain.Customer
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, phone, email, created_at FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &createdAt)
	if err == sql.ErrNoRows {
		return domain.Customer{}, false, nil
	}
	if err != nil {
		return domain.Customer{}, false, fmt.Errorf("get customer: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, true, nil
}

func (s *SQLiteStore) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (first_name, last_name, phone, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.FirstName, c.LastName, c.Phone, c.Email, formatTime(c.CreatedAt))
	if err != nil {
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sku, unit, category, unit_price, stock, active, cycle_days
		 FROM products WHERE active = 1 AND stock > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var active int
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Unit, &p.Category, &p.UnitPrice, &p.Stock, &active, &p.CycleDays); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Active = active != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	active := 0
	if p.Active {
		active = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, sku, unit, category, unit_price, stock, active, cycle_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.SKU, p.Unit, p.Category, p.UnitPrice, p.Stock, active, p.CycleDays)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) RecordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin sale tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO sales (customer_id, date) VALUES (?, ?)`,
		sale.CustomerID, formatTime(sale.Date))
	if err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}
	sale.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}
	for _, line := range sale.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?)`,
			sale.ID, line.ProductID, line.Quantity, line.UnitPrice); err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit sale: %w", err)
	}
	return sale, nil
}

func (s *SQLiteStore) PurchaseHistory(ctx context.Context, customerID int64) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.customer_id, s.date, l.product_id, l.quantity, l.unit_price
		 FROM sales s JOIN sale_lines l ON l.sale_id = s.id
		 WHERE s.customer_id = ?
		 ORDER BY s.date DESC, s.id DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("purchase history: %w", err)
	}
	defer rows.Close()
	return collectSales(rows)
}

func (s *SQLiteStore) GlobalPopularity(ctx context.Context, recentSales int) ([]domain.ProductSales, error) {
	if recentSales <= 0 {
		recentSales = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.product_id, SUM(l.quantity) AS units
		 FROM sale_lines l
		 WHERE l.sale_id IN (SELECT id FROM sales ORDER BY date DESC, id DESC LIMIT ?)
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

func collectSales(rows *sql.Rows) ([]domain.Sale, error) {
	var out []domain.Sale
	var cur *domain.Sale
	for rows.Next() {
		var saleID, customerID int64
		var date string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &customerID, &date, &line.ProductID, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if cur == nil || cur.ID != saleID {
			out = append(out, domain.Sale{ID: saleID, CustomerID: customerID, Date: parseTime(date)})
			cur = &out[len(out)-1]
		}
		cur.Lines = append(cur.Lines, line)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}
