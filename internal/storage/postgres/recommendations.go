//go:build postgres

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"postventa/internal/domain"
	"postventa/internal/storage"
)

// CreateRecommendation writes the header and all detail lines in one
// transaction. No partial rows survive an error.
func (s *PostgresStore) CreateRecommendation(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	if len(rec.Details) == 0 {
		return domain.Recommendation{}, fmt.Errorf("%w: recommendation requires at least one detail", storage.ErrValidation)
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = now
	}
	if rec.State == "" {
		rec.State = domain.RecommendationStatePending
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("begin recommendation tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx,
		`INSERT INTO recommendations (customer_id, generated_at, state, next_action_at, justification, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.CustomerID, rec.GeneratedAt, string(rec.State), rec.NextActionAt,
		rec.Justification, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID); err != nil {
		return domain.Recommendation{}, fmt.Errorf("insert recommendation: %w", err)
	}

	for _, d := range rec.Details {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recommendation_details (recommendation_id, product_id, product_name, sku, unit, priority, score, reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.ID, d.ProductID, d.ProductName, d.SKU, d.Unit, d.Priority, d.Score, d.Reason); err != nil {
			return domain.Recommendation{}, fmt.Errorf("insert recommendation detail: %w", storage.WrapIfConflict(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Recommendation{}, fmt.Errorf("commit recommendation: %w", err)
	}

	if c, ok, err := s.GetCustomer(ctx, rec.CustomerID); err == nil && ok {
		rec.CustomerName = c.DisplayName()
	}
	return rec, nil
}

// GetRecommendation returns one recommendation with details ordered by
// priority, or storage.ErrNotFound.
func (s *PostgresStore) GetRecommendation(ctx context.Context, id int64) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	err := s.pool.QueryRow(ctx,
		`SELECT r.id, r.customer_id, COALESCE(TRIM(c.first_name || ' ' || c.last_name), ''),
		        r.generated_at, r.state, r.next_action_at, r.justification, r.created_at, r.updated_at
		 FROM recommendations r
		 LEFT JOIN customers c ON c.id = r.customer_id
		 WHERE r.id = $1`, id).
		Scan(&rec.ID, &rec.CustomerID, &rec.CustomerName, &rec.GeneratedAt, &rec.State,
			&rec.NextActionAt, &rec.Justification, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: recommendation %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation: %w", err)
	}
	rec.CustomerName = strings.TrimSpace(rec.CustomerName)

	rows, err := s.pool.Query(ctx,
		`SELECT product_id, product_name, sku, unit, priority, score, reason
		 FROM recommendation_details WHERE recommendation_id = $1 ORDER BY priority`, id)
	if err != nil {
		return nil, fmt.Errorf("load details: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d domain.RecommendationDetail
		if err := rows.Scan(&d.ProductID, &d.ProductName, &d.SKU, &d.Unit, &d.Priority, &d.Score, &d.Reason); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		rec.Details = append(rec.Details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecommendations returns paginated headers matching the filters,
// newest first. Details are not loaded for listings.
func (s *PostgresStore) ListRecommendations(ctx context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, int, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filters.State != "" {
		where = append(where, "r.state = "+arg(filters.State))
	}
	if filters.Due != "" {
		today := arg(domain.DateOnly(time.Now().UTC()))
		switch filters.Due {
		case domain.DueOverdue:
			where = append(where, "r.next_action_at IS NOT NULL AND date(r.next_action_at) < date("+today+")")
		case domain.DueToday:
			where = append(where, "r.next_action_at IS NOT NULL AND date(r.next_action_at) = date("+today+")")
		case domain.DueUpcoming:
			where = append(where, "r.next_action_at IS NOT NULL AND date(r.next_action_at) > date("+today+")")
		}
	}
	if filters.Search != "" {
		pattern := arg("%" + filters.Search + "%")
		where = append(where, "(c.first_name ILIKE "+pattern+
			" OR c.last_name ILIKE "+pattern+
			" OR c.phone ILIKE "+pattern+
			" OR c.email ILIKE "+pattern+")")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}
	join := ` FROM recommendations r LEFT JOIN customers c ON c.id = r.customer_id`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*)`+join+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recommendations: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	limit := arg(pageSize)
	offset := arg((page - 1) * pageSize)

	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.customer_id, COALESCE(TRIM(c.first_name || ' ' || c.last_name), ''),
		        r.generated_at, r.state, r.next_action_at, r.justification, r.created_at, r.updated_at`+
			join+whereClause+` ORDER BY r.created_at DESC, r.id DESC LIMIT `+limit+` OFFSET `+offset, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []domain.Recommendation
	for rows.Next() {
		var rec domain.Recommendation
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.CustomerName, &rec.GeneratedAt, &rec.State,
			&rec.NextActionAt, &rec.Justification, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan recommendation: %w", err)
		}
		rec.CustomerName = strings.TrimSpace(rec.CustomerName)
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// UpdateRecommendationState sets state and next action on one row.
// Only pending rows transition; a row that turned terminal between the
// caller's read and this write yields ErrConflict.
func (s *PostgresStore) UpdateRecommendationState(ctx context.Context, id int64, state domain.RecommendationState, nextActionAt *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE recommendations SET state = $1, next_action_at = $2, updated_at = $3
		 WHERE id = $4 AND state = $5`,
		string(state), nextActionAt, time.Now().UTC(), id,
		string(domain.RecommendationStatePending))
	if err != nil {
		return fmt.Errorf("update recommendation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM recommendations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update recommendation: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: recommendation %d is not pending", storage.ErrConflict, id)
		}
		return fmt.Errorf("%w: recommendation %d", storage.ErrNotFound, id)
	}
	return nil
}

// HasActiveSince reports whether the customer has a pending or sent
// recommendation generated on or after since.
func (s *PostgresStore) HasActiveSince(ctx context.Context, customerID int64, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM recommendations
			WHERE customer_id = $1 AND state IN ('pending', 'sent') AND generated_at >= $2
		)`, customerID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("cooldown check: %w", err)
	}
	return exists, nil
}
