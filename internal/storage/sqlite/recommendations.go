//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"postventa/internal/domain"
	"postventa/internal/storage"
)

// CreateRecommendation writes the header and all detail lines in one
// transaction. No partial rows survive an error.
func (s *SQLiteStore) CreateRecommendation(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("begin recommendation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextAction any
	if rec.NextActionAt != nil {
		nextAction = formatTime(*rec.NextActionAt)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO recommendations (customer_id, generated_at, state, next_action_at, justification, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CustomerID, formatTime(rec.GeneratedAt), string(rec.State), nextAction,
		rec.Justification, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("insert recommendation: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("insert recommendation: %w", err)
	}

	for _, d := range rec.Details {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recommendation_details (recommendation_id, product_id, product_name, sku, unit, priority, score, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, d.ProductID, d.ProductName, d.SKU, d.Unit, d.Priority, d.Score, d.Reason); err != nil {
			return domain.Recommendation{}, fmt.Errorf("insert recommendation detail: %w", storage.WrapIfConflict(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Recommendation{}, fmt.Errorf("commit recommendation: %w", err)
	}

	rec.CustomerName = s.customerName(ctx, rec.CustomerID)
	return rec, nil
}

func (s *SQLiteStore) customerName(ctx context.Context, customerID int64) string {
	c, ok, err := s.GetCustomer(ctx, customerID)
	if err != nil || !ok {
		return ""
	}
	return c.DisplayName()
}

// GetRecommendation returns one recommendation with details ordered by
// priority, or storage.ErrNotFound.
func (s *SQLiteStore) GetRecommendation(ctx context.Context, id int64) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	var generatedAt, createdAt, updatedAt string
	var nextAction sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.customer_id, COALESCE(TRIM(c.first_name || ' ' || c.last_name), ''),
		        r.generated_at, r.state, r.next_action_at, r.justification, r.created_at, r.updated_at
		 FROM recommendations r
		 LEFT JOIN customers c ON c.id = r.customer_id
		 WHERE r.id = ?`, id).
		Scan(&rec.ID, &rec.CustomerID, &rec.CustomerName, &generatedAt, &rec.State, &nextAction,
			&rec.Justification, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: recommendation %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation: %w", err)
	}
	rec.GeneratedAt = parseTime(generatedAt)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if nextAction.Valid {
		t := parseTime(nextAction.String)
		rec.NextActionAt = &t
	}
	rec.CustomerName = strings.TrimSpace(rec.CustomerName)

	details, err := s.loadDetails(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Details = details
	return &rec, nil
}

func (s *SQLiteStore) loadDetails(ctx context.Context, recID int64) ([]domain.RecommendationDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, product_name, sku, unit, priority, score, reason
		 FROM recommendation_details WHERE recommendation_id = ? ORDER BY priority`, recID)
	if err != nil {
		return nil, fmt.Errorf("load details: %w", err)
	}
	defer rows.Close()

	var out []domain.RecommendationDetail
	for rows.Next() {
		var d domain.RecommendationDetail
		if err := rows.Scan(&d.ProductID, &d.ProductName, &d.SKU, &d.Unit, &d.Priority, &d.Score, &d.Reason); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListRecommendations returns paginated headers matching the filters,
// newest first. Details are not loaded for listings.
func (s *SQLiteStore) ListRecommendations(ctx context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, int, error) {
	var where []string
	var args []any

	if filters.State != "" {
		where = append(where, "r.state = ?")
		args = append(args, filters.State)
	}
	if filters.Due != "" {
		today := domain.DateOnly(time.Now().UTC())
		switch filters.Due {
		case domain.DueOverdue:
			where = append(where, "r.next_action_at IS NOT NULL AND date(r.next_action_at) < date(?)")
		case domain.DueToday:
			where = append(where, "r.next_action_at IS NOT NULL AND date(r.next_action_at) = date(?)")
		case domain.DueUpcoming:
			where = append(where, "r.next_action_at IS NOT NULL AND date(r.next_action_at) > date(?)")
		}
		args = append(args, formatTime(today))
	}
	if filters.Search != "" {
		where = append(where, `(c.first_name LIKE ? OR c.last_name LIKE ? OR c.phone LIKE ? OR c.email LIKE ?)`)
		pattern := "%" + filters.Search + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}
	join := ` FROM recommendations r LEFT JOIN customers c ON c.id = r.customer_id`

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+join+whereClause, args...).Scan(&total); err != nil {
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
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.customer_id, COALESCE(TRIM(c.first_name || ' ' || c.last_name), ''),
		        r.generated_at, r.state, r.next_action_at, r.justification, r.created_at, r.updated_at`+
			join+whereClause+` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []domain.Recommendation
	for rows.Next() {
		var rec domain.Recommendation
		var generatedAt, createdAt, updatedAt string
		var nextAction sql.NullString
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.CustomerName, &generatedAt, &rec.State,
			&nextAction, &rec.Justification, &createdAt, &updatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan recommendation: %w", err)
		}
		rec.GeneratedAt = parseTime(generatedAt)
		rec.CreatedAt = parseTime(createdAt)
		rec.UpdatedAt = parseTime(updatedAt)
		if nextAction.Valid {
			t := parseTime(nextAction.String)
			rec.NextActionAt = &t
		}
		rec.CustomerName = strings.TrimSpace(rec.CustomerName)
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// UpdateRecommendationState sets state and next action on one row.
// Only pending rows transition; a row that turned terminal between the
// caller's read and this write yields ErrConflict.
func (s *SQLiteStore) UpdateRecommendationState(ctx context.Context, id int64, state domain.RecommendationState, nextActionAt *time.Time) error {
	var nextAction any
	if nextActionAt != nil {
		nextAction = formatTime(*nextActionAt)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE recommendations SET state = ?, next_action_at = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		string(state), nextAction, formatTime(time.Now().UTC()), id,
		string(domain.RecommendationStatePending))
	if err != nil {
		return fmt.Errorf("update recommendation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recommendation: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM recommendations WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update recommendation: %w", err)
		}
		if exists == 1 {
			return fmt.Errorf("%w: recommendation %d is not pending", storage.ErrConflict, id)
		}
		return fmt.Errorf("%w: recommendation %d", storage.ErrNotFound, id)
	}
	return nil
}

// HasActiveSince reports whether the customer has a pending or sent
// recommendation generated on or after since.
func (s *SQLiteStore) HasActiveSince(ctx context.Context, customerID int64, since time.Time) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM recommendations
			WHERE customer_id = ? AND state IN ('pending', 'sent') AND generated_at >= ?
		)`, customerID, formatTime(since)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("cooldown check: %w", err)
	}
	return exists == 1, nil
}
