//go:build postgres

package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresActivityLogger persists activity events to PostgreSQL.
type PostgresActivityLogger struct {
	pool *pgxpool.Pool
}

// NewPostgresActivityLogger connects to dsn and ensures the
// activity_log table exists.
func NewPostgresActivityLogger(ctx context.Context, dsn string) (*PostgresActivityLogger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	l := &PostgresActivityLogger{pool: pool}
	if err := l.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

var _ ActivityLogger = (*PostgresActivityLogger)(nil)

func (l *PostgresActivityLogger) migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		detail TEXT,
		request_id TEXT
	)`)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_log_ts ON activity_log(ts DESC)`)
	return err
}

// Close releases the pool.
func (l *PostgresActivityLogger) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresActivityLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO activity_log (id, ts, actor, action, resource_type, resource_id, detail, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Timestamp, event.Actor, event.Action,
		event.ResourceType, event.ResourceID, nullable(event.Detail), nullable(event.RequestID))
	return err
}

func (l *PostgresActivityLogger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.Actor != "" {
		where = append(where, "actor = "+arg(opts.Actor))
	}
	if opts.Action != "" {
		where = append(where, "action = "+arg(opts.Action))
	}
	if opts.ResourceType != "" {
		where = append(where, "resource_type = "+arg(opts.ResourceType))
	}
	if opts.Since != nil {
		where = append(where, "ts >= "+arg(*opts.Since))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM activity_log"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, ts, actor, action, resource_type, resource_id, COALESCE(detail, ''), COALESCE(request_id, '')
		 FROM activity_log` + whereClause + ` ORDER BY ts DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(opts.Offset)

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &e.Detail, &e.RequestID); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}
