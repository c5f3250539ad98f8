//go:build sqlite

package audit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver
)

// SQLiteActivityLogger persists activity events to SQLite. It can share
// the main store's database file.
type SQLiteActivityLogger struct {
	db *sql.DB
}

// NewSQLiteActivityLogger opens (or shares) the given DSN and ensures
// the activity_log table exists.
func NewSQLiteActivityLogger(dsn string) (*SQLiteActivityLogger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	l := &SQLiteActivityLogger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewSQLiteActivityLoggerFromDB wraps an existing connection.
func NewSQLiteActivityLoggerFromDB(db *sql.DB) (*SQLiteActivityLogger, error) {
	l := &SQLiteActivityLogger{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}
	return l, nil
}

var _ ActivityLogger = (*SQLiteActivityLogger)(nil)

func (l *SQLiteActivityLogger) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		detail TEXT,
		request_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_activity_log_ts ON activity_log(ts DESC);`)
	return err
}

// Close closes the database connection.
func (l *SQLiteActivityLogger) Close() error { return l.db.Close() }

func (l *SQLiteActivityLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, ts, actor, action, resource_type, resource_id, detail, request_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.Format(time.RFC3339), event.Actor, event.Action,
		event.ResourceType, event.ResourceID, nullable(event.Detail), nullable(event.RequestID),
	)
	return err
}

func (l *SQLiteActivityLogger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	var where []string
	var args []any
	if opts.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, opts.Actor)
	}
	if opts.Action != "" {
		where = append(where, "action = ?")
		args = append(args, opts.Action)
	}
	if opts.ResourceType != "" {
		where = append(where, "resource_type = ?")
		args = append(args, opts.ResourceType)
	}
	if opts.Since != nil {
		where = append(where, "ts >= ?")
		args = append(args, opts.Since.Format(time.RFC3339))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_log"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, ts, actor, action, resource_type, resource_id, detail, request_id
		 FROM activity_log` + whereClause + ` ORDER BY ts DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var ts string
		var detail, requestID sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &detail, &requestID); err != nil {
			return nil, 0, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		e.Detail = detail.String
		e.RequestID = requestID.String
		out = append(out, &e)
	}
	return out, total, rows.Err()
}
