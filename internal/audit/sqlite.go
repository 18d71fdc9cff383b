//go:build sqlite

package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteLogger persists audit events in the same SQLite database as the
// main store.
type SQLiteLogger struct {
	db *sql.DB
}

const sqliteAuditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	actor TEXT NOT NULL,
	actor_type TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	resource_name TEXT,
	request_id TEXT,
	status_code INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource_type, resource_id);
`

// NewSQLiteLoggerFromDB wraps an existing connection and ensures the audit
// table exists.
func NewSQLiteLoggerFromDB(db *sql.DB) (*SQLiteLogger, error) {
	if _, err := db.Exec(sqliteAuditSchema); err != nil {
		return nil, err
	}
	return &SQLiteLogger{db: db}, nil
}

func (s *SQLiteLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, request_id, status_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.Format(time.RFC3339Nano),
		event.Actor,
		event.ActorType,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		sql.NullString{String: event.ResourceName, Valid: event.ResourceName != ""},
		sql.NullString{String: event.RequestID, Valid: event.RequestID != ""},
		event.StatusCode,
	)
	return err
}

func (s *SQLiteLogger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	where := "1=1"
	args := []any{}
	if opts.Actor != "" {
		where += " AND actor = ?"
		args = append(args, opts.Actor)
	}
	if opts.Action != "" {
		where += " AND action = ?"
		args = append(args, opts.Action)
	}
	if opts.ResourceType != "" {
		where += " AND resource_type = ?"
		args = append(args, opts.ResourceType)
	}
	if opts.Since != nil {
		where += " AND timestamp >= ?"
		args = append(args, opts.Since.Format(time.RFC3339Nano))
	}
	if opts.Until != nil {
		where += " AND timestamp <= ?"
		args = append(args, opts.Until.Format(time.RFC3339Nano))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	query := `SELECT id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, request_id, status_code
		FROM audit_events WHERE ` + where + " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var ts string
		var resourceName, requestID sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.ActorType, &e.Action, &e.ResourceType, &e.ResourceID, &resourceName, &requestID, &e.StatusCode); err != nil {
			return nil, 0, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.ResourceName = resourceName.String
		e.RequestID = requestID.String
		events = append(events, &e)
	}
	return events, total, rows.Err()
}

func (s *SQLiteLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, request_id, status_code
		FROM audit_events WHERE resource_type = ? AND resource_id = ? ORDER BY timestamp DESC`, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var ts string
		var resourceName, requestID sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.ActorType, &e.Action, &e.ResourceType, &e.ResourceID, &resourceName, &requestID, &e.StatusCode); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.ResourceName = resourceName.String
		e.RequestID = requestID.String
		events = append(events, &e)
	}
	return events, rows.Err()
}
