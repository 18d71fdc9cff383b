//go:build postgres

package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLogger persists audit events in PostgreSQL.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

const postgresAuditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL,
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

// NewPostgresLoggerFromPool wraps an existing pool and ensures the audit
// table exists.
func NewPostgresLoggerFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresLogger, error) {
	if _, err := pool.Exec(ctx, postgresAuditSchema); err != nil {
		return nil, err
	}
	return &PostgresLogger{pool: pool}, nil
}

func (p *PostgresLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, request_id, status_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.Timestamp, event.Actor, event.ActorType, event.Action,
		event.ResourceType, event.ResourceID, nullStr(event.ResourceName),
		nullStr(event.RequestID), event.StatusCode,
	)
	return err
}

func (p *PostgresLogger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	where := "1=1"
	args := []any{}
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.Actor != "" {
		where += " AND actor = " + bind(opts.Actor)
	}
	if opts.Action != "" {
		where += " AND action = " + bind(opts.Action)
	}
	if opts.ResourceType != "" {
		where += " AND resource_type = " + bind(opts.ResourceType)
	}
	if opts.Since != nil {
		where += " AND timestamp >= " + bind(*opts.Since)
	}
	if opts.Until != nil {
		where += " AND timestamp <= " + bind(*opts.Until)
	}

	var total int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	query := `SELECT id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, request_id, status_code
		FROM audit_events WHERE ` + where +
		" ORDER BY timestamp DESC LIMIT " + bind(opts.Limit) + " OFFSET " + bind(opts.Offset)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (p *PostgresLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*Event, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, request_id, status_code
		FROM audit_events WHERE resource_type = $1 AND resource_id = $2 ORDER BY timestamp DESC`, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var e Event
		var resourceName, requestID *string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.ActorType, &e.Action, &e.ResourceType, &e.ResourceID, &resourceName, &requestID, &e.StatusCode); err != nil {
			return nil, err
		}
		if resourceName != nil {
			e.ResourceName = *resourceName
		}
		if requestID != nil {
			e.RequestID = *requestID
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
