//go:build postgres

// Package postgres implements the storage.Store interface on PostgreSQL
// via pgx. Timestamps are TIMESTAMPTZ and bind as time.Time; nullable
// foreign keys scan straight into the domain pointer fields.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"alarmtrack/internal/query"
	"alarmtrack/internal/storage"
)

// Store is the PostgreSQL-backed implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New connects to the database at connStr and runs any pending
// migrations.
func New(connStr string) (*Store, error) {
	ctx := context.Background()
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the connection pool so sibling components (the audit
// logger) can share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// migrations are applied in order. Append only; never edit a shipped
// entry.
var migrations = []string{
	`
CREATE TABLE agencies (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	street_number TEXT NOT NULL DEFAULT '',
	street_name TEXT NOT NULL DEFAULT '',
	suburb TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	postcode TEXT NOT NULL DEFAULT '',
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE managers (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	agency_id BIGINT NOT NULL REFERENCES agencies(id) ON DELETE CASCADE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE private_owners (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE tenants (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE properties (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	unit_number TEXT NOT NULL DEFAULT '',
	street_number TEXT NOT NULL,
	street_name TEXT NOT NULL,
	suburb TEXT NOT NULL,
	state TEXT NOT NULL,
	postcode TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	agency_id BIGINT REFERENCES agencies(id),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE property_owners (
	property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
	owner_id BIGINT NOT NULL REFERENCES private_owners(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (property_id, owner_id)
);

CREATE TABLE property_tenants (
	property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
	tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (property_id, tenant_id)
);

CREATE TABLE issue_types (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX idx_issue_types_name ON issue_types(lower(name));

CREATE TABLE staff (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'staff',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE jobs (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	property_id BIGINT NOT NULL REFERENCES properties(id),
	issue_type_id BIGINT REFERENCES issue_types(id),
	agency_id BIGINT REFERENCES agencies(id),
	private_owner_id BIGINT REFERENCES private_owners(id),
	is_customer_contacted BOOLEAN NOT NULL DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	is_agency BOOLEAN NOT NULL DEFAULT FALSE,
	is_private_owner BOOLEAN NOT NULL DEFAULT FALSE,
	is_completed BOOLEAN NOT NULL DEFAULT FALSE,
	is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE job_tenants (
	job_id BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (job_id, tenant_id)
);

CREATE TABLE job_allocations (
	job_id BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	staff_id BIGINT NOT NULL REFERENCES staff(id),
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (job_id, staff_id)
);

CREATE TABLE job_updates (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	job_id BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	author_id BIGINT REFERENCES staff(id),
	created_at TIMESTAMPTZ NOT NULL
);
`,
	`
CREATE INDEX idx_jobs_property ON jobs(property_id);
CREATE INDEX idx_jobs_status ON jobs(status);
CREATE INDEX idx_jobs_created_at ON jobs(created_at);
CREATE INDEX idx_job_updates_job ON job_updates(job_id, created_at);
CREATE INDEX idx_properties_suburb ON properties(suburb);
CREATE INDEX idx_properties_postcode ON properties(postcode);
CREATE INDEX idx_properties_address ON properties(lower(street_name), lower(street_number));
`,
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("init schema_migrations: %w", err)
	}
	var current int
	if err := pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, migrations[i]); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so read helpers
// work inside and outside transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func pageSize(n int) int {
	if n < 1 {
		return query.DefaultPageSize
	}
	return n
}

func pageOr1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func exists(ctx context.Context, q querier, sqlText string, args ...any) (bool, error) {
	var one int
	err := q.QueryRow(ctx, sqlText, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// linkIDs reads an ordered id column for one parent row.
func linkIDs(ctx context.Context, q querier, sqlText string, id int64) ([]int64, error) {
	rows, err := q.Query(ctx, sqlText, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// linkMap batch-loads a link table for a page of parent rows.
func linkMap(ctx context.Context, q querier, table, keyCol, valCol string, ids []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s = ANY($1) ORDER BY position, %s",
		keyCol, valCol, table, keyCol, valCol), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key, val int64
		if err := rows.Scan(&key, &val); err != nil {
			return nil, err
		}
		out[key] = append(out[key], val)
	}
	return out, rows.Err()
}

func insertLinks(ctx context.Context, q querier, table, keyCol, valCol string, key int64, vals []int64) error {
	for i, v := range vals {
		if _, err := q.Exec(ctx, fmt.Sprintf(
			"INSERT INTO %s (%s, %s, position) VALUES ($1, $2, $3)", table, keyCol, valCol),
			key, v, i); err != nil {
			return storage.WrapIfConflict(err)
		}
	}
	return nil
}
