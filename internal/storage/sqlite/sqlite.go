//go:build sqlite

// Package sqlite implements the storage.Store interface on a SQLite
// database via modernc.org/sqlite (no cgo). Timestamps are stored as
// fixed-width UTC text so range filters and ordering work with plain
// string comparison.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"alarmtrack/internal/query"
	"alarmtrack/internal/storage"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds, so stored values
// compare chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// Store is the SQLite-backed implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens the database at dsn, applies the connection pragmas and runs
// any pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the connection so sibling components (the audit logger) can
// share the same database file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// migrations are applied in order. Append only; never edit a shipped
// entry.
var migrations = []string{
	`
CREATE TABLE agencies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	street_number TEXT NOT NULL DEFAULT '',
	street_name TEXT NOT NULL DEFAULT '',
	suburb TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	postcode TEXT NOT NULL DEFAULT '',
	latitude REAL,
	longitude REAL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE managers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	agency_id INTEGER NOT NULL REFERENCES agencies(id) ON DELETE CASCADE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE private_owners (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE tenants (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE properties (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	unit_number TEXT NOT NULL DEFAULT '',
	street_number TEXT NOT NULL,
	street_name TEXT NOT NULL,
	suburb TEXT NOT NULL,
	state TEXT NOT NULL,
	postcode TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	latitude REAL,
	longitude REAL,
	agency_id INTEGER REFERENCES agencies(id),
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE property_owners (
	property_id INTEGER NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
	owner_id INTEGER NOT NULL REFERENCES private_owners(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (property_id, owner_id)
);

CREATE TABLE property_tenants (
	property_id INTEGER NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
	tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (property_id, tenant_id)
);

CREATE TABLE issue_types (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX idx_issue_types_name ON issue_types(lower(name));

CREATE TABLE staff (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'staff',
	is_active INTEGER NOT NULL DEFAULT 1,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	property_id INTEGER NOT NULL REFERENCES properties(id),
	issue_type_id INTEGER REFERENCES issue_types(id),
	agency_id INTEGER REFERENCES agencies(id),
	private_owner_id INTEGER REFERENCES private_owners(id),
	is_customer_contacted INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	is_agency INTEGER NOT NULL DEFAULT 0,
	is_private_owner INTEGER NOT NULL DEFAULT 0,
	is_completed INTEGER NOT NULL DEFAULT 0,
	is_cancelled INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE job_tenants (
	job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (job_id, tenant_id)
);

CREATE TABLE job_allocations (
	job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	staff_id INTEGER NOT NULL REFERENCES staff(id),
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (job_id, staff_id)
);

CREATE TABLE job_updates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	author_id INTEGER REFERENCES staff(id),
	created_at TEXT NOT NULL
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

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("init schema_migrations: %w", err)
	}
	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, fmtTime(time.Now())); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so read helpers work
// inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
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

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func exists(ctx context.Context, q dbtx, sqlText string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, sqlText, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// linkIDs reads an ordered id column for one parent row.
func linkIDs(ctx context.Context, q dbtx, sqlText string, id int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, sqlText, id)
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
func linkMap(ctx context.Context, q dbtx, table, keyCol, valCol string, ids []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s IN (%s) ORDER BY position, %s",
		keyCol, valCol, table, keyCol, ph, valCol), args...)
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

func insertLinks(ctx context.Context, q dbtx, table, keyCol, valCol string, key int64, vals []int64) error {
	for i, v := range vals {
		if _, err := q.ExecContext(ctx, fmt.Sprintf(
			"INSERT INTO %s (%s, %s, position) VALUES (?, ?, ?)", table, keyCol, valCol),
			key, v, i); err != nil {
			return storage.WrapIfConflict(err)
		}
	}
	return nil
}

// normalizeDates rewrites time.Time condition values into the text form the
// schema stores, so date comparisons stay lexicographic.
func normalizeDates(p query.Pred) query.Pred {
	for i, sub := range p.All {
		p.All[i] = normalizeDates(sub)
	}
	for i, sub := range p.Any {
		p.Any[i] = normalizeDates(sub)
	}
	if p.Cond != nil {
		if t, ok := p.Cond.Value.(time.Time); ok {
			c := *p.Cond
			c.Value = fmtTime(t)
			p.Cond = &c
		}
	}
	return p
}
