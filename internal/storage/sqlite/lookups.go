//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
	"alarmtrack/internal/storage"
)

// Issue types

const issueTypeColumns = "id, uid, name, description, is_active, created_at, updated_at"

func scanIssueType(row interface{ Scan(...any) error }) (domain.IssueType, error) {
	var (
		it                   domain.IssueType
		createdAt, updatedAt string
	)
	err := row.Scan(&it.ID, &it.UID, &it.Name, &it.Description, &it.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return domain.IssueType{}, err
	}
	it.CreatedAt = parseTime(createdAt)
	it.UpdatedAt = parseTime(updatedAt)
	return it, nil
}

func (s *Store) ListIssueTypes(ctx context.Context, activeOnly bool) ([]domain.IssueType, error) {
	sqlText := "SELECT " + issueTypeColumns + " FROM issue_types"
	if activeOnly {
		sqlText += " WHERE is_active = 1"
	}
	sqlText += " ORDER BY name"
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IssueType
	for rows.Next() {
		it, err := scanIssueType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) CreateIssueType(ctx context.Context, in domain.CreateIssueType) (domain.IssueType, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.IssueType{}, storage.FieldErrorf("name", "Name is required")
	}
	name := strings.TrimSpace(in.Name)
	dup, err := exists(ctx, s.db, "SELECT 1 FROM issue_types WHERE lower(name) = lower(?)", name)
	if err != nil {
		return domain.IssueType{}, err
	}
	if dup {
		return domain.IssueType{}, fmt.Errorf("issue type %q exists: %w", in.Name, storage.ErrConflict)
	}
	now := time.Now().UTC()
	it := domain.IssueType{
		UID:         uuid.NewString(),
		Name:        name,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO issue_types (uid, name, description, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		it.UID, it.Name, it.Description, it.IsActive, fmtTime(now), fmtTime(now))
	if err != nil {
		return domain.IssueType{}, storage.WrapIfConflict(err)
	}
	it.ID, err = res.LastInsertId()
	return it, err
}

func (s *Store) GetIssueType(ctx context.Context, id int64) (domain.IssueType, bool, error) {
	it, err := scanIssueType(s.db.QueryRowContext(ctx,
		"SELECT "+issueTypeColumns+" FROM issue_types WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return domain.IssueType{}, false, nil
	}
	if err != nil {
		return domain.IssueType{}, false, err
	}
	return it, true, nil
}

func (s *Store) UpdateIssueType(ctx context.Context, id int64, update domain.UpdateIssueType) (domain.IssueType, bool, error) {
	it, ok, err := s.GetIssueType(ctx, id)
	if err != nil || !ok {
		return domain.IssueType{}, false, err
	}
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return domain.IssueType{}, false, storage.FieldErrorf("name", "Name is required")
		}
		it.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		it.Description = *update.Description
	}
	if update.IsActive != nil {
		it.IsActive = *update.IsActive
	}
	it.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		"UPDATE issue_types SET name = ?, description = ?, is_active = ?, updated_at = ? WHERE id = ?",
		it.Name, it.Description, it.IsActive, fmtTime(it.UpdatedAt), id)
	if err != nil {
		return domain.IssueType{}, false, storage.WrapIfConflict(err)
	}
	return it, true, nil
}

// Typeahead lookups. Matching happens in SQL; the label sort and cap in
// Go so labels collate the same way as the memory backend.

func sortAndCap(s []domain.Suggestion, limit int) []domain.Suggestion {
	sort.Slice(s, func(i, j int) bool {
		return strings.ToLower(s[i].Label) < strings.ToLower(s[j].Label)
	})
	if limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	if s == nil {
		s = []domain.Suggestion{}
	}
	return s
}

func (s *Store) SuggestTenants(ctx context.Context, q string, limit int) ([]domain.Suggestion, error) {
	pred := query.Search(q, storage.TenantSearchFields)
	where, args := query.ToSQL(pred, storage.PersonColumn, query.DialectSQLite, 0)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, first_name, last_name FROM tenants WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName); err != nil {
			return nil, err
		}
		out = append(out, domain.Suggestion{
			Value: strconv.FormatInt(p.ID, 10),
			Label: p.FullName(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortAndCap(out, limit), nil
}

var propertySuggestFields = []string{"street_number", "street_name", "suburb", "unit_number", "postcode"}

func (s *Store) suggestFromProperties(ctx context.Context, q string, fields []string) ([]domain.Property, error) {
	pred := query.Search(q, fields)
	where, args := query.ToSQL(pred, storage.PropertyColumn, query.DialectSQLite, 0)
	rows, err := s.db.QueryContext(ctx, `SELECT p.id, p.unit_number, p.street_number, p.street_name, p.suburb, p.state, p.postcode
		FROM properties p WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Property
	for rows.Next() {
		var p domain.Property
		if err := rows.Scan(&p.ID, &p.UnitNumber, &p.StreetNumber, &p.StreetName, &p.Suburb, &p.State, &p.Postcode); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SuggestProperties(ctx context.Context, q string, limit int) ([]domain.Suggestion, error) {
	props, err := s.suggestFromProperties(ctx, q, propertySuggestFields)
	if err != nil {
		return nil, err
	}
	var out []domain.Suggestion
	for _, p := range props {
		out = append(out, domain.Suggestion{
			Value: strconv.FormatInt(p.ID, 10),
			Label: p.Address(),
		})
	}
	return sortAndCap(out, limit), nil
}

func (s *Store) SuggestAddresses(ctx context.Context, q string, limit int) ([]domain.Suggestion, error) {
	props, err := s.suggestFromProperties(ctx, q,
		[]string{"street_number", "street_name", "suburb", "postcode"})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []domain.Suggestion
	for _, p := range props {
		addr := p.Address()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, domain.Suggestion{Value: addr, Label: addr})
	}
	return sortAndCap(out, limit), nil
}

func (s *Store) DistinctSuburbs(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "suburb")
}

func (s *Store) DistinctPostcodes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "postcode")
}

func (s *Store) distinct(ctx context.Context, col string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT %s FROM properties WHERE %s <> '' ORDER BY %s", col, col, col))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
