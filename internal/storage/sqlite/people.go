//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
	"alarmtrack/internal/storage"
)

const personColumns = "id, uid, first_name, last_name, email, phone, notes, created_at, updated_at"

func scanPerson(row interface{ Scan(...any) error }) (domain.Person, error) {
	var (
		p                    domain.Person
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.UID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Notes, &createdAt, &updatedAt)
	if err != nil {
		return domain.Person{}, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// listPersons runs the shared list query against one of the person
// tables. Person records have no is_active column, so that filter
// renders as a never-matching clause, same as the memory evaluator.
func (s *Store) listPersons(ctx context.Context, table string, q domain.PersonListQuery, searchFields []string) ([]domain.Person, int, error) {
	pred := normalizeDates(storage.CompilePersonFilter(q, searchFields))
	where, args := query.ToSQL(pred, storage.PersonColumn, query.DialectSQLite, 0)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orders := query.ResolveOrdering(q.Ordering, nil, storage.DefaultPersonOrdering)
	orderBy := query.OrderSQL(orders, storage.PersonColumn)
	if orderBy == "" {
		orderBy = "ORDER BY first_name"
	}
	orderBy += ", id"

	size := pageSize(q.PageSize)
	page := pageOr1(q.Page)
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+personColumns+" FROM "+table+" WHERE "+where+" "+orderBy+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) getPerson(ctx context.Context, table string, id int64) (domain.Person, bool, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx,
		"SELECT "+personColumns+" FROM "+table+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return domain.Person{}, false, nil
	}
	if err != nil {
		return domain.Person{}, false, err
	}
	return p, true, nil
}

func (s *Store) updatePerson(ctx context.Context, table string, id int64, update domain.UpdatePerson) (domain.Person, bool, error) {
	p, ok, err := s.getPerson(ctx, table, id)
	if err != nil || !ok {
		return domain.Person{}, false, err
	}
	if err := storage.ApplyPersonUpdate(&p, update); err != nil {
		return domain.Person{}, false, err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE "+table+" SET first_name = ?, last_name = ?, email = ?, phone = ?, notes = ?, updated_at = ? WHERE id = ?",
		p.FirstName, p.LastName, p.Email, p.Phone, p.Notes, fmtTime(p.UpdatedAt), id)
	if err != nil {
		return domain.Person{}, false, err
	}
	return p, true, nil
}

func touchProperty(ctx context.Context, q dbtx, id int64) error {
	_, err := q.ExecContext(ctx, "UPDATE properties SET updated_at = ? WHERE id = ?", fmtTime(time.Now()), id)
	return err
}

// Tenants

func (s *Store) ListTenants(ctx context.Context, q domain.PersonListQuery) ([]domain.Tenant, int, error) {
	persons, total, err := s.listPersons(ctx, "tenants", q, storage.TenantSearchFields)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Tenant, len(persons))
	for i, p := range persons {
		out[i] = domain.Tenant{Person: p}
	}
	return out, total, nil
}

func (s *Store) AddTenant(ctx context.Context, propertyID int64, in domain.PersonInput) (domain.Tenant, error) {
	var out domain.Tenant
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "SELECT 1 FROM properties WHERE id = ?", propertyID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("property %d: %w", propertyID, storage.ErrNotFound)
		}
		id, err := createTenant(ctx, tx, in)
		if err != nil {
			return err
		}
		var pos int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position)+1, 0) FROM property_tenants WHERE property_id = ?", propertyID).Scan(&pos); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO property_tenants (property_id, tenant_id, position) VALUES (?, ?, ?)",
			propertyID, id, pos); err != nil {
			return err
		}
		if err := touchProperty(ctx, tx, propertyID); err != nil {
			return err
		}
		p, err := scanPerson(tx.QueryRowContext(ctx, "SELECT "+personColumns+" FROM tenants WHERE id = ?", id))
		if err != nil {
			return err
		}
		out = domain.Tenant{Person: p}
		return nil
	})
	return out, err
}

func (s *Store) RemoveTenant(ctx context.Context, propertyID, tenantID int64) (bool, error) {
	var found bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM property_tenants WHERE property_id = ? AND tenant_id = ?", propertyID, tenantID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := touchProperty(ctx, tx, propertyID); err != nil {
			return err
		}
		if err := deleteTenantIfOrphan(ctx, tx, tenantID); err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *Store) UpdateTenant(ctx context.Context, id int64, update domain.UpdatePerson) (domain.Tenant, bool, error) {
	p, ok, err := s.updatePerson(ctx, "tenants", id, update)
	return domain.Tenant{Person: p}, ok, err
}

func (s *Store) GetTenant(ctx context.Context, id int64) (domain.Tenant, bool, error) {
	p, ok, err := s.getPerson(ctx, "tenants", id)
	return domain.Tenant{Person: p}, ok, err
}

// Private owners

func (s *Store) ListPrivateOwners(ctx context.Context, q domain.PersonListQuery) ([]domain.PrivateOwner, int, error) {
	persons, total, err := s.listPersons(ctx, "private_owners", q, storage.OwnerSearchFields)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.PrivateOwner, len(persons))
	for i, p := range persons {
		out[i] = domain.PrivateOwner{Person: p}
	}
	return out, total, nil
}

func (s *Store) AddPrivateOwner(ctx context.Context, propertyID int64, in domain.PersonInput) (domain.PrivateOwner, error) {
	var out domain.PrivateOwner
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var agencyID sql.NullInt64
		err := tx.QueryRowContext(ctx, "SELECT agency_id FROM properties WHERE id = ?", propertyID).Scan(&agencyID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("property %d: %w", propertyID, storage.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if agencyID.Valid {
			return fmt.Errorf("agency-managed property cannot have private owners: %w", storage.ErrValidation)
		}
		id, err := createOwner(ctx, tx, in)
		if err != nil {
			return err
		}
		var pos int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position)+1, 0) FROM property_owners WHERE property_id = ?", propertyID).Scan(&pos); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO property_owners (property_id, owner_id, position) VALUES (?, ?, ?)",
			propertyID, id, pos); err != nil {
			return err
		}
		if err := touchProperty(ctx, tx, propertyID); err != nil {
			return err
		}
		p, err := scanPerson(tx.QueryRowContext(ctx, "SELECT "+personColumns+" FROM private_owners WHERE id = ?", id))
		if err != nil {
			return err
		}
		out = domain.PrivateOwner{Person: p}
		return nil
	})
	return out, err
}

func (s *Store) RemovePrivateOwner(ctx context.Context, propertyID, ownerID int64) (bool, error) {
	var found bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var agencyID sql.NullInt64
		err := tx.QueryRowContext(ctx, "SELECT agency_id FROM properties WHERE id = ?", propertyID).Scan(&agencyID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		linked, err := exists(ctx, tx,
			"SELECT 1 FROM property_owners WHERE property_id = ? AND owner_id = ?", propertyID, ownerID)
		if err != nil || !linked {
			return err
		}
		var remaining int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM property_owners WHERE property_id = ? AND owner_id <> ?",
			propertyID, ownerID).Scan(&remaining); err != nil {
			return err
		}
		if remaining == 0 && !agencyID.Valid {
			return fmt.Errorf("property must retain at least one owner: %w", storage.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM property_owners WHERE property_id = ? AND owner_id = ?", propertyID, ownerID); err != nil {
			return err
		}
		if err := touchProperty(ctx, tx, propertyID); err != nil {
			return err
		}
		if err := deleteOwnerIfOrphan(ctx, tx, ownerID); err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *Store) UpdatePrivateOwner(ctx context.Context, id int64, update domain.UpdatePerson) (domain.PrivateOwner, bool, error) {
	p, ok, err := s.updatePerson(ctx, "private_owners", id, update)
	return domain.PrivateOwner{Person: p}, ok, err
}

func (s *Store) GetPrivateOwner(ctx context.Context, id int64) (domain.PrivateOwner, bool, error) {
	p, ok, err := s.getPerson(ctx, "private_owners", id)
	return domain.PrivateOwner{Person: p}, ok, err
}

func (s *Store) SetPropertyAgency(ctx context.Context, propertyID int64, agencyID *int64) (domain.Property, bool, error) {
	var (
		out   domain.Property
		found bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "SELECT 1 FROM properties WHERE id = ?", propertyID)
		if err != nil || !ok {
			return err
		}
		if agencyID == nil {
			owners, err := exists(ctx, tx,
				"SELECT 1 FROM property_owners WHERE property_id = ? LIMIT 1", propertyID)
			if err != nil {
				return err
			}
			if !owners {
				return fmt.Errorf("property must retain at least one owner: %w", storage.ErrValidation)
			}
		} else {
			ok, err := exists(ctx, tx, "SELECT 1 FROM agencies WHERE id = ?", *agencyID)
			if err != nil {
				return err
			}
			if !ok {
				return storage.FieldErrorf("agency_id", "agency %d does not exist", *agencyID)
			}
			if err := releaseOwners(ctx, tx, propertyID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE properties SET agency_id = ?, updated_at = ? WHERE id = ?",
			nullID(agencyID), fmtTime(time.Now()), propertyID); err != nil {
			return err
		}
		p, ok, err := s.getProperty(ctx, tx, propertyID)
		if err != nil || !ok {
			return err
		}
		out, found = p, true
		return nil
	})
	return out, found, err
}
