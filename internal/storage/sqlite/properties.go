//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
	"alarmtrack/internal/storage"
)

const propertyColumns = `p.id, p.uid, p.unit_number, p.street_number, p.street_name, p.suburb, p.state, p.postcode,
	p.country, p.latitude, p.longitude, p.agency_id, p.is_active, p.created_at, p.updated_at`

func scanProperty(row interface{ Scan(...any) error }) (domain.Property, error) {
	var (
		p                    domain.Property
		lat, lng             sql.NullFloat64
		agency               sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.UID, &p.UnitNumber, &p.StreetNumber, &p.StreetName, &p.Suburb, &p.State, &p.Postcode,
		&p.Country, &lat, &lng, &agency, &p.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return domain.Property{}, err
	}
	p.Latitude = floatPtr(lat)
	p.Longitude = floatPtr(lng)
	p.AgencyID = idPtr(agency)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (s *Store) loadPropertyLinks(ctx context.Context, q dbtx, props []domain.Property) error {
	ids := make([]int64, len(props))
	for i, p := range props {
		ids[i] = p.ID
	}
	owners, err := linkMap(ctx, q, "property_owners", "property_id", "owner_id", ids)
	if err != nil {
		return err
	}
	tenants, err := linkMap(ctx, q, "property_tenants", "property_id", "tenant_id", ids)
	if err != nil {
		return err
	}
	for i := range props {
		props[i].PrivateOwnerIDs = owners[props[i].ID]
		props[i].TenantIDs = tenants[props[i].ID]
	}
	return nil
}

func (s *Store) ListProperties(ctx context.Context, q domain.PropertyListQuery) ([]domain.Property, int, error) {
	pred := normalizeDates(storage.CompilePropertyFilter(q))
	where, args := query.ToSQL(pred, storage.PropertyColumn, query.DialectSQLite, 0)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+storage.PropertyBaseSQL+" WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orders := query.ResolveOrdering(q.Ordering, storage.PropertyOrderingAliases, storage.DefaultPropertyOrdering)
	orderBy := query.OrderSQL(orders, storage.PropertyColumn)
	if orderBy == "" {
		orderBy = "ORDER BY p.street_name"
	}
	orderBy += ", p.id"

	size := pageSize(q.PageSize)
	page := pageOr1(q.Page)
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+propertyColumns+" "+storage.PropertyBaseSQL+" WHERE "+where+" "+orderBy+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	props := []domain.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.loadPropertyLinks(ctx, s.db, props); err != nil {
		return nil, 0, err
	}
	return props, total, nil
}

func createOwner(ctx context.Context, q dbtx, in domain.PersonInput) (int64, error) {
	if err := storage.ValidatePerson(in); err != nil {
		return 0, err
	}
	now := fmtTime(time.Now())
	res, err := q.ExecContext(ctx, `INSERT INTO private_owners
		(uid, first_name, last_name, email, phone, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName),
		strings.TrimSpace(in.Email), strings.TrimSpace(in.Phone), in.Notes, now, now)
	if err != nil {
		return 0, storage.WrapIfConflict(err)
	}
	return res.LastInsertId()
}

func createTenant(ctx context.Context, q dbtx, in domain.PersonInput) (int64, error) {
	if err := storage.ValidatePerson(in); err != nil {
		return 0, err
	}
	now := fmtTime(time.Now())
	res, err := q.ExecContext(ctx, `INSERT INTO tenants
		(uid, first_name, last_name, email, phone, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName),
		strings.TrimSpace(in.Email), strings.TrimSpace(in.Phone), in.Notes, now, now)
	if err != nil {
		return 0, storage.WrapIfConflict(err)
	}
	return res.LastInsertId()
}

// deleteOwnerIfOrphan removes an owner no property references any more.
func deleteOwnerIfOrphan(ctx context.Context, q dbtx, id int64) error {
	linked, err := exists(ctx, q, "SELECT 1 FROM property_owners WHERE owner_id = ? LIMIT 1", id)
	if err != nil || linked {
		return err
	}
	_, err = q.ExecContext(ctx, "DELETE FROM private_owners WHERE id = ?", id)
	return err
}

// deleteTenantIfOrphan removes a tenant with no remaining property links.
// The job_tenants snapshot rows go with it via the foreign key cascade.
func deleteTenantIfOrphan(ctx context.Context, q dbtx, id int64) error {
	linked, err := exists(ctx, q, "SELECT 1 FROM property_tenants WHERE tenant_id = ? LIMIT 1", id)
	if err != nil || linked {
		return err
	}
	_, err = q.ExecContext(ctx, "DELETE FROM tenants WHERE id = ?", id)
	return err
}

// releaseOwners detaches every private owner from the property, deleting
// the ones no other property still references.
func releaseOwners(ctx context.Context, q dbtx, propertyID int64) error {
	old, err := linkIDs(ctx, q,
		"SELECT owner_id FROM property_owners WHERE property_id = ? ORDER BY position, owner_id", propertyID)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM property_owners WHERE property_id = ?", propertyID); err != nil {
		return err
	}
	for _, oid := range old {
		if err := deleteOwnerIfOrphan(ctx, q, oid); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateProperty(ctx context.Context, in domain.CreateProperty) (domain.Property, error) {
	if err := storage.ValidateAddress(in.StreetNumber, in.StreetName, in.Suburb, in.State, in.Postcode); err != nil {
		return domain.Property{}, err
	}
	if in.AgencyID != nil && len(in.PrivateOwners) > 0 {
		return domain.Property{}, fmt.Errorf("property cannot have both an agency and private owners: %w", storage.ErrValidation)
	}
	if in.AgencyID == nil && len(in.PrivateOwners) == 0 {
		return domain.Property{}, fmt.Errorf("property requires an agency or at least one private owner: %w", storage.ErrValidation)
	}

	var out domain.Property
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if in.AgencyID != nil {
			ok, err := exists(ctx, tx, "SELECT 1 FROM agencies WHERE id = ?", *in.AgencyID)
			if err != nil {
				return err
			}
			if !ok {
				return storage.FieldErrorf("agency_id", "agency %d does not exist", *in.AgencyID)
			}
		}

		var ownerIDs []int64
		for _, o := range in.PrivateOwners {
			id, err := createOwner(ctx, tx, o)
			if err != nil {
				return err
			}
			ownerIDs = append(ownerIDs, id)
		}
		var tenantIDs []int64
		for _, t := range in.Tenants {
			id, err := createTenant(ctx, tx, t)
			if err != nil {
				return err
			}
			tenantIDs = append(tenantIDs, id)
		}

		now := time.Now().UTC()
		p := domain.Property{
			UID:             uuid.NewString(),
			UnitNumber:      strings.TrimSpace(in.UnitNumber),
			StreetNumber:    strings.TrimSpace(in.StreetNumber),
			StreetName:      strings.TrimSpace(in.StreetName),
			Suburb:          strings.TrimSpace(in.Suburb),
			State:           strings.TrimSpace(in.State),
			Postcode:        strings.TrimSpace(in.Postcode),
			Country:         in.Country,
			Latitude:        in.Latitude,
			Longitude:       in.Longitude,
			AgencyID:        in.AgencyID,
			PrivateOwnerIDs: ownerIDs,
			TenantIDs:       tenantIDs,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO properties
			(uid, unit_number, street_number, street_name, suburb, state, postcode, country,
			 latitude, longitude, agency_id, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.UID, p.UnitNumber, p.StreetNumber, p.StreetName, p.Suburb, p.State, p.Postcode, p.Country,
			nullFloat(p.Latitude), nullFloat(p.Longitude), nullID(p.AgencyID), p.IsActive,
			fmtTime(now), fmtTime(now))
		if err != nil {
			return storage.WrapIfConflict(err)
		}
		p.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		if err := insertLinks(ctx, tx, "property_owners", "property_id", "owner_id", p.ID, ownerIDs); err != nil {
			return err
		}
		if err := insertLinks(ctx, tx, "property_tenants", "property_id", "tenant_id", p.ID, tenantIDs); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Store) getProperty(ctx context.Context, q dbtx, id int64) (domain.Property, bool, error) {
	p, err := scanProperty(q.QueryRowContext(ctx,
		"SELECT "+propertyColumns+" FROM properties p WHERE p.id = ?", id))
	if err == sql.ErrNoRows {
		return domain.Property{}, false, nil
	}
	if err != nil {
		return domain.Property{}, false, err
	}
	props := []domain.Property{p}
	if err := s.loadPropertyLinks(ctx, q, props); err != nil {
		return domain.Property{}, false, err
	}
	return props[0], true, nil
}

func (s *Store) GetProperty(ctx context.Context, id int64) (domain.Property, bool, error) {
	return s.getProperty(ctx, s.db, id)
}

func (s *Store) FindPropertyByAddress(ctx context.Context, unit, number, street, suburb string) (domain.Property, bool, error) {
	p, err := scanProperty(s.db.QueryRowContext(ctx, "SELECT "+propertyColumns+` FROM properties p
		WHERE lower(p.unit_number) = lower(?) AND lower(p.street_number) = lower(?)
		  AND lower(p.street_name) = lower(?) AND lower(p.suburb) = lower(?)
		LIMIT 1`,
		strings.TrimSpace(unit), strings.TrimSpace(number), strings.TrimSpace(street), strings.TrimSpace(suburb)))
	if err == sql.ErrNoRows {
		return domain.Property{}, false, nil
	}
	if err != nil {
		return domain.Property{}, false, err
	}
	props := []domain.Property{p}
	if err := s.loadPropertyLinks(ctx, s.db, props); err != nil {
		return domain.Property{}, false, err
	}
	return props[0], true, nil
}

func (s *Store) UpdateProperty(ctx context.Context, id int64, update domain.UpdateProperty) (domain.Property, bool, error) {
	var (
		out   domain.Property
		found bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, ok, err := s.getProperty(ctx, tx, id)
		if err != nil || !ok {
			return err
		}

		if update.UnitNumber != nil {
			p.UnitNumber = strings.TrimSpace(*update.UnitNumber)
		}
		if update.StreetNumber != nil {
			p.StreetNumber = strings.TrimSpace(*update.StreetNumber)
		}
		if update.StreetName != nil {
			p.StreetName = strings.TrimSpace(*update.StreetName)
		}
		if update.Suburb != nil {
			p.Suburb = strings.TrimSpace(*update.Suburb)
		}
		if update.State != nil {
			p.State = strings.TrimSpace(*update.State)
		}
		if update.Postcode != nil {
			p.Postcode = strings.TrimSpace(*update.Postcode)
		}
		if update.Country != nil {
			p.Country = *update.Country
		}
		if update.Latitude != nil {
			p.Latitude = update.Latitude
		}
		if update.Longitude != nil {
			p.Longitude = update.Longitude
		}
		if update.IsActive != nil {
			p.IsActive = *update.IsActive
		}
		if err := storage.ValidateAddress(p.StreetNumber, p.StreetName, p.Suburb, p.State, p.Postcode); err != nil {
			return err
		}

		// Ownership replacement. Setting an agency clears private owners
		// and vice versa; the exactly-one-owner rule is re-checked on the
		// result.
		if update.AgencyID != nil {
			ok, err := exists(ctx, tx, "SELECT 1 FROM agencies WHERE id = ?", *update.AgencyID)
			if err != nil {
				return err
			}
			if !ok {
				return storage.FieldErrorf("agency_id", "agency %d does not exist", *update.AgencyID)
			}
			p.AgencyID = update.AgencyID
			if err := releaseOwners(ctx, tx, id); err != nil {
				return err
			}
			p.PrivateOwnerIDs = nil
		}
		if update.PrivateOwners != nil {
			if err := releaseOwners(ctx, tx, id); err != nil {
				return err
			}
			p.PrivateOwnerIDs = nil
			for _, in := range *update.PrivateOwners {
				oid, err := createOwner(ctx, tx, in)
				if err != nil {
					return err
				}
				p.PrivateOwnerIDs = append(p.PrivateOwnerIDs, oid)
			}
			if err := insertLinks(ctx, tx, "property_owners", "property_id", "owner_id", id, p.PrivateOwnerIDs); err != nil {
				return err
			}
			p.AgencyID = nil
		}
		if update.ClearAgency {
			p.AgencyID = nil
		}
		if p.AgencyID == nil && len(p.PrivateOwnerIDs) == 0 {
			return fmt.Errorf("property requires an agency or at least one private owner: %w", storage.ErrValidation)
		}
		if p.AgencyID != nil && len(p.PrivateOwnerIDs) > 0 {
			return fmt.Errorf("property cannot have both an agency and private owners: %w", storage.ErrValidation)
		}

		if update.Tenants != nil {
			old := p.TenantIDs
			if _, err := tx.ExecContext(ctx, "DELETE FROM property_tenants WHERE property_id = ?", id); err != nil {
				return err
			}
			p.TenantIDs = nil
			for _, in := range *update.Tenants {
				tid, err := createTenant(ctx, tx, in)
				if err != nil {
					return err
				}
				p.TenantIDs = append(p.TenantIDs, tid)
			}
			if err := insertLinks(ctx, tx, "property_tenants", "property_id", "tenant_id", id, p.TenantIDs); err != nil {
				return err
			}
			for _, tid := range old {
				if err := deleteTenantIfOrphan(ctx, tx, tid); err != nil {
					return err
				}
			}
		}

		p.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `UPDATE properties SET
			unit_number = ?, street_number = ?, street_name = ?, suburb = ?, state = ?, postcode = ?, country = ?,
			latitude = ?, longitude = ?, agency_id = ?, is_active = ?, updated_at = ?
			WHERE id = ?`,
			p.UnitNumber, p.StreetNumber, p.StreetName, p.Suburb, p.State, p.Postcode, p.Country,
			nullFloat(p.Latitude), nullFloat(p.Longitude), nullID(p.AgencyID), p.IsActive, fmtTime(p.UpdatedAt), id)
		if err != nil {
			return err
		}
		out, found = p, true
		return nil
	})
	return out, found, err
}

func (s *Store) DeleteProperty(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "SELECT 1 FROM properties WHERE id = ?", id)
		if err != nil || !ok {
			return err
		}
		hasJobs, err := exists(ctx, tx, "SELECT 1 FROM jobs WHERE property_id = ? LIMIT 1", id)
		if err != nil {
			return err
		}
		if hasJobs {
			return fmt.Errorf("property has service jobs: %w", storage.ErrConflict)
		}
		owners, err := linkIDs(ctx, tx,
			"SELECT owner_id FROM property_owners WHERE property_id = ?", id)
		if err != nil {
			return err
		}
		tenants, err := linkIDs(ctx, tx,
			"SELECT tenant_id FROM property_tenants WHERE property_id = ?", id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM properties WHERE id = ?", id); err != nil {
			return err
		}
		for _, oid := range owners {
			if err := deleteOwnerIfOrphan(ctx, tx, oid); err != nil {
				return err
			}
		}
		for _, tid := range tenants {
			if err := deleteTenantIfOrphan(ctx, tx, tid); err != nil {
				return err
			}
		}
		found = true
		return nil
	})
	return found, err
}
