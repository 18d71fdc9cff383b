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

const agencyColumns = `id, uid, name, email, phone, street_number, street_name, suburb, state, postcode,
	latitude, longitude, is_active, created_at, updated_at`

func scanAgency(row interface{ Scan(...any) error }) (domain.Agency, error) {
	var (
		a                    domain.Agency
		lat, lng             sql.NullFloat64
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.UID, &a.Name, &a.Email, &a.Phone, &a.StreetNumber, &a.StreetName,
		&a.Suburb, &a.State, &a.Postcode, &lat, &lng, &a.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return domain.Agency{}, err
	}
	a.Latitude = floatPtr(lat)
	a.Longitude = floatPtr(lng)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func (s *Store) loadManagerIDs(ctx context.Context, q dbtx, agencies []domain.Agency) error {
	ids := make([]int64, len(agencies))
	for i, a := range agencies {
		ids[i] = a.ID
	}
	if len(ids) == 0 {
		return nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		"SELECT agency_id, id FROM managers WHERE agency_id IN ("+ph+") ORDER BY id", args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	byAgency := make(map[int64][]int64)
	for rows.Next() {
		var agencyID, id int64
		if err := rows.Scan(&agencyID, &id); err != nil {
			return err
		}
		byAgency[agencyID] = append(byAgency[agencyID], id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range agencies {
		agencies[i].ManagerIDs = byAgency[agencies[i].ID]
	}
	return nil
}

func (s *Store) ListAgencies(ctx context.Context, q domain.PersonListQuery) ([]domain.Agency, int, error) {
	pred := normalizeDates(storage.CompilePersonFilter(q, storage.AgencySearchFields))
	where, args := query.ToSQL(pred, storage.AgencyColumn, query.DialectSQLite, 0)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM agencies WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orders := query.ResolveOrdering(q.Ordering, nil, storage.DefaultAgencyOrdering)
	orderBy := query.OrderSQL(orders, storage.AgencyColumn)
	if orderBy == "" {
		orderBy = "ORDER BY name"
	}
	orderBy += ", id"

	size := pageSize(q.PageSize)
	page := pageOr1(q.Page)
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+agencyColumns+" FROM agencies WHERE "+where+" "+orderBy+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.Agency{}
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.loadManagerIDs(ctx, s.db, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) CreateAgency(ctx context.Context, in domain.CreateAgency) (domain.Agency, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Agency{}, storage.FieldErrorf("name", "Name is required")
	}
	now := time.Now().UTC()
	a := domain.Agency{
		UID:          uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		StreetNumber: in.StreetNumber,
		StreetName:   in.StreetName,
		Suburb:       in.Suburb,
		State:        in.State,
		Postcode:     in.Postcode,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO agencies
		(uid, name, email, phone, street_number, street_name, suburb, state, postcode,
		 latitude, longitude, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UID, a.Name, a.Email, a.Phone, a.StreetNumber, a.StreetName, a.Suburb, a.State, a.Postcode,
		nullFloat(a.Latitude), nullFloat(a.Longitude), a.IsActive, fmtTime(now), fmtTime(now))
	if err != nil {
		return domain.Agency{}, storage.WrapIfConflict(err)
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

func (s *Store) GetAgency(ctx context.Context, id int64) (domain.Agency, bool, error) {
	a, err := scanAgency(s.db.QueryRowContext(ctx,
		"SELECT "+agencyColumns+" FROM agencies WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return domain.Agency{}, false, nil
	}
	if err != nil {
		return domain.Agency{}, false, err
	}
	agencies := []domain.Agency{a}
	if err := s.loadManagerIDs(ctx, s.db, agencies); err != nil {
		return domain.Agency{}, false, err
	}
	return agencies[0], true, nil
}

func (s *Store) UpdateAgency(ctx context.Context, id int64, update domain.UpdateAgency) (domain.Agency, bool, error) {
	a, ok, err := s.GetAgency(ctx, id)
	if err != nil || !ok {
		return domain.Agency{}, false, err
	}
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return domain.Agency{}, false, storage.FieldErrorf("name", "Name is required")
		}
		a.Name = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil {
		a.Email = strings.TrimSpace(*update.Email)
	}
	if update.Phone != nil {
		a.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.StreetNumber != nil {
		a.StreetNumber = *update.StreetNumber
	}
	if update.StreetName != nil {
		a.StreetName = *update.StreetName
	}
	if update.Suburb != nil {
		a.Suburb = *update.Suburb
	}
	if update.State != nil {
		a.State = *update.State
	}
	if update.Postcode != nil {
		a.Postcode = *update.Postcode
	}
	if update.Latitude != nil {
		a.Latitude = update.Latitude
	}
	if update.Longitude != nil {
		a.Longitude = update.Longitude
	}
	if update.IsActive != nil {
		a.IsActive = *update.IsActive
	}
	a.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `UPDATE agencies SET
		name = ?, email = ?, phone = ?, street_number = ?, street_name = ?, suburb = ?, state = ?, postcode = ?,
		latitude = ?, longitude = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, a.Email, a.Phone, a.StreetNumber, a.StreetName, a.Suburb, a.State, a.Postcode,
		nullFloat(a.Latitude), nullFloat(a.Longitude), a.IsActive, fmtTime(a.UpdatedAt), id)
	if err != nil {
		return domain.Agency{}, false, err
	}
	return a, true, nil
}

const managerColumns = "id, uid, agency_id, first_name, last_name, email, phone, notes, created_at, updated_at"

func scanManager(row interface{ Scan(...any) error }) (domain.PropertyManager, error) {
	var (
		m                    domain.PropertyManager
		createdAt, updatedAt string
	)
	err := row.Scan(&m.ID, &m.UID, &m.AgencyID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.Notes,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.PropertyManager{}, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return m, nil
}

func (s *Store) ListManagers(ctx context.Context, agencyID int64) ([]domain.PropertyManager, error) {
	ok, err := exists(ctx, s.db, "SELECT 1 FROM agencies WHERE id = ?", agencyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("agency %d: %w", agencyID, storage.ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+managerColumns+` FROM managers
		WHERE agency_id = ? ORDER BY lower(trim(first_name || ' ' || last_name)), id`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PropertyManager
	for rows.Next() {
		m, err := scanManager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AddManager(ctx context.Context, agencyID int64, in domain.PersonInput) (domain.PropertyManager, error) {
	var out domain.PropertyManager
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "SELECT 1 FROM agencies WHERE id = ?", agencyID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("agency %d: %w", agencyID, storage.ErrNotFound)
		}
		if err := storage.ValidatePerson(in); err != nil {
			return err
		}
		now := time.Now().UTC()
		m := domain.PropertyManager{
			Person: domain.Person{
				UID:       uuid.NewString(),
				FirstName: strings.TrimSpace(in.FirstName),
				LastName:  strings.TrimSpace(in.LastName),
				Email:     strings.TrimSpace(in.Email),
				Phone:     strings.TrimSpace(in.Phone),
				Notes:     in.Notes,
				CreatedAt: now,
				UpdatedAt: now,
			},
			AgencyID: agencyID,
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO managers
			(uid, agency_id, first_name, last_name, email, phone, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.UID, m.AgencyID, m.FirstName, m.LastName, m.Email, m.Phone, m.Notes, fmtTime(now), fmtTime(now))
		if err != nil {
			return storage.WrapIfConflict(err)
		}
		m.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE agencies SET updated_at = ? WHERE id = ?", fmtTime(now), agencyID); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

func (s *Store) RemoveManager(ctx context.Context, agencyID, managerID int64) (bool, error) {
	var found bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM managers WHERE id = ? AND agency_id = ?", managerID, agencyID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE agencies SET updated_at = ? WHERE id = ?", fmtTime(time.Now()), agencyID); err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *Store) UpdateManager(ctx context.Context, id int64, update domain.UpdatePerson) (domain.PropertyManager, bool, error) {
	m, err := scanManager(s.db.QueryRowContext(ctx,
		"SELECT "+managerColumns+" FROM managers WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return domain.PropertyManager{}, false, nil
	}
	if err != nil {
		return domain.PropertyManager{}, false, err
	}
	if err := storage.ApplyPersonUpdate(&m.Person, update); err != nil {
		return domain.PropertyManager{}, false, err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE managers SET first_name = ?, last_name = ?, email = ?, phone = ?, notes = ?, updated_at = ? WHERE id = ?",
		m.FirstName, m.LastName, m.Email, m.Phone, m.Notes, fmtTime(m.UpdatedAt), id)
	if err != nil {
		return domain.PropertyManager{}, false, err
	}
	return m, true, nil
}
