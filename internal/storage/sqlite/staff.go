//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/storage"
)

const staffColumns = "id, uid, email, first_name, last_name, role, is_active, password_hash, created_at, updated_at"

func scanStaff(row interface{ Scan(...any) error }) (domain.Staff, error) {
	var (
		st                   domain.Staff
		createdAt, updatedAt string
	)
	err := row.Scan(&st.ID, &st.UID, &st.Email, &st.FirstName, &st.LastName, &st.Role, &st.IsActive,
		&st.PasswordHash, &createdAt, &updatedAt)
	if err != nil {
		return domain.Staff{}, err
	}
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}

func (s *Store) ListStaff(ctx context.Context, activeOnly bool) ([]domain.Staff, error) {
	sqlText := "SELECT " + staffColumns + " FROM staff"
	if activeOnly {
		sqlText += " WHERE is_active = 1"
	}
	sqlText += " ORDER BY lower(trim(first_name || ' ' || last_name)), email"
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Staff
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) GetStaff(ctx context.Context, id int64) (domain.Staff, bool, error) {
	st, err := scanStaff(s.db.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return domain.Staff{}, false, nil
	}
	if err != nil {
		return domain.Staff{}, false, err
	}
	return st, true, nil
}

func (s *Store) GetStaffByEmail(ctx context.Context, email string) (domain.Staff, bool, error) {
	st, err := scanStaff(s.db.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE lower(email) = lower(?)", email))
	if err == sql.ErrNoRows {
		return domain.Staff{}, false, nil
	}
	if err != nil {
		return domain.Staff{}, false, err
	}
	return st, true, nil
}

func (s *Store) UpsertStaffByEmail(ctx context.Context, in domain.StaffInput) (domain.Staff, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return domain.Staff{}, storage.FieldErrorf("email", "Email is required")
	}
	var out domain.Staff
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := scanStaff(tx.QueryRowContext(ctx,
			"SELECT "+staffColumns+" FROM staff WHERE lower(email) = lower(?)", email))
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		now := time.Now().UTC()
		if err == nil {
			if in.FirstName != "" {
				st.FirstName = in.FirstName
			}
			if in.LastName != "" {
				st.LastName = in.LastName
			}
			if in.Role != "" {
				st.Role = in.Role
			}
			if in.PasswordHash != "" {
				st.PasswordHash = in.PasswordHash
			}
			st.UpdatedAt = now
			if _, err := tx.ExecContext(ctx,
				"UPDATE staff SET first_name = ?, last_name = ?, role = ?, password_hash = ?, updated_at = ? WHERE id = ?",
				st.FirstName, st.LastName, st.Role, st.PasswordHash, fmtTime(now), st.ID); err != nil {
				return err
			}
			out = st
			return nil
		}

		role := in.Role
		if role == "" {
			role = domain.RoleStaff
		}
		st = domain.Staff{
			UID:          uuid.NewString(),
			Email:        email,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Role:         role,
			IsActive:     true,
			PasswordHash: in.PasswordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO staff
			(uid, email, first_name, last_name, role, is_active, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.UID, st.Email, st.FirstName, st.LastName, st.Role, st.IsActive, st.PasswordHash,
			fmtTime(now), fmtTime(now))
		if err != nil {
			return storage.WrapIfConflict(err)
		}
		st.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

func (s *Store) SetStaffActive(ctx context.Context, id int64, active bool) (domain.Staff, bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE staff SET is_active = ?, updated_at = ? WHERE id = ?", active, fmtTime(time.Now()), id)
	if err != nil {
		return domain.Staff{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return domain.Staff{}, false, err
	}
	return s.GetStaff(ctx, id)
}
