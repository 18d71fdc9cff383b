//go:build postgres

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/storage"
)

const staffColumns = "id, uid, email, first_name, last_name, role, is_active, password_hash, created_at, updated_at"

func scanStaff(row pgx.Row) (domain.Staff, error) {
	var st domain.Staff
	err := row.Scan(&st.ID, &st.UID, &st.Email, &st.FirstName, &st.LastName, &st.Role, &st.IsActive,
		&st.PasswordHash, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return domain.Staff{}, err
	}
	return st, nil
}

func (s *Store) ListStaff(ctx context.Context, activeOnly bool) ([]domain.Staff, error) {
	sqlText := "SELECT " + staffColumns + " FROM staff"
	if activeOnly {
		sqlText += " WHERE is_active"
	}
	sqlText += " ORDER BY lower(trim(first_name || ' ' || last_name)), email"
	rows, err := s.pool.Query(ctx, sqlText)
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
	st, err := scanStaff(s.pool.QueryRow(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Staff{}, false, nil
	}
	if err != nil {
		return domain.Staff{}, false, err
	}
	return st, true, nil
}

func (s *Store) GetStaffByEmail(ctx context.Context, email string) (domain.Staff, bool, error) {
	st, err := scanStaff(s.pool.QueryRow(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE lower(email) = lower($1)", email))
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		st, err := scanStaff(tx.QueryRow(ctx,
			"SELECT "+staffColumns+" FROM staff WHERE lower(email) = lower($1)", email))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
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
			if _, err := tx.Exec(ctx,
				"UPDATE staff SET first_name = $1, last_name = $2, role = $3, password_hash = $4, updated_at = $5 WHERE id = $6",
				st.FirstName, st.LastName, st.Role, st.PasswordHash, now, st.ID); err != nil {
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
		err = tx.QueryRow(ctx, `INSERT INTO staff
			(uid, email, first_name, last_name, role, is_active, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			st.UID, st.Email, st.FirstName, st.LastName, st.Role, st.IsActive, st.PasswordHash,
			now, now).Scan(&st.ID)
		if err != nil {
			return storage.WrapIfConflict(err)
		}
		out = st
		return nil
	})
	return out, err
}

func (s *Store) SetStaffActive(ctx context.Context, id int64, active bool) (domain.Staff, bool, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE staff SET is_active = $1, updated_at = $2 WHERE id = $3", active, time.Now().UTC(), id)
	if err != nil {
		return domain.Staff{}, false, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Staff{}, false, nil
	}
	return s.GetStaff(ctx, id)
}
