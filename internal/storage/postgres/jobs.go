//go:build postgres

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
	"alarmtrack/internal/storage"
)

const jobColumns = `j.id, j.uid, j.status, j.notes, j.property_id, j.issue_type_id, j.agency_id, j.private_owner_id,
	j.is_customer_contacted, j.is_active, j.is_agency, j.is_private_owner, j.is_completed, j.is_cancelled,
	j.created_at, j.updated_at`

func scanJob(row pgx.Row) (domain.ServiceJob, error) {
	var j domain.ServiceJob
	err := row.Scan(&j.ID, &j.UID, &j.Status, &j.Notes, &j.PropertyID, &j.IssueTypeID, &j.AgencyID, &j.PrivateOwnerID,
		&j.IsCustomerContacted, &j.IsActive, &j.IsAgency, &j.IsPrivateOwner, &j.IsCompleted, &j.IsCancelled,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return domain.ServiceJob{}, err
	}
	return j, nil
}

// loadJobLinks fills the tenant and allocation id slices for a page of
// jobs with two batch queries.
func (s *Store) loadJobLinks(ctx context.Context, q querier, jobs []domain.ServiceJob) error {
	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	tenants, err := linkMap(ctx, q, "job_tenants", "job_id", "tenant_id", ids)
	if err != nil {
		return err
	}
	allocations, err := linkMap(ctx, q, "job_allocations", "job_id", "staff_id", ids)
	if err != nil {
		return err
	}
	for i := range jobs {
		jobs[i].TenantIDs = tenants[jobs[i].ID]
		jobs[i].AllocationIDs = allocations[jobs[i].ID]
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, q domain.JobListQuery) ([]domain.ServiceJob, int, error) {
	pred := storage.CompileJobFilter(q)
	where, args := query.ToSQL(pred, storage.JobColumn, query.DialectPostgres, 0)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) "+storage.JobBaseSQL+" WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orders := query.ResolveOrdering(q.Ordering, storage.JobOrderingAliases, storage.DefaultJobOrdering)
	orderBy := query.OrderSQL(orders, storage.JobOrderColumn)
	if orderBy == "" {
		orderBy = "ORDER BY j.created_at DESC"
	}
	orderBy += ", j.id"

	size := pageSize(q.PageSize)
	page := pageOr1(q.Page)
	limit := fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, size, (page-1)*size)
	rows, err := s.pool.Query(ctx,
		"SELECT "+jobColumns+" "+storage.JobBaseSQL+" WHERE "+where+" "+orderBy+" "+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs := []domain.ServiceJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.loadJobLinks(ctx, s.pool, jobs); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (s *Store) CreateJob(ctx context.Context, in domain.CreateJob) (domain.ServiceJob, error) {
	status := in.Status
	if status == "" {
		status = domain.StatusNew
	}
	if !status.Valid() {
		return domain.ServiceJob{}, storage.FieldErrorf("status", "unknown status %q", status)
	}

	var out domain.ServiceJob
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var agencyID *int64
		err := tx.QueryRow(ctx, "SELECT agency_id FROM properties WHERE id = $1", in.PropertyID).Scan(&agencyID)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.FieldErrorf("property_id", "property %d does not exist", in.PropertyID)
		}
		if err != nil {
			return err
		}
		if in.IssueTypeID != nil {
			ok, err := exists(ctx, tx, "SELECT 1 FROM issue_types WHERE id = $1", *in.IssueTypeID)
			if err != nil {
				return err
			}
			if !ok {
				return storage.FieldErrorf("issue_type_id", "issue type %d does not exist", *in.IssueTypeID)
			}
		}
		for _, id := range in.AllocationIDs {
			ok, err := exists(ctx, tx, "SELECT 1 FROM staff WHERE id = $1", id)
			if err != nil {
				return err
			}
			if !ok {
				return storage.FieldErrorf("allocation_ids", "user %d does not exist", id)
			}
		}
		tenants := in.TenantIDs
		if tenants == nil {
			// Snapshot the property's tenants at creation time.
			tenants, err = linkIDs(ctx, tx,
				"SELECT tenant_id FROM property_tenants WHERE property_id = $1 ORDER BY position, tenant_id", in.PropertyID)
			if err != nil {
				return err
			}
		} else {
			for _, id := range tenants {
				ok, err := exists(ctx, tx, "SELECT 1 FROM tenants WHERE id = $1", id)
				if err != nil {
					return err
				}
				if !ok {
					return storage.FieldErrorf("tenant_ids", "tenant %d does not exist", id)
				}
			}
		}

		var ownerID *int64
		err = tx.QueryRow(ctx,
			"SELECT owner_id FROM property_owners WHERE property_id = $1 ORDER BY position, owner_id LIMIT 1",
			in.PropertyID).Scan(&ownerID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		now := time.Now().UTC()
		j := domain.ServiceJob{
			UID:                 uuid.NewString(),
			Status:              status,
			Notes:               in.Notes,
			PropertyID:          in.PropertyID,
			IssueTypeID:         in.IssueTypeID,
			AgencyID:            agencyID,
			PrivateOwnerID:      ownerID,
			TenantIDs:           tenants,
			AllocationIDs:       in.AllocationIDs,
			IsCustomerContacted: in.IsCustomerContacted,
			IsActive:            true,
			IsAgency:            agencyID != nil,
			IsPrivateOwner:      agencyID == nil,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		j.SyncCompletionFlags()

		err = tx.QueryRow(ctx, `INSERT INTO jobs
			(uid, status, notes, property_id, issue_type_id, agency_id, private_owner_id,
			 is_customer_contacted, is_active, is_agency, is_private_owner, is_completed, is_cancelled,
			 created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id`,
			j.UID, j.Status, j.Notes, j.PropertyID, j.IssueTypeID, j.AgencyID, j.PrivateOwnerID,
			j.IsCustomerContacted, j.IsActive, j.IsAgency, j.IsPrivateOwner, j.IsCompleted, j.IsCancelled,
			now, now).Scan(&j.ID)
		if err != nil {
			return storage.WrapIfConflict(err)
		}
		if err := insertLinks(ctx, tx, "job_tenants", "job_id", "tenant_id", j.ID, j.TenantIDs); err != nil {
			return err
		}
		if err := insertLinks(ctx, tx, "job_allocations", "job_id", "staff_id", j.ID, j.AllocationIDs); err != nil {
			return err
		}
		out = j
		return nil
	})
	return out, err
}

func (s *Store) getJob(ctx context.Context, q querier, id int64) (domain.ServiceJob, bool, error) {
	j, err := scanJob(q.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs j WHERE j.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ServiceJob{}, false, nil
	}
	if err != nil {
		return domain.ServiceJob{}, false, err
	}
	jobs := []domain.ServiceJob{j}
	if err := s.loadJobLinks(ctx, q, jobs); err != nil {
		return domain.ServiceJob{}, false, err
	}
	return jobs[0], true, nil
}

func (s *Store) GetJob(ctx context.Context, id int64) (domain.ServiceJob, bool, error) {
	return s.getJob(ctx, s.pool, id)
}

func (s *Store) UpdateJob(ctx context.Context, id int64, update domain.UpdateJob) (domain.ServiceJob, bool, error) {
	var (
		out   domain.ServiceJob
		found bool
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		j, ok, err := s.getJob(ctx, tx, id)
		if err != nil || !ok {
			return err
		}
		if update.Status != nil {
			if !update.Status.Valid() {
				return storage.FieldErrorf("status", "unknown status %q", *update.Status)
			}
			j.Status = *update.Status
		}
		if update.Notes != nil {
			j.Notes = *update.Notes
		}
		if update.IssueTypeID != nil {
			ok, err := exists(ctx, tx, "SELECT 1 FROM issue_types WHERE id = $1", *update.IssueTypeID)
			if err != nil {
				return err
			}
			if !ok {
				return storage.FieldErrorf("issue_type_id", "issue type %d does not exist", *update.IssueTypeID)
			}
			j.IssueTypeID = update.IssueTypeID
		}
		if update.AllocationIDs != nil {
			for _, sid := range *update.AllocationIDs {
				ok, err := exists(ctx, tx, "SELECT 1 FROM staff WHERE id = $1", sid)
				if err != nil {
					return err
				}
				if !ok {
					return storage.FieldErrorf("allocation_ids", "user %d does not exist", sid)
				}
			}
			if _, err := tx.Exec(ctx, "DELETE FROM job_allocations WHERE job_id = $1", id); err != nil {
				return err
			}
			if err := insertLinks(ctx, tx, "job_allocations", "job_id", "staff_id", id, *update.AllocationIDs); err != nil {
				return err
			}
			j.AllocationIDs = *update.AllocationIDs
		}
		if update.TenantIDs != nil {
			for _, tid := range *update.TenantIDs {
				ok, err := exists(ctx, tx, "SELECT 1 FROM tenants WHERE id = $1", tid)
				if err != nil {
					return err
				}
				if !ok {
					return storage.FieldErrorf("tenant_ids", "tenant %d does not exist", tid)
				}
			}
			if _, err := tx.Exec(ctx, "DELETE FROM job_tenants WHERE job_id = $1", id); err != nil {
				return err
			}
			if err := insertLinks(ctx, tx, "job_tenants", "job_id", "tenant_id", id, *update.TenantIDs); err != nil {
				return err
			}
			j.TenantIDs = *update.TenantIDs
		}
		if update.IsCustomerContacted != nil {
			j.IsCustomerContacted = *update.IsCustomerContacted
		}
		if update.IsActive != nil {
			j.IsActive = *update.IsActive
		}
		j.SyncCompletionFlags()
		j.UpdatedAt = time.Now().UTC()

		_, err = tx.Exec(ctx, `UPDATE jobs SET
			status = $1, notes = $2, issue_type_id = $3,
			is_customer_contacted = $4, is_active = $5, is_completed = $6, is_cancelled = $7, updated_at = $8
			WHERE id = $9`,
			j.Status, j.Notes, j.IssueTypeID,
			j.IsCustomerContacted, j.IsActive, j.IsCompleted, j.IsCancelled, j.UpdatedAt, id)
		if err != nil {
			return err
		}
		out, found = j, true
		return nil
	})
	return out, found, err
}

func (s *Store) ListJobUpdates(ctx context.Context, jobID int64) ([]domain.JobUpdate, error) {
	ok, err := exists(ctx, s.pool, "SELECT 1 FROM jobs WHERE id = $1", jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("job %d: %w", jobID, storage.ErrNotFound)
	}
	rows, err := s.pool.Query(ctx, `SELECT id, uid, job_id, status, note, author_id, created_at
		FROM job_updates WHERE job_id = $1 ORDER BY created_at DESC, id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobUpdate
	for rows.Next() {
		var u domain.JobUpdate
		if err := rows.Scan(&u.ID, &u.UID, &u.JobID, &u.Status, &u.Note, &u.AuthorID, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) AppendJobUpdate(ctx context.Context, in domain.CreateJobUpdate, authorID *int64) (domain.JobUpdate, error) {
	ok, err := exists(ctx, s.pool, "SELECT 1 FROM jobs WHERE id = $1", in.JobID)
	if err != nil {
		return domain.JobUpdate{}, err
	}
	if !ok {
		return domain.JobUpdate{}, fmt.Errorf("job %d: %w", in.JobID, storage.ErrNotFound)
	}
	if !in.Status.Valid() {
		return domain.JobUpdate{}, storage.FieldErrorf("status", "unknown status %q", in.Status)
	}
	u := domain.JobUpdate{
		UID:       uuid.NewString(),
		JobID:     in.JobID,
		Status:    in.Status,
		Note:      in.Note,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
	err = s.pool.QueryRow(ctx,
		"INSERT INTO job_updates (uid, job_id, status, note, author_id, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		u.UID, u.JobID, u.Status, u.Note, u.AuthorID, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return domain.JobUpdate{}, storage.WrapIfConflict(err)
	}
	return u, nil
}
