//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
	"alarmtrack/internal/storage"
)

const jobColumns = `j.id, j.uid, j.status, j.notes, j.property_id, j.issue_type_id, j.agency_id, j.private_owner_id,
	j.is_customer_contacted, j.is_active, j.is_agency, j.is_private_owner, j.is_completed, j.is_cancelled,
	j.created_at, j.updated_at`

func scanJob(row interface{ Scan(...any) error }) (domain.ServiceJob, error) {
	var (
		j                         domain.ServiceJob
		issueType, agency, owner  sql.NullInt64
		createdAt, updatedAt      string
	)
	err := row.Scan(&j.ID, &j.UID, &j.Status, &j.Notes, &j.PropertyID, &issueType, &agency, &owner,
		&j.IsCustomerContacted, &j.IsActive, &j.IsAgency, &j.IsPrivateOwner, &j.IsCompleted, &j.IsCancelled,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.ServiceJob{}, err
	}
	j.IssueTypeID = idPtr(issueType)
	j.AgencyID = idPtr(agency)
	j.PrivateOwnerID = idPtr(owner)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return j, nil
}

// loadJobLinks fills the tenant and allocation id slices for a page of
// jobs with two batch queries.
func (s *Store) loadJobLinks(ctx context.Context, q dbtx, jobs []domain.ServiceJob) error {
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
	pred := normalizeDates(storage.CompileJobFilter(q))
	where, args := query.ToSQL(pred, storage.JobColumn, query.DialectSQLite, 0)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+storage.JobBaseSQL+" WHERE "+where, args...).Scan(&total); err != nil {
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
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" "+storage.JobBaseSQL+" WHERE "+where+" "+orderBy+" LIMIT ? OFFSET ?", args...)
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
	if err := s.loadJobLinks(ctx, s.db, jobs); err != nil {
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var agencyID sql.NullInt64
		err := tx.QueryRowContext(ctx, "SELECT agency_id FROM properties WHERE id = ?", in.PropertyID).Scan(&agencyID)
		if err == sql.ErrNoRows {
			return storage.FieldErrorf("property_id", "property %d does not exist", in.PropertyID)
		}
		if err != nil {
			return err
		}
		if in.IssueTypeID != nil {
			ok, err := exists(ctx, tx, "SELECT 1 FROM issue_types WHERE id = ?", *in.IssueTypeID)
			if err != nil {
				return err
			}
			if !ok {
				return storage.FieldErrorf("issue_type_id", "issue type %d does not exist", *in.IssueTypeID)
			}
		}
		for _, id := range in.AllocationIDs {
			ok, err := exists(ctx, tx, "SELECT 1 FROM staff WHERE id = ?", id)
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
				"SELECT tenant_id FROM property_tenants WHERE property_id = ? ORDER BY position, tenant_id", in.PropertyID)
			if err != nil {
				return err
			}
		} else {
			for _, id := range tenants {
				ok, err := exists(ctx, tx, "SELECT 1 FROM tenants WHERE id = ?", id)
				if err != nil {
					return err
				}
				if !ok {
					return storage.FieldErrorf("tenant_ids", "tenant %d does not exist", id)
				}
			}
		}

		var ownerID sql.NullInt64
		err = tx.QueryRowContext(ctx,
			"SELECT owner_id FROM property_owners WHERE property_id = ? ORDER BY position, owner_id LIMIT 1",
			in.PropertyID).Scan(&ownerID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		now := time.Now().UTC()
		j := domain.ServiceJob{
			UID:                 uuid.NewString(),
			Status:              status,
			Notes:               in.Notes,
			PropertyID:          in.PropertyID,
			IssueTypeID:         in.IssueTypeID,
			AgencyID:            idPtr(agencyID),
			PrivateOwnerID:      idPtr(ownerID),
			TenantIDs:           tenants,
			AllocationIDs:       in.AllocationIDs,
			IsCustomerContacted: in.IsCustomerContacted,
			IsActive:            true,
			IsAgency:            agencyID.Valid,
			IsPrivateOwner:      !agencyID.Valid,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		j.SyncCompletionFlags()

		res, err := tx.ExecContext(ctx, `INSERT INTO jobs
			(uid, status, notes, property_id, issue_type_id, agency_id, private_owner_id,
			 is_customer_contacted, is_active, is_agency, is_private_owner, is_completed, is_cancelled,
			 created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.UID, j.Status, j.Notes, j.PropertyID, nullID(j.IssueTypeID), nullID(j.AgencyID), nullID(j.PrivateOwnerID),
			j.IsCustomerContacted, j.IsActive, j.IsAgency, j.IsPrivateOwner, j.IsCompleted, j.IsCancelled,
			fmtTime(now), fmtTime(now))
		if err != nil {
			return storage.WrapIfConflict(err)
		}
		j.ID, err = res.LastInsertId()
		if err != nil {
			return err
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

func (s *Store) getJob(ctx context.Context, q dbtx, id int64) (domain.ServiceJob, bool, error) {
	j, err := scanJob(q.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs j WHERE j.id = ?", id))
	if err == sql.ErrNoRows {
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
	return s.getJob(ctx, s.db, id)
}

func (s *Store) UpdateJob(ctx context.Context, id int64, update domain.UpdateJob) (domain.ServiceJob, bool, error) {
	var (
		out   domain.ServiceJob
		found bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
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
			ok, err := exists(ctx, tx, "SELECT 1 FROM issue_types WHERE id = ?", *update.IssueTypeID)
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
				ok, err := exists(ctx, tx, "SELECT 1 FROM staff WHERE id = ?", sid)
				if err != nil {
					return err
				}
				if !ok {
					return storage.FieldErrorf("allocation_ids", "user %d does not exist", sid)
				}
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM job_allocations WHERE job_id = ?", id); err != nil {
				return err
			}
			if err := insertLinks(ctx, tx, "job_allocations", "job_id", "staff_id", id, *update.AllocationIDs); err != nil {
				return err
			}
			j.AllocationIDs = *update.AllocationIDs
		}
		if update.TenantIDs != nil {
			for _, tid := range *update.TenantIDs {
				ok, err := exists(ctx, tx, "SELECT 1 FROM tenants WHERE id = ?", tid)
				if err != nil {
					return err
				}
				if !ok {
					return storage.FieldErrorf("tenant_ids", "tenant %d does not exist", tid)
				}
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM job_tenants WHERE job_id = ?", id); err != nil {
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

		_, err = tx.ExecContext(ctx, `UPDATE jobs SET
			status = ?, notes = ?, issue_type_id = ?,
			is_customer_contacted = ?, is_active = ?, is_completed = ?, is_cancelled = ?, updated_at = ?
			WHERE id = ?`,
			j.Status, j.Notes, nullID(j.IssueTypeID),
			j.IsCustomerContacted, j.IsActive, j.IsCompleted, j.IsCancelled, fmtTime(j.UpdatedAt), id)
		if err != nil {
			return err
		}
		out, found = j, true
		return nil
	})
	return out, found, err
}

func (s *Store) ListJobUpdates(ctx context.Context, jobID int64) ([]domain.JobUpdate, error) {
	ok, err := exists(ctx, s.db, "SELECT 1 FROM jobs WHERE id = ?", jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("job %d: %w", jobID, storage.ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, uid, job_id, status, note, author_id, created_at
		FROM job_updates WHERE job_id = ? ORDER BY created_at DESC, id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobUpdate
	for rows.Next() {
		var (
			u         domain.JobUpdate
			author    sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.UID, &u.JobID, &u.Status, &u.Note, &author, &createdAt); err != nil {
			return nil, err
		}
		u.AuthorID = idPtr(author)
		u.CreatedAt = parseTime(createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) AppendJobUpdate(ctx context.Context, in domain.CreateJobUpdate, authorID *int64) (domain.JobUpdate, error) {
	ok, err := exists(ctx, s.db, "SELECT 1 FROM jobs WHERE id = ?", in.JobID)
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
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO job_updates (uid, job_id, status, note, author_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.UID, u.JobID, u.Status, u.Note, nullID(u.AuthorID), fmtTime(u.CreatedAt))
	if err != nil {
		return domain.JobUpdate{}, storage.WrapIfConflict(err)
	}
	u.ID, err = res.LastInsertId()
	return u, err
}
