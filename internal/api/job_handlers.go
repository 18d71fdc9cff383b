package api

import (
	"net/http"
	"net/url"
	"strconv"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/auth"
	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

func parseOptionalID(values url.Values, key string) *int64 {
	raw := values.Get(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return nil
	}
	return &n
}

func parseOptionalBool(values url.Values, key string) *bool {
	switch values.Get(key) {
	case "true", "1":
		b := true
		return &b
	case "false", "0":
		b := false
		return &b
	}
	return nil
}

func parseJobListQuery(values url.Values) domain.JobListQuery {
	return domain.JobListQuery{
		Search:            values.Get("search"),
		Status:            values.Get("status"),
		AllocationID:      parseOptionalID(values, "allocation"),
		IssueTypeID:       parseOptionalID(values, "issue_type"),
		PropertyID:        parseOptionalID(values, "property"),
		TenantID:          parseOptionalID(values, "tenant"),
		AgencyPrivate:     values.Get("agency_private"),
		CustomerContacted: parseOptionalBool(values, "is_customer_contacted"),
		CreatedFrom:       values.Get("created_at_from"),
		CreatedTo:         values.Get("created_at_to"),
		Ordering:          values.Get("ordering"),
		Page:              query.ParsePage(values.Get("page")),
		PageSize:          query.ParsePageSize(values.Get("page_size")),
	}
}

// handleListJobs serves the paginated, filtered job list.
// GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := parseJobListQuery(r.URL.Query())
	jobs, total, err := s.store.ListJobs(ctx, q)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	views := s.toJobViews(ctx, jobs)
	writeJSON(w, http.StatusOK, query.Envelope(views, total, q.Page, q.PageSize, r.URL))
}

// handleCreateJob creates a service job against a property.
// POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in domain.CreateJob
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	job, err := s.store.CreateJob(ctx, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourceJob, job.ID, string(job.Status), http.StatusCreated)
	writeJSON(w, http.StatusCreated, s.toJobView(ctx, job))
}

// handleGetJob returns a single job with its nested records.
// GET /api/v1/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	job, found, err := s.store.GetJob(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "job not found", "")
		return
	}
	writeJSON(w, http.StatusOK, s.toJobView(ctx, job))
}

// handleUpdateJob applies a partial update. Completion flags are derived
// from the status so both can never be set.
// PATCH /api/v1/jobs/{id}
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.UpdateJob
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	job, found, err := s.store.UpdateJob(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "job not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceJob, job.ID, string(job.Status), http.StatusOK)
	writeJSON(w, http.StatusOK, s.toJobView(ctx, job))
}

// handleListJobUpdates returns the job's history, newest first.
// GET /api/v1/jobs/{id}/updates
func (s *Server) handleListJobUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, found, err := s.store.GetJob(ctx, id); err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	} else if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "job not found", "")
		return
	}
	updates, err := s.store.ListJobUpdates(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if updates == nil {
		updates = []domain.JobUpdate{}
	}
	writeJSON(w, http.StatusOK, updates)
}

// handleCreateJobUpdate appends a history entry. The job's own status moves
// via PATCH; history is append-only and never edited.
// POST /api/v1/job-updates
func (s *Server) handleCreateJobUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in domain.CreateJobUpdate
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	var authorID *int64
	if staff := auth.StaffFromContext(ctx); staff != nil {
		authorID = &staff.ID
	}
	update, err := s.store.AppendJobUpdate(ctx, in, authorID)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourceJobUpdate, update.ID, string(update.Status), http.StatusCreated)
	writeJSON(w, http.StatusCreated, update)
}
