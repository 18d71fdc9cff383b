package api

import (
	"net/http"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/domain"
)

// handleListIssueTypes returns the lookup table. ?is_active=true narrows to
// active entries; the list is small enough to skip pagination.
// GET /api/v1/issue-types
func (s *Server) handleListIssueTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activeOnly := r.URL.Query().Get("is_active") == "true"
	types, err := s.store.ListIssueTypes(ctx, activeOnly)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if types == nil {
		types = []domain.IssueType{}
	}
	writeJSON(w, http.StatusOK, types)
}

// POST /api/v1/issue-types
func (s *Server) handleCreateIssueType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in domain.CreateIssueType
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	it, err := s.store.CreateIssueType(ctx, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourceIssueType, it.ID, it.Name, http.StatusCreated)
	writeJSON(w, http.StatusCreated, it)
}

// PATCH /api/v1/issue-types/{id}
func (s *Server) handleUpdateIssueType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.UpdateIssueType
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	it, found, err := s.store.UpdateIssueType(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "issue type not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceIssueType, it.ID, it.Name, http.StatusOK)
	writeJSON(w, http.StatusOK, it)
}
