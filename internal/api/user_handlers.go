package api

import (
	"net/http"
	"strconv"
	"time"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/auth"
)

// handleListUsers returns staff who can be allocated to jobs. Defaults to
// active users only; ?all=true includes deactivated ones.
// GET /api/v1/users
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activeOnly := r.URL.Query().Get("all") != "true"
	staff, err := s.store.ListStaff(ctx, activeOnly)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	views := make([]staffView, 0, len(staff))
	for _, st := range staff {
		views = append(views, toStaffView(st))
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /api/v1/users/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	staff := auth.StaffFromContext(ctx)
	if staff == nil {
		s.writeErr(ctx, w, http.StatusUnauthorized, "authentication required", "")
		return
	}
	writeJSON(w, http.StatusOK, toStaffView(*staff))
}

type updateUserRequest struct {
	IsActive *bool `json:"is_active"`
}

// handleUpdateUser activates or deactivates a staff record. Admin only;
// users cannot deactivate themselves.
// PATCH /api/v1/users/{id}
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.authenticator != nil && !auth.IsAdmin(ctx) {
		s.writeErr(ctx, w, http.StatusForbidden, "admin role required", "")
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if me := auth.StaffFromContext(ctx); me != nil && me.ID == id {
		s.writeErr(ctx, w, http.StatusBadRequest, "cannot change your own active status", "")
		return
	}
	var in updateUserRequest
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	if in.IsActive == nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "is_active is required", "")
		return
	}
	staff, found, err := s.store.SetStaffActive(ctx, id, *in.IsActive)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "user not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceUser, staff.ID, staff.Email, http.StatusOK)
	writeJSON(w, http.StatusOK, toStaffView(staff))
}

// handleListAudit pages through recent mutation events, newest first.
// Admin only.
// GET /api/v1/audit
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.authenticator != nil && !auth.IsAdmin(ctx) {
		s.writeErr(ctx, w, http.StatusForbidden, "admin role required", "")
		return
	}
	values := r.URL.Query()
	opts := audit.ListOptions{
		Actor:        values.Get("actor"),
		Action:       values.Get("action"),
		ResourceType: values.Get("resource_type"),
	}
	if v := values.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := values.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	if v := values.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := values.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}

	events, total, err := s.auditLogger.List(ctx, opts)
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   total,
		"results": events,
	})
}
