package api

import (
	"net/http"
	"net/url"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

func parsePersonListQuery(values url.Values) domain.PersonListQuery {
	return domain.PersonListQuery{
		Search:   values.Get("search"),
		IsActive: parseOptionalBool(values, "is_active"),
		Ordering: values.Get("ordering"),
		Page:     query.ParsePage(values.Get("page")),
		PageSize: query.ParsePageSize(values.Get("page_size")),
	}
}

// GET /api/v1/tenants
func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := parsePersonListQuery(r.URL.Query())
	tenants, total, err := s.store.ListTenants(ctx, q)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, query.Envelope(tenants, total, q.Page, q.PageSize, r.URL))
}

// PATCH /api/v1/tenants/{id}
func (s *Server) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.UpdatePerson
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	tenant, found, err := s.store.UpdateTenant(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "tenant not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceTenant, tenant.ID, tenant.FullName(), http.StatusOK)
	writeJSON(w, http.StatusOK, tenant)
}

// GET /api/v1/private-owners
func (s *Server) handleListOwners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := parsePersonListQuery(r.URL.Query())
	owners, total, err := s.store.ListPrivateOwners(ctx, q)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, query.Envelope(owners, total, q.Page, q.PageSize, r.URL))
}

// PATCH /api/v1/private-owners/{id}
func (s *Server) handleUpdateOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.UpdatePerson
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	owner, found, err := s.store.UpdatePrivateOwner(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "owner not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourcePrivateOwner, owner.ID, owner.FullName(), http.StatusOK)
	writeJSON(w, http.StatusOK, owner)
}
