package api

import (
	"net/http"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

type agencyView struct {
	domain.Agency
	Managers []domain.PropertyManager `json:"managers,omitempty"`
}

func (s *Server) toAgencyView(r *http.Request, a domain.Agency) agencyView {
	v := agencyView{Agency: a}
	if managers, err := s.store.ListManagers(r.Context(), a.ID); err == nil {
		v.Managers = managers
	}
	return v
}

// GET /api/v1/agencies
func (s *Server) handleListAgencies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := parsePersonListQuery(r.URL.Query())
	agencies, total, err := s.store.ListAgencies(ctx, q)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	views := make([]agencyView, 0, len(agencies))
	for _, a := range agencies {
		views = append(views, s.toAgencyView(r, a))
	}
	writeJSON(w, http.StatusOK, query.Envelope(views, total, q.Page, q.PageSize, r.URL))
}

// POST /api/v1/agencies
func (s *Server) handleCreateAgency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in domain.CreateAgency
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	agency, err := s.store.CreateAgency(ctx, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourceAgency, agency.ID, agency.Name, http.StatusCreated)
	writeJSON(w, http.StatusCreated, s.toAgencyView(r, agency))
}

// GET /api/v1/agencies/{id}
func (s *Server) handleGetAgency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	agency, found, err := s.store.GetAgency(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "agency not found", "")
		return
	}
	writeJSON(w, http.StatusOK, s.toAgencyView(r, agency))
}

// PATCH /api/v1/agencies/{id}
func (s *Server) handleUpdateAgency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.UpdateAgency
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	agency, found, err := s.store.UpdateAgency(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "agency not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceAgency, agency.ID, agency.Name, http.StatusOK)
	writeJSON(w, http.StatusOK, s.toAgencyView(r, agency))
}

// GET /api/v1/agencies/{id}/managers
func (s *Server) handleListManagers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, found, err := s.store.GetAgency(ctx, id); err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	} else if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "agency not found", "")
		return
	}
	managers, err := s.store.ListManagers(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if managers == nil {
		managers = []domain.PropertyManager{}
	}
	writeJSON(w, http.StatusOK, managers)
}

// POST /api/v1/agencies/{id}/managers
func (s *Server) handleAddManager(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.PersonInput
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	manager, err := s.store.AddManager(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourceManager, manager.ID, manager.FullName(), http.StatusCreated)
	writeJSON(w, http.StatusCreated, manager)
}

// DELETE /api/v1/agencies/{id}/managers/{mid}
func (s *Server) handleRemoveManager(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	mid, ok := s.pathID(w, r, "mid")
	if !ok {
		return
	}
	found, err := s.store.RemoveManager(ctx, id, mid)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "manager not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionDelete, audit.ResourceManager, mid, "", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// PATCH /api/v1/managers/{id}
func (s *Server) handleUpdateManager(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.UpdatePerson
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	manager, found, err := s.store.UpdateManager(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "manager not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceManager, manager.ID, manager.FullName(), http.StatusOK)
	writeJSON(w, http.StatusOK, manager)
}
