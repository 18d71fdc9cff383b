package api

import (
	"net/http"
	"net/url"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

func parsePropertyListQuery(values url.Values) domain.PropertyListQuery {
	return domain.PropertyListQuery{
		Search:    values.Get("search"),
		Address:   values.Get("address"),
		Suburb:    values.Get("suburb"),
		State:     values.Get("state"),
		Postcode:  values.Get("postcode"),
		OwnerType: values.Get("owner_type"),
		IsActive:  parseOptionalBool(values, "is_active"),
		AgencyID:  parseOptionalID(values, "agency"),
		Ordering:  values.Get("ordering"),
		Page:      query.ParsePage(values.Get("page")),
		PageSize:  query.ParsePageSize(values.Get("page_size")),
	}
}

// handleListProperties serves the paginated property list.
// GET /api/v1/properties
func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := parsePropertyListQuery(r.URL.Query())
	props, total, err := s.store.ListProperties(ctx, q)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	views := s.toPropertyViews(ctx, props)
	writeJSON(w, http.StatusOK, query.Envelope(views, total, q.Page, q.PageSize, r.URL))
}

// duplicateProperty is the 409 payload when an address already exists. The
// client resubmits with force_create to override.
type duplicateProperty struct {
	Error            string       `json:"error"`
	ExistingProperty propertyView `json:"existing_property"`
}

// handleCreateProperty creates a property with its initial owners and
// tenants. A matching address returns 409 with the existing record unless
// force_create is set.
// POST /api/v1/properties
func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in domain.CreateProperty
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	if !in.ForceCreate {
		existing, found, err := s.store.FindPropertyByAddress(ctx, in.UnitNumber, in.StreetNumber, in.StreetName, in.Suburb)
		if err != nil {
			s.writeStoreErr(ctx, w, err)
			return
		}
		if found {
			writeJSON(w, http.StatusConflict, duplicateProperty{
				Error:            "a property with this address already exists",
				ExistingProperty: s.toPropertyView(ctx, existing),
			})
			return
		}
	}
	prop, err := s.store.CreateProperty(ctx, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourceProperty, prop.ID, prop.Address(), http.StatusCreated)
	writeJSON(w, http.StatusCreated, s.toPropertyView(ctx, prop))
}

// GET /api/v1/properties/{id}
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	prop, found, err := s.store.GetProperty(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "property not found", "")
		return
	}
	writeJSON(w, http.StatusOK, s.toPropertyView(ctx, prop))
}

// handleUpdateProperty applies a partial update, including wholesale
// ownership swaps and tenant list replacement. The store applies the whole
// change atomically and re-checks the exactly-one-owner rule.
// PATCH /api/v1/properties/{id}
func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.UpdateProperty
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	prop, found, err := s.store.UpdateProperty(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "property not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceProperty, prop.ID, prop.Address(), http.StatusOK)
	writeJSON(w, http.StatusOK, s.toPropertyView(ctx, prop))
}

// handleDeleteProperty removes a property. Properties with jobs against
// them are refused with 409.
// DELETE /api/v1/properties/{id}
func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	found, err := s.store.DeleteProperty(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "property not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionDelete, audit.ResourceProperty, id, "", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/properties/{id}/tenants
func (s *Server) handleAddTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.PersonInput
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	tenant, err := s.store.AddTenant(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourceTenant, tenant.ID, tenant.FullName(), http.StatusCreated)
	writeJSON(w, http.StatusCreated, tenant)
}

// handleRemoveTenant unlinks a tenant from the property. A tenant with no
// remaining property links is deleted outright.
// DELETE /api/v1/properties/{id}/tenants/{tid}
func (s *Server) handleRemoveTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	tid, ok := s.pathID(w, r, "tid")
	if !ok {
		return
	}
	found, err := s.store.RemoveTenant(ctx, id, tid)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "tenant not found on property", "")
		return
	}
	s.logAudit(ctx, audit.ActionDelete, audit.ResourceTenant, tid, "", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/properties/{id}/owners
func (s *Server) handleAddOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.PersonInput
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	owner, err := s.store.AddPrivateOwner(ctx, id, in)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	s.logAudit(ctx, audit.ActionCreate, audit.ResourcePrivateOwner, owner.ID, owner.FullName(), http.StatusCreated)
	writeJSON(w, http.StatusCreated, owner)
}

// handleRemoveOwner unlinks a private owner. Removing the last owner of a
// privately held property is refused; an owner with no remaining
// properties is deleted.
// DELETE /api/v1/properties/{id}/owners/{oid}
func (s *Server) handleRemoveOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	oid, ok := s.pathID(w, r, "oid")
	if !ok {
		return
	}
	found, err := s.store.RemovePrivateOwner(ctx, id, oid)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "owner not found on property", "")
		return
	}
	s.logAudit(ctx, audit.ActionDelete, audit.ResourcePrivateOwner, oid, "", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

type setAgencyRequest struct {
	AgencyID *int64 `json:"agency_id"`
}

// handleSetPropertyAgency switches the property to the given agency,
// releasing its private owners. A null agency_id reverts to private
// ownership and requires existing owners.
// POST /api/v1/properties/{id}/agency
func (s *Server) handleSetPropertyAgency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in setAgencyRequest
	if !s.decodeJSON(ctx, w, r, &in) {
		return
	}
	prop, found, err := s.store.SetPropertyAgency(ctx, id, in.AgencyID)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if !found {
		s.writeErr(ctx, w, http.StatusNotFound, "property not found", "")
		return
	}
	s.logAudit(ctx, audit.ActionUpdate, audit.ResourceProperty, prop.ID, prop.Address(), http.StatusOK)
	writeJSON(w, http.StatusOK, s.toPropertyView(ctx, prop))
}
