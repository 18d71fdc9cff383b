package api

import (
	"net/http"
	"testing"
)

type propertyDTO struct {
	ID            int64  `json:"id"`
	Address       string `json:"address"`
	IsActive      bool   `json:"is_active"`
	AgencyID      *int64 `json:"agency_id"`
	Agency        *struct {
		Name string `json:"name"`
	} `json:"agency"`
	PrivateOwners []struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
	} `json:"private_owners"`
	Tenants []struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
	} `json:"tenants"`
}

func TestPropertyCreateWithPrivateOwner(t *testing.T) {
	srv, _ := setupTestServer()
	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties",
		`{"street_number":"7","street_name":"Station St","suburb":"Fairfield","state":"VIC","postcode":"3078",
		  "private_owners":[{"first_name":"Dana","last_name":"Wu"}],
		  "tenants":[{"first_name":"Tom","last_name":"Reed"}]}`,
		http.StatusCreated)
	prop := decodeBody[propertyDTO](t, rr)
	if prop.AgencyID != nil || len(prop.PrivateOwners) != 1 || prop.PrivateOwners[0].FirstName != "Dana" {
		t.Fatalf("ownership wrong: %+v", prop)
	}
	if len(prop.Tenants) != 1 || prop.Address == "" {
		t.Fatalf("tenants/address wrong: %+v", prop)
	}
}

func TestPropertyCreateOwnershipRequired(t *testing.T) {
	srv, _ := setupTestServer()
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties",
		`{"street_number":"7","street_name":"Station St","suburb":"Fairfield","state":"VIC","postcode":"3078"}`,
		http.StatusBadRequest)
}

func TestPropertyDuplicateAddress(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "Gold St")

	body := `{"street_number":"12","street_name":"gold st","suburb":"CARLTON","state":"VIC","postcode":"3053",
	  "private_owners":[{"first_name":"Ana","last_name":"Im"}]`

	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties", body+`}`, http.StatusConflict)
	conflict := decodeBody[struct {
		Error            string      `json:"error"`
		ExistingProperty propertyDTO `json:"existing_property"`
	}](t, rr)
	if conflict.ExistingProperty.ID != propID {
		t.Fatalf("existing property id = %d, want %d", conflict.ExistingProperty.ID, propID)
	}

	// force_create bypasses the check.
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties", body+`,"force_create":true}`, http.StatusCreated)
}

func TestPropertyOwnershipSwap(t *testing.T) {
	srv, _ := setupTestServer()
	agencyID, propID := createAgencyProperty(t, srv.mux, "Park St")

	// Swap to private ownership.
	rr := doJSON(t, srv.mux, http.MethodPatch, "/api/v1/properties/"+itoa(propID),
		`{"private_owners":[{"first_name":"Lee","last_name":"Park"}]}`, http.StatusOK)
	prop := decodeBody[propertyDTO](t, rr)
	if prop.AgencyID != nil || len(prop.PrivateOwners) != 1 {
		t.Fatalf("swap to private failed: %+v", prop)
	}

	// And back to the agency.
	rr = doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties/"+itoa(propID)+"/agency",
		`{"agency_id":`+itoa(agencyID)+`}`, http.StatusOK)
	prop = decodeBody[propertyDTO](t, rr)
	if prop.AgencyID == nil || len(prop.PrivateOwners) != 0 {
		t.Fatalf("swap to agency failed: %+v", prop)
	}

	// Reverting to private with no owners on record is refused.
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties/"+itoa(propID)+"/agency",
		`{"agency_id":null}`, http.StatusBadRequest)
}

func TestPropertyTenantLifecycle(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "High St")

	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties/"+itoa(propID)+"/tenants",
		`{"first_name":"Mia","last_name":"Cole"}`, http.StatusCreated)
	tenant := decodeBody[idDTO](t, rr)

	doJSON(t, srv.mux, http.MethodDelete,
		"/api/v1/properties/"+itoa(propID)+"/tenants/"+itoa(tenant.ID), "", http.StatusNoContent)

	// Orphaned tenant is gone entirely.
	doJSON(t, srv.mux, http.MethodPatch, "/api/v1/tenants/"+itoa(tenant.ID),
		`{"first_name":"Mia"}`, http.StatusNotFound)
}

func TestPropertyRemoveLastOwnerRefused(t *testing.T) {
	srv, _ := setupTestServer()
	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties",
		`{"street_number":"3","street_name":"Mill Rd","suburb":"Kew","state":"VIC","postcode":"3101",
		  "private_owners":[{"first_name":"Sam","last_name":"Hale"}]}`, http.StatusCreated)
	prop := decodeBody[propertyDTO](t, rr)
	ownerID := prop.PrivateOwners[0].ID

	doJSON(t, srv.mux, http.MethodDelete,
		"/api/v1/properties/"+itoa(prop.ID)+"/owners/"+itoa(ownerID), "", http.StatusBadRequest)
}

func TestPropertyDeleteGuards(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "Queens Pde")
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs", `{"property_id":`+itoa(propID)+`}`, http.StatusCreated)

	// Properties with jobs cannot be deleted.
	doJSON(t, srv.mux, http.MethodDelete, "/api/v1/properties/"+itoa(propID), "", http.StatusConflict)

	_, emptyID := createAgencyProperty(t, srv.mux, "Clarke St")
	doJSON(t, srv.mux, http.MethodDelete, "/api/v1/properties/"+itoa(emptyID), "", http.StatusNoContent)
	doJSON(t, srv.mux, http.MethodGet, "/api/v1/properties/"+itoa(emptyID), "", http.StatusNotFound)
}

func TestPropertyListFilters(t *testing.T) {
	srv, _ := setupTestServer()
	createAgencyProperty(t, srv.mux, "Northcote Rd")
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties",
		`{"street_number":"1","street_name":"Beach Ave","suburb":"StKilda","state":"VIC","postcode":"3182",
		  "private_owners":[{"first_name":"Jo","last_name":"King"}]}`, http.StatusCreated)

	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/properties?owner_type=private", "", http.StatusOK)
	page := decodeBody[pageDTO](t, rr)
	if page.Count != 1 {
		t.Fatalf("owner_type filter: count=%d", page.Count)
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/properties?suburb=StKilda", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if page.Count != 1 {
		t.Fatalf("suburb filter: count=%d", page.Count)
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/properties?search=beach", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if page.Count != 1 {
		t.Fatalf("search: count=%d", page.Count)
	}

	// address matches street fields but not suburbs
	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/properties?address=stkilda", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if page.Count != 0 {
		t.Fatalf("address filter matched suburb: count=%d", page.Count)
	}
	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/properties?address=beach", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if page.Count != 1 {
		t.Fatalf("address filter: count=%d", page.Count)
	}
}
