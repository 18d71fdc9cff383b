package api

import (
	"net/http"
	"testing"

	"alarmtrack/internal/domain"
)

func TestSuggestionsMinLengthAndCap(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "Allen St")
	for _, name := range []string{"Anna", "Annabel", "Annette"} {
		doJSON(t, srv.mux, http.MethodPost, "/api/v1/properties/"+itoa(propID)+"/tenants",
			`{"first_name":"`+name+`","last_name":"Smith"}`, http.StatusCreated)
	}

	// Below the minimum the endpoint returns an empty list, not an error.
	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/suggestions/tenants?q=a", "", http.StatusOK)
	short := decodeBody[[]domain.Suggestion](t, rr)
	if len(short) != 0 {
		t.Fatalf("1-char query should return nothing, got %d", len(short))
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/suggestions/tenants?q=ann", "", http.StatusOK)
	got := decodeBody[[]domain.Suggestion](t, rr)
	if len(got) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(got))
	}
	for _, s := range got {
		if s.Value == "" || s.Label == "" {
			t.Fatalf("empty suggestion fields: %+v", s)
		}
	}
}

func TestSuggestAddresses(t *testing.T) {
	srv, _ := setupTestServer()
	createAgencyProperty(t, srv.mux, "Ballantyne St")

	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/suggestions/addresses?q=ballan", "", http.StatusOK)
	got := decodeBody[[]domain.Suggestion](t, rr)
	if len(got) != 1 {
		t.Fatalf("got %d address suggestions, want 1", len(got))
	}
}

func TestDistinctLookups(t *testing.T) {
	srv, _ := setupTestServer()
	createAgencyProperty(t, srv.mux, "First St")
	createAgencyProperty(t, srv.mux, "Second St")

	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/suburbs", "", http.StatusOK)
	suburbs := decodeBody[[]string](t, rr)
	if len(suburbs) != 1 || suburbs[0] != "Carlton" {
		t.Fatalf("suburbs = %v", suburbs)
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/postcodes", "", http.StatusOK)
	postcodes := decodeBody[[]string](t, rr)
	if len(postcodes) != 1 || postcodes[0] != "3053" {
		t.Fatalf("postcodes = %v", postcodes)
	}
}

func TestIssueTypeLifecycle(t *testing.T) {
	srv, _ := setupTestServer()

	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/issue-types",
		`{"name":"Battery replacement"}`, http.StatusCreated)
	it := decodeBody[idDTO](t, rr)

	doJSON(t, srv.mux, http.MethodPost, "/api/v1/issue-types", `{"name":""}`, http.StatusBadRequest)

	doJSON(t, srv.mux, http.MethodPatch, "/api/v1/issue-types/"+itoa(it.ID),
		`{"is_active":false}`, http.StatusOK)

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/issue-types?is_active=true", "", http.StatusOK)
	active := decodeBody[[]idDTO](t, rr)
	if len(active) != 0 {
		t.Fatalf("deactivated type still listed: %v", active)
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/issue-types", "", http.StatusOK)
	all := decodeBody[[]idDTO](t, rr)
	if len(all) != 1 {
		t.Fatalf("expected 1 issue type, got %d", len(all))
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := setupTestServer()
	doJSON(t, srv.mux, http.MethodGet, "/healthz", "", http.StatusOK)
	doJSON(t, srv.mux, http.MethodGet, "/readyz", "", http.StatusOK)
}
