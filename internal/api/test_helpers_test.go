package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"alarmtrack/internal/storage"
)

func setupTestServer() (*Server, *storage.MemoryStore) {
	st := storage.NewMemoryStore()
	mux := http.NewServeMux()
	srv := NewServer(mux, st, nil, nil, nil, nil)
	srv.RegisterRoutes()
	return srv, st
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string, code int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != code {
		t.Fatalf("%s %s: expected code %d, got %d: %s", method, path, code, rr.Code, rr.Body.String())
	}
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal response: %v: %s", err, rr.Body.String())
	}
	return v
}

type idDTO struct {
	ID int64 `json:"id"`
}

type pageDTO struct {
	Count       int               `json:"count"`
	Next        *string           `json:"next"`
	Previous    *string           `json:"previous"`
	Results     []json.RawMessage `json:"results"`
	TotalPages  int               `json:"total_pages"`
	CurrentPage int               `json:"current_page"`
}

// createAgencyProperty seeds an agency-owned property through the API and
// returns both IDs.
func createAgencyProperty(t *testing.T, mux *http.ServeMux, street string) (agencyID, propertyID int64) {
	t.Helper()
	rr := doJSON(t, mux, http.MethodPost, "/api/v1/agencies", `{"name":"Ray White `+street+`"}`, http.StatusCreated)
	agency := decodeBody[idDTO](t, rr)
	rr = doJSON(t, mux, http.MethodPost, "/api/v1/properties",
		`{"street_number":"12","street_name":"`+street+`","suburb":"Carlton","state":"VIC","postcode":"3053","agency_id":`+itoa(agency.ID)+`}`,
		http.StatusCreated)
	prop := decodeBody[idDTO](t, rr)
	return agency.ID, prop.ID
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
