package api

import (
	"context"
	"net/http"
	"strings"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/query"
)

type suggestFunc func(ctx context.Context, q string, limit int) ([]domain.Suggestion, error)

// handleSuggest is the shared typeahead handler. Queries under the minimum
// length return an empty list rather than an error so the client can fire
// on every keystroke.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request, fn suggestFunc) {
	ctx := r.Context()
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < query.SuggestionMinLength {
		writeJSON(w, http.StatusOK, []domain.Suggestion{})
		return
	}
	suggestions, err := fn(ctx, q, query.SuggestionLimit)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// GET /api/v1/suggestions/tenants
func (s *Server) handleSuggestTenants(w http.ResponseWriter, r *http.Request) {
	s.handleSuggest(w, r, s.store.SuggestTenants)
}

// GET /api/v1/suggestions/properties
func (s *Server) handleSuggestProperties(w http.ResponseWriter, r *http.Request) {
	s.handleSuggest(w, r, s.store.SuggestProperties)
}

// GET /api/v1/suggestions/addresses
func (s *Server) handleSuggestAddresses(w http.ResponseWriter, r *http.Request) {
	s.handleSuggest(w, r, s.store.SuggestAddresses)
}

// GET /api/v1/suburbs
func (s *Server) handleSuburbs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	suburbs, err := s.store.DistinctSuburbs(ctx)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if suburbs == nil {
		suburbs = []string{}
	}
	writeJSON(w, http.StatusOK, suburbs)
}

// GET /api/v1/postcodes
func (s *Server) handlePostcodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postcodes, err := s.store.DistinctPostcodes(ctx)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	if postcodes == nil {
		postcodes = []string{}
	}
	writeJSON(w, http.StatusOK, postcodes)
}
