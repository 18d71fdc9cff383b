package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/auth"
	"alarmtrack/internal/observability"
	"alarmtrack/internal/storage"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server wires the HTTP handlers to the store, auth and audit layers.
type Server struct {
	mux           *http.ServeMux
	store         storage.Store
	logger        observability.Logger
	metrics       *observability.Metrics
	auditLogger   audit.Logger
	authenticator *auth.Authenticator
}

// NewServer creates the HTTP server. A nil logger gets a default; a nil
// auditLogger gets an in-memory one; nil metrics disables the /metrics
// endpoint. A nil authenticator leaves the API unauthenticated, which is
// intended for tests and local development only.
func NewServer(mux *http.ServeMux, store storage.Store, logger observability.Logger, metrics *observability.Metrics, auditLogger audit.Logger, authenticator *auth.Authenticator) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	if auditLogger == nil {
		auditLogger = audit.NewMemoryLogger()
	}
	return &Server{
		mux:           mux,
		store:         store,
		logger:        logger,
		metrics:       metrics,
		auditLogger:   auditLogger,
		authenticator: authenticator,
	}
}

// RegisterRoutes attaches every endpoint to the mux. Health, readiness and
// metrics stay public; everything under /api/v1/ goes through bearer auth
// when an authenticator is configured.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPISpec)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	authMW := BearerAuthMiddleware(s.authenticator, s.logger)
	protect := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Service jobs
	s.mux.Handle("GET /api/v1/jobs", protect(s.handleListJobs))
	s.mux.Handle("POST /api/v1/jobs", protect(s.handleCreateJob))
	s.mux.Handle("GET /api/v1/jobs/{id}", protect(s.handleGetJob))
	s.mux.Handle("PATCH /api/v1/jobs/{id}", protect(s.handleUpdateJob))
	s.mux.Handle("GET /api/v1/jobs/{id}/updates", protect(s.handleListJobUpdates))
	s.mux.Handle("POST /api/v1/job-updates", protect(s.handleCreateJobUpdate))

	// Issue types
	s.mux.Handle("GET /api/v1/issue-types", protect(s.handleListIssueTypes))
	s.mux.Handle("POST /api/v1/issue-types", protect(s.handleCreateIssueType))
	s.mux.Handle("PATCH /api/v1/issue-types/{id}", protect(s.handleUpdateIssueType))

	// Properties and ownership
	s.mux.Handle("GET /api/v1/properties", protect(s.handleListProperties))
	s.mux.Handle("POST /api/v1/properties", protect(s.handleCreateProperty))
	s.mux.Handle("GET /api/v1/properties/{id}", protect(s.handleGetProperty))
	s.mux.Handle("PATCH /api/v1/properties/{id}", protect(s.handleUpdateProperty))
	s.mux.Handle("DELETE /api/v1/properties/{id}", protect(s.handleDeleteProperty))
	s.mux.Handle("POST /api/v1/properties/{id}/tenants", protect(s.handleAddTenant))
	s.mux.Handle("DELETE /api/v1/properties/{id}/tenants/{tid}", protect(s.handleRemoveTenant))
	s.mux.Handle("POST /api/v1/properties/{id}/owners", protect(s.handleAddOwner))
	s.mux.Handle("DELETE /api/v1/properties/{id}/owners/{oid}", protect(s.handleRemoveOwner))
	s.mux.Handle("POST /api/v1/properties/{id}/agency", protect(s.handleSetPropertyAgency))

	// People
	s.mux.Handle("GET /api/v1/tenants", protect(s.handleListTenants))
	s.mux.Handle("PATCH /api/v1/tenants/{id}", protect(s.handleUpdateTenant))
	s.mux.Handle("GET /api/v1/private-owners", protect(s.handleListOwners))
	s.mux.Handle("PATCH /api/v1/private-owners/{id}", protect(s.handleUpdateOwner))

	// Agencies and managers
	s.mux.Handle("GET /api/v1/agencies", protect(s.handleListAgencies))
	s.mux.Handle("POST /api/v1/agencies", protect(s.handleCreateAgency))
	s.mux.Handle("GET /api/v1/agencies/{id}", protect(s.handleGetAgency))
	s.mux.Handle("PATCH /api/v1/agencies/{id}", protect(s.handleUpdateAgency))
	s.mux.Handle("GET /api/v1/agencies/{id}/managers", protect(s.handleListManagers))
	s.mux.Handle("POST /api/v1/agencies/{id}/managers", protect(s.handleAddManager))
	s.mux.Handle("DELETE /api/v1/agencies/{id}/managers/{mid}", protect(s.handleRemoveManager))
	s.mux.Handle("PATCH /api/v1/managers/{id}", protect(s.handleUpdateManager))

	// Typeahead and lookups
	s.mux.Handle("GET /api/v1/suggestions/tenants", protect(s.handleSuggestTenants))
	s.mux.Handle("GET /api/v1/suggestions/properties", protect(s.handleSuggestProperties))
	s.mux.Handle("GET /api/v1/suggestions/addresses", protect(s.handleSuggestAddresses))
	s.mux.Handle("GET /api/v1/suburbs", protect(s.handleSuburbs))
	s.mux.Handle("GET /api/v1/postcodes", protect(s.handlePostcodes))

	// Users and audit
	s.mux.Handle("GET /api/v1/users", protect(s.handleListUsers))
	s.mux.Handle("GET /api/v1/users/me", protect(s.handleMe))
	s.mux.Handle("PATCH /api/v1/users/{id}", protect(s.handleUpdateUser))
	s.mux.Handle("GET /api/v1/audit", protect(s.handleListAudit))
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeStoreErr maps a storage error to an HTTP response via errors.Is.
// Field-keyed validation errors render as {"field": "message"} so forms can
// attach them to inputs; anything unrecognised is a 500.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	var fe *storage.FieldError
	switch {
	case errors.As(err, &fe):
		s.logger.WarnContext(ctx, "validation failed", "field", fe.Field, "message", fe.Message)
		writeJSON(w, http.StatusBadRequest, map[string]string{fe.Field: fe.Message})
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, storage.ErrConflict):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func (s *Server) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	return true
}

// pathID parses the named path segment as an int64 resource ID. A zero
// return with ok=false means the 404 has already been written.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
		return 0, false
	}
	return id, true
}

// logAudit records one audit event per mutation. The actor comes from the
// request context; failures to write the log never fail the request.
func (s *Server) logAudit(ctx context.Context, action, resourceType string, resourceID int64, resourceName string, statusCode int) {
	if s.auditLogger == nil {
		return
	}
	actor := "anonymous"
	actorType := audit.ActorTypeAnonymous
	if staff := auth.StaffFromContext(ctx); staff != nil {
		actor = staff.Email
		actorType = audit.ActorTypeStaff
	}
	event := &audit.Event{
		Actor:        actor,
		ActorType:    actorType,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(resourceID, 10),
		ResourceName: resourceName,
		RequestID:    observability.RequestIDFromContext(ctx),
		StatusCode:   statusCode,
	}
	if err := s.auditLogger.Log(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }
