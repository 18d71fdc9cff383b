package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"alarmtrack/internal/auth"
	"alarmtrack/internal/storage"
)

func TestRequestIDMiddleware(t *testing.T) {
	handler := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RequestIDMiddleware())

	// Generated when absent.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request ID not generated")
	}

	// Well-formed inbound IDs are preserved.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "client-id-123" {
		t.Fatalf("inbound ID not preserved: %q", got)
	}

	// Hostile IDs are replaced.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "bad id\nwith newline")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got == "bad id\nwith newline" || got == "" {
		t.Fatalf("hostile ID not replaced: %q", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 2}
	handler := RateLimitMiddleware(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst should pass: %v", codes)
	}
	if codes[3] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst: %v", codes)
	}

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.2.2.2:5000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("separate client limited: %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatal("rate limit headers missing")
	}
}

type stubVerifier struct {
	identity *auth.Identity
	err      error
}

func (s *stubVerifier) Verify(ctx context.Context, rawToken string) (*auth.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

func setupAuthedServer(t *testing.T, v auth.Verifier) (*Server, *storage.MemoryStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	mux := http.NewServeMux()
	srv := NewServer(mux, st, nil, nil, nil, auth.NewAuthenticator(v, st))
	srv.RegisterRoutes()
	return srv, st
}

func TestBearerAuthRequired(t *testing.T) {
	srv, _ := setupAuthedServer(t, &stubVerifier{identity: &auth.Identity{Email: "a@x.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code=%d", rr.Code)
	}

	// Health stays public.
	rr = httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz should be public: %d", rr.Code)
	}
}

func TestBearerAuthProviderFailure(t *testing.T) {
	srv, _ := setupAuthedServer(t, &stubVerifier{err: errors.New("idp down")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("provider outage must be 401, got %d", rr.Code)
	}
}

func TestBearerAuthAttachesIdentity(t *testing.T) {
	srv, _ := setupAuthedServer(t, &stubVerifier{identity: &auth.Identity{
		Email:     "carol@example.com",
		FirstName: "Carol",
		LastName:  "Jones",
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: code=%d body=%s", rr.Code, rr.Body.String())
	}
	me := decodeBody[staffView](t, rr)
	if me.Email != "carol@example.com" || me.FullName != "Carol Jones" {
		t.Fatalf("identity wrong: %+v", me)
	}
}

func TestBearerAuthInactiveUser(t *testing.T) {
	srv, st := setupAuthedServer(t, &stubVerifier{identity: &auth.Identity{Email: "dan@example.com"}})

	// First request provisions the record.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	me := decodeBody[staffView](t, rr)

	if _, ok, err := st.SetStaffActive(context.Background(), me.ID, false); err != nil || !ok {
		t.Fatalf("SetStaffActive: ok=%v err=%v", ok, err)
	}

	// A fresh token misses the authenticator cache and hits the store.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer tok-2")
	rr = httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("inactive user: code=%d", rr.Code)
	}
}

func TestAdminOnlyEndpoints(t *testing.T) {
	srv, _ := setupAuthedServer(t, &stubVerifier{identity: &auth.Identity{Email: "eve@example.com"}})

	// Default provisioned role is staff, not admin.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("audit for non-admin: code=%d", rr.Code)
	}
}
