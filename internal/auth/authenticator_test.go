package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"alarmtrack/internal/storage"
)

type fakeVerifier struct {
	identity *Identity
	err      error
	calls    int
}

func (f *fakeVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func TestAuthenticateProvisionsStaff(t *testing.T) {
	store := storage.NewMemoryStore()
	v := &fakeVerifier{identity: &Identity{
		Subject:   "sub-1",
		Email:     "Alice@Example.com",
		FirstName: "Alice",
		LastName:  "Anderson",
	}}
	a := NewAuthenticator(v, store)

	staff, err := a.Authenticate(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if staff.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", staff.Email)
	}
	if staff.FirstName != "Alice" || !staff.IsActive {
		t.Fatalf("staff record wrong: %+v", staff)
	}

	// Same email on a different token resolves to the same record.
	again, err := a.Authenticate(context.Background(), "tok-2")
	if err != nil {
		t.Fatalf("second Authenticate: %v", err)
	}
	if again.ID != staff.ID {
		t.Fatalf("expected one staff record, got ids %d and %d", staff.ID, again.ID)
	}
}

func TestAuthenticateCachesWithinTTL(t *testing.T) {
	store := storage.NewMemoryStore()
	v := &fakeVerifier{identity: &Identity{Subject: "s", Email: "c@example.com"}}
	a := NewAuthenticator(v, store)

	now := time.Now()
	a.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := a.Authenticate(context.Background(), "tok"); err != nil {
			t.Fatalf("Authenticate %d: %v", i, err)
		}
	}
	if v.calls != 1 {
		t.Fatalf("verifier calls = %d, want 1 (cached)", v.calls)
	}

	now = now.Add(cacheTTL + time.Second)
	if _, err := a.Authenticate(context.Background(), "tok"); err != nil {
		t.Fatalf("Authenticate after expiry: %v", err)
	}
	if v.calls != 2 {
		t.Fatalf("verifier calls = %d, want 2 after cache expiry", v.calls)
	}
}

func TestAuthenticateVerifierFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	v := &fakeVerifier{err: errors.New("provider down")}
	a := NewAuthenticator(v, store)

	_, err := a.Authenticate(context.Background(), "tok")
	if !errors.Is(err, ErrUnverified) {
		t.Fatalf("expected ErrUnverified, got %v", err)
	}
}

func TestAuthenticateEmptyToken(t *testing.T) {
	a := NewAuthenticator(&fakeVerifier{}, storage.NewMemoryStore())
	if _, err := a.Authenticate(context.Background(), ""); !errors.Is(err, ErrUnverified) {
		t.Fatalf("expected ErrUnverified for empty token, got %v", err)
	}
}

func TestAuthenticateMissingEmail(t *testing.T) {
	v := &fakeVerifier{identity: &Identity{Subject: "s"}}
	a := NewAuthenticator(v, storage.NewMemoryStore())
	if _, err := a.Authenticate(context.Background(), "tok"); !errors.Is(err, ErrUnverified) {
		t.Fatalf("expected ErrUnverified without email, got %v", err)
	}
}

func TestAuthenticateInactiveStaff(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	v := &fakeVerifier{identity: &Identity{Subject: "s", Email: "d@example.com"}}
	a := NewAuthenticator(v, store)

	staff, err := a.Authenticate(ctx, "tok")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, ok, err := store.SetStaffActive(ctx, staff.ID, false); err != nil || !ok {
		t.Fatalf("SetStaffActive: ok=%v err=%v", ok, err)
	}
	a.Invalidate("tok")

	if _, err := a.Authenticate(ctx, "tok"); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("empty password should be rejected")
	}
}
