package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/storage"
)

// ErrUnverified means the bearer token could not be verified with the
// identity provider. Handlers map it to 401; a provider outage surfaces the
// same way, never as a server error.
var ErrUnverified = errors.New("token could not be verified")

// ErrInactive means the token was valid but the local staff record is
// disabled.
var ErrInactive = errors.New("user is inactive")

// Identity is the verified profile extracted from a bearer token.
type Identity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// Verifier validates a raw bearer token with the identity provider.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

const (
	// verifyTimeout bounds the outbound call to the identity provider.
	verifyTimeout = 5 * time.Second
	// cacheTTL is how long a verified token is trusted without re-checking.
	cacheTTL = 30 * time.Second
)

type cacheEntry struct {
	staff   domain.Staff
	expires time.Time
}

// Authenticator verifies bearer tokens, provisions staff records by email
// and caches verified results briefly to keep hot paths off the provider.
type Authenticator struct {
	verifier Verifier
	store    storage.Store
	cache    sync.Map // sha256(token) -> cacheEntry
	now      func() time.Time
}

func NewAuthenticator(v Verifier, store storage.Store) *Authenticator {
	return &Authenticator{verifier: v, store: store, now: time.Now}
}

// Authenticate resolves a raw bearer token to a local staff user, creating
// the record on first sight of a verified email.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (domain.Staff, error) {
	if rawToken == "" {
		return domain.Staff{}, ErrUnverified
	}
	key := tokenKey(rawToken)
	if v, ok := a.cache.Load(key); ok {
		entry := v.(cacheEntry)
		if a.now().Before(entry.expires) {
			return entry.staff, nil
		}
		a.cache.Delete(key)
	}

	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	id, err := a.verifier.Verify(vctx, rawToken)
	if err != nil {
		return domain.Staff{}, fmt.Errorf("%w: %v", ErrUnverified, err)
	}
	if id.Email == "" {
		return domain.Staff{}, fmt.Errorf("%w: token carries no email", ErrUnverified)
	}

	staff, err := a.store.UpsertStaffByEmail(ctx, domain.StaffInput{
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	})
	if err != nil {
		return domain.Staff{}, fmt.Errorf("provision user: %w", err)
	}
	if !staff.IsActive {
		return domain.Staff{}, ErrInactive
	}

	a.cache.Store(key, cacheEntry{staff: staff, expires: a.now().Add(cacheTTL)})
	return staff, nil
}

// Invalidate drops a token from the cache, e.g. after a user is disabled.
func (a *Authenticator) Invalidate(rawToken string) {
	a.cache.Delete(tokenKey(rawToken))
}

func tokenKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
