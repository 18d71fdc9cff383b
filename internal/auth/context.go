// Package auth verifies bearer tokens against the external identity provider
// and provisions local staff records. Request identity travels in the
// context, never in package state.
package auth

import (
	"context"

	"alarmtrack/internal/domain"
)

type contextKey string

const staffContextKey contextKey = "staff"

// ContextWithStaff returns a new context with the authenticated staff user
// stored in it.
func ContextWithStaff(ctx context.Context, s *domain.Staff) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, staffContextKey, s)
}

// StaffFromContext retrieves the authenticated staff user from the context.
// Returns nil if no user is present.
func StaffFromContext(ctx context.Context) *domain.Staff {
	if ctx == nil {
		return nil
	}
	s, ok := ctx.Value(staffContextKey).(*domain.Staff)
	if !ok {
		return nil
	}
	return s
}

// IsAdmin reports whether the context's user has the admin role.
func IsAdmin(ctx context.Context) bool {
	s := StaffFromContext(ctx)
	return s != nil && s.Role == domain.RoleAdmin
}
