// Package authctx carries the signed-in user through a request context.
package authctx

import (
	"context"
	"slices"

	"shopmunim-backend/internal/domain"
)

type ctxKey struct{}

// CurrentUser is loaded fresh on every request, so Role reflects the latest
// switch-role call.
type CurrentUser struct {
	ID        string
	SessionID string
	Name      string
	Phone     string
	Role      domain.UserRole
}

// HasRole reports whether the active role is one of roles. No roles means
// any signed-in user.
func (u CurrentUser) HasRole(roles ...domain.UserRole) bool {
	return len(roles) == 0 || slices.Contains(roles, u.Role)
}

func WithCurrentUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// FromContext returns nil outside authenticated routes.
func FromContext(ctx context.Context) *CurrentUser {
	u, ok := ctx.Value(ctxKey{}).(CurrentUser)
	if !ok {
		return nil
	}
	return &u
}
