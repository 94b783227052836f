package auth

import (
	"context"

	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/google/uuid"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID    uint      `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Role      rbac.Role `json:"role"`
	Superuser bool      `json:"is_superuser"`
}

// HasTenant reports whether the caller belongs to a company.
func (p Principal) HasTenant() bool {
	return p.TenantID != uuid.Nil
}

// Can reports whether the caller holds permission perm. Superusers hold
// every permission.
func (p Principal) Can(perm rbac.Permission) bool {
	return p.Superuser || rbac.Has(p.Role, perm)
}

type principalCtxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// FromContext returns the principal stored by the JWT middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}
