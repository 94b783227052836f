package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// contextKey is the type for echo context keys to avoid collisions.
type contextKey string

// principalKey stores the Principal in the echo context alongside the
// request context.
const principalKey contextKey = "principal"

// TenantChecker reports whether a tenant may use the API.
type TenantChecker interface {
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

func deny(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}

// JWT authenticates requests carrying "Authorization: Bearer <access token>".
//
// On success the Principal is stored in the echo context and the request
// context, and the request context gains tenant and user log fields.
// Requests without a valid access token get 401.
func JWT(tokens *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return deny(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			}

			p, err := tokens.Parse(strings.TrimSpace(token), KindAccess)
			if err != nil {
				return deny(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			}

			ctx := WithPrincipal(c.Request().Context(), p)
			if p.HasTenant() {
				ctx = logging.WithTenantID(ctx, p.TenantID.String())
			}
			ctx = logging.WithUser(ctx, p.UserID, string(p.Role))
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(string(principalKey), p)

			return next(c)
		}
	}
}

// Current returns the principal set by JWT.
func Current(c echo.Context) (Principal, bool) {
	p, ok := c.Get(string(principalKey)).(Principal)
	return p, ok
}

// TenantGuard rejects tenant-less callers that are not superusers, and
// callers whose tenant has been deactivated. It must run after JWT.
func TenantGuard(tenants TenantChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := Current(c)
			if !ok {
				return deny(c, http.StatusUnauthorized, "unauthorized", "not authenticated")
			}
			if !p.HasTenant() {
				if p.Superuser {
					return next(c)
				}
				return deny(c, http.StatusForbidden, "no_tenant", "user is not assigned to a company")
			}

			active, err := tenants.IsActive(c.Request().Context(), p.TenantID)
			if err != nil {
				ctx := c.Request().Context()
				logging.FromContext(ctx).Warn(ctx, "tenant lookup failed", zap.Error(err))
				return deny(c, http.StatusForbidden, "tenant_inactive", "company is not available")
			}
			if !active {
				return deny(c, http.StatusForbidden, "tenant_inactive", "company is inactive")
			}
			return next(c)
		}
	}
}

// RequirePermission returns 403 unless the caller holds perm.
func RequirePermission(perm rbac.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := Current(c)
			if !ok {
				return deny(c, http.StatusUnauthorized, "unauthorized", "not authenticated")
			}
			if !p.Can(perm) {
				return deny(c, http.StatusForbidden, "forbidden", "missing permission "+string(perm))
			}
			return next(c)
		}
	}
}

// RequireSuperuser restricts a route to platform superusers.
func RequireSuperuser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := Current(c)
			if !ok {
				return deny(c, http.StatusUnauthorized, "unauthorized", "not authenticated")
			}
			if !p.Superuser {
				return deny(c, http.StatusForbidden, "forbidden", "superuser required")
			}
			return next(c)
		}
	}
}
