// Package auth implements password hashing, JWT access and refresh tokens
// and the echo middleware that turns a bearer token into a Principal.
//
// A request passes three gates:
//
//	e.Use(auth.JWT(tokens))             // 401 without a valid access token
//	e.Use(auth.TenantGuard(tenants))    // 403 without an active tenant
//	g.GET("", h, auth.RequirePermission(rbac.ProjectView))
//
// Handlers read the caller with auth.FromContext(c.Request().Context()).
package auth
