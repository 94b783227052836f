package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/internal/user"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// handleRegister creates a company and its owner and signs the owner in.
func (s *Server) handleRegister(c echo.Context) error {
	var req user.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}

	u, t, err := s.deps.Users.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	tokens, err := s.deps.Tokens.Issue(u.Principal())
	if err != nil {
		return err
	}
	info := t.Public()
	return c.JSON(http.StatusCreated, AuthResponse{User: u, Tenant: &info, Tokens: tokens})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	u, err := s.deps.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	tokens, err := s.deps.Tokens.Issue(u.Principal())
	if err != nil {
		return err
	}

	resp := AuthResponse{User: u, Tokens: tokens}
	if u.TenantID != nil {
		t, err := s.deps.Tenants.Get(ctx, *u.TenantID)
		if err != nil {
			return err
		}
		info := t.Public()
		resp.Tenant = &info
	}
	return c.JSON(http.StatusOK, resp)
}

// handleRefresh exchanges a refresh token for a new pair. The account is
// reloaded so role changes and deactivation take effect.
func (s *Server) handleRefresh(c echo.Context) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	p, err := s.deps.Tokens.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		return err
	}
	u, err := s.deps.Users.Reload(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	tokens, err := s.deps.Tokens.Issue(u.Principal())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{User: u, Tokens: tokens})
}

func (s *Server) handleMe(c echo.Context) error {
	p := principal(c)
	u, err := s.deps.Users.Reload(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	role := u.Role
	if u.IsSuperuser {
		role = rbac.RoleSuperAdmin
	}
	return c.JSON(http.StatusOK, MeResponse{User: u, Permissions: rbac.Permissions(role)})
}

// handlePublicTenant serves the public profile of an active company.
func (s *Server) handlePublicTenant(c echo.Context) error {
	t, err := s.deps.Tenants.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	if !t.IsActive {
		return tenant.ErrNotFound
	}
	return c.JSON(http.StatusOK, t.Public())
}
