package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// handleStatus reports service health and the caller's company totals.
func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()

	resp := StatusResponse{
		Status:   "ok",
		Version:  s.config.Version,
		Services: map[string]string{"database": "ok"},
	}
	for k, v := range s.deps.Services {
		resp.Services[k] = v
	}
	if s.deps.Ping != nil {
		if err := s.deps.Ping(ctx); err != nil {
			s.logger.Warn("status check failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Services["database"] = "unavailable"
		}
	}

	resp.Counts = s.counts(ctx, principal(c))
	return c.JSON(http.StatusOK, resp)
}

// counts returns project and user totals for the caller's company, or -1
// when they cannot be determined.
func (s *Server) counts(ctx context.Context, p auth.Principal) StatusCounts {
	out := StatusCounts{Projects: -1, Users: -1}
	if !p.HasTenant() {
		return out
	}
	if n, err := s.deps.Projects.Repository().CountByTenant(ctx, p.TenantID); err == nil {
		out.Projects = n
	} else {
		s.logger.Debug("project count failed", zap.Error(err))
	}
	if n, err := s.deps.Users.CountInTenant(ctx, p.TenantID); err == nil {
		out.Users = n
	} else {
		s.logger.Debug("user count failed", zap.Error(err))
	}
	return out
}

func (s *Server) handleRoles(c echo.Context) error {
	return c.JSON(http.StatusOK, rbac.Catalogue())
}

// handlePhases lists every phase, current scheme first, so clients can
// offer the right directory choices.
func (s *Server) handlePhases(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Phases.All())
}

func (s *Server) handleListAuditLogs(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	entries, total, err := s.deps.Audit.List(c.Request().Context(), audit.Filter{
		TenantID:   scope(principal(c)),
		Action:     audit.Action(c.QueryParam("action")),
		ObjectType: c.QueryParam("object_type"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Page[audit.Entry]{Items: entries, Total: total, Limit: limit, Offset: offset})
}
