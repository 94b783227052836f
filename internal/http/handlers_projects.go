package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahmed20kamel/project-management-api/internal/project"
)

// handleListProjects supports status, project_type and q (name or internal
// code) filters.
func (s *Server) handleListProjects(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	projects, total, err := s.deps.Projects.List(c.Request().Context(), principal(c), project.Filter{
		Status:      project.Status(c.QueryParam("status")),
		ProjectType: project.Type(c.QueryParam("project_type")),
		Search:      c.QueryParam("q"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Page[project.Project]{Items: projects, Total: total, Limit: limit, Offset: offset})
}

// handleCreateProject creates the record and provisions its folder tree.
// Provisioning failures are returned in the report, not as an error.
func (s *Server) handleCreateProject(c echo.Context) error {
	var req project.CreateInput
	if err := bind(c, &req); err != nil {
		return err
	}
	p, report, err := s.deps.Projects.Create(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ProjectCreatedResponse{Project: p, Provisioning: report})
}

func (s *Server) handleGetProject(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	p, err := s.deps.Projects.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateProject(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req project.UpdateInput
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := s.deps.Projects.Update(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Projects.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleProvisionProject re-runs provisioning. Existing directories are
// reported, never recreated.
func (s *Server) handleProvisionProject(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	report, err := s.deps.Projects.Provision(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
