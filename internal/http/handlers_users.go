package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahmed20kamel/project-management-api/internal/user"
)

func (s *Server) handleListUsers(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	users, total, err := s.deps.Users.List(c.Request().Context(), principal(c), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Page[user.User]{Items: users, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleCreateUser(c echo.Context) error {
	var req user.CreateInput
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.deps.Users.Create(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) handleGetUser(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	u, err := s.deps.Users.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleUpdateUser(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req user.UpdateInput
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.deps.Users.Update(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleDeleteUser(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Users.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
