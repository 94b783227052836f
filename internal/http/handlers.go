package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// principal returns the caller set by auth.JWT. Routes registered on the
// authenticated group always have one.
func principal(c echo.Context) auth.Principal {
	p, _ := auth.Current(c)
	return p
}

// scope limits queries to the caller's tenant. Superusers outside any
// company see every tenant.
func scope(p auth.Principal) *uuid.UUID {
	if p.Superuser && !p.HasTenant() {
		return nil
	}
	id := p.TenantID
	return &id
}

func idParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// pagination reads limit and offset query parameters.
func pagination(c echo.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	if err := echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError(); err != nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid pagination parameters")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// fileURL is the download URL of a stored relative path.
func fileURL(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return filesPrefix + strings.Join(parts, "/")
}
