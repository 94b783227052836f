package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/document"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/sanitize"
	"github.com/ahmed20kamel/project-management-api/internal/storage"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/internal/user"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{auth.ErrWrongTokenKind, http.StatusUnauthorized, "invalid_token"},
	{auth.ErrWeakPassword, http.StatusBadRequest, "weak_password"},

	{user.ErrInactive, http.StatusForbidden, "user_inactive"},
	{user.ErrForbidden, http.StatusForbidden, "forbidden"},
	{user.ErrNotFound, http.StatusNotFound, "user_not_found"},
	{user.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{user.ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},
	{rbac.ErrUnknownRole, http.StatusBadRequest, "unknown_role"},

	{tenant.ErrInactive, http.StatusForbidden, "tenant_inactive"},
	{tenant.ErrQuotaExceeded, http.StatusForbidden, "quota_exceeded"},
	{tenant.ErrNotFound, http.StatusNotFound, "tenant_not_found"},
	{tenant.ErrSlugTaken, http.StatusConflict, "slug_taken"},
	{tenant.ErrInvalidSlug, http.StatusBadRequest, "invalid_slug"},
	{tenant.ErrInvalidName, http.StatusBadRequest, "invalid_name"},

	{project.ErrNoTenant, http.StatusForbidden, "no_tenant"},
	{project.ErrProjectNotFound, http.StatusNotFound, "project_not_found"},
	{project.ErrInvalidProject, http.StatusBadRequest, "invalid_project"},
	{payment.ErrNotFound, http.StatusNotFound, "payment_not_found"},
	{payment.ErrInvalidPayment, http.StatusBadRequest, "invalid_payment"},

	{document.ErrNotFound, http.StatusNotFound, "document_not_found"},
	{document.ErrInvalidDocument, http.StatusBadRequest, "invalid_document"},
	{document.ErrDuplicateNumber, http.StatusConflict, "duplicate_number"},
	{document.ErrUnknownKind, http.StatusBadRequest, "unknown_document_kind"},

	{attachment.ErrNotFound, http.StatusNotFound, "attachment_not_found"},
	{attachment.ErrMissingPhase, http.StatusBadRequest, "missing_phase"},
	{attachment.ErrMissingFile, http.StatusBadRequest, "missing_file"},
	{layout.ErrUnknownPhase, http.StatusBadRequest, "unknown_phase"},

	{sanitize.ErrPathTraversal, http.StatusBadRequest, "invalid_path"},
	{sanitize.ErrAbsolutePath, http.StatusBadRequest, "invalid_path"},
	{sanitize.ErrEmptyPath, http.StatusBadRequest, "invalid_path"},
	{storage.ErrNotFound, http.StatusNotFound, "file_not_found"},
	{storage.ErrFileExists, http.StatusConflict, "file_exists"},
	{storage.ErrTooManyCollisions, http.StatusConflict, "file_exists"},
}

// statusFor maps a service error to its HTTP status and code. Unknown
// errors are internal.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// errorHandler renders every handler error as an ErrorBody. Internal errors
// are logged with the request's correlation fields and their message hidden
// from the client.
func errorHandler(log *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := log.For(c.Request().Context()).Named("http")

		var (
			status int
			code   string
			msg    string
		)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			code = codeForStatus(status)
			msg = http.StatusText(status)
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
		} else {
			status, code = statusFor(err)
			msg = err.Error()
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			msg = http.StatusText(status)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorBody{Error: ErrorDetail{Code: code, Message: msg}})
		}
		if writeErr != nil {
			logger.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "error"
}

// responseStatus is the status the client will see. Handler errors are
// rendered after the middleware chain unwinds, so the recorded status is
// still the default at that point.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	status, _ := statusFor(err)
	return status
}
