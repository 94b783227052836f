package http

import (
	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/storage"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/internal/user"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Services map[string]string `json:"services"`
	Counts   StatusCounts      `json:"counts"`
}

// StatusCounts holds the caller's company totals. -1 means the count is not
// available, e.g. for a superuser outside any company.
type StatusCounts struct {
	Projects int64 `json:"projects"`
	Users    int64 `json:"users"`
}

// Page wraps a list response.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	User   *user.User         `json:"user"`
	Tenant *tenant.PublicInfo `json:"tenant,omitempty"`
	Tokens auth.TokenPair     `json:"tokens"`
}

// MeResponse is the response body for GET /api/v1/auth/me.
type MeResponse struct {
	User        *user.User        `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
}

// ProjectCreatedResponse carries the new project and its provisioning
// report.
type ProjectCreatedResponse struct {
	Project      *project.Project `json:"project"`
	Provisioning storage.Report   `json:"provisioning"`
}

// PaymentResponse carries a payment and the project status recomputed
// after the change.
type PaymentResponse struct {
	Payment       *payment.Payment `json:"payment,omitempty"`
	ProjectStatus project.Status   `json:"project_status"`
}

// AttachmentResponse wraps one stored attachment with its media URL.
type AttachmentResponse struct {
	*attachment.Attachment
	URL string `json:"url"`
}
