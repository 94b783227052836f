// Package user manages accounts, registration and login.
package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
	"github.com/google/uuid"
)

// Common errors.
var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidEmail = errors.New("invalid email")
	ErrInactive     = errors.New("user inactive")
	ErrForbidden    = errors.New("operation not allowed for this role")
)

// User is a login account. Superusers have no tenant.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TenantID     *uuid.UUID `gorm:"type:varchar(36);index" json:"tenant_id,omitempty"`
	Email        string     `gorm:"size:254;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:100;not null" json:"-"`
	FullName     string     `gorm:"size:200" json:"full_name"`
	Role         rbac.Role  `gorm:"size:32;not null" json:"role"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsSuperuser  bool       `gorm:"not null" json:"is_superuser"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Principal returns the token subject for u.
func (u *User) Principal() auth.Principal {
	p := auth.Principal{UserID: u.ID, Role: u.Role, Superuser: u.IsSuperuser}
	if u.TenantID != nil {
		p.TenantID = *u.TenantID
	}
	return p
}

// NormalizeEmail lowercases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
