// Package tenant stores companies, the unit of isolation for every other
// record.
package tenant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmed20kamel/project-management-api/internal/sanitize"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Common errors.
var (
	ErrNotFound      = errors.New("tenant not found")
	ErrSlugTaken     = errors.New("tenant slug already taken")
	ErrInvalidSlug   = errors.New("invalid tenant slug")
	ErrInvalidName   = errors.New("invalid tenant name")
	ErrInactive      = errors.New("tenant inactive")
	ErrQuotaExceeded = errors.New("tenant quota exceeded")
)

// slugBudget keeps derived slugs inside the 64 characters ValidateSlug allows.
const slugBudget = 60

// Tenant is a company using the platform.
type Tenant struct {
	ID       uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name     string    `gorm:"size:200;not null" json:"name"`
	Slug     string    `gorm:"size:64;not null;uniqueIndex" json:"slug"`
	IsActive bool      `gorm:"not null" json:"is_active"`
	IsTrial  bool      `gorm:"not null" json:"is_trial"`

	// Quotas; zero means unlimited.
	MaxProjects int `gorm:"not null" json:"max_projects"`
	MaxUsers    int `gorm:"not null" json:"max_users"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random ID.
func (t *Tenant) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// New returns an active tenant. An empty slug is derived from the name.
func New(name, slug string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidName)
	}

	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = sanitize.ProjectSlug(name, slugBudget)
	}
	if err := sanitize.ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlug, err)
	}

	return &Tenant{Name: name, Slug: slug, IsActive: true}, nil
}

// CheckProjectQuota returns ErrQuotaExceeded when adding one more project
// would pass MaxProjects.
func (t *Tenant) CheckProjectQuota(current int64) error {
	if t.MaxProjects > 0 && current >= int64(t.MaxProjects) {
		return fmt.Errorf("%w: %d of %d projects used", ErrQuotaExceeded, current, t.MaxProjects)
	}
	return nil
}

// CheckUserQuota returns ErrQuotaExceeded when adding one more user would
// pass MaxUsers.
func (t *Tenant) CheckUserQuota(current int64) error {
	if t.MaxUsers > 0 && current >= int64(t.MaxUsers) {
		return fmt.Errorf("%w: %d of %d users used", ErrQuotaExceeded, current, t.MaxUsers)
	}
	return nil
}

// PublicInfo is what unauthenticated callers may see.
type PublicInfo struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`
}

// Public strips quotas and identifiers.
func (t *Tenant) Public() PublicInfo {
	return PublicInfo{Name: t.Name, Slug: t.Slug, IsActive: t.IsActive}
}
