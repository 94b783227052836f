package attachment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmed20kamel/project-management-api/internal/db"
)

// Repository persists attachments with gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository on gdb.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Create inserts a.
func (r *Repository) Create(ctx context.Context, a *Attachment) error {
	if err := r.db.WithContext(ctx).Omit("Project", "Payment").Create(a).Error; err != nil {
		return fmt.Errorf("creating attachment: %w", err)
	}
	return nil
}

// Get loads an attachment with its project. A non-nil tenantID restricts
// the lookup.
func (r *Repository) Get(ctx context.Context, tenantID *uuid.UUID, id uint) (*Attachment, error) {
	q := r.db.WithContext(ctx).Preload("Project")
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var a Attachment
	if err := q.First(&a, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading attachment: %w", err)
	}
	return &a, nil
}

// GetByPath loads the newest attachment recorded at path.
func (r *Repository) GetByPath(ctx context.Context, tenantID *uuid.UUID, path string) (*Attachment, error) {
	q := r.db.WithContext(ctx).Preload("Project").Where("path = ?", path)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var a Attachment
	if err := q.Order("id DESC").First(&a).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("loading attachment: %w", err)
	}
	return &a, nil
}

// ListByProject returns a project's attachments, optionally narrowed to a
// phase, newest first.
func (r *Repository) ListByProject(ctx context.Context, projectID uint, phase string) ([]Attachment, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if phase != "" {
		q = q.Where("phase = ?", phase)
	}
	var out []Attachment
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	return out, nil
}

// ListByDocument returns the attachments of one document, newest first.
func (r *Repository) ListByDocument(ctx context.Context, kind string, id uint) ([]Attachment, error) {
	var out []Attachment
	err := r.db.WithContext(ctx).
		Where("document_kind = ? AND document_id = ?", kind, id).
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing document attachments: %w", err)
	}
	return out, nil
}

// Delete removes the record.
func (r *Repository) Delete(ctx context.Context, a *Attachment) error {
	if err := r.db.WithContext(ctx).Delete(a).Error; err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	return nil
}
