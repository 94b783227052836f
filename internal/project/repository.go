package project

import (
	"context"
	"fmt"

	"github.com/ahmed20kamel/project-management-api/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists projects with gorm. Deleted projects are hidden by
// gorm's soft delete.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository on gdb.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Filter narrows List. A nil TenantID spans every tenant.
type Filter struct {
	TenantID    *uuid.UUID
	Status      Status
	ProjectType Type
	Search      string
	Limit       int
	Offset      int
}

// Create inserts p.
func (r *Repository) Create(ctx context.Context, p *Project) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

// Get loads a project. A non-nil tenantID restricts the lookup.
func (r *Repository) Get(ctx context.Context, tenantID *uuid.UUID, id uint) (*Project, error) {
	q := r.db.WithContext(ctx)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var p Project
	if err := q.First(&p, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return &p, nil
}

// List returns projects newest first and the total matching count.
func (r *Repository) List(ctx context.Context, f Filter) ([]Project, int64, error) {
	q := r.db.WithContext(ctx).Model(&Project{})
	if f.TenantID != nil {
		q = q.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ProjectType != "" {
		q = q.Where("project_type = ?", f.ProjectType)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("(name LIKE ? OR internal_code LIKE ?)", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting projects: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []Project
	if err := q.Order("id DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("listing projects: %w", err)
	}
	return out, total, nil
}

// Update saves every column of p.
func (r *Repository) Update(ctx context.Context, p *Project) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

// SetStatus updates only the status column.
func (r *Repository) SetStatus(ctx context.Context, id uint, status Status) error {
	res := r.db.WithContext(ctx).Model(&Project{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("updating project status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrProjectNotFound, id)
	}
	return nil
}

// Delete soft-deletes p.
func (r *Repository) Delete(ctx context.Context, p *Project) error {
	if err := r.db.WithContext(ctx).Delete(p).Error; err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

// CountByTenant counts live projects of a tenant.
func (r *Repository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Project{}).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting projects: %w", err)
	}
	return n, nil
}

// IDs returns the IDs of every live project, in order. Used by batch
// commands.
func (r *Repository) IDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&Project{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing project ids: %w", err)
	}
	return ids, nil
}
