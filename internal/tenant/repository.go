package tenant

import (
	"context"
	"fmt"

	"github.com/ahmed20kamel/project-management-api/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists tenants with gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository on gdb.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// WithTx returns a Repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts t. A duplicate slug yields ErrSlugTaken.
func (r *Repository) Create(ctx context.Context, t *Tenant) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if db.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrSlugTaken, t.Slug)
		}
		return fmt.Errorf("creating tenant: %w", err)
	}
	return nil
}

// Get loads a tenant by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading tenant: %w", err)
	}
	return &t, nil
}

// GetBySlug loads a tenant by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var t Tenant
	if err := r.db.WithContext(ctx).First(&t, "slug = ?", slug).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return nil, fmt.Errorf("loading tenant: %w", err)
	}
	return &t, nil
}

// Update saves every column of t.
func (r *Repository) Update(ctx context.Context, t *Tenant) error {
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		if db.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrSlugTaken, t.Slug)
		}
		return fmt.Errorf("updating tenant: %w", err)
	}
	return nil
}

// List returns tenants ordered by name and the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Tenant, int64, error) {
	var (
		out   []Tenant
		total int64
	)
	q := r.db.WithContext(ctx).Model(&Tenant{}).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting tenants: %w", err)
	}
	if err := q.Order("name").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("listing tenants: %w", err)
	}
	return out, total, nil
}

// IsActive reports whether tenant id exists and is active.
func (r *Repository) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return t.IsActive, nil
}
