package payment

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ahmed20kamel/project-management-api/internal/db"
)

// Repository persists payments with gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository on gdb.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Create inserts p.
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	if err := r.db.WithContext(ctx).Omit("Project").Create(p).Error; err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	return nil
}

// Get loads a payment of a project with the project preloaded.
func (r *Repository) Get(ctx context.Context, projectID, id uint) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).
		Preload("Project").
		Where("project_id = ?", projectID).
		First(&p, id).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading payment: %w", err)
	}
	return &p, nil
}

// ListByProject returns a project's payments ordered by date, then
// creation time.
func (r *Repository) ListByProject(ctx context.Context, projectID uint) ([]Payment, error) {
	var out []Payment
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("date, created_at, id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	return out, nil
}

// Delete removes p.
func (r *Repository) Delete(ctx context.Context, p *Payment) error {
	if err := r.db.WithContext(ctx).Delete(p).Error; err != nil {
		return fmt.Errorf("deleting payment: %w", err)
	}
	return nil
}
