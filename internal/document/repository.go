package document

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahmed20kamel/project-management-api/internal/db"
)

// Repository persists records with gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository on gdb.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Models lists the tables of this package for migration.
func Models() []any {
	return []any{
		&SitePlan{}, &SitePlanOwner{}, &BuildingLicense{}, &Awarding{},
		&Contract{}, &Variation{}, &Invoice{},
	}
}

// ForProject loads the single record of dest's type on a project.
func (r *Repository) ForProject(ctx context.Context, dest record, projectID uint) error {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if _, ok := dest.(*SitePlan); ok {
		q = q.Preload("Owners", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") })
	}
	if err := q.Order("id").First(dest).Error; err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("%w: %s of project %d", ErrNotFound, dest.DocumentRef().Kind, projectID)
		}
		return fmt.Errorf("loading %s: %w", dest.DocumentRef().Kind, err)
	}
	return nil
}

// Get loads one record of dest's type by id within a project.
func (r *Repository) Get(ctx context.Context, dest record, projectID, id uint) error {
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		First(dest, id).Error
	if err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("%w: %s %d", ErrNotFound, dest.DocumentRef().Kind, id)
		}
		return fmt.Errorf("loading %s: %w", dest.DocumentRef().Kind, err)
	}
	return nil
}

// Save inserts rec, or updates every column when it already has an ID.
// Associations are written separately.
func (r *Repository) Save(ctx context.Context, rec record) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(rec).Error; err != nil {
		return fmt.Errorf("saving %s: %w", rec.DocumentRef().Kind, err)
	}
	return nil
}

// SaveSitePlan saves p and replaces its owners in one transaction.
func (r *Repository) SaveSitePlan(ctx context.Context, p *SitePlan, owners []SitePlanOwner) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return err
		}
		if err := tx.Where("site_plan_id = ?", p.ID).Delete(&SitePlanOwner{}).Error; err != nil {
			return err
		}
		for i := range owners {
			owners[i].SitePlanID = p.ID
		}
		if len(owners) > 0 {
			if err := tx.Create(&owners).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving site plan: %w", err)
	}
	p.Owners = owners
	return nil
}

// Delete removes rec.
func (r *Repository) Delete(ctx context.Context, rec record) error {
	if err := r.db.WithContext(ctx).Delete(rec).Error; err != nil {
		return fmt.Errorf("deleting %s: %w", rec.DocumentRef().Kind, err)
	}
	return nil
}

// Variations returns the variation orders of a project, oldest first.
func (r *Repository) Variations(ctx context.Context, projectID uint) ([]Variation, error) {
	var out []Variation
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing variations: %w", err)
	}
	return out, nil
}

// Invoices returns the invoices of a project by invoice date.
func (r *Repository) Invoices(ctx context.Context, projectID uint) ([]Invoice, error) {
	var out []Invoice
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("invoice_date, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return out, nil
}

// NumberTaken reports whether a tenant already uses number on a record of
// model's type.
func (r *Repository) NumberTaken(ctx context.Context, model record, tenantID uuid.UUID, number string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(model).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking %s number: %w", model.DocumentRef().Kind, err)
	}
	return n > 0, nil
}
