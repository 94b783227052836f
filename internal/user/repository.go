package user

import (
	"context"
	"fmt"

	"github.com/ahmed20kamel/project-management-api/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists users with gorm.
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

// Create inserts u. A duplicate email yields ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, u *User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if db.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// Get loads a user by ID. A non-nil tenantID restricts the lookup to that
// tenant.
func (r *Repository) Get(ctx context.Context, tenantID *uuid.UUID, id uint) (*User, error) {
	q := r.db.WithContext(ctx)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var u User
	if err := q.First(&u, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &u, nil
}

// GetByEmail loads a user by normalized email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &u, nil
}

// Update saves every column of u.
func (r *Repository) Update(ctx context.Context, u *User) error {
	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		if db.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// Delete removes a user permanently.
func (r *Repository) Delete(ctx context.Context, u *User) error {
	if err := r.db.WithContext(ctx).Delete(u).Error; err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// List returns users ordered by ID and the total count. A nil tenantID
// lists every tenant.
func (r *Repository) List(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]User, int64, error) {
	q := r.db.WithContext(ctx).Model(&User{})
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}
	var out []User
	if err := q.Order("id").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	return out, total, nil
}

// CountByTenant returns the number of users in a tenant.
func (r *Repository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
