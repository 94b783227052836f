package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service implements account operations on top of Repository.
type Service struct {
	db      *gorm.DB
	users   *Repository
	tenants *tenant.Repository
	audit   audit.Sink
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a user service. A nil sink disables auditing and a
// nil logger is replaced by a no-op.
func NewService(gdb *gorm.DB, sink audit.Sink, logger *zap.Logger) (*Service, error) {
	if gdb == nil {
		return nil, errors.New("database is required")
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      gdb,
		users:   NewRepository(gdb),
		tenants: tenant.NewRepository(gdb),
		audit:   sink,
		logger:  logger.Named("user"),
		now:     time.Now,
	}, nil
}

// RegisterInput creates a company and its owner account.
type RegisterInput struct {
	CompanyName string `json:"company_name"`
	CompanySlug string `json:"company_slug"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
}

// Register creates a tenant and its company_super_admin in one
// transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, *tenant.Tenant, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}
	t, err := tenant.New(in.CompanyName, in.CompanySlug)
	if err != nil {
		return nil, nil, err
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         rbac.RoleCompanySuperAdmin,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tenants.WithTx(tx).Create(ctx, t); err != nil {
			return err
		}
		u.TenantID = &t.ID
		return s.users.WithTx(tx).Create(ctx, u)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("tenant registered",
		zap.String("tenant.id", t.ID.String()),
		zap.String("tenant.slug", t.Slug),
		zap.Uint("user.id", u.ID),
	)
	s.audit.Record(ctx, audit.Entry{
		TenantID:   &t.ID,
		UserID:     &u.ID,
		Action:     audit.ActionCreate,
		ObjectType: "tenant",
		ObjectID:   t.ID.String(),
		Changes:    datatypes.JSONMap{"name": t.Name, "slug": t.Slug},
	})
	return u, t, nil
}

// Authenticate checks credentials and stamps LastLoginAt. Unknown emails
// and wrong passwords both yield auth.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	if err := s.checkActive(ctx, u); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		TenantID:   u.TenantID,
		UserID:     &u.ID,
		Action:     audit.ActionLogin,
		ObjectType: "user",
		ObjectID:   strconv.FormatUint(uint64(u.ID), 10),
	})
	return u, nil
}

// Reload loads the account behind a refresh token and checks that it may
// still sign in.
func (s *Service) Reload(ctx context.Context, id uint) (*User, error) {
	u, err := s.users.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkActive(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) checkActive(ctx context.Context, u *User) error {
	if !u.IsActive {
		return ErrInactive
	}
	if u.TenantID == nil {
		return nil
	}
	active, err := s.tenants.IsActive(ctx, *u.TenantID)
	if err != nil {
		return err
	}
	if !active {
		return tenant.ErrInactive
	}
	return nil
}

// CreateInput adds a user to the caller's company.
type CreateInput struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	FullName string    `json:"full_name"`
	Role     rbac.Role `json:"role"`
}

// Create adds a user to actor's tenant. The role must be tenant scoped and
// may not outrank the actor. The tenant's MaxUsers quota applies.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (*User, error) {
	if !actor.HasTenant() {
		return nil, fmt.Errorf("%w: users are created inside a company", ErrForbidden)
	}
	if err := s.checkAssignable(actor, in.Role); err != nil {
		return nil, err
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	t, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	count, err := s.users.CountByTenant(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if err := t.CheckUserQuota(count); err != nil {
		return nil, err
	}

	tid := t.ID
	u := &User{
		TenantID:     &tid,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		ObjectType: "user",
		ObjectID:   strconv.FormatUint(uint64(u.ID), 10),
		Changes:    datatypes.JSONMap{"email": u.Email, "role": string(u.Role)},
	})
	return u, nil
}

func (s *Service) checkAssignable(actor auth.Principal, role rbac.Role) error {
	if !role.TenantScoped() {
		return fmt.Errorf("%w: %q", rbac.ErrUnknownRole, role)
	}
	if !actor.Superuser && role.Outranks(actor.Role) {
		return fmt.Errorf("%w: cannot assign %s", ErrForbidden, role)
	}
	return nil
}

// scope returns the tenant filter for actor; nil lets a tenant-less
// superuser see every tenant.
func scope(actor auth.Principal) *uuid.UUID {
	if actor.Superuser && !actor.HasTenant() {
		return nil
	}
	id := actor.TenantID
	return &id
}

// Get returns a user visible to actor.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id uint) (*User, error) {
	return s.users.Get(ctx, scope(actor), id)
}

// List returns users visible to actor.
func (s *Service) List(ctx context.Context, actor auth.Principal, limit, offset int) ([]User, int64, error) {
	return s.users.List(ctx, scope(actor), limit, offset)
}

// UpdateInput carries optional changes; nil fields are left alone.
type UpdateInput struct {
	FullName *string    `json:"full_name"`
	Role     *rbac.Role `json:"role"`
	IsActive *bool      `json:"is_active"`
	Password *string    `json:"password"`
}

// Update applies in to a user in actor's tenant. Actors cannot change
// their own role or deactivate themselves, nor touch users who outrank
// them.
func (s *Service) Update(ctx context.Context, actor auth.Principal, id uint, in UpdateInput) (*User, error) {
	u, err := s.users.Get(ctx, scope(actor), id)
	if err != nil {
		return nil, err
	}
	if !actor.Superuser && u.Role.Outranks(actor.Role) {
		return nil, fmt.Errorf("%w: target outranks caller", ErrForbidden)
	}

	changes := datatypes.JSONMap{}
	self := u.ID == actor.UserID

	if in.FullName != nil {
		u.FullName = strings.TrimSpace(*in.FullName)
		changes["full_name"] = u.FullName
	}
	if in.Role != nil && *in.Role != u.Role {
		if self {
			return nil, fmt.Errorf("%w: cannot change own role", ErrForbidden)
		}
		if err := s.checkAssignable(actor, *in.Role); err != nil {
			return nil, err
		}
		u.Role = *in.Role
		changes["role"] = string(u.Role)
	}
	if in.IsActive != nil && *in.IsActive != u.IsActive {
		if self {
			return nil, fmt.Errorf("%w: cannot change own active flag", ErrForbidden)
		}
		u.IsActive = *in.IsActive
		changes["is_active"] = u.IsActive
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
		changes["password"] = "changed"
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionUpdate,
		ObjectType: "user",
		ObjectID:   strconv.FormatUint(uint64(u.ID), 10),
		Changes:    changes,
	})
	return u, nil
}

// Delete removes a user in actor's tenant. Actors cannot delete themselves
// or users who outrank them.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id uint) error {
	u, err := s.users.Get(ctx, scope(actor), id)
	if err != nil {
		return err
	}
	if u.ID == actor.UserID {
		return fmt.Errorf("%w: cannot delete yourself", ErrForbidden)
	}
	if !actor.Superuser && u.Role.Outranks(actor.Role) {
		return fmt.Errorf("%w: target outranks caller", ErrForbidden)
	}
	if err := s.users.Delete(ctx, u); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionDelete,
		ObjectType: "user",
		ObjectID:   strconv.FormatUint(uint64(u.ID), 10),
		Changes:    datatypes.JSONMap{"email": u.Email},
	})
	return nil
}

// CreateSuperuser creates a platform operator without a tenant.
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         rbac.RoleSuperAdmin,
		IsActive:     true,
		IsSuperuser:  true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("superuser created", zap.Uint("user.id", u.ID))
	return u, nil
}

// CountInTenant returns the number of accounts in a company.
func (s *Service) CountInTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.users.CountByTenant(ctx, tenantID)
}
