package user

import (
	"context"
	"testing"

	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/db"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "s3cret-pass"

func newTestService(t *testing.T) (*Service, *audit.Recorder) {
	t.Helper()
	gdb := db.NewTestDB(t, &tenant.Tenant{}, &User{}, &audit.Entry{})
	rec := audit.NewRecorder(gdb, nil)
	svc, err := NewService(gdb, rec, nil)
	require.NoError(t, err)
	return svc, rec
}

func register(t *testing.T, svc *Service, company, email string) (*User, *tenant.Tenant) {
	t.Helper()
	u, tn, err := svc.Register(context.Background(), RegisterInput{
		CompanyName: company,
		Email:       email,
		Password:    testPassword,
		FullName:    "Owner",
	})
	require.NoError(t, err)
	return u, tn
}

func TestNewService_RequiresDB(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	assert.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Owner@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", got)

	for _, bad := range []string{"", "not-an-email", "Name <a@b.com>"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidEmail, bad)
	}
}

func TestService_Register(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	u, tn := register(t, svc, "Acme Contracting", "owner@acme.test")
	assert.Equal(t, rbac.RoleCompanySuperAdmin, u.Role)
	require.NotNil(t, u.TenantID)
	assert.Equal(t, tn.ID, *u.TenantID)
	assert.Equal(t, "acme-contracting", tn.Slug)
	assert.NotEqual(t, testPassword, u.PasswordHash)

	_, total, err := rec.List(ctx, audit.Filter{TenantID: &tn.ID, ObjectType: "tenant"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	t.Run("duplicate email rolls back tenant", func(t *testing.T) {
		_, _, err := svc.Register(ctx, RegisterInput{CompanyName: "Other Co", Email: "owner@acme.test", Password: testPassword})
		assert.ErrorIs(t, err, ErrEmailTaken)

		_, err = svc.tenants.GetBySlug(ctx, "other-co")
		assert.ErrorIs(t, err, tenant.ErrNotFound, "tenant insert must be rolled back")
	})

	t.Run("duplicate slug", func(t *testing.T) {
		_, _, err := svc.Register(ctx, RegisterInput{CompanyName: "Acme Contracting", Email: "x@acme.test", Password: testPassword})
		assert.ErrorIs(t, err, tenant.ErrSlugTaken)
	})

	t.Run("weak password", func(t *testing.T) {
		_, _, err := svc.Register(ctx, RegisterInput{CompanyName: "Weak", Email: "w@weak.test", Password: "short"})
		assert.ErrorIs(t, err, auth.ErrWeakPassword)
	})
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner, tn := register(t, svc, "Acme", "owner@acme.test")

	u, err := svc.Authenticate(ctx, "OWNER@acme.test", testPassword)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, u.ID)
	assert.NotNil(t, u.LastLoginAt)

	_, err = svc.Authenticate(ctx, "owner@acme.test", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@acme.test", testPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	tn.IsActive = false
	require.NoError(t, svc.tenants.Update(ctx, tn))
	_, err = svc.Authenticate(ctx, "owner@acme.test", testPassword)
	assert.ErrorIs(t, err, tenant.ErrInactive)

	_, err = svc.Reload(ctx, owner.ID)
	assert.ErrorIs(t, err, tenant.ErrInactive)
}

func TestService_CreateAndManage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner, tn := register(t, svc, "Acme", "owner@acme.test")
	actor := owner.Principal()

	staff, err := svc.Create(ctx, actor, CreateInput{Email: "staff@acme.test", Password: testPassword, Role: rbac.RoleStaff})
	require.NoError(t, err)
	require.NotNil(t, staff.TenantID)
	assert.Equal(t, tn.ID, *staff.TenantID)

	t.Run("invalid role", func(t *testing.T) {
		_, err := svc.Create(ctx, actor, CreateInput{Email: "a@acme.test", Password: testPassword, Role: rbac.RoleSuperAdmin})
		assert.ErrorIs(t, err, rbac.ErrUnknownRole)
	})

	t.Run("cannot assign a higher role", func(t *testing.T) {
		_, err := svc.Create(ctx, staff.Principal(), CreateInput{Email: "b@acme.test", Password: testPassword, Role: rbac.RoleCompanyAdmin})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("tenant-less actor", func(t *testing.T) {
		_, err := svc.Create(ctx, auth.Principal{UserID: 99, Superuser: true}, CreateInput{Email: "c@acme.test", Password: testPassword, Role: rbac.RoleStaff})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("update role", func(t *testing.T) {
		role := rbac.RoleViewer
		got, err := svc.Update(ctx, actor, staff.ID, UpdateInput{Role: &role})
		require.NoError(t, err)
		assert.Equal(t, rbac.RoleViewer, got.Role)
	})

	t.Run("cannot change own role", func(t *testing.T) {
		role := rbac.RoleViewer
		_, err := svc.Update(ctx, actor, owner.ID, UpdateInput{Role: &role})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("cannot touch a higher role", func(t *testing.T) {
		name := "x"
		_, err := svc.Update(ctx, auth.Principal{UserID: staff.ID, TenantID: tn.ID, Role: rbac.RoleViewer}, owner.ID, UpdateInput{FullName: &name})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("deactivate blocks login", func(t *testing.T) {
		off := false
		_, err := svc.Update(ctx, actor, staff.ID, UpdateInput{IsActive: &off})
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, "staff@acme.test", testPassword)
		assert.ErrorIs(t, err, ErrInactive)
	})

	t.Run("list and get", func(t *testing.T) {
		list, total, err := svc.List(ctx, actor, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, list, 2)

		_, err = svc.Get(ctx, actor, staff.ID)
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, actor, owner.ID), ErrForbidden)
		require.NoError(t, svc.Delete(ctx, actor, staff.ID))
		_, err := svc.Get(ctx, actor, staff.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_TenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acme, _ := register(t, svc, "Acme", "owner@acme.test")
	beta, _ := register(t, svc, "Beta", "owner@beta.test")

	_, err := svc.Get(ctx, acme.Principal(), beta.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, acme.Principal(), beta.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	su, err := svc.CreateSuperuser(ctx, "root@platform.test", testPassword)
	require.NoError(t, err)
	assert.True(t, su.IsSuperuser)
	assert.Nil(t, su.TenantID)

	_, total, err := svc.List(ctx, su.Principal(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "tenant-less superuser sees every tenant")
}

func TestService_UserQuota(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner, tn := register(t, svc, "Acme", "owner@acme.test")

	tn.MaxUsers = 2
	require.NoError(t, svc.tenants.Update(ctx, tn))

	_, err := svc.Create(ctx, owner.Principal(), CreateInput{Email: "one@acme.test", Password: testPassword, Role: rbac.RoleViewer})
	require.NoError(t, err)

	_, err = svc.Create(ctx, owner.Principal(), CreateInput{Email: "two@acme.test", Password: testPassword, Role: rbac.RoleViewer})
	assert.ErrorIs(t, err, tenant.ErrQuotaExceeded)
}
