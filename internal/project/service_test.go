package project

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/db"
	"github.com/ahmed20kamel/project-management-api/internal/events"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/storage"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingPublisher) Publish(_ context.Context, subject string, _ events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type failingProvisioner struct{}

func (failingProvisioner) Provision(context.Context, layout.Owner) (storage.Report, error) {
	return storage.Report{}, errors.New("disk on fire")
}

type fixture struct {
	svc     *Service
	fs      afero.Fs
	pub     *recordingPublisher
	audit   *audit.Recorder
	tenants *tenant.Repository
	actor   auth.Principal
	tenant  *tenant.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := db.NewTestDB(t, &tenant.Tenant{}, &Project{}, &audit.Entry{})

	fs := afero.NewMemMapFs()
	table, err := layout.NewPhaseTable(nil)
	require.NoError(t, err)
	prov, err := storage.NewProvisioner(storage.NewFsBackend(fs), layout.NewDeriver(table), nil)
	require.NoError(t, err)

	tenants := tenant.NewRepository(gdb)
	tn, err := tenant.New("Acme", "")
	require.NoError(t, err)
	require.NoError(t, tenants.Create(context.Background(), tn))

	pub := &recordingPublisher{}
	rec := audit.NewRecorder(gdb, nil)
	svc, err := NewService(gdb, prov, rec, pub, nil)
	require.NoError(t, err)

	return &fixture{
		svc:     svc,
		fs:      fs,
		pub:     pub,
		audit:   rec,
		tenants: tenants,
		actor:   auth.Principal{UserID: 1, TenantID: tn.ID, Role: rbac.RoleCompanyAdmin},
		tenant:  tn,
	}
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, failingProvisioner{}, nil, nil, nil)
	assert.Error(t, err)

	gdb := db.NewTestDB(t)
	_, err = NewService(gdb, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestService_CreateProvisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, report, err := f.svc.Create(ctx, f.actor, CreateInput{
		Name:          "Tower A",
		ProjectType:   TypeCommercial,
		InternalCode:  "M101",
		ContractValue: decimal.NewFromInt(1000000),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, p.Status)
	require.NotNil(t, p.CreatedByID)

	root := "projects/project_" + idString(p.ID) + "_tower-a"
	assert.Equal(t, root, report.ProjectRoot)
	assert.True(t, report.OK())
	assert.NotEmpty(t, report.Created)

	ok, err := afero.DirExists(f.fs, root+"/contracts-العقود")
	require.NoError(t, err)
	assert.True(t, ok, "contracts directory should be provisioned")
	ok, err = afero.DirExists(f.fs, root+"/Project Info-معلومات المشروع/مخطط الأرض - Site Plan")
	require.NoError(t, err)
	assert.True(t, ok, "fixed subfolders should be provisioned")

	assert.Equal(t, []string{events.ProjectCreated, events.ProjectProvisioned}, f.pub.subjects)

	_, total, err := f.audit.List(ctx, audit.Filter{ObjectType: "project"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	t.Run("reprovision is idempotent", func(t *testing.T) {
		again, err := f.svc.Provision(ctx, f.actor, p.ID)
		require.NoError(t, err)
		assert.Empty(t, again.Created)
		assert.Len(t, again.Existing, len(report.Created))
	})
}

func TestService_CreateSurvivesProvisioningFailure(t *testing.T) {
	f := newFixture(t)
	svc, err := NewService(f.svc.repo.db, failingProvisioner{}, nil, nil, nil)
	require.NoError(t, err)

	p, _, err := svc.Create(context.Background(), f.actor, CreateInput{Name: "Villa"})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Create(ctx, f.actor, CreateInput{InternalCode: "M2"})
	assert.ErrorIs(t, err, ErrInvalidProject)

	_, _, err = f.svc.Create(ctx, auth.Principal{UserID: 1, Superuser: true}, CreateInput{Name: "x"})
	assert.ErrorIs(t, err, ErrNoTenant)
}

func TestService_CreateBlankName(t *testing.T) {
	f := newFixture(t)
	p, report, err := f.svc.Create(context.Background(), f.actor, CreateInput{})
	require.NoError(t, err)
	assert.Equal(t, "projects/project_"+idString(p.ID), report.ProjectRoot)
}

func TestService_ProjectQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tenant.MaxProjects = 1
	require.NoError(t, f.tenants.Update(ctx, f.tenant))

	_, _, err := f.svc.Create(ctx, f.actor, CreateInput{Name: "One"})
	require.NoError(t, err)
	_, _, err = f.svc.Create(ctx, f.actor, CreateInput{Name: "Two"})
	assert.ErrorIs(t, err, tenant.ErrQuotaExceeded)
}

func TestService_UpdateRenameProvisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _, err := f.svc.Create(ctx, f.actor, CreateInput{Name: "Tower A"})
	require.NoError(t, err)

	name := "Tower B"
	value := decimal.RequireFromString("250000.75")
	got, err := f.svc.Update(ctx, f.actor, p.ID, UpdateInput{Name: &name, ContractValue: &value})
	require.NoError(t, err)
	assert.Equal(t, "Tower B", got.Name)
	assert.True(t, value.Equal(got.ContractValue))

	for _, root := range []string{"_tower-a", "_tower-b"} {
		ok, err := afero.DirExists(f.fs, "projects/project_"+idString(p.ID)+root)
		require.NoError(t, err)
		assert.True(t, ok, "%s should exist", root)
	}

	bad := "M4"
	_, err = f.svc.Update(ctx, f.actor, p.ID, UpdateInput{InternalCode: &bad})
	assert.ErrorIs(t, err, ErrInvalidProject)
}

func TestService_TenantIsolationAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _, err := f.svc.Create(ctx, f.actor, CreateInput{Name: "Tower A"})
	require.NoError(t, err)

	other := auth.Principal{UserID: 2, TenantID: uuid.New(), Role: rbac.RoleCompanyAdmin}
	_, err = f.svc.Get(ctx, other, p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, other, p.ID), ErrProjectNotFound)

	list, total, err := f.svc.List(ctx, other, Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	su := auth.Principal{UserID: 3, Superuser: true, Role: rbac.RoleSuperAdmin}
	_, total, err = f.svc.List(ctx, su, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	require.NoError(t, f.svc.Delete(ctx, f.actor, p.ID))
	_, err = f.svc.Get(ctx, f.actor, p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	ok, err := afero.DirExists(f.fs, "projects/project_"+idString(p.ID)+"_tower-a")
	require.NoError(t, err)
	assert.True(t, ok, "soft delete keeps files")
}

func TestService_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, in := range []CreateInput{
		{Name: "Villa One", ProjectType: TypeVilla, InternalCode: "M11"},
		{Name: "Mall", ProjectType: TypeCommercial, InternalCode: "M13"},
		{Name: "Villa Two", ProjectType: TypeVilla},
	} {
		_, _, err := f.svc.Create(ctx, f.actor, in)
		require.NoError(t, err)
	}

	_, total, err := f.svc.List(ctx, f.actor, Filter{ProjectType: TypeVilla})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	list, total, err := f.svc.List(ctx, f.actor, Filter{Search: "M13"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Mall", list[0].Name)

	list, _, err = f.svc.List(ctx, f.actor, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Villa Two", list[0].Name, "newest first")
}

func TestService_SetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _, err := f.svc.Create(ctx, f.actor, CreateInput{Name: "Tower"})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetStatus(ctx, p.ID, StatusCompleted))
	got, err := f.svc.Get(ctx, f.actor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	assert.ErrorIs(t, f.svc.SetStatus(ctx, p.ID, "paused"), ErrInvalidProject)
	assert.ErrorIs(t, f.svc.SetStatus(ctx, 9999, StatusCompleted), ErrProjectNotFound)
}
