package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmed20kamel/project-management-api/internal/config"
	"github.com/ahmed20kamel/project-management-api/internal/events"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/user"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:"+filepath.Join(dir, "app.db")+"?_foreign_keys=on")
	t.Setenv("DATABASE_AUTO_MIGRATE", "true")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_MEDIA_ROOT", filepath.Join(dir, "media"))
	t.Setenv("EVENTS_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testConfig(t), Options{
		Version: "test",
		Logger:  logging.NewTestLogger().Logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestNew_WiresComponents(t *testing.T) {
	a := newTestApp(t)

	assert.NotNil(t, a.DB)
	assert.NotNil(t, a.Backend)
	assert.NotNil(t, a.Deriver)
	assert.NotNil(t, a.Provisioner)
	assert.NotNil(t, a.Saver)
	assert.NotNil(t, a.Users)
	assert.NotNil(t, a.Projects)
	assert.NotNil(t, a.Payments)
	assert.NotNil(t, a.Attachments)
	assert.NotNil(t, a.Documents)
	assert.IsType(t, events.Nop{}, a.Events)
	assert.NoError(t, a.Ping(context.Background()))
	assert.Len(t, a.Phases.All(), len(layout.DefaultPhases()))
}

func TestNew_ProvisionsOnProjectCreate(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	u, _, err := a.Users.Register(ctx, user.RegisterInput{
		CompanyName: "Acme Contracting",
		Email:       "owner@acme.test",
		Password:    "correct-horse-battery",
		FullName:    "Owner",
	})
	require.NoError(t, err)

	p, report, err := a.Projects.Create(ctx, u.Principal(), project.CreateInput{Name: "Tower A"})
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.NotEmpty(t, report.Created)

	root := filepath.Join(a.Config.Storage.MediaRoot, filepath.FromSlash(report.ProjectRoot))
	info, err := os.Stat(root)
	require.NoError(t, err, "project %s root should exist on disk", p.ID)
	assert.True(t, info.IsDir())
}

func TestNewHTTPServer(t *testing.T) {
	a := newTestApp(t)

	srv, err := a.NewHTTPServer()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	u, _, err := a.Users.Register(context.Background(), user.RegisterInput{
		CompanyName: "Acme Contracting",
		Email:       "owner@acme.test",
		Password:    "correct-horse-battery",
		FullName:    "Owner",
	})
	require.NoError(t, err)
	pair, err := a.Tokens.Issue(u.Principal())
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"local"`)
}

func TestClose_Idempotent(t *testing.T) {
	a := newTestApp(t)
	assert.NoError(t, a.Close(context.Background()))
}
