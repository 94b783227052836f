package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/db"
	"github.com/ahmed20kamel/project-management-api/internal/document"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/storage"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/internal/user"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server *Server
	fs     afero.Fs
	deps   Deps
	logs   *logging.TestLogger
}

func newTestDeps(t *testing.T) (Deps, afero.Fs) {
	t.Helper()
	models := []any{
		&tenant.Tenant{}, &user.User{}, &project.Project{},
		&payment.Payment{}, &attachment.Attachment{}, &audit.Entry{},
	}
	gdb := db.NewTestDB(t, append(models, document.Models()...)...)

	fs := afero.NewMemMapFs()
	backend := storage.NewFsBackend(fs)
	table, err := layout.NewPhaseTable(nil)
	require.NoError(t, err)
	deriver := layout.NewDeriver(table)
	prov, err := storage.NewProvisioner(backend, deriver, nil)
	require.NoError(t, err)
	saver, err := storage.NewSaver(backend, deriver, storage.CollisionRename, nil)
	require.NoError(t, err)

	recorder := audit.NewRecorder(gdb, nil)
	users, err := user.NewService(gdb, recorder, nil)
	require.NoError(t, err)
	projects, err := project.NewService(gdb, prov, recorder, nil, nil)
	require.NoError(t, err)
	payments, err := payment.NewService(gdb, projects, recorder, nil, nil)
	require.NoError(t, err)
	attachments, err := attachment.NewService(attachment.Deps{
		DB:       gdb,
		Saver:    saver,
		Backend:  backend,
		Projects: projects,
		Payments: payments,
		Audit:    recorder,
	})
	require.NoError(t, err)
	documents, err := document.NewService(document.Deps{
		DB:          gdb,
		Projects:    projects,
		Payments:    payments,
		Attachments: attachments,
		Audit:       recorder,
	})
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager([]byte(testSecret), "pmapi-test", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	return Deps{
		Users:       users,
		Tenants:     tenant.NewRepository(gdb),
		Projects:    projects,
		Payments:    payments,
		Attachments: attachments,
		Documents:   documents,
		Audit:       recorder,
		Tokens:      tokens,
		Phases:      table,
		Ping:        func(context.Context) error { return db.Ping(gdb) },
		Services:    map[string]string{"storage": "memory"},
	}, fs
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	deps, fs := newTestDeps(t)
	logs := logging.NewTestLogger()
	server, err := NewServer(deps, logs.Logger, &Config{LoginRate: 100, LoginBurst: 100})
	require.NoError(t, err)
	return &testEnv{server: server, fs: fs, deps: deps, logs: logs}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, path, token string, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) register(t *testing.T, company, email string) AuthResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", "", user.RegisterInput{
		CompanyName: company,
		Email:       email,
		Password:    "correct horse",
		FullName:    "Owner",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AuthResponse](t, rec)
}

func (e *testEnv) createProject(t *testing.T, token, name string) *project.Project {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/projects", token, map[string]any{
		"name":           name,
		"contract_value": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ProjectCreatedResponse](t, rec).Project
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		deps, _ := newTestDeps(t)
		server, err := NewServer(deps, logging.NewTestLogger().Logger, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
		assert.Equal(t, "pmapi", server.config.ServiceName)
		assert.Equal(t, 50, server.config.MaxUploadMB)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		deps, _ := newTestDeps(t)
		_, err := NewServer(deps, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when a service is missing", func(t *testing.T) {
		deps, _ := newTestDeps(t)
		deps.Attachments = nil
		_, err := NewServer(deps, logging.NewTestLogger().Logger, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "attachment service")
	})
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "pmapi", resp.Service)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	env.server.deps.Ping = func(context.Context) error { return errors.New("db down") }
	rec = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[HealthResponse](t, rec).Status)
}

func TestAuthFlow(t *testing.T) {
	env := setupTestServer(t)
	reg := env.register(t, "Acme Builders", "owner@acme.test")

	require.NotNil(t, reg.Tenant)
	assert.Equal(t, "acme-builders", reg.Tenant.Slug)
	assert.NotEmpty(t, reg.Tokens.AccessToken)
	assert.NotEmpty(t, reg.Tokens.RefreshToken)

	t.Run("login", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "OWNER@acme.test", Password: "correct horse"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[AuthResponse](t, rec)
		assert.Equal(t, reg.User.ID, resp.User.ID)
		require.NotNil(t, resp.Tenant)
		assert.Equal(t, "acme-builders", resp.Tenant.Slug)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "owner@acme.test", Password: "wrong password"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decode[ErrorBody](t, rec).Error.Code)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", user.RegisterInput{
			CompanyName: "Other",
			Email:       "owner@acme.test",
			Password:    "correct horse",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("refresh", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{RefreshToken: reg.Tokens.RefreshToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, decode[AuthResponse](t, rec).Tokens.AccessToken)

		rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{RefreshToken: reg.Tokens.AccessToken})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "access tokens cannot refresh")
	})

	t.Run("me", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/auth/me", reg.Tokens.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[MeResponse](t, rec)
		assert.Equal(t, "owner@acme.test", me.User.Email)
		assert.Contains(t, me.Permissions, rbac.AuditView)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/projects", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("public tenant", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/public/tenants/acme-builders", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Acme Builders", decode[tenant.PublicInfo](t, rec).Name)

		rec = env.do(t, http.MethodGet, "/api/v1/public/tenants/nobody", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLoginRateLimit(t *testing.T) {
	deps, _ := newTestDeps(t)
	server, err := NewServer(deps, logging.NewTestLogger().Logger, &Config{LoginRate: 0.001, LoginBurst: 2})
	require.NoError(t, err)
	env := &testEnv{server: server}

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "x@y.test", Password: "whatever1"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "x@y.test", Password: "whatever1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[ErrorBody](t, rec).Error.Code)
}

func TestProjectLifecycle(t *testing.T) {
	env := setupTestServer(t)
	token := env.register(t, "Acme", "owner@acme.test").Tokens.AccessToken

	rec := env.do(t, http.MethodPost, "/api/v1/projects", token, map[string]any{
		"name":           "Tower A",
		"contract_value": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ProjectCreatedResponse](t, rec)
	p := created.Project

	root := "projects/project_" + itoa(p.ID) + "_tower-a"
	assert.Equal(t, root, created.Provisioning.ProjectRoot)
	assert.NotEmpty(t, created.Provisioning.Created)
	ok, err := afero.DirExists(env.fs, root+"/contracts-العقود")
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("provision again is idempotent", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/provision", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		report := decode[storage.Report](t, rec)
		assert.Empty(t, report.Created)
		assert.NotEmpty(t, report.Existing)
	})

	t.Run("invalid internal code", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/projects", token, map[string]any{"name": "B", "internal_code": "M2"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_project", decode[ErrorBody](t, rec).Error.Code)
	})

	t.Run("list and get", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/projects?q=tower", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[Page[project.Project]](t, rec)
		assert.EqualValues(t, 1, page.Total)

		rec = env.do(t, http.MethodGet, "/api/v1/projects/"+itoa(p.ID), token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/projects/abc", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/v1/projects/"+itoa(p.ID), token, map[string]any{"internal_code": "M13"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "M13", decode[project.Project](t, rec).InternalCode)
	})

	t.Run("payments drive status", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/payments", token, map[string]any{
			"payer":          "owner",
			"payment_method": "cash_office",
			"amount":         "100",
			"date":           time.Now().Format(time.DateOnly),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		resp := decode[PaymentResponse](t, rec)
		assert.Equal(t, project.StatusExecutionStarted, resp.ProjectStatus)

		rec = env.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/payments", token, map[string]any{
			"payer":          "bank",
			"payment_method": "cash_office",
			"amount":         "100",
			"date":           time.Now().Format(time.DateOnly),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodDelete, "/api/v1/projects/"+itoa(p.ID)+"/payments/"+itoa(resp.Payment.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, project.StatusNotStarted, decode[PaymentResponse](t, rec).ProjectStatus)
	})

	t.Run("audit trail", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/audit-logs?object_type=project", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[Page[audit.Entry]](t, rec)
		assert.GreaterOrEqual(t, page.Total, int64(1))
	})

	t.Run("status counts", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/status", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		status := decode[StatusResponse](t, rec)
		assert.EqualValues(t, 1, status.Counts.Projects)
		assert.EqualValues(t, 1, status.Counts.Users)
		assert.Equal(t, "memory", status.Services["storage"])
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/projects/"+itoa(p.ID), token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/v1/projects/"+itoa(p.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAttachmentsAndDownload(t *testing.T) {
	env := setupTestServer(t)
	token := env.register(t, "Acme", "owner@acme.test").Tokens.AccessToken
	p := env.createProject(t, token, "Tower A")
	base := "/api/v1/projects/" + itoa(p.ID)

	rec := env.upload(t, base+"/attachments", token, map[string]string{"phase": "contracts"}, "عقد.pdf", "contract body")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[AttachmentResponse](t, rec)
	assert.Equal(t, "projects/project_"+itoa(p.ID)+"_tower-a/contracts-العقود/عقد.pdf", a.Path)
	assert.True(t, strings.HasPrefix(a.URL, "/api/v1/files/projects/"))

	t.Run("missing file", func(t *testing.T) {
		rec := env.upload(t, base+"/attachments", token, map[string]string{"phase": "contracts"}, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_file", decode[ErrorBody](t, rec).Error.Code)
	})

	t.Run("missing phase", func(t *testing.T) {
		rec := env.upload(t, base+"/attachments", token, nil, "a.pdf", "x")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, base+"/attachments?phase=contracts", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]AttachmentResponse](t, rec), 1)
	})

	t.Run("download", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, a.URL, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "contract body", rec.Body.String())
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	})

	t.Run("download percent in subfolder", func(t *testing.T) {
		rec := env.upload(t, base+"/attachments", token,
			map[string]string{"phase": "contracts", "subfolder": "50% done"}, "progress.pdf", "half way")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		pct := decode[AttachmentResponse](t, rec)
		assert.Equal(t, "projects/project_"+itoa(p.ID)+"_tower-a/contracts-العقود/50% done/progress.pdf", pct.Path)
		assert.Contains(t, pct.URL, "/50%25%20done/")

		rec = env.do(t, http.MethodGet, pct.URL, token, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("download %s: got %d, body %s", pct.URL, rec.Code, rec.Body.String())
		}
		assert.Equal(t, "half way", rec.Body.String())
	})

	t.Run("download rejects traversal", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/files/projects/%2e%2e/%2e%2e/etc/passwd", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other company cannot read", func(t *testing.T) {
		other := env.register(t, "Rival", "owner@rival.test").Tokens.AccessToken
		rec := env.do(t, http.MethodGet, a.URL, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = env.do(t, http.MethodGet, base, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("payment document", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base+"/payments", token, map[string]any{
			"payer":          "bank",
			"payment_method": "bank_transfer",
			"amount":         "250.50",
			"date":           time.Now().Format(time.DateOnly),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		pay := decode[PaymentResponse](t, rec).Payment

		rec = env.upload(t, base+"/payments/"+itoa(pay.ID)+"/attachments", token, nil, "receipt.pdf", "r")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		doc := decode[AttachmentResponse](t, rec)
		assert.Equal(t, "projects/project_"+itoa(p.ID)+"_tower-a/payments-الدفعات/receipt.pdf", doc.Path)
	})

	t.Run("delete keeps file", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/attachments/"+itoa(a.ID), token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		ok, err := afero.Exists(env.fs, a.Path)
		require.NoError(t, err)
		assert.True(t, ok)
		rec = env.do(t, http.MethodGet, a.URL, token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPermissions(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "Acme", "owner@acme.test").Tokens.AccessToken

	rec := env.do(t, http.MethodPost, "/api/v1/users", owner, user.CreateInput{
		Email:    "viewer@acme.test",
		Password: "viewer password",
		Role:     "viewer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "viewer@acme.test", Password: "viewer password"})
	require.Equal(t, http.StatusOK, rec.Code)
	viewer := decode[AuthResponse](t, rec).Tokens.AccessToken

	rec = env.do(t, http.MethodGet, "/api/v1/projects", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/projects", viewer, map[string]any{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/audit-logs", viewer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[Page[user.User]](t, rec).Total)

	rec = env.do(t, http.MethodGet, "/api/v1/roles", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/phases", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	phases := decode[[]layout.Phase](t, rec)
	require.NotEmpty(t, phases)
	assert.Equal(t, layout.PhaseInfo, phases[0].Key)
}

func TestRequestLogging(t *testing.T) {
	env := setupTestServer(t)
	env.register(t, "Acme", "owner@acme.test")
	env.logs.Reset()

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "owner@acme.test", Password: "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env.logs.AssertLogged(t, zapcore.InfoLevel, "http request")
	env.logs.AssertField(t, "http request", "uri", "/api/v1/auth/login")
	env.logs.AssertNotLogged(t, zapcore.ErrorLevel, "request failed")
	env.logs.AssertNoSecrets(t)
}

func TestErrorHandlerLogsRequestID(t *testing.T) {
	logs := logging.NewTestLogger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req = req.WithContext(logging.WithRequestID(req.Context(), "req-7"))
	rec := httptest.NewRecorder()

	errorHandler(logs.Logger)(errors.New("disk on fire"), e.NewContext(req, rec))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	logs.AssertLogged(t, zapcore.ErrorLevel, "request failed")
	logs.AssertField(t, "request failed", "request.id", "req-7")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{project.ErrProjectNotFound, http.StatusNotFound},
		{tenant.ErrQuotaExceeded, http.StatusForbidden},
		{user.ErrEmailTaken, http.StatusConflict},
		{storage.ErrFileExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "/api/v1/files/projects/a%20b/c.pdf", fileURL("projects/a b/c.pdf"))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestPaymentsEndpoints(t *testing.T) {
	env := setupTestServer(t)
	reg := env.register(t, "Acme Builders", "owner@acme.test")
	token := reg.Tokens.AccessToken
	p := env.createProject(t, token, "Tower A")
	base := "/api/v1/projects/" + itoa(p.ID) + "/payments"
	today := time.Now().Format(time.DateOnly)

	rec := env.do(t, http.MethodPost, base, token, map[string]any{
		"payer":          "owner",
		"payment_method": "bank_transfer",
		"amount":         "100",
		"date":           today,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[PaymentResponse](t, rec)
	require.NotNil(t, first.Payment)
	assert.Equal(t, project.StatusExecutionStarted, first.ProjectStatus)

	t.Run("bank payer needs bank transfer", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base, token, map[string]any{
			"payer":          "bank",
			"payment_method": "cash_office",
			"amount":         "50",
			"date":           today,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_payment", decode[ErrorBody](t, rec).Error.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base, token, map[string]any{
			"payer":          "owner",
			"payment_method": "cash_office",
			"amount":         "50",
			"date":           "01/02/2025",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = env.do(t, http.MethodPost, base, token, map[string]any{
		"payer":          "owner",
		"payment_method": "bank_cheque",
		"amount":         "900",
		"date":           today,
		"cheque_date":    today,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, project.StatusCompleted, decode[PaymentResponse](t, rec).ProjectStatus)

	rec = env.do(t, http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]payment.Payment](t, rec), 2)

	rec = env.do(t, http.MethodDelete, base+"/"+itoa(first.Payment.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, project.StatusExecutionStarted, decode[PaymentResponse](t, rec).ProjectStatus)

	rec = env.do(t, http.MethodDelete, base+"/"+itoa(first.Payment.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentEndpoints(t *testing.T) {
	env := setupTestServer(t)
	token := env.register(t, "Acme Builders", "owner@acme.test").Tokens.AccessToken
	p := env.createProject(t, token, "Tower A")
	base := "/api/v1/projects/" + itoa(p.ID)
	root := "projects/project_" + itoa(p.ID) + "_tower-a"

	rec := env.do(t, http.MethodGet, base+"/site-plan", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "document_not_found", decode[ErrorBody](t, rec).Error.Code)

	rec = env.do(t, http.MethodPut, base+"/site-plan", token, map[string]any{
		"municipality":    "Abu Dhabi",
		"land_no":         "L-17",
		"allocation_date": "2020-06-01",
		"owners": []map[string]any{
			{"owner_name_en": "Salem", "id_number": "784-1980-1234567-1", "is_authorized": true},
			{"owner_name_en": "Mariam"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decode[document.SitePlan](t, rec)
	require.Len(t, plan.Owners, 2)
	require.NotNil(t, plan.AllocationDate)
	assert.Equal(t, "2020-06-01", plan.AllocationDate.String())

	t.Run("site plan file lands in its folder", func(t *testing.T) {
		rec := env.upload(t, base+"/documents/site_plan/"+itoa(plan.ID)+"/attachments", token, nil, "plan.pdf", "plan")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		a := decode[AttachmentResponse](t, rec)
		assert.Equal(t, root+"/Project Info-معلومات المشروع/مخطط الأرض - Site Plan/plan.pdf", a.Path)

		rec = env.do(t, http.MethodGet, base+"/documents/site_plan/"+itoa(plan.ID)+"/attachments", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]AttachmentResponse](t, rec), 1)

		rec = env.do(t, http.MethodGet, a.URL, token, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("download %s: got %d", a.URL, rec.Code)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		rec := env.upload(t, base+"/documents/consultant/1/attachments", token, nil, "x.pdf", "x")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unknown_document_kind", decode[ErrorBody](t, rec).Error.Code)
	})

	t.Run("contract and variations", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, base+"/contract", token, map[string]any{
			"contract_classification": "housing_loan_program",
			"original_value":          "1000000",
			"total_bank_value":        "600000",
			"project_duration_months": 12,
			"start_order_date":        "2026-01-01",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		c := decode[document.Contract](t, rec)
		assert.Equal(t, "400000.00", c.TotalOwnerValue.StringFixed(2))

		rec = env.do(t, http.MethodPost, base+"/variations", token, map[string]any{
			"final_amount":               "10000",
			"consultant_fees_percentage": "5",
			"contractor_engineer_fees":   "250",
			"discount":                   "750",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		v := decode[document.Variation](t, rec)
		assert.Equal(t, "10500.00", v.NetAmountWithVAT.StringFixed(2))

		rec = env.do(t, http.MethodGet, base+"/contract", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1010500.00", decode[document.Contract](t, rec).TotalProjectValue.StringFixed(2))

		rec = env.do(t, http.MethodPost, base+"/variations", token, map[string]any{
			"variation_number": v.Number,
			"final_amount":     "1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = env.do(t, http.MethodDelete, base+"/variations/"+itoa(v.ID), token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, base+"/variations", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[[]document.Variation](t, rec))
	})

	t.Run("invoice", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base+"/invoices", token, map[string]any{
			"invoice_number": "INV-1",
			"invoice_date":   "2026-05-01",
			"items":          []map[string]any{{"description": "steel", "quantity": "2", "unit_price": "250"}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		inv := decode[document.Invoice](t, rec)
		assert.Equal(t, "500.00", inv.Amount.StringFixed(2))

		rec = env.upload(t, base+"/documents/invoice/"+itoa(inv.ID)+"/attachments", token, nil, "inv.pdf", "i")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, root+"/invoices-الفواتير/inv.pdf", decode[AttachmentResponse](t, rec).Path)

		rec = env.do(t, http.MethodPost, base+"/invoices", token, map[string]any{"amount": "10"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_document", decode[ErrorBody](t, rec).Error.Code)
	})

	t.Run("other company", func(t *testing.T) {
		other := env.register(t, "Rival", "owner@rival.test").Tokens.AccessToken
		rec := env.do(t, http.MethodGet, base+"/site-plan", other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
