package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/app"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/user"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs rootCmd with args after resetting flag-bound globals.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, verbose, noColor = "", false, false
	provisionProjectID, provisionAll, provisionDryRun = 0, false, false
	deriveProjectID, deriveProjectName, derivePhase, deriveSubfolder = 0, "", "", ""
	legacyProjectID, legacyCheck = 0, false
	superuserEmail, superuserPassword = "", ""
	recalcProjectID = 0
	serverURL = "http://localhost:8080"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// setupEnv points configuration at a throwaway database and media root.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:"+filepath.Join(dir, "pmctl.db")+"?_foreign_keys=on")
	t.Setenv("DATABASE_AUTO_MIGRATE", "true")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_MEDIA_ROOT", filepath.Join(dir, "media"))
	t.Setenv("EVENTS_ENABLED", "false")
	return filepath.Join(dir, "media")
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{"provision", "derive", "legacy", "phases", "migrate", "create-superuser", "recalc-status", "health"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestDerive(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "derive", "--project-id", "7", "--project-name", "Tower A", "--phase", "contracts", "main contract.pdf")
	require.NoError(t, err)

	_, deriver, err := app.NewLayout(mustConfig(t).Layout, zap.NewNop())
	require.NoError(t, err)
	want := deriver.Derive(7, "Tower A", "contracts", "main contract.pdf", "")
	assert.Equal(t, want, strings.TrimSpace(out))
	assert.True(t, strings.HasPrefix(want, layout.ProjectsRoot+"/"))
}

func TestDerive_UnknownPhase(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "derive", "--project-id", "7", "--phase", "nope", "a.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, layout.ErrUnknownPhase)
}

func TestLegacy(t *testing.T) {
	out, err := execute(t, "legacy", "--project-id", "3", "contracts", "old.pdf")
	require.NoError(t, err)

	want := layout.NewLegacyResolver().Candidates("contracts", 3, "old.pdf")
	got := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, want, got)
}

func TestPhases(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "phases")
	require.NoError(t, err)
	for _, p := range layout.DefaultPhases() {
		assert.Contains(t, out, p.Key)
	}
}

func TestProvision_RequiresTarget(t *testing.T) {
	_, err := execute(t, "provision")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--project-id or --all")
}

func TestProvision(t *testing.T) {
	mediaRoot := setupEnv(t)
	ctx := context.Background()

	a, err := app.New(ctx, mustConfig(t), app.Options{Logger: quietLogger(t)})
	require.NoError(t, err)
	owner, _, err := a.Users.Register(ctx, user.RegisterInput{
		CompanyName: "Acme Contracting",
		Email:       "owner@acme.test",
		Password:    "correct-horse-battery",
	})
	require.NoError(t, err)
	p, report, err := a.Projects.Create(ctx, owner.Principal(), project.CreateInput{Name: "Tower A"})
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))

	root := filepath.Join(mediaRoot, filepath.FromSlash(report.ProjectRoot))
	require.NoError(t, os.RemoveAll(root))

	id := strconv.FormatUint(uint64(p.ID), 10)

	t.Run("dry run creates nothing", func(t *testing.T) {
		out, err := execute(t, "provision", "--project-id", id, "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, report.ProjectRoot)
		_, statErr := os.Stat(root)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("recreates the tree", func(t *testing.T) {
		out, err := execute(t, "provision", "--project-id", id)
		require.NoError(t, err)
		assert.Contains(t, out, "✓")
		info, err := os.Stat(root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("all projects", func(t *testing.T) {
		out, err := execute(t, "provision", "--all")
		require.NoError(t, err)
		assert.Contains(t, out, "0 created")
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := execute(t, "provision", "--project-id", "9999")
		assert.Error(t, err)
	})
}

func TestMigrateAndCreateSuperuser(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	t.Setenv("PMCTL_SUPERUSER_PASSWORD", "correct-horse-battery")
	out, err = execute(t, "create-superuser", "--email", "Ops@Example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "created superuser ops@example.com")

	out, err = execute(t, "recalc-status")
	require.NoError(t, err)
	assert.Contains(t, out, "0 project statuses changed")
}

func TestCreateSuperuser_RequiresPassword(t *testing.T) {
	t.Setenv("PMCTL_SUPERUSER_PASSWORD", "")
	_, err := execute(t, "create-superuser", "--email", "ops@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"pmapi","version":"1.2.3"}`))
	}))
	defer healthy.Close()

	out, err := execute(t, "health", "--server", healthy.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, out, "pmapi ok 1.2.3")

	degraded := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","service":"pmapi"}`))
	}))
	defer degraded.Close()

	_, err = execute(t, "health", "--server", degraded.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degraded")
}
