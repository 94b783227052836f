// Package app wires configuration, infrastructure and services into a
// running process. Both the API server and the admin CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/config"
	"github.com/ahmed20kamel/project-management-api/internal/db"
	"github.com/ahmed20kamel/project-management-api/internal/document"
	"github.com/ahmed20kamel/project-management-api/internal/events"
	apihttp "github.com/ahmed20kamel/project-management-api/internal/http"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/storage"
	"github.com/ahmed20kamel/project-management-api/internal/telemetry"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/internal/user"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	models := []any{
		&tenant.Tenant{},
		&user.User{},
		&project.Project{},
		&payment.Payment{},
		&attachment.Attachment{},
	}
	models = append(models, document.Models()...)
	return append(models, &audit.Entry{})
}

// Options adjusts how New builds the application.
type Options struct {
	// Version is reported by telemetry and /health.
	Version string

	// Telemetry enables the OTEL providers configured in the observability
	// section. The CLI leaves it off.
	Telemetry bool

	// Logger replaces the logger built from configuration.
	Logger *logging.Logger
}

// App holds every wired component.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry

	DB          *gorm.DB
	Backend     storage.Backend
	Phases      *layout.PhaseTable
	Deriver     *layout.Deriver
	Legacy      *layout.LegacyResolver
	Provisioner *storage.Provisioner
	Saver       *storage.Saver
	Events      events.Publisher
	Audit       *audit.Recorder
	Tokens      *auth.TokenManager

	Tenants     *tenant.Repository
	Users       *user.Service
	Projects    *project.Service
	Payments    *payment.Service
	Attachments *attachment.Service
	Documents   *document.Service

	version string
}

// New builds the application from cfg. On error every resource opened so
// far is released.
func New(ctx context.Context, cfg *config.Config, opts Options) (a *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	a = &App{Config: cfg, version: opts.Version}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	if err := a.initObservability(ctx, opts); err != nil {
		return nil, err
	}
	zl := a.Logger.Underlying()

	a.DB, err = db.Open(cfg.Database, zl.Named("db"))
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(a.DB, Models()...); err != nil {
			return nil, err
		}
		zl.Info("database migrated")
	}

	if err := a.initStorage(ctx); err != nil {
		return nil, err
	}

	a.Events, err = newPublisher(cfg.Events, zl)
	if err != nil {
		return nil, err
	}

	a.Tokens, err = auth.NewTokenManager(
		cfg.Auth.JWTSecret.Bytes(),
		cfg.Auth.Issuer,
		cfg.Auth.AccessTTL.Duration(),
		cfg.Auth.RefreshTTL.Duration(),
	)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	if err := a.initServices(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) initObservability(ctx context.Context, opts Options) error {
	obs := a.Config.Observability

	telCfg := telemetry.FromObservability(obs, opts.Version)
	telCfg.Enabled = opts.Telemetry && obs.EnableTelemetry
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry = tel

	if opts.Logger != nil {
		a.Logger = opts.Logger
		return nil
	}
	logCfg, err := logging.FromObservability(obs)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	logCfg.Output.OTEL = tel.IsEnabled()
	a.Logger, err = logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config
	zl := a.Logger.Underlying()

	var err error
	if a.Backend, err = NewBackend(ctx, cfg.Storage, zl); err != nil {
		return err
	}
	if a.Phases, a.Deriver, err = NewLayout(cfg.Layout, zl); err != nil {
		return err
	}
	a.Legacy = layout.NewLegacyResolver()

	a.Provisioner, err = storage.NewProvisioner(a.Backend, a.Deriver, zl.Named("provision"))
	if err != nil {
		return err
	}
	policy, err := storage.ParseCollisionPolicy(cfg.Storage.Collision)
	if err != nil {
		return err
	}
	a.Saver, err = storage.NewSaver(a.Backend, a.Deriver, policy, zl.Named("save"))
	return err
}

// NewBackend opens the configured file backend.
func NewBackend(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case "minio":
		b, err = storage.NewMinioBackend(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey.Value(),
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.MinioPrefix,
			UseSSL:    cfg.MinioUseSSL,
		}, logger.Named("minio"))
	default:
		b, err = storage.NewLocalBackend(cfg.MediaRoot)
	}
	if err != nil {
		return nil, fmt.Errorf("storage backend: %w", err)
	}
	return b, nil
}

// NewLayout builds the phase table and path deriver from configuration.
func NewLayout(cfg config.LayoutConfig, logger *zap.Logger) (*layout.PhaseTable, *layout.Deriver, error) {
	phases, err := layout.NewPhaseTable(cfg.PhaseDirs)
	if err != nil {
		return nil, nil, fmt.Errorf("phase table: %w", err)
	}
	deriver := layout.NewDeriver(phases,
		layout.WithLogger(logger.Named("layout")),
		layout.WithBudgets(layout.Budgets{
			Filename: cfg.FilenameBudget,
			Slug:     cfg.SlugBudget,
			Segment:  cfg.SegmentBudget,
		}),
	)
	return phases, deriver, nil
}

// newPublisher connects to NATS when events are enabled.
func newPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	if !cfg.Enabled {
		return events.Nop{}, nil
	}
	pub, err := events.Connect(cfg, logger.Named("events"))
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return pub, nil
}

func (a *App) initServices() error {
	zl := a.Logger.Underlying()
	var err error

	a.Audit = audit.NewRecorder(a.DB, zl)
	a.Tenants = tenant.NewRepository(a.DB)

	if a.Users, err = user.NewService(a.DB, a.Audit, zl); err != nil {
		return err
	}
	if a.Projects, err = project.NewService(a.DB, a.Provisioner, a.Audit, a.Events, zl); err != nil {
		return err
	}
	if a.Payments, err = payment.NewService(a.DB, a.Projects, a.Audit, a.Events, zl); err != nil {
		return err
	}
	a.Attachments, err = attachment.NewService(attachment.Deps{
		DB:       a.DB,
		Saver:    a.Saver,
		Backend:  a.Backend,
		Legacy:   a.Legacy,
		Projects: a.Projects,
		Payments: a.Payments,
		Audit:    a.Audit,
		Events:   a.Events,
		Logger:   zl,
	})
	if err != nil {
		return err
	}
	a.Documents, err = document.NewService(document.Deps{
		DB:          a.DB,
		Projects:    a.Projects,
		Payments:    a.Payments,
		Attachments: a.Attachments,
		Audit:       a.Audit,
		Events:      a.Events,
		Logger:      zl,
	})
	return err
}

// NewHTTPServer builds the API server over the wired services.
func (a *App) NewHTTPServer() (*apihttp.Server, error) {
	cfg := a.Config
	events := "disabled"
	if cfg.Events.Enabled {
		events = "nats"
	}
	telemetryState := "disabled"
	if a.Telemetry.IsEnabled() {
		telemetryState = "enabled"
		if a.Telemetry.Health().Degraded {
			telemetryState = "degraded"
		}
	}
	return apihttp.NewServer(apihttp.Deps{
		Users:       a.Users,
		Tenants:     a.Tenants,
		Projects:    a.Projects,
		Payments:    a.Payments,
		Attachments: a.Attachments,
		Documents:   a.Documents,
		Audit:       a.Audit,
		Tokens:      a.Tokens,
		Phases:      a.Phases,
		Ping:        a.Ping,
		Services: map[string]string{
			"storage":   cfg.Storage.Backend,
			"events":    events,
			"telemetry": telemetryState,
		},
		Metrics:        apihttp.NewHTTPMetrics(a.Logger.Underlying()),
		MetricsHandler: promhttp.Handler(),
	}, a.Logger, &apihttp.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		ServiceName: cfg.Observability.ServiceName,
		Version:     a.version,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		LoginRate:   cfg.Server.LoginRate,
		LoginBurst:  cfg.Server.LoginBurst,
	})
}

// Ping checks the database.
func (a *App) Ping(context.Context) error {
	return db.Ping(a.DB)
}

// Migrate creates or updates every table.
func (a *App) Migrate() error {
	return db.Migrate(a.DB, Models()...)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
		a.Events = nil
	}
	if a.DB != nil {
		if err := db.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
		a.DB = nil
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
		a.Telemetry = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
