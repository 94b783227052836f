// Package http exposes the project-management REST API on echo.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/document"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/internal/user"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	log    *logging.Logger
	logger *zap.Logger
	config *Config
	login  *ipLimiter
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	ServiceName string
	Version     string

	// MaxUploadMB caps multipart upload bodies.
	MaxUploadMB int

	// Login attempts per client IP.
	LoginRate  float64
	LoginBurst int
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Users       *user.Service
	Tenants     *tenant.Repository
	Projects    *project.Service
	Payments    *payment.Service
	Attachments *attachment.Service
	Documents   *document.Service
	Audit       *audit.Recorder
	Tokens      *auth.TokenManager
	Phases      *layout.PhaseTable

	// Ping checks backing services for /health. Optional.
	Ping func(context.Context) error

	// Services is reported as-is by /api/v1/status, e.g. the storage backend.
	Services map[string]string

	// Metrics records request metrics on the OTEL meter. Optional.
	Metrics *HTTPMetrics

	// MetricsHandler serves /metrics, typically promhttp.Handler(). Optional.
	MetricsHandler http.Handler
}

func (d Deps) validate() error {
	switch {
	case d.Users == nil:
		return errors.New("user service is required")
	case d.Tenants == nil:
		return errors.New("tenant repository is required")
	case d.Projects == nil:
		return errors.New("project service is required")
	case d.Payments == nil:
		return errors.New("payment service is required")
	case d.Attachments == nil:
		return errors.New("attachment service is required")
	case d.Documents == nil:
		return errors.New("document service is required")
	case d.Audit == nil:
		return errors.New("audit recorder is required")
	case d.Tokens == nil:
		return errors.New("token manager is required")
	case d.Phases == nil:
		return errors.New("phase table is required")
	}
	return nil
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pmapi"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.LoginRate <= 0 {
		cfg.LoginRate = 0.2
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 5
	}

	zl := logger.Underlying().Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext(logger))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", responseStatus(c, err)),
				zap.Duration("duration", duration),
			)

			return err
		}
	})
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}

	s := &Server{
		echo:   e,
		deps:   deps,
		log:    logger,
		logger: zl,
		config: cfg,
		login:  newIPLimiter(cfg.LoginRate, cfg.LoginBurst),
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// requestContext puts the request ID, the context logger and the client
// metadata used by audit entries on the request context.
func requestContext(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := logging.WithLogger(req.Context(), logger)
			ctx = logging.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))
			ctx = audit.WithRequestMeta(ctx, c.RealIP(), req.UserAgent())
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.deps.MetricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.MetricsHandler))
	}

	v1 := s.echo.Group("/api/v1")

	// Public
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin, s.login.middleware(s.logger))
	v1.POST("/auth/refresh", s.handleRefresh)
	v1.GET("/public/tenants/:slug", s.handlePublicTenant)

	// Authenticated
	api := v1.Group("", auth.JWT(s.deps.Tokens), auth.TenantGuard(s.deps.Tenants))
	need := auth.RequirePermission
	upload := middleware.BodyLimit(fmt.Sprintf("%dM", s.config.MaxUploadMB))

	api.GET("/auth/me", s.handleMe)
	api.GET("/status", s.handleStatus)
	api.GET("/roles", s.handleRoles)
	api.GET("/phases", s.handlePhases)

	api.GET("/users", s.handleListUsers, need(rbac.UserView))
	api.POST("/users", s.handleCreateUser, need(rbac.UserManage))
	api.GET("/users/:id", s.handleGetUser, need(rbac.UserView))
	api.PATCH("/users/:id", s.handleUpdateUser, need(rbac.UserManage))
	api.DELETE("/users/:id", s.handleDeleteUser, need(rbac.UserManage))

	api.GET("/projects", s.handleListProjects, need(rbac.ProjectView))
	api.POST("/projects", s.handleCreateProject, need(rbac.ProjectCreate))
	api.GET("/projects/:id", s.handleGetProject, need(rbac.ProjectView))
	api.PATCH("/projects/:id", s.handleUpdateProject, need(rbac.ProjectUpdate))
	api.DELETE("/projects/:id", s.handleDeleteProject, need(rbac.ProjectDelete))
	api.POST("/projects/:id/provision", s.handleProvisionProject, need(rbac.ProjectUpdate))

	api.GET("/projects/:id/attachments", s.handleListAttachments, need(rbac.FileView))
	api.POST("/projects/:id/attachments", s.handleUploadAttachment, need(rbac.FileUpload), upload)
	api.DELETE("/attachments/:id", s.handleDeleteAttachment, need(rbac.FileDelete))
	api.GET("/files/*", s.handleDownload, need(rbac.FileView))

	api.GET("/projects/:id/payments", s.handleListPayments, need(rbac.PaymentView))
	api.POST("/projects/:id/payments", s.handleCreatePayment, need(rbac.PaymentManage))
	api.DELETE("/projects/:id/payments/:paymentID", s.handleDeletePayment, need(rbac.PaymentManage))
	api.POST("/projects/:id/payments/:paymentID/attachments", s.handleUploadPaymentAttachment,
		need(rbac.PaymentManage), need(rbac.FileUpload), upload)

	api.GET("/projects/:id/site-plan", s.handleGetSitePlan, need(rbac.ProjectView))
	api.PUT("/projects/:id/site-plan", s.handlePutSitePlan, need(rbac.ProjectUpdate))
	api.GET("/projects/:id/license", s.handleGetLicense, need(rbac.ProjectView))
	api.PUT("/projects/:id/license", s.handlePutLicense, need(rbac.ProjectUpdate))
	api.GET("/projects/:id/awarding", s.handleGetAwarding, need(rbac.ProjectView))
	api.PUT("/projects/:id/awarding", s.handlePutAwarding, need(rbac.ProjectUpdate))
	api.GET("/projects/:id/contract", s.handleGetContract, need(rbac.ProjectView))
	api.PUT("/projects/:id/contract", s.handlePutContract, need(rbac.ProjectUpdate))
	api.GET("/projects/:id/variations", s.handleListVariations, need(rbac.ProjectView))
	api.POST("/projects/:id/variations", s.handleCreateVariation, need(rbac.ProjectUpdate))
	api.DELETE("/projects/:id/variations/:docID", s.handleDeleteVariation, need(rbac.ProjectUpdate))
	api.GET("/projects/:id/invoices", s.handleListInvoices, need(rbac.PaymentView))
	api.POST("/projects/:id/invoices", s.handleCreateInvoice, need(rbac.PaymentManage))
	api.DELETE("/projects/:id/invoices/:docID", s.handleDeleteInvoice, need(rbac.PaymentManage))
	api.GET("/projects/:id/documents/:kind/:docID/attachments", s.handleListDocumentFiles, need(rbac.FileView))
	api.POST("/projects/:id/documents/:kind/:docID/attachments", s.handleUploadDocumentFile,
		need(rbac.FileUpload), upload)

	api.GET("/audit-logs", s.handleListAuditLogs, need(rbac.AuditView))
}

// Handler exposes the router, mainly for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// handleHealth reports liveness and, when configured, backing services.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Service: s.config.ServiceName, Version: s.config.Version}
	if s.deps.Ping != nil {
		if err := s.deps.Ping(c.Request().Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			resp.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
