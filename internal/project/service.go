package project

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/events"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/storage"
	"github.com/ahmed20kamel/project-management-api/internal/tenant"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

const instrumentationName = "github.com/ahmed20kamel/project-management-api/internal/project"

// Provisioner creates a project's directory tree.
type Provisioner interface {
	Provision(ctx context.Context, owner layout.Owner) (storage.Report, error)
}

// Service implements project operations.
type Service struct {
	repo        *Repository
	tenants     *tenant.Repository
	provisioner Provisioner
	audit       audit.Sink
	events      events.Publisher
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewService creates a project service. Nil sink and publisher disable
// auditing and events; a nil logger is replaced by a no-op.
func NewService(gdb *gorm.DB, prov Provisioner, sink audit.Sink, pub events.Publisher, logger *zap.Logger) (*Service, error) {
	if gdb == nil {
		return nil, errors.New("database is required")
	}
	if prov == nil {
		return nil, errors.New("provisioner is required")
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        NewRepository(gdb),
		tenants:     tenant.NewRepository(gdb),
		provisioner: prov,
		audit:       sink,
		events:      pub,
		logger:      logger.Named("project"),
		tracer:      otel.Tracer(instrumentationName),
	}, nil
}

// Repository exposes the underlying repository for batch commands.
func (s *Service) Repository() *Repository {
	return s.repo
}

// CreateInput holds the fields of a new project.
type CreateInput struct {
	Name          string          `json:"name"`
	ProjectType   Type            `json:"project_type"`
	VillaCategory VillaCategory   `json:"villa_category"`
	ContractType  ContractType    `json:"contract_type"`
	InternalCode  string          `json:"internal_code"`
	ContractValue decimal.Decimal `json:"contract_value"`
}

// Create inserts a project in actor's tenant, then provisions its
// directory tree. The tenant's MaxProjects quota applies. Provisioning
// problems are logged and reported but do not fail creation.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (*Project, storage.Report, error) {
	ctx, span := s.tracer.Start(ctx, "project.create")
	defer span.End()

	if !actor.HasTenant() {
		return nil, storage.Report{}, ErrNoTenant
	}

	p := &Project{
		TenantID:      actor.TenantID,
		Name:          strings.TrimSpace(in.Name),
		ProjectType:   in.ProjectType,
		VillaCategory: in.VillaCategory,
		ContractType:  in.ContractType,
		InternalCode:  strings.TrimSpace(in.InternalCode),
		Status:        StatusNotStarted,
		ContractValue: in.ContractValue,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		p.CreatedByID = &uid
	}
	if err := p.Validate(); err != nil {
		return nil, storage.Report{}, err
	}

	t, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, storage.Report{}, err
	}
	count, err := s.repo.CountByTenant(ctx, t.ID)
	if err != nil {
		return nil, storage.Report{}, err
	}
	if err := t.CheckProjectQuota(count); err != nil {
		return nil, storage.Report{}, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storage.Report{}, err
	}
	span.SetAttributes(attribute.Int64("project.id", int64(p.ID)))

	s.logger.Info("project created",
		zap.Uint("project_id", p.ID),
		zap.String("tenant.id", p.TenantID.String()),
	)
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		ObjectType: "project",
		ObjectID:   idString(p.ID),
		Changes:    datatypes.JSONMap{"name": p.Name, "internal_code": p.InternalCode},
	})
	events.Emit(ctx, s.events, s.logger, events.ProjectCreated, s.event(p, map[string]any{"name": p.Name}))

	report := s.provision(ctx, p)
	return p, report, nil
}

// provision runs the provisioner and swallows its error after logging.
func (s *Service) provision(ctx context.Context, p *Project) storage.Report {
	report, err := s.provisioner.Provision(ctx, p)
	if err != nil {
		s.logger.Warn("project provisioning failed",
			zap.Uint("project_id", p.ID),
			zap.Error(err))
		return report
	}
	if !report.OK() {
		s.logger.Warn("project provisioned with failures",
			zap.Uint("project_id", p.ID),
			zap.Int("failed", len(report.Failed)))
	}
	events.Emit(ctx, s.events, s.logger, events.ProjectProvisioned, s.event(p, map[string]any{
		"root":    report.ProjectRoot,
		"created": len(report.Created),
		"failed":  len(report.Failed),
	}))
	return report
}

func (s *Service) event(p *Project, data map[string]any) events.Event {
	return events.Event{
		TenantID: p.TenantID.String(),
		ObjectID: idString(p.ID),
		Data:     data,
	}
}

// scope returns the tenant filter for actor.
func scope(actor auth.Principal) *uuid.UUID {
	if actor.Superuser && !actor.HasTenant() {
		return nil
	}
	id := actor.TenantID
	return &id
}

// Get returns a project visible to actor.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id uint) (*Project, error) {
	return s.repo.Get(ctx, scope(actor), id)
}

// List returns projects visible to actor. The filter's tenant is replaced
// by actor's.
func (s *Service) List(ctx context.Context, actor auth.Principal, f Filter) ([]Project, int64, error) {
	f.TenantID = scope(actor)
	return s.repo.List(ctx, f)
}

// UpdateInput carries optional changes; nil fields are left alone.
type UpdateInput struct {
	Name          *string          `json:"name"`
	ProjectType   *Type            `json:"project_type"`
	VillaCategory *VillaCategory   `json:"villa_category"`
	ContractType  *ContractType    `json:"contract_type"`
	InternalCode  *string          `json:"internal_code"`
	ContractValue *decimal.Decimal `json:"contract_value"`
}

// Update applies in. A rename provisions the tree under the new slug.
func (s *Service) Update(ctx context.Context, actor auth.Principal, id uint, in UpdateInput) (*Project, error) {
	p, err := s.repo.Get(ctx, scope(actor), id)
	if err != nil {
		return nil, err
	}

	changes := datatypes.JSONMap{}
	renamed := false
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		renamed = name != p.Name
		p.Name = name
		changes["name"] = name
	}
	if in.ProjectType != nil {
		p.ProjectType = *in.ProjectType
		changes["project_type"] = string(p.ProjectType)
	}
	if in.VillaCategory != nil {
		p.VillaCategory = *in.VillaCategory
		changes["villa_category"] = string(p.VillaCategory)
	}
	if in.ContractType != nil {
		p.ContractType = *in.ContractType
		changes["contract_type"] = string(p.ContractType)
	}
	if in.InternalCode != nil {
		p.InternalCode = strings.TrimSpace(*in.InternalCode)
		changes["internal_code"] = p.InternalCode
	}
	if in.ContractValue != nil {
		p.ContractValue = *in.ContractValue
		changes["contract_value"] = p.ContractValue.StringFixed(2)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionUpdate,
		ObjectType: "project",
		ObjectID:   idString(p.ID),
		Changes:    changes,
	})
	if renamed {
		s.provision(ctx, p)
	}
	return p, nil
}

// Delete soft-deletes a project. Files stay on disk.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id uint) error {
	p, err := s.repo.Get(ctx, scope(actor), id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionDelete,
		ObjectType: "project",
		ObjectID:   idString(p.ID),
		Changes:    datatypes.JSONMap{"name": p.Name},
	})
	return nil
}

// Provision re-runs provisioning for a project visible to actor. It is
// idempotent.
func (s *Service) Provision(ctx context.Context, actor auth.Principal, id uint) (storage.Report, error) {
	p, err := s.repo.Get(ctx, scope(actor), id)
	if err != nil {
		return storage.Report{}, err
	}
	report, err := s.provisioner.Provision(ctx, p)
	if err != nil {
		return report, fmt.Errorf("provisioning project %d: %w", id, err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionProvision,
		ObjectType: "project",
		ObjectID:   idString(p.ID),
		Changes:    datatypes.JSONMap{"created": len(report.Created), "failed": len(report.Failed)},
	})
	return report, nil
}

// SetStatus stores a recalculated status.
func (s *Service) SetStatus(ctx context.Context, id uint, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProject, status)
	}
	return s.repo.SetStatus(ctx, id, status)
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
