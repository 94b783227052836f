package storage

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/layout"
)

const instrumentationName = "github.com/ahmed20kamel/project-management-api/internal/storage"

// Failure records a directory the provisioner could not create.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarizes one provisioning run.
type Report struct {
	ProjectRoot string    `json:"project_root"`
	Created     []string  `json:"created"`
	Existing    []string  `json:"existing"`
	Failed      []Failure `json:"failed,omitempty"`
}

// OK reports whether every directory is in place.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Provisioner materializes the current-scheme directory tree of a project.
// It only ever creates; existing directories are left untouched.
type Provisioner struct {
	backend Backend
	deriver *layout.Deriver
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(backend Backend, deriver *layout.Deriver, logger *zap.Logger) (*Provisioner, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if deriver == nil {
		return nil, errors.New("deriver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		backend: backend,
		deriver: deriver,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		metrics: NewMetrics(),
	}, nil
}

// Plan lists the directories Provision would ensure for a project, parents
// before children.
func (p *Provisioner) Plan(projectID uint, projectName string) []string {
	root := p.deriver.ProjectRoot(projectID, projectName)
	dirs := []string{root}
	for _, phase := range p.deriver.Phases().Current() {
		phaseDir := root + "/" + phase.Dir
		dirs = append(dirs, phaseDir)
		for _, sub := range phase.Subfolders {
			cur := phaseDir
			for _, seg := range p.deriver.SubfolderSegments(sub) {
				cur += "/" + seg
				dirs = append(dirs, cur)
			}
		}
	}
	return dirs
}

// Provision creates every missing directory of the owner's tree. Filesystem
// errors are logged and collected in the report; they never make Provision
// fail. An error is returned only for an unresolvable owner or a cancelled
// context.
func (p *Provisioner) Provision(ctx context.Context, owner layout.Owner) (Report, error) {
	ctx, span := p.tracer.Start(ctx, "storage.provision")
	defer span.End()

	if owner == nil {
		return Report{}, ErrUnresolvedOwner
	}
	id, name, ok := owner.ProjectRef()
	if !ok {
		return Report{}, ErrUnresolvedOwner
	}
	span.SetAttributes(attribute.Int64("project.id", int64(id)))

	report := Report{
		ProjectRoot: p.deriver.ProjectRoot(id, name),
		Created:     []string{},
		Existing:    []string{},
	}

	for _, dir := range p.Plan(id, name) {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, fmt.Errorf("provisioning %s: %w", report.ProjectRoot, err)
		}

		created, err := p.backend.EnsureDir(ctx, dir)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, Failure{Path: dir, Error: err.Error()})
			p.metrics.ProvisionedDirs.WithLabelValues("failed").Inc()
			p.logger.Warn("failed to create project directory",
				zap.Uint("project_id", id),
				zap.String("path", dir),
				zap.Error(err))
		case created:
			report.Created = append(report.Created, dir)
			p.metrics.ProvisionedDirs.WithLabelValues("created").Inc()
		default:
			report.Existing = append(report.Existing, dir)
			p.metrics.ProvisionedDirs.WithLabelValues("existing").Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("dirs.created", len(report.Created)),
		attribute.Int("dirs.existing", len(report.Existing)),
		attribute.Int("dirs.failed", len(report.Failed)),
	)
	if !report.OK() {
		span.SetStatus(codes.Error, "some directories could not be created")
	}

	p.logger.Info("project directories provisioned",
		zap.Uint("project_id", id),
		zap.String("root", report.ProjectRoot),
		zap.Int("created", len(report.Created)),
		zap.Int("existing", len(report.Existing)),
		zap.Int("failed", len(report.Failed)))

	return report, nil
}
