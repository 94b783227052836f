package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
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
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/internal/sanitize"
	"github.com/ahmed20kamel/project-management-api/internal/storage"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

const instrumentationName = "github.com/ahmed20kamel/project-management-api/internal/attachment"

// DefaultPaymentPhase is used for payment documents uploaded without a
// phase.
const DefaultPaymentPhase = "payments"

// Deps groups the collaborators of Service.
type Deps struct {
	DB       *gorm.DB
	Saver    *storage.Saver
	Backend  storage.Backend
	Legacy   *layout.LegacyResolver
	Projects *project.Service
	Payments *payment.Service
	Audit    audit.Sink
	Events   events.Publisher
	Logger   *zap.Logger
}

// Service uploads, lists, deletes and serves attachments.
type Service struct {
	repo     *Repository
	saver    *storage.Saver
	backend  storage.Backend
	legacy   *layout.LegacyResolver
	projects *project.Service
	payments *payment.Service
	audit    audit.Sink
	events   events.Publisher
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService validates deps and creates a Service.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.DB == nil:
		return nil, errors.New("database is required")
	case d.Saver == nil:
		return nil, errors.New("saver is required")
	case d.Backend == nil:
		return nil, errors.New("backend is required")
	case d.Projects == nil:
		return nil, errors.New("project service is required")
	}
	if d.Legacy == nil {
		d.Legacy = layout.NewLegacyResolver()
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		repo:     NewRepository(d.DB),
		saver:    d.Saver,
		backend:  d.Backend,
		legacy:   d.Legacy,
		projects: d.Projects,
		payments: d.Payments,
		audit:    d.Audit,
		events:   d.Events,
		logger:   d.Logger.Named("attachment"),
		tracer:   otel.Tracer(instrumentationName),
	}, nil
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	Body         io.Reader
	OriginalName string
	ContentType  string
	Size         int64

	Phase     string
	Subfolder string
	// Filename replaces OriginalName as the stored name.
	Filename string
	// NumberedBase requests the next "{base} NN" folder under the phase.
	// Subfolder, when also set, nests inside it.
	NumberedBase string
}

// Upload stores a file for a project visible to actor.
func (s *Service) Upload(ctx context.Context, actor auth.Principal, projectID uint, in UploadInput) (*Attachment, error) {
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	a := &Attachment{TenantID: proj.TenantID, ProjectID: &proj.ID, Project: proj}
	return s.upload(ctx, actor, proj, a, in)
}

// UploadForPayment stores a document owned by a payment. The path is
// derived from the payment's project.
func (s *Service) UploadForPayment(ctx context.Context, actor auth.Principal, projectID, paymentID uint, in UploadInput) (*Attachment, error) {
	if s.payments == nil {
		return nil, errors.New("payment documents are not enabled")
	}
	pay, err := s.payments.Get(ctx, actor, projectID, paymentID)
	if err != nil {
		return nil, err
	}
	if in.Phase == "" {
		in.Phase = DefaultPaymentPhase
	}
	a := &Attachment{TenantID: pay.TenantID, ProjectID: &pay.ProjectID, Project: pay.Project, PaymentID: &pay.ID}
	return s.upload(ctx, actor, pay, a, in)
}

func (s *Service) upload(ctx context.Context, actor auth.Principal, owner layout.Owner, a *Attachment, in UploadInput) (*Attachment, error) {
	ctx, span := s.tracer.Start(ctx, "attachment.upload")
	defer span.End()

	if in.Body == nil {
		return nil, ErrMissingFile
	}
	phase := strings.TrimSpace(in.Phase)
	if phase == "" {
		return nil, ErrMissingPhase
	}

	subfolder := strings.Trim(strings.TrimSpace(in.Subfolder), "/")
	if base := strings.TrimSpace(in.NumberedBase); base != "" {
		numbered, err := s.saver.NextSubfolder(ctx, owner, phase, base)
		if err != nil {
			return nil, err
		}
		if subfolder != "" {
			subfolder = numbered + "/" + subfolder
		} else {
			subfolder = numbered
		}
	}

	stored, err := s.saver.Save(ctx, in.Body, owner, phase, storage.SaveOptions{
		Filename:     in.Filename,
		OriginalName: in.OriginalName,
		Subfolder:    subfolder,
		ContentType:  in.ContentType,
		Size:         in.Size,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	a.Phase = phase
	a.Subfolder = subfolder
	a.OriginalName = in.OriginalName
	a.Path = stored
	a.Size = in.Size
	a.ContentType = in.ContentType
	if actor.UserID != 0 {
		uid := actor.UserID
		a.UploadedByID = &uid
	}

	if err := s.repo.Create(ctx, a); err != nil {
		// Drop the orphaned file; the record is the source of truth.
		if rmErr := s.backend.Remove(ctx, stored); rmErr != nil {
			s.logger.Warn("failed to remove orphaned upload",
				zap.String("path", stored),
				zap.Error(rmErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("path", stored), attribute.Int64("attachment.id", int64(a.ID)))

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionUpload,
		ObjectType: "attachment",
		ObjectID:   idString(a.ID),
		Changes:    datatypes.JSONMap{"path": stored, "phase": phase},
	})
	events.Emit(ctx, s.events, s.logger, events.AttachmentSaved, events.Event{
		TenantID: a.TenantID.String(),
		ObjectID: idString(a.ID),
		Data:     map[string]any{"path": stored, "phase": phase, "size": a.Size},
	})
	return a, nil
}

// UploadForDocument stores a file owned by doc. The caller has already
// checked that actor may see doc. An upload without a phase goes to the
// document's default phase and, when no subfolder is given either, its
// default subfolder.
func (s *Service) UploadForDocument(ctx context.Context, actor auth.Principal, doc Document, in UploadInput) (*Attachment, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	ref := doc.DocumentRef()
	if strings.TrimSpace(in.Phase) == "" {
		in.Phase = ref.Phase
		if strings.TrimSpace(in.Subfolder) == "" && in.NumberedBase == "" {
			in.Subfolder = ref.Subfolder
		}
	}
	id := ref.ID
	projectID := ref.ProjectID
	a := &Attachment{
		TenantID:     ref.TenantID,
		ProjectID:    &projectID,
		DocumentKind: ref.Kind,
		DocumentID:   &id,
	}
	return s.upload(ctx, actor, doc, a, in)
}

// ListForDocument returns the files of doc.
func (s *Service) ListForDocument(ctx context.Context, doc Document) ([]Attachment, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	ref := doc.DocumentRef()
	return s.repo.ListByDocument(ctx, ref.Kind, ref.ID)
}

// List returns the attachments of a project visible to actor.
func (s *Service) List(ctx context.Context, actor auth.Principal, projectID uint, phase string) ([]Attachment, error) {
	if _, err := s.projects.Get(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID, phase)
}

// Delete removes an attachment record. The file stays on disk.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id uint) error {
	a, err := s.repo.Get(ctx, scope(actor), id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, a); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionDelete,
		ObjectType: "attachment",
		ObjectID:   idString(a.ID),
		Changes:    datatypes.JSONMap{"path": a.Path},
	})
	events.Emit(ctx, s.events, s.logger, events.AttachmentDeleted, events.Event{
		TenantID: a.TenantID.String(),
		ObjectID: idString(a.ID),
		Data:     map[string]any{"path": a.Path},
	})
	return nil
}

// Download is an open stored file.
type Download struct {
	io.ReadCloser
	Info       storage.FileInfo
	Name       string
	Path       string
	Attachment *Attachment
}

// Open serves a stored relative path given percent-encoded, as in a file
// URL. Only paths recorded on an
// attachment visible to actor are served. When the recorded file is gone,
// the legacy locations for its phase are tried in order.
func (s *Service) Open(ctx context.Context, actor auth.Principal, requested string) (*Download, error) {
	rel, err := sanitize.RelativePath(requested)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.GetByPath(ctx, scope(actor), rel)
	if err != nil {
		return nil, err
	}

	candidates := []string{rel}
	var projectID uint
	if a.ProjectID != nil {
		projectID = *a.ProjectID
	}
	for _, c := range s.legacy.Candidates(a.Phase, projectID, path.Base(rel)) {
		if c != rel {
			candidates = append(candidates, c)
		}
	}

	for _, c := range candidates {
		rc, info, err := s.backend.Open(ctx, c)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", c, err)
		}
		if c != rel {
			s.logger.Info("served attachment from legacy location",
				zap.Uint("attachment_id", a.ID),
				zap.String("path", c))
		}
		name := a.OriginalName
		if name == "" {
			name = path.Base(c)
		}
		return &Download{ReadCloser: rc, Info: info, Name: name, Path: c, Attachment: a}, nil
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, rel)
}

func scope(actor auth.Principal) *uuid.UUID {
	if actor.Superuser && !actor.HasTenant() {
		return nil
	}
	id := actor.TenantID
	return &id
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
