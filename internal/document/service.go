package document

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/events"
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// Deps groups the collaborators of Service. Payments is needed only to
// link invoices to payments.
type Deps struct {
	DB          *gorm.DB
	Projects    *project.Service
	Payments    *payment.Service
	Attachments *attachment.Service
	Audit       audit.Sink
	Events      events.Publisher
	Logger      *zap.Logger
}

// Service reads and writes the records of a project and stores their
// files.
type Service struct {
	repo        *Repository
	projects    *project.Service
	payments    *payment.Service
	attachments *attachment.Service
	audit       audit.Sink
	events      events.Publisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewService validates deps and creates a Service.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.DB == nil:
		return nil, errors.New("database is required")
	case d.Projects == nil:
		return nil, errors.New("project service is required")
	case d.Attachments == nil:
		return nil, errors.New("attachment service is required")
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
		repo:        NewRepository(d.DB),
		projects:    d.Projects,
		payments:    d.Payments,
		attachments: d.Attachments,
		audit:       d.Audit,
		events:      d.Events,
		logger:      d.Logger.Named("document"),
		now:         time.Now,
	}, nil
}

// single loads the one record of dest's type on a project visible to actor.
func (s *Service) single(ctx context.Context, actor auth.Principal, projectID uint, dest record) error {
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return err
	}
	if err := s.repo.ForProject(ctx, dest, proj.ID); err != nil {
		return err
	}
	dest.base().Project = proj
	return nil
}

// loadOrNew loads the record into dest, leaving it empty when the project
// has none yet.
func (s *Service) loadOrNew(ctx context.Context, actor auth.Principal, projectID uint, dest record) (*project.Project, error) {
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ForProject(ctx, dest, proj.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	dest.base().bind(proj, actor.UserID)
	return proj, nil
}

// SitePlan returns the site plan of a project with its owners.
func (s *Service) SitePlan(ctx context.Context, actor auth.Principal, projectID uint) (*SitePlan, error) {
	var p SitePlan
	if err := s.single(ctx, actor, projectID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SitePlanInput is a site plan with its full owner list.
type SitePlanInput struct {
	SitePlanFields
	Owners []OwnerFields `json:"owners"`
}

// PutSitePlan creates or replaces the site plan of a project. The owner
// list replaces the stored one.
func (s *Service) PutSitePlan(ctx context.Context, actor auth.Principal, projectID uint, in SitePlanInput) (*SitePlan, error) {
	var p SitePlan
	proj, err := s.loadOrNew(ctx, actor, projectID, &p)
	if err != nil {
		return nil, err
	}
	p.SitePlanFields = in.SitePlanFields
	if err := p.validate(); err != nil {
		return nil, err
	}
	owners, err := normalizeOwners(in.Owners, s.now())
	if err != nil {
		return nil, err
	}
	for i := range owners {
		owners[i].bind(proj, actor.UserID)
	}
	created := p.ID == 0
	if err := s.repo.SaveSitePlan(ctx, &p, owners); err != nil {
		return nil, err
	}
	for i := range p.Owners {
		p.Owners[i].Project = proj
	}
	s.saved(ctx, &p, created, datatypes.JSONMap{"owners": len(owners)})
	return &p, nil
}

// License returns the building licence of a project.
func (s *Service) License(ctx context.Context, actor auth.Principal, projectID uint) (*BuildingLicense, error) {
	var l BuildingLicense
	if err := s.single(ctx, actor, projectID, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// PutLicense creates or replaces the building licence of a project and
// snapshots the current site plan onto it.
func (s *Service) PutLicense(ctx context.Context, actor auth.Principal, projectID uint, in LicenseFields) (*BuildingLicense, error) {
	var l BuildingLicense
	proj, err := s.loadOrNew(ctx, actor, projectID, &l)
	if err != nil {
		return nil, err
	}
	l.LicenseFields = in
	if err := l.normalize(); err != nil {
		return nil, err
	}
	var plan SitePlan
	switch err := s.repo.ForProject(ctx, &plan, proj.ID); {
	case err == nil:
		l.SitePlanSnapshot = plan.snapshot()
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	created := l.ID == 0
	if err := s.repo.Save(ctx, &l); err != nil {
		return nil, err
	}
	s.saved(ctx, &l, created, datatypes.JSONMap{"license_no": l.LicenseNo})
	return &l, nil
}

// Awarding returns the awarding of a project.
func (s *Service) Awarding(ctx context.Context, actor auth.Principal, projectID uint) (*Awarding, error) {
	var a Awarding
	if err := s.single(ctx, actor, projectID, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// PutAwarding creates or replaces the awarding of a project.
func (s *Service) PutAwarding(ctx context.Context, actor auth.Principal, projectID uint, in AwardingFields) (*Awarding, error) {
	var a Awarding
	if _, err := s.loadOrNew(ctx, actor, projectID, &a); err != nil {
		return nil, err
	}
	a.AwardingFields = in
	if err := a.normalize(); err != nil {
		return nil, err
	}
	created := a.ID == 0
	if err := s.repo.Save(ctx, &a); err != nil {
		return nil, err
	}
	s.saved(ctx, &a, created, datatypes.JSONMap{"project_number": a.ProjectNumber})
	return &a, nil
}

// Contract returns the contract of a project.
func (s *Service) Contract(ctx context.Context, actor auth.Principal, projectID uint) (*Contract, error) {
	var c Contract
	if err := s.single(ctx, actor, projectID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// PutContract creates or replaces the contract of a project and derives
// its totals from the project's variation orders.
func (s *Service) PutContract(ctx context.Context, actor auth.Principal, projectID uint, in ContractFields) (*Contract, error) {
	var c Contract
	proj, err := s.loadOrNew(ctx, actor, projectID, &c)
	if err != nil {
		return nil, err
	}
	c.ContractFields = in
	if err := c.validate(); err != nil {
		return nil, err
	}
	total, err := s.variationsTotal(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	c.recompute(total)
	created := c.ID == 0
	if err := s.repo.Save(ctx, &c); err != nil {
		return nil, err
	}
	s.saved(ctx, &c, created, datatypes.JSONMap{
		"total_project_value": c.TotalProjectValue.StringFixed(2),
	})
	return &c, nil
}

func (s *Service) variationsTotal(ctx context.Context, projectID uint) (decimal.Decimal, error) {
	vs, err := s.repo.Variations(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, v := range vs {
		total = total.Add(v.NetAmountWithVAT)
	}
	return total, nil
}

// refreshContract re-derives the contract totals after a variation order
// changed. A project without a contract is left alone.
func (s *Service) refreshContract(ctx context.Context, projectID uint) error {
	var c Contract
	if err := s.repo.ForProject(ctx, &c, projectID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	total, err := s.variationsTotal(ctx, projectID)
	if err != nil {
		return err
	}
	c.recompute(total)
	if err := s.repo.Save(ctx, &c); err != nil {
		return err
	}
	s.logger.Debug("contract totals refreshed",
		zap.Uint("project_id", projectID),
		zap.String("total_project_value", c.TotalProjectValue.StringFixed(2)))
	return nil
}

// Variations lists the variation orders of a project.
func (s *Service) Variations(ctx context.Context, actor auth.Principal, projectID uint) ([]Variation, error) {
	if _, err := s.projects.Get(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.repo.Variations(ctx, projectID)
}

// CreateVariation records a variation order. Without a number one is
// generated ("VAR-" and eight hex digits); numbers are unique per tenant.
func (s *Service) CreateVariation(ctx context.Context, actor auth.Principal, projectID uint, in VariationFields) (*Variation, error) {
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	v := &Variation{VariationFields: in}
	v.bind(proj, actor.UserID)
	v.Number = strings.TrimSpace(v.Number)
	if v.Number == "" {
		v.Number = "VAR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}
	if err := s.checkNumber(ctx, v, v.Number); err != nil {
		return nil, err
	}
	if err := v.compute(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	if err := s.refreshContract(ctx, proj.ID); err != nil {
		return nil, err
	}
	s.saved(ctx, v, true, datatypes.JSONMap{
		"variation_number":    v.Number,
		"net_amount_with_vat": v.NetAmountWithVAT.StringFixed(2),
	})
	return v, nil
}

// DeleteVariation removes a variation order and re-derives the contract.
func (s *Service) DeleteVariation(ctx context.Context, actor auth.Principal, projectID, id uint) error {
	var v Variation
	if err := s.remove(ctx, actor, projectID, id, &v); err != nil {
		return err
	}
	return s.refreshContract(ctx, projectID)
}

// Invoices lists the invoices of a project.
func (s *Service) Invoices(ctx context.Context, actor auth.Principal, projectID uint) ([]Invoice, error) {
	if _, err := s.projects.Get(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.repo.Invoices(ctx, projectID)
}

// CreateInvoice records an invoice. A linked payment must belong to the
// same project; a number, when given, is unique per tenant.
func (s *Service) CreateInvoice(ctx context.Context, actor auth.Principal, projectID uint, in InvoiceFields) (*Invoice, error) {
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	inv := &Invoice{InvoiceFields: in}
	inv.bind(proj, actor.UserID)
	inv.Number = strings.TrimSpace(inv.Number)
	inv.Description = strings.TrimSpace(inv.Description)
	if err := inv.compute(); err != nil {
		return nil, err
	}
	if inv.PaymentID != nil {
		if s.payments == nil {
			return nil, errors.New("payment links are not enabled")
		}
		if _, err := s.payments.Get(ctx, actor, proj.ID, *inv.PaymentID); err != nil {
			return nil, err
		}
	}
	if inv.Number != "" {
		if err := s.checkNumber(ctx, inv, inv.Number); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Save(ctx, inv); err != nil {
		return nil, err
	}
	s.saved(ctx, inv, true, datatypes.JSONMap{
		"invoice_number": inv.Number,
		"amount":         inv.Amount.StringFixed(2),
	})
	return inv, nil
}

// DeleteInvoice removes an invoice.
func (s *Service) DeleteInvoice(ctx context.Context, actor auth.Principal, projectID, id uint) error {
	var inv Invoice
	return s.remove(ctx, actor, projectID, id, &inv)
}

func (s *Service) remove(ctx context.Context, actor auth.Principal, projectID, id uint, dest record) error {
	if _, err := s.projects.Get(ctx, actor, projectID); err != nil {
		return err
	}
	if err := s.repo.Get(ctx, dest, projectID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, dest); err != nil {
		return err
	}
	ref := dest.DocumentRef()
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionDelete,
		ObjectType: ref.Kind,
		ObjectID:   strconv.FormatUint(uint64(ref.ID), 10),
		Changes:    datatypes.JSONMap{"project_id": projectID},
	})
	return nil
}

func (s *Service) checkNumber(ctx context.Context, rec record, number string) error {
	taken, err := s.repo.NumberTaken(ctx, rec, rec.base().TenantID, number)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, number)
	}
	return nil
}

// Record loads any record of a project by kind and id.
func (s *Service) Record(ctx context.Context, actor auth.Principal, projectID uint, kind Kind, id uint) (attachment.Document, error) {
	dest, err := newRecord(kind)
	if err != nil {
		return nil, err
	}
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Get(ctx, dest, proj.ID, id); err != nil {
		return nil, err
	}
	dest.base().Project = proj
	return dest, nil
}

func newRecord(kind Kind) (record, error) {
	switch kind {
	case KindSitePlan:
		return &SitePlan{}, nil
	case KindSitePlanOwner:
		return &SitePlanOwner{}, nil
	case KindLicense:
		return &BuildingLicense{}, nil
	case KindAwarding:
		return &Awarding{}, nil
	case KindContract:
		return &Contract{}, nil
	case KindVariation:
		return &Variation{}, nil
	case KindInvoice:
		return &Invoice{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// UploadFile stores a file owned by a record. Without a phase the file
// goes to the record's folder in the project tree.
func (s *Service) UploadFile(ctx context.Context, actor auth.Principal, projectID uint, kind Kind, id uint, in attachment.UploadInput) (*attachment.Attachment, error) {
	doc, err := s.Record(ctx, actor, projectID, kind, id)
	if err != nil {
		return nil, err
	}
	return s.attachments.UploadForDocument(ctx, actor, doc, in)
}

// Files lists the files owned by a record.
func (s *Service) Files(ctx context.Context, actor auth.Principal, projectID uint, kind Kind, id uint) ([]attachment.Attachment, error) {
	doc, err := s.Record(ctx, actor, projectID, kind, id)
	if err != nil {
		return nil, err
	}
	return s.attachments.ListForDocument(ctx, doc)
}

func (s *Service) saved(ctx context.Context, rec record, created bool, changes datatypes.JSONMap) {
	ref := rec.DocumentRef()
	action := audit.ActionUpdate
	if created {
		action = audit.ActionCreate
	}
	changes["project_id"] = ref.ProjectID
	id := strconv.FormatUint(uint64(ref.ID), 10)
	s.audit.Record(ctx, audit.Entry{
		Action:     action,
		ObjectType: ref.Kind,
		ObjectID:   id,
		Changes:    changes,
	})
	events.Emit(ctx, s.events, s.logger, events.DocumentSaved, events.Event{
		TenantID: ref.TenantID.String(),
		ObjectID: id,
		Data:     map[string]any{"kind": ref.Kind, "project_id": ref.ProjectID, "created": created},
	})
}
