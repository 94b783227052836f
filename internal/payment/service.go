package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ahmed20kamel/project-management-api/internal/audit"
	"github.com/ahmed20kamel/project-management-api/internal/events"
	"github.com/ahmed20kamel/project-management-api/internal/project"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// Service records payments and keeps project status in step with them.
type Service struct {
	repo     *Repository
	projects *project.Service
	audit    audit.Sink
	events   events.Publisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a payment service.
func NewService(gdb *gorm.DB, projects *project.Service, sink audit.Sink, pub events.Publisher, logger *zap.Logger) (*Service, error) {
	if gdb == nil {
		return nil, errors.New("database is required")
	}
	if projects == nil {
		return nil, errors.New("project service is required")
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
		repo:     NewRepository(gdb),
		projects: projects,
		audit:    sink,
		events:   pub,
		logger:   logger.Named("payment"),
		now:      time.Now,
	}, nil
}

// CreateInput holds the fields of a new payment.
type CreateInput struct {
	Payer                   Payer               `json:"payer"`
	Method                  Method              `json:"payment_method"`
	Amount                  decimal.Decimal     `json:"amount"`
	Date                    time.Time           `json:"date"`
	Description             string              `json:"description"`
	RecipientAccountNumber  string              `json:"recipient_account_number"`
	SenderAccountNumber     string              `json:"sender_account_number"`
	TransferorName          string              `json:"transferor_name"`
	ChequeHolderName        string              `json:"cheque_holder_name"`
	ChequeAccountNumber     string              `json:"cheque_account_number"`
	ChequeDate              *time.Time          `json:"cheque_date"`
	ProjectFinancialAccount string              `json:"project_financial_account"`
	CompletionPercentage    decimal.NullDecimal `json:"completion_percentage"`
}

// Create records a payment on a project visible to actor and returns the
// recalculated project status. An empty payer defaults to owner.
func (s *Service) Create(ctx context.Context, actor auth.Principal, projectID uint, in CreateInput) (*Payment, project.Status, error) {
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return nil, "", err
	}

	payer := in.Payer
	if payer == "" {
		payer = PayerOwner
	}
	p := &Payment{
		TenantID:                proj.TenantID,
		ProjectID:               proj.ID,
		Payer:                   payer,
		Method:                  in.Method,
		Amount:                  in.Amount,
		Date:                    in.Date,
		Description:             strings.TrimSpace(in.Description),
		RecipientAccountNumber:  in.RecipientAccountNumber,
		SenderAccountNumber:     in.SenderAccountNumber,
		TransferorName:          in.TransferorName,
		ChequeHolderName:        in.ChequeHolderName,
		ChequeAccountNumber:     in.ChequeAccountNumber,
		ChequeDate:              in.ChequeDate,
		ProjectFinancialAccount: in.ProjectFinancialAccount,
		CompletionPercentage:    in.CompletionPercentage,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		p.CreatedByID = &uid
	}
	if err := p.Validate(); err != nil {
		return nil, "", err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, "", err
	}
	p.Project = proj

	status, err := s.recalculate(ctx, proj)
	if err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		ObjectType: "payment",
		ObjectID:   strconv.FormatUint(uint64(p.ID), 10),
		Changes: datatypes.JSONMap{
			"project_id": proj.ID,
			"amount":     p.Amount.StringFixed(2),
			"payer":      string(p.Payer),
		},
	})
	events.Emit(ctx, s.events, s.logger, events.PaymentRecorded, events.Event{
		TenantID: proj.TenantID.String(),
		ObjectID: strconv.FormatUint(uint64(p.ID), 10),
		Data: map[string]any{
			"project_id": proj.ID,
			"amount":     p.Amount.StringFixed(2),
			"status":     string(status),
		},
	})
	return p, status, nil
}

// List returns the payments of a project visible to actor, oldest first.
func (s *Service) List(ctx context.Context, actor auth.Principal, projectID uint) ([]Payment, error) {
	if _, err := s.projects.Get(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

// Get returns one payment with its project preloaded, so it can own
// attachments.
func (s *Service) Get(ctx context.Context, actor auth.Principal, projectID, id uint) (*Payment, error) {
	if _, err := s.projects.Get(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, projectID, id)
}

// Delete removes a payment and returns the recalculated project status.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, projectID, id uint) (project.Status, error) {
	proj, err := s.projects.Get(ctx, actor, projectID)
	if err != nil {
		return "", err
	}
	p, err := s.repo.Get(ctx, projectID, id)
	if err != nil {
		return "", err
	}
	if err := s.repo.Delete(ctx, p); err != nil {
		return "", err
	}

	status, err := s.recalculate(ctx, proj)
	if err != nil {
		return "", err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionDelete,
		ObjectType: "payment",
		ObjectID:   strconv.FormatUint(uint64(p.ID), 10),
		Changes:    datatypes.JSONMap{"project_id": proj.ID, "amount": p.Amount.StringFixed(2)},
	})
	return status, nil
}

// Recalculate recomputes and stores the status of one project regardless
// of tenant. It backs the recalc-status command.
func (s *Service) Recalculate(ctx context.Context, projectID uint) (project.Status, bool, error) {
	proj, err := s.projects.Repository().Get(ctx, nil, projectID)
	if err != nil {
		return "", false, err
	}
	before := proj.Status
	status, err := s.recalculate(ctx, proj)
	if err != nil {
		return "", false, err
	}
	return status, status != before, nil
}

// RecalculateAll recomputes every live project and returns how many
// changed.
func (s *Service) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := s.projects.Repository().IDs(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		_, ok, err := s.Recalculate(ctx, id)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func (s *Service) recalculate(ctx context.Context, proj *project.Project) (project.Status, error) {
	payments, err := s.repo.ListByProject(ctx, proj.ID)
	if err != nil {
		return "", err
	}
	status := CalculateStatus(proj.ContractValue, payments, s.now())
	if status == proj.Status {
		return status, nil
	}
	if err := s.projects.SetStatus(ctx, proj.ID, status); err != nil {
		return "", err
	}
	s.logger.Info("project status changed",
		zap.Uint("project_id", proj.ID),
		zap.String("from", string(proj.Status)),
		zap.String("to", string(status)),
	)
	proj.Status = status
	return status, nil
}
