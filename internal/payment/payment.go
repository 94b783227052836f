// Package payment records project payments and derives project status
// from them.
package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahmed20kamel/project-management-api/internal/project"
)

// Common errors.
var (
	ErrNotFound       = errors.New("payment not found")
	ErrInvalidPayment = errors.New("invalid payment")
)

// Payer identifies who paid.
type Payer string

// Payers.
const (
	PayerBank  Payer = "bank"
	PayerOwner Payer = "owner"
)

// Method is how the money moved.
type Method string

// Payment methods.
const (
	MethodCashDeposit  Method = "cash_deposit"
	MethodCashOffice   Method = "cash_office"
	MethodBankTransfer Method = "bank_transfer"
	MethodBankCheque   Method = "bank_cheque"
)

var ownerMethods = map[Method]bool{
	MethodCashDeposit:  true,
	MethodCashOffice:   true,
	MethodBankTransfer: true,
	MethodBankCheque:   true,
}

// Payment is one payment towards a project.
type Payment struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	TenantID  uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	ProjectID uint             `gorm:"not null;index" json:"project_id"`
	Project   *project.Project `gorm:"foreignKey:ProjectID" json:"-"`

	Payer       Payer           `gorm:"size:16;not null" json:"payer"`
	Method      Method          `gorm:"size:32" json:"payment_method"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	Description string          `gorm:"size:500" json:"description,omitempty"`

	RecipientAccountNumber  string              `gorm:"size:64" json:"recipient_account_number,omitempty"`
	SenderAccountNumber     string              `gorm:"size:64" json:"sender_account_number,omitempty"`
	TransferorName          string              `gorm:"size:200" json:"transferor_name,omitempty"`
	ChequeHolderName        string              `gorm:"size:200" json:"cheque_holder_name,omitempty"`
	ChequeAccountNumber     string              `gorm:"size:64" json:"cheque_account_number,omitempty"`
	ChequeDate              *time.Time          `json:"cheque_date,omitempty"`
	ProjectFinancialAccount string              `gorm:"size:64" json:"project_financial_account,omitempty"`
	CompletionPercentage    decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"completion_percentage"`

	CreatedByID *uint     `json:"created_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectRef implements layout.Owner through the preloaded project.
func (p *Payment) ProjectRef() (uint, string, bool) {
	if p == nil {
		return 0, "", false
	}
	return p.Project.ProjectRef()
}

// Validate checks amount, payer and method. Bank payments must be bank
// transfers; owner payments need one of the four known methods.
func (p *Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidPayment)
	}
	switch p.Payer {
	case PayerBank:
		if p.Method != MethodBankTransfer {
			return fmt.Errorf("%w: bank payments must use %s", ErrInvalidPayment, MethodBankTransfer)
		}
	case PayerOwner:
		if p.Method == "" {
			return fmt.Errorf("%w: payment method is required for owner payments", ErrInvalidPayment)
		}
		if !ownerMethods[p.Method] {
			return fmt.Errorf("%w: unknown payment method %q", ErrInvalidPayment, p.Method)
		}
	default:
		return fmt.Errorf("%w: unknown payer %q", ErrInvalidPayment, p.Payer)
	}
	if p.CompletionPercentage.Valid {
		v := p.CompletionPercentage.Decimal
		if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: completion percentage must be 0-100", ErrInvalidPayment)
		}
	}
	return nil
}
