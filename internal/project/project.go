package project

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Common errors.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidProject  = errors.New("invalid project")
	ErrNoTenant        = errors.New("projects belong to a company")
)

// Type is the kind of construction work.
type Type string

// Project types.
const (
	TypeVilla        Type = "villa"
	TypeCommercial   Type = "commercial"
	TypeMaintenance  Type = "maintenance"
	TypeGovernmental Type = "governmental"
	TypeFitout       Type = "fitout"
)

// VillaCategory refines TypeVilla.
type VillaCategory string

// Villa categories.
const (
	VillaResidential VillaCategory = "residential"
	VillaCommercial  VillaCategory = "commercial"
)

// ContractType distinguishes new contracts from continuations.
type ContractType string

// Contract types.
const (
	ContractNew      ContractType = "new"
	ContractContinue ContractType = "continue"
)

// Status is the project lifecycle stage. It is derived from payments.
type Status string

// Project statuses.
const (
	StatusNotStarted              Status = "not_started"
	StatusExecutionStarted        Status = "execution_started"
	StatusUnderExecution          Status = "under_execution"
	StatusTemporarilySuspended    Status = "temporarily_suspended"
	StatusHandoverStage           Status = "handover_stage"
	StatusPendingFinancialClosure Status = "pending_financial_closure"
	StatusCompleted               Status = "completed"
)

var (
	validTypes          = map[Type]bool{TypeVilla: true, TypeCommercial: true, TypeMaintenance: true, TypeGovernmental: true, TypeFitout: true}
	validVillaCategory  = map[VillaCategory]bool{VillaResidential: true, VillaCommercial: true}
	validContractTypes  = map[ContractType]bool{ContractNew: true, ContractContinue: true}
	validStatuses       = map[Status]bool{StatusNotStarted: true, StatusExecutionStarted: true, StatusUnderExecution: true, StatusTemporarilySuspended: true, StatusHandoverStage: true, StatusPendingFinancialClosure: true, StatusCompleted: true}
	internalCodePattern = regexp.MustCompile(`^M[0-9]*[13579]$`)
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return validStatuses[s] }

// Project is a construction project record.
type Project struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TenantID      uuid.UUID       `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	Name          string          `gorm:"size:255" json:"name"`
	ProjectType   Type            `gorm:"size:32" json:"project_type,omitempty"`
	VillaCategory VillaCategory   `gorm:"size:32" json:"villa_category,omitempty"`
	ContractType  ContractType    `gorm:"size:32" json:"contract_type,omitempty"`
	InternalCode  string          `gorm:"size:40;index" json:"internal_code,omitempty"`
	Status        Status          `gorm:"size:40;not null;index" json:"status"`
	ContractValue decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"contract_value"`
	CreatedByID   *uint           `json:"created_by_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// ProjectRef implements layout.Owner. An unsaved or nil project is
// unresolvable.
func (p *Project) ProjectRef() (uint, string, bool) {
	if p == nil {
		return 0, "", false
	}
	return p.ID, p.Name, p.ID != 0
}

// Validate checks enumerations, the internal code and the contract value.
func (p *Project) Validate() error {
	if p.ProjectType != "" && !validTypes[p.ProjectType] {
		return fmt.Errorf("%w: unknown project type %q", ErrInvalidProject, p.ProjectType)
	}
	if p.VillaCategory != "" {
		if !validVillaCategory[p.VillaCategory] {
			return fmt.Errorf("%w: unknown villa category %q", ErrInvalidProject, p.VillaCategory)
		}
		if p.ProjectType != TypeVilla {
			return fmt.Errorf("%w: villa category requires project type villa", ErrInvalidProject)
		}
	}
	if p.ContractType != "" && !validContractTypes[p.ContractType] {
		return fmt.Errorf("%w: unknown contract type %q", ErrInvalidProject, p.ContractType)
	}
	if p.InternalCode != "" && !internalCodePattern.MatchString(p.InternalCode) {
		return fmt.Errorf("%w: internal code %q must start with M and end with an odd digit", ErrInvalidProject, p.InternalCode)
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProject, p.Status)
	}
	if p.ContractValue.IsNegative() {
		return fmt.Errorf("%w: contract value must not be negative", ErrInvalidProject)
	}
	return nil
}
