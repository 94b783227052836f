// Package document keeps the structured records of a project's phases: the
// site plan and its owners, the building licence, the awarding, the
// contract, variation orders and invoices.
//
// Every record belongs to exactly one project and owns files through the
// attachment service. A record knows its default phase and subfolder, so an
// upload that names neither lands where the provisioned tree expects it:
//
//	site plan        info/مخطط الأرض - Site Plan
//	owner ID card    info/هوية المالك - Owner ID (authorized owner: هوية المفوض)
//	building licence info/رخصة البناء - Building Permit
//	awarding         info/كتاب ترسية البنك – Bank Awarding Letter
//	contract         contracts
//	variation        variation-orders, or variation-orders-approved once approved
//	invoice          invoices
package document

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
)

// Common errors.
var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidDocument = errors.New("invalid document")
	ErrDuplicateNumber = errors.New("document number already used")
	ErrUnknownKind     = errors.New("unknown document kind")
)

// Kind names a record type. It is stored on attachments the record owns.
type Kind string

// Record kinds.
const (
	KindSitePlan      Kind = "site_plan"
	KindSitePlanOwner Kind = "site_plan_owner"
	KindLicense       Kind = "building_license"
	KindAwarding      Kind = "awarding"
	KindContract      Kind = "contract"
	KindVariation     Kind = "variation"
	KindInvoice       Kind = "invoice"
)

// Kinds lists every record kind.
func Kinds() []Kind {
	return []Kind{
		KindSitePlan, KindSitePlanOwner, KindLicense, KindAwarding,
		KindContract, KindVariation, KindInvoice,
	}
}

// ParseKind validates a kind taken from a request path.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// Base holds the columns shared by every record.
type Base struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	TenantID  uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	ProjectID uint             `gorm:"not null;index" json:"project_id"`
	Project   *project.Project `gorm:"-" json:"-"`

	CreatedByID *uint     `json:"created_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectRef implements layout.Owner through the attached project.
func (b *Base) ProjectRef() (uint, string, bool) {
	if b == nil {
		return 0, "", false
	}
	return b.Project.ProjectRef()
}

func (b *Base) base() *Base { return b }

func (b *Base) ref(kind Kind, phase, subfolder string) attachment.DocumentRef {
	return attachment.DocumentRef{
		Kind:      string(kind),
		ID:        b.ID,
		TenantID:  b.TenantID,
		ProjectID: b.ProjectID,
		Phase:     phase,
		Subfolder: subfolder,
	}
}

// bind ties a new record to its project and creator.
func (b *Base) bind(proj *project.Project, userID uint) {
	b.TenantID = proj.TenantID
	b.ProjectID = proj.ID
	b.Project = proj
	if userID != 0 && b.CreatedByID == nil {
		uid := userID
		b.CreatedByID = &uid
	}
}

// record is implemented by every model in this package.
type record interface {
	attachment.Document
	base() *Base
}
