// Package attachment stores uploaded project documents and serves them
// back.
//
// The Path column holds exactly the relative path returned by
// storage.Saver.Save. Records written before the nested layout keep their
// flat paths; downloads fall back to the legacy templates when the stored
// path no longer exists.
package attachment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/payment"
	"github.com/ahmed20kamel/project-management-api/internal/project"
)

// Common errors.
var (
	ErrNotFound     = errors.New("attachment not found")
	ErrMissingPhase = errors.New("phase is required")
	ErrMissingFile  = errors.New("file is required")
)

// Attachment is a stored file.
type Attachment struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	TenantID  uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	ProjectID *uint            `gorm:"index" json:"project_id,omitempty"`
	Project   *project.Project `gorm:"foreignKey:ProjectID" json:"-"`
	PaymentID *uint            `gorm:"index" json:"payment_id,omitempty"`
	Payment   *payment.Payment `gorm:"foreignKey:PaymentID" json:"-"`

	DocumentKind string `gorm:"size:32;index:idx_attachment_document" json:"document_kind,omitempty"`
	DocumentID   *uint  `gorm:"index:idx_attachment_document" json:"document_id,omitempty"`

	Phase        string `gorm:"size:64;not null" json:"phase"`
	Subfolder    string `gorm:"size:255" json:"subfolder,omitempty"`
	OriginalName string `gorm:"size:255" json:"original_name"`
	Path         string `gorm:"size:1024;not null;index" json:"path"`
	Size         int64  `json:"size"`
	ContentType  string `gorm:"size:128" json:"content_type,omitempty"`

	UploadedByID *uint     `json:"uploaded_by_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Document is a project record that owns files, such as a contract or an
// invoice. Its placement is used when an upload names no phase.
type Document interface {
	layout.Owner
	DocumentRef() DocumentRef
}

// DocumentRef identifies a Document and where its files go by default.
type DocumentRef struct {
	Kind      string
	ID        uint
	TenantID  uuid.UUID
	ProjectID uint
	Phase     string
	Subfolder string
}

// ProjectRef implements layout.Owner through the preloaded project.
func (a *Attachment) ProjectRef() (uint, string, bool) {
	if a == nil {
		return 0, "", false
	}
	return a.Project.ProjectRef()
}
