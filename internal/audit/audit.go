// Package audit records who changed what, from where.
//
// Recording is best effort: a failed insert is logged and never fails the
// operation being audited.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmed20kamel/project-management-api/pkg/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action names an audited operation.
type Action string

// Audited actions.
const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionLogin     Action = "login"
	ActionUpload    Action = "upload"
	ActionProvision Action = "provision"
)

// Entry is one audit log row.
type Entry struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	TenantID   *uuid.UUID        `gorm:"type:varchar(36);index" json:"tenant_id,omitempty"`
	UserID     *uint             `gorm:"index" json:"user_id,omitempty"`
	Action     Action            `gorm:"size:32;not null;index" json:"action"`
	ObjectType string            `gorm:"size:64;not null" json:"object_type"`
	ObjectID   string            `gorm:"size:64" json:"object_id"`
	Changes    datatypes.JSONMap `json:"changes,omitempty"`
	IP         string            `gorm:"size:64" json:"ip,omitempty"`
	UserAgent  string            `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// TableName keeps the table name stable.
func (Entry) TableName() string { return "audit_logs" }

// Sink receives audit entries.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards entries.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Entry) {}

type requestMetaKey struct{}

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequestMeta stores the client IP and user agent for later entries.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ip: ip, userAgent: userAgent})
}

// Recorder writes entries with gorm.
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRecorder returns a Recorder. A nil logger is replaced by a no-op.
func NewRecorder(gdb *gorm.DB, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: gdb, logger: logger.Named("audit")}
}

// Record fills tenant, user and client fields from ctx when unset and
// inserts the entry.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if p, ok := auth.FromContext(ctx); ok {
		if e.UserID == nil {
			id := p.UserID
			e.UserID = &id
		}
		if e.TenantID == nil && p.HasTenant() {
			tid := p.TenantID
			e.TenantID = &tid
		}
	}
	if m, ok := ctx.Value(requestMetaKey{}).(requestMeta); ok {
		if e.IP == "" {
			e.IP = m.ip
		}
		if e.UserAgent == "" {
			e.UserAgent = truncate(m.userAgent, 255)
		}
	}

	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		r.logger.Warn("audit record failed",
			zap.String("action", string(e.Action)),
			zap.String("object_type", e.ObjectType),
			zap.String("object_id", e.ObjectID),
			zap.Error(err),
		)
	}
}

// Filter narrows List.
type Filter struct {
	TenantID   *uuid.UUID
	Action     Action
	ObjectType string
	Limit      int
	Offset     int
}

// List returns entries newest first and the total matching count. A nil
// TenantID lists every tenant and is meant for superusers.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Entry, int64, error) {
	q := r.db.WithContext(ctx).Model(&Entry{})
	if f.TenantID != nil {
		q = q.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ObjectType != "" {
		q = q.Where("object_type = ?", f.ObjectType)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []Entry
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	return out, total, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
