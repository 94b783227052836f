// Package events publishes domain events to NATS.
//
// Publishing is fire-and-forget: callers use Emit, which logs failures and
// never returns them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmed20kamel/project-management-api/internal/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects, relative to the configured prefix.
const (
	ProjectCreated     = "projects.created"
	ProjectProvisioned = "projects.provisioned"
	AttachmentSaved    = "attachments.saved"
	AttachmentDeleted  = "attachments.deleted"
	PaymentRecorded    = "payments.recorded"
	DocumentSaved      = "documents.saved"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Event is the JSON envelope of every message.
type Event struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id,omitempty"`
	ObjectID   string    `json:"object_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, subject string, ev Event) error
	Close() error
}

// Nop discards events. It is used when events are disabled.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// NATSPublisher publishes JSON events on a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials NATS. The connection keeps retrying in the background, so
// a broker that is down at startup does not block the API.
func Connect(cfg config.EventsConfig, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("events")

	nc, err := nats.Connect(cfg.URL,
		nats.Name("pmapi"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	logger.Info("connected to NATS", zap.String("url", cfg.URL), zap.String("prefix", cfg.SubjectPrefix))
	return NewNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: nc, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Subject returns the full subject for a relative one.
func (p *NATSPublisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

// Publish marshals ev and publishes it. OccurredAt and Type are filled in
// when empty.
func (p *NATSPublisher) Publish(_ context.Context, subject string, ev Event) error {
	if p.conn.IsClosed() {
		return ErrClosed
	}
	if ev.Type == "" {
		ev.Type = subject
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", subject, err)
	}
	if err := p.conn.Publish(p.Subject(subject), data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

// Emit publishes ev and logs, rather than returns, any failure.
func Emit(ctx context.Context, p Publisher, logger *zap.Logger, subject string, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, ev); err != nil && logger != nil {
		logger.Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
