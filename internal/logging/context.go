// internal/logging/context.go
package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := TenantIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("tenant.id", id))
	}
	if id, ok := UserIDFromContext(ctx); ok {
		fields = append(fields, zap.Uint("user.id", id))
		if role := RoleFromContext(ctx); role != "" {
			fields = append(fields, zap.String("user.role", role))
		}
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type tenantCtxKey struct{}
type userCtxKey struct{}
type roleCtxKey struct{}
type requestCtxKey struct{}

const maxIDLen = 128

// Request IDs arrive from clients via X-Request-ID.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

func validRequestID(id string) bool {
	return id != "" &&
		len(id) <= maxIDLen &&
		utf8.ValidString(id) &&
		idPattern.MatchString(id)
}

// WithTenantID records the tenant the request acts for. Empty IDs are
// ignored.
func WithTenantID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantCtxKey{}, id)
}

// TenantIDFromContext extracts the tenant ID from context.
func TenantIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tenantCtxKey{}).(string)
	return id
}

// WithUser records the authenticated user and role. Zero IDs are ignored.
func WithUser(ctx context.Context, id uint, role string) context.Context {
	if id == 0 {
		return ctx
	}
	ctx = context.WithValue(ctx, userCtxKey{}, id)
	if role != "" {
		ctx = context.WithValue(ctx, roleCtxKey{}, role)
	}
	return ctx
}

// UserIDFromContext extracts the user ID from context.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userCtxKey{}).(uint)
	return id, ok
}

// RoleFromContext extracts the user's role from context.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleCtxKey{}).(string)
	return role
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds request ID to context.
// IDs that are empty, too long or contain characters outside
// [a-zA-Z0-9_.:-] are dropped and ctx is returned unchanged.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !validRequestID(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
