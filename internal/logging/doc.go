// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry log bridge)
//   - Automatic context field injection (trace_id, tenant.id, user.id, request.id)
//   - Secret redaction at the encoder
//   - Per-level sampling (errors never sampled)
//
// # Usage
//
// Build the config from the observability section and create the logger:
//
//	cfg, err := logging.FromObservability(appCfg.Observability)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// The HTTP layer tags each request context:
//
//	ctx = logging.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))
//	ctx = logging.WithTenantID(ctx, principal.TenantID.String())
//	ctx = logging.WithUser(ctx, principal.UserID, principal.Role)
//	logger.Info(ctx, "attachment uploaded", zap.String("path", p))
//
// Output includes the correlation fields:
//
//	{
//	  "ts": "2026-03-02T10:15:30Z",
//	  "level": "info",
//	  "msg": "attachment uploaded",
//	  "service": "pmapi",
//	  "trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
//	  "tenant.id": "5f1c9a2e-7d4b-4e8a-9c3f-1b2d3e4f5a6b",
//	  "user.id": 17,
//	  "user.role": "staff_user",
//	  "request.id": "0b4a7e2c-5f2d-4d38-9a51-3c3c2a1f9e10",
//	  "path": "projects/project_12_tower-a/contracts-العقود/contract.pdf"
//	}
//
// Services take a plain *zap.Logger. Pass Underlying(), or For(ctx) to bind
// the correlation fields of a request.
//
// # Secret Redaction
//
// Secrets are redacted at three layers:
//  1. Domain primitives (config.Secret, logged with Secret)
//  2. Field names (password, token, dsn, cookie, ...)
//  3. Value patterns (bearer headers, JWTs, postgres URLs with passwords)
//
// Email addresses should go through Email, which masks the local part.
//
// # Sampling
//
// Each level listed in SamplingConfig.Levels gets its own sampler:
//   - Trace: first 1 per second, drop rest
//   - Debug: first 10 per second, drop rest
//   - Info: first 100, then 1 every 10
//   - Warn: first 100, then 1 every 100
//   - Error+: never sampled
//
// FromObservability turns sampling off for debug and trace levels.
//
// # Testing
//
// Use TestLogger for assertions:
//
//	tl := logging.NewTestLogger()
//	svc, _ := project.NewService(gdb, prov, audit.Nop{}, events.Nop{}, tl.Underlying())
//	tl.AssertLogged(t, zapcore.WarnLevel, "project provisioned with failures")
//	tl.AssertNoSecrets(t)
package logging
