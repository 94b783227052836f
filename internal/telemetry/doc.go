// Package telemetry provides OpenTelemetry tracing, metrics and log export
// for the project management API.
//
// Spans and metrics are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. Log records reach the collector through the zap bridge in
// package logging, which takes LoggerProvider.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version),
//	    telemetry.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Services do not take a *Telemetry. They call otel.Tracer and otel.Meter,
// which resolve to the providers New installs globally.
//
// # Error Handling
//
// Telemetry failures do not crash the service. A provider that cannot be
// built is logged, Health reports Degraded, and the no-op globals stay in
// place.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "storage.provision")
//	span.End()
//	tt.AssertSpanExists(t, "storage.provision")
package telemetry
