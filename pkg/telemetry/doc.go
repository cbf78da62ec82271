// Package telemetry provides observability instrumentation for the
// feature-pack provisioning layout engine.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring and debugging layout operations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "fplayout"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("layout")
//	logger = logger.WithBuildID("build-123").WithProducer("com.example:feature-a")
//	logger.Info("resolving feature pack")
//	logger.WithError(err).Error("resolution failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into build and mutation flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("fpid", fpid),
//	    attribute.String("operation", "install"),
//	)
//
//	// Record events
//	span.AddEvent("resolution.complete")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development). "jaeger"
// passes Config.Validate, but NewTracer rejects it as unsupported.
//
// # Metrics
//
// Prometheus metrics track system behavior and performance:
//
//	// Record build execution
//	tel.Metrics.RecordBuildStarted("initial")
//	tel.Metrics.RecordBuildCompleted("succeeded", duration)
//
//	// Record feature-pack resolution
//	tel.Metrics.RecordFeaturePackResolved("feature-pack")
//
//	// Record mutations
//	tel.Metrics.RecordMutation("install", "succeeded")
//
//	// Record errors
//	tel.Metrics.RecordError("resolution-failed")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishBuildStarted(buildID, trigger)
//	tel.Events.PublishFeaturePackResolved(buildID, fpid, producer, kind)
//	tel.Events.PublishMutationCompleted(operation, status)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByBuildID, FilterByProducer
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "layout.build",
//	    attribute.String("build.id", buildID))
//	defer ic.End(err)
//
//	ic.Logger.Info("building layout")
//
//	// Build context
//	ctx = telemetry.WithBuildContext(ctx, buildID, trigger)
//	defer telemetry.EndBuildContext(ctx, buildID, status, err)
//
//	// Feature-pack resolution context
//	ctx = telemetry.WithFeaturePackContext(ctx, buildID, fpid, producer, kind)
//	defer telemetry.EndFeaturePackContext(ctx, buildID, producer, kind, err)
//
//	// Mutation context
//	ctx = telemetry.WithMutationContext(ctx, "install")
//	defer telemetry.EndMutationContext(ctx, "install", status, err)
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "fplayout",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Performance Considerations
//
// The telemetry system is designed for minimal overhead:
//
//  - Structured logging uses zerolog's zero-allocation approach
//  - Tracing uses sampling to reduce data volume in production
//  - Metrics use Prometheus's efficient storage format
//  - Events are buffered and batched to reduce I/O
//  - All operations are non-blocking when possible
//
// Typical overhead: <1% CPU, <10MB memory for moderate workloads
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//  - All buffered events are published
//  - All pending traces are exported
//  - Metrics are finalized
//
// # Integration with the layout engine
//
// Layout components automatically integrate with telemetry when available:
//
//  1. Build execution: automatic build-level tracing and metrics
//  2. Feature-pack resolution: per-feature-pack tracing during traversal
//  3. Mutations: install/uninstall/apply tracing and metrics
//
// PublishConvergenceConflict, PublishPolicyViolation, RecordConflict and
// RecordPatchApplied are available, but neither the layout engine nor the
// policy engine calls them.
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//  - "stdout": Print traces to stdout (development)
//  - "otlp": Export via OTLP/gRPC (production, works with collectors)
//  - "jaeger": accepted by Config.Validate, rejected by NewTracer (no Jaeger exporter is built in)
//  - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - fplayout_builds_started_total{trigger}
//  - fplayout_builds_completed_total{status}
//  - fplayout_build_duration_seconds{status}
//  - fplayout_feature_packs_resolved_total{type}
//  - fplayout_conflicts_detected_total{kind}
//  - fplayout_patches_applied_total{producer}
//  - fplayout_mutations_executed_total{operation,status}
//  - fplayout_errors_by_reason_total{reason}
//
// # Best Practices
//
//  1. Always use context to propagate telemetry
//  2. Use component-specific loggers for clarity
//  3. Add meaningful attributes to spans
//  4. Record both success and failure metrics
//  5. Use appropriate log levels
//  6. Filter events to avoid overwhelming subscribers
//  7. Monitor telemetry overhead in production
//  8. Configure sampling for high-volume systems
//  9. Always call defer span.End() after starting a span
//  10. Shut down gracefully to avoid data loss
//
// # Security Considerations
//
//  - Never log sensitive data (credentials, keys, tokens)
//  - Sanitize producer identifiers if they contain PII
//  - Use secure connections (TLS) for trace exporters in production
//  - Limit metrics endpoint access via network policies
//  - Consider event data before adding to audit logs
//
package telemetry
