package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/fplayout/fplayout/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "fplayout"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("layout engine started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("layout")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"build_id": "build-123",
		"producer": "com.example:feature-a",
	})

	// Log at different levels
	logger.Debug("resolving feature pack")
	logger.Info("feature pack resolved")
	logger.Warn("version convergence conflict detected")

	// Log with error
	err := fmt.Errorf("artifact fetch timeout")
	logger.WithError(err).Error("failed to resolve feature pack")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "build_layout")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("build.id", "build-789"),
		attribute.Int("build.feature_packs", 5),
	)

	// Add event
	span.AddEvent("traversal.complete")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "resolve_feature_pack")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("producer", "com.example:feature-a"),
		attribute.String("operation", "resolve"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record build metrics
	tel.Metrics.RecordBuildStarted("initial")

	// Simulate build execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordBuildCompleted("succeeded", duration)

	// Record feature-pack resolution metrics
	tel.Metrics.RecordFeaturePackResolved("feature-pack")

	// Record conflict and patch metrics
	tel.Metrics.RecordConflict("feature-pack")
	tel.Metrics.RecordPatchApplied("com.example:feature-a")

	// Record mutation metrics
	tel.Metrics.RecordMutation("install", "succeeded")

	// Record error metrics
	tel.Metrics.RecordError("resolution-failed")

	fmt.Println("metrics recorded successfully")
	// Output: metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishBuildStarted("build-123", "initial")
	tel.Events.PublishFeaturePackResolved("build-123", "com.example:feature-a!1.0", "com.example:feature-a", "feature-pack")
	tel.Events.PublishMutationCompleted("install", "succeeded")

	// Output varies due to async nature, no output specified
}

// Example_buildInstrumentation demonstrates instrumenting a complete build.
func Example_buildInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start build context
	buildID := "build-123"
	ctx = telemetry.WithBuildContext(ctx, buildID, "initial")

	// Execute build (simulated)
	resolveFeaturePacks(ctx, buildID)

	// End build context
	telemetry.EndBuildContext(ctx, buildID, "succeeded", nil)

	fmt.Println("build instrumentation complete")
	// Output: build instrumentation complete
}

func resolveFeaturePacks(ctx context.Context, buildID string) {
	// Simulate a single feature-pack resolution
	fpid := "com.example:feature-a!1.0"
	producer := "com.example:feature-a"
	kind := "feature-pack"

	ctx = telemetry.WithFeaturePackContext(ctx, buildID, fpid, producer, kind)

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("resolving feature pack")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End feature-pack context
	telemetry.EndFeaturePackContext(ctx, buildID, producer, kind, nil)
}

// Example_mutationInstrumentation demonstrates instrumenting an install/uninstall call.
func Example_mutationInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start mutation context
	ctx = telemetry.WithMutationContext(ctx, "install")

	// Simulate the mutation
	time.Sleep(15 * time.Millisecond)

	// End mutation context
	telemetry.EndMutationContext(ctx, "install", "succeeded", nil)

	fmt.Println("mutation instrumentation complete")
	// Output: mutation instrumentation complete
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "validate_config",
		attribute.String("config.path", "/etc/fplayout/provisioning.cue"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("validating configuration")

	// Simulate validation
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("configuration validation complete")

	fmt.Println("operation instrumentation complete")
	// Output: operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only convergence conflicts)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("conflict event: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeConvergenceConflict))

	// Publish various events
	tel.Events.PublishBuildStarted("build-123", "initial")                             // Info - filtered by level filter
	tel.Events.PublishConvergenceConflict("com.example:feature-a", []string{"1.0", "2.0"}) // Warning - passes level filter
	tel.Events.PublishBuildFailed("build-123", "timeout")                              // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "fplayout"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "fplayout"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("production configuration validated")
	// Output: production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "resolve_artifact")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("connection timeout")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("artifact-timeout")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("resolution failed")
	}

	fmt.Println("error recording complete")
	// Output: error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	layoutLogger := tel.Logger.NewComponentLogger("layout")
	resolveLogger := tel.Logger.NewComponentLogger("resolve")
	pluginLogger := tel.Logger.NewComponentLogger("plugin")

	layoutLogger.Info("layout build started")
	resolveLogger.Info("resolving universe catalog")
	pluginLogger.Info("loading plugin manifests")

	fmt.Println("multi-component logging complete")
	// Output: multi-component logging complete
}
