package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Bundle provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Bundle struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// bundleContextKey is the context key for Bundle instances.
type bundleContextKey struct{}

// NewTelemetry creates a new telemetry bundle from configuration.
func NewTelemetry(cfg *Config) (*Bundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the bundle to the context.
func (t *Bundle) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, bundleContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the bundle from the context, or nil if
// none was attached.
func FromTelemetryContext(ctx context.Context) *Bundle {
	if t, ok := ctx.Value(bundleContextKey{}).(*Bundle); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Bundle) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Bundle) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Bundle) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithBuildContext creates a context enriched with telemetry for a single
// build()/rebuild() call: span, correlation id, and the
// build-started metric.
func WithBuildContext(ctx context.Context, buildID, trigger string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartBuildSpan(ctx, trigger)

	logger := tel.Logger.WithBuildID(buildID).WithField("trigger", trigger)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordBuildStarted(trigger)
	_ = tel.Events.PublishBuildStarted(buildID, trigger)

	spanCtx = context.WithValue(spanCtx, buildSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, buildTimerKey{}, NewTimer())
	spanCtx = context.WithValue(spanCtx, buildIDKey{}, buildID)
	return spanCtx
}

type buildSpanKey struct{}
type buildTimerKey struct{}
type buildIDKey struct{}

// BuildIDFromContext returns the build ID attached by WithBuildContext, or
// "" if none is present (no telemetry configured, or called outside a build
// context).
func BuildIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(buildIDKey{}).(string)
	return id
}

// EndBuildContext completes the build context, recording metrics and
// events.
func EndBuildContext(ctx context.Context, buildID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(buildSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(buildTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordBuildCompleted(status, duration)

	if err != nil {
		_ = tel.Events.PublishBuildFailed(buildID, err.Error())
	} else {
		_ = tel.Events.PublishBuildCompleted(buildID, status, duration)
	}
}

// WithFeaturePackContext creates a context enriched with telemetry for
// resolving a single feature pack during traversal.
func WithFeaturePackContext(ctx context.Context, buildID, fpid, producer, kind string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartFeaturePackSpan(ctx, fpid, producer, kind)

	logger := tel.Logger.
		WithBuildID(buildID).
		WithFPID(fpid).
		WithProducer(producer).
		WithField("type", kind)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, featurePackSpanKey{}, span)
	return spanCtx
}

type featurePackSpanKey struct{}

// EndFeaturePackContext completes the feature-pack resolution context.
func EndFeaturePackContext(ctx context.Context, buildID, producer, kind string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(featurePackSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	if err == nil {
		tel.Metrics.RecordFeaturePackResolved(kind)
	}
}

// WithMutationContext creates a context enriched with telemetry for a
// single install/uninstall/apply mutation call.
func WithMutationContext(ctx context.Context, operation string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartMutationSpan(ctx, operation)
	logger := tel.Logger.WithField("operation", operation)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, mutationSpanKey{}, span)
	return spanCtx
}

type mutationSpanKey struct{}

// EndMutationContext completes the mutation context, recording metrics.
func EndMutationContext(ctx context.Context, operation, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(mutationSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	tel.Metrics.RecordMutation(operation, status)
	_ = tel.Events.PublishMutationCompleted(operation, status)
}
