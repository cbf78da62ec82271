package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the provisioning layout engine.
type Metrics struct {
	config MetricsConfig

	// Build metrics
	buildsStarted   *prometheus.CounterVec
	buildsCompleted *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec

	// Layout traversal metrics
	featurePacksResolved *prometheus.CounterVec
	conflictsDetected    *prometheus.CounterVec

	// Patch metrics
	patchesApplied *prometheus.CounterVec

	// Mutation metrics
	mutationsExecuted *prometheus.CounterVec

	// Error metrics
	errorsByReason *prometheus.CounterVec

	// System metrics
	activeLayouts     prometheus.Gauge
	workAreaRefCounts prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		buildsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_started_total",
				Help:      "Total number of layout builds started",
			},
			[]string{"trigger"},
		),
		buildsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_completed_total",
				Help:      "Total number of layout builds completed",
			},
			[]string{"status"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Duration of layout build execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		featurePacksResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feature_packs_resolved_total",
				Help:      "Total number of feature packs resolved during traversal",
			},
			[]string{"type"},
		),
		conflictsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_detected_total",
				Help:      "Total number of version/channel conflicts detected during convergence",
			},
			[]string{"kind"},
		),

		patchesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patches_applied_total",
				Help:      "Total number of patches applied to a feature pack",
			},
			[]string{"producer"},
		),

		mutationsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_executed_total",
				Help:      "Total number of mutation API calls executed",
			},
			[]string{"operation", "status"},
		),

		errorsByReason: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_reason_total",
				Help:      "Total number of provisioning errors by reason code",
			},
			[]string{"reason"},
		),

		activeLayouts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_layouts",
				Help:      "Current number of open ProvisioningLayout instances",
			},
		),
		workAreaRefCounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "work_area_open_refs",
				Help:      "Current number of open work-area references across all layouts",
			},
		),
	}

	registry.MustRegister(
		m.buildsStarted,
		m.buildsCompleted,
		m.buildDuration,
		m.featurePacksResolved,
		m.conflictsDetected,
		m.patchesApplied,
		m.mutationsExecuted,
		m.errorsByReason,
		m.activeLayouts,
		m.workAreaRefCounts,
	)

	return m, nil
}

// Build metrics

// RecordBuildStarted increments the counter for started builds.
func (m *Metrics) RecordBuildStarted(trigger string) {
	if m.buildsStarted == nil {
		return
	}
	m.buildsStarted.WithLabelValues(trigger).Inc()
	m.activeLayouts.Inc()
}

// RecordBuildCompleted records a completed build with its status and
// duration.
func (m *Metrics) RecordBuildCompleted(status string, duration time.Duration) {
	if m.buildsCompleted == nil {
		return
	}
	m.buildsCompleted.WithLabelValues(status).Inc()
	m.buildDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFeaturePackResolved records a feature pack registered during
// traversal, by its Type tag.
func (m *Metrics) RecordFeaturePackResolved(kind string) {
	if m.featurePacksResolved == nil {
		return
	}
	m.featurePacksResolved.WithLabelValues(kind).Inc()
}

// RecordConflict records a convergence conflict, by kind ("channel" or
// "build").
func (m *Metrics) RecordConflict(kind string) {
	if m.conflictsDetected == nil {
		return
	}
	m.conflictsDetected.WithLabelValues(kind).Inc()
}

// RecordPatchApplied records a patch overlay applied to a producer's
// feature pack.
func (m *Metrics) RecordPatchApplied(producer string) {
	if m.patchesApplied == nil {
		return
	}
	m.patchesApplied.WithLabelValues(producer).Inc()
}

// RecordMutation records a mutation API call (install/uninstall/apply).
func (m *Metrics) RecordMutation(operation, status string) {
	if m.mutationsExecuted == nil {
		return
	}
	m.mutationsExecuted.WithLabelValues(operation, status).Inc()
}

// RecordError records a provisioning error by reason code.
func (m *Metrics) RecordError(reason string) {
	if m.errorsByReason == nil {
		return
	}
	m.errorsByReason.WithLabelValues(reason).Inc()
}

// SetWorkAreaRefCounts sets the current count of open work-area
// references.
func (m *Metrics) SetWorkAreaRefCounts(count float64) {
	if m.workAreaRefCounts == nil {
		return
	}
	m.workAreaRefCounts.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
