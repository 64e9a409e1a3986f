// Package metrics provides Prometheus metrics for the experiment harness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the harness.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Experiment metrics
	experimentsTotal prometheus.Counter
	trialsTotal      prometheus.Counter
	trialErrors      prometheus.Counter

	// Sampler metrics
	chainsCompleted   prometheus.Counter
	chainsIncomplete  prometheus.Counter
	samplerIterations prometheus.Counter
	activeChains      prometheus.Gauge
	chainDuration     prometheus.Histogram
	acceptanceRate    prometheus.Histogram

	// Optimizer metrics
	optimizerRuns         prometheus.Counter
	optimizerNonConverged prometheus.Counter
	optimizerIterations   prometheus.Histogram

	// Reporter metrics
	nonConvergedParams prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bio610b",
		subsystem:        "harness",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.experimentsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "experiments_total",
		Help:      "Total number of experiments run",
	})

	m.trialsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trials_total",
		Help:      "Total number of simulate-fit-summarize trials completed",
	})

	m.trialErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trial_errors_total",
		Help:      "Total number of trials that failed before producing a summary",
	})

	m.chainsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chains_completed_total",
		Help:      "Total number of sampling chains run to completion",
	})

	m.chainsIncomplete = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chains_incomplete_total",
		Help:      "Total number of sampling chains cancelled before completion",
	})

	m.samplerIterations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sampler_iterations_total",
		Help:      "Total number of sampler iterations across all chains",
	})

	m.activeChains = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_chains",
		Help:      "Number of chains currently running",
	})

	m.chainDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chain_duration_seconds",
		Help:      "Wall-clock duration of individual sampling chains",
		Buckets:   m.histogramBuckets,
	})

	m.acceptanceRate = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chain_acceptance_rate",
		Help:      "Post-warmup Metropolis acceptance rate per chain",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	m.optimizerRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "optimizer_runs_total",
		Help:      "Total number of optimization fits",
	})

	m.optimizerNonConverged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "optimizer_nonconverged_total",
		Help:      "Total number of optimization fits that missed the tolerance",
	})

	m.optimizerIterations = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "optimizer_iterations",
		Help:      "Iterations used per optimization fit",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
	})

	m.nonConvergedParams = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "nonconverged_parameters_total",
		Help:      "Total number of parameters flagged by the convergence check",
	})
}

// RecordExperiment increments the experiments counter.
func RecordExperiment() {
	globalManager.experimentsTotal.Inc()
}

// RecordTrial increments the trials counter.
func RecordTrial() {
	globalManager.trialsTotal.Inc()
}

// RecordTrialError increments the trial error counter.
func RecordTrialError() {
	globalManager.trialErrors.Inc()
}

// RecordChainCompleted increments the completed chain counter.
func RecordChainCompleted() {
	globalManager.chainsCompleted.Inc()
}

// RecordChainIncomplete increments the incomplete chain counter.
func RecordChainIncomplete() {
	globalManager.chainsIncomplete.Inc()
}

// RecordSamplerIterations adds to the sampler iteration counter.
func RecordSamplerIterations(n int) {
	globalManager.samplerIterations.Add(float64(n))
}

// UpdateActiveChains sets the number of currently running chains.
func UpdateActiveChains(n int) {
	globalManager.activeChains.Set(float64(n))
}

// ObserveChainDuration records a chain's wall-clock duration in seconds.
func ObserveChainDuration(seconds float64) {
	globalManager.chainDuration.Observe(seconds)
}

// ObserveAcceptanceRate records a chain's post-warmup acceptance rate.
func ObserveAcceptanceRate(rate float64) {
	globalManager.acceptanceRate.Observe(rate)
}

// RecordOptimizerRun increments the optimizer run counter.
func RecordOptimizerRun() {
	globalManager.optimizerRuns.Inc()
}

// RecordOptimizerNonConverged increments the optimizer non-convergence counter.
func RecordOptimizerNonConverged() {
	globalManager.optimizerNonConverged.Inc()
}

// ObserveOptimizerIterations records the iterations used by an optimization fit.
func ObserveOptimizerIterations(n int) {
	globalManager.optimizerIterations.Observe(float64(n))
}

// RecordNonConvergedParameters adds to the flagged-parameter counter.
func RecordNonConvergedParameters(n int) {
	globalManager.nonConvergedParams.Add(float64(n))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
