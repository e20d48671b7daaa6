// Package metrics provides Prometheus metrics for go-padel-swarm.
//
// Metrics are organized into two tiers:
//   - Tier 1 (always enabled): Aggregate metrics safe for any worker count
//   - Tier 2 (optional, -prom-worker-metrics): Per-worker metrics for debugging
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// Tier 1: Aggregate Metrics (Always Enabled)
// =============================================================================

// --- Panel 1: Run Overview ---
var (
	padelSwarmInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "padelswarm_info",
			Help: "Information about the descriptor run (value always 1)",
		},
		[]string{"version", "jar", "java_version"},
	)

	padelTargetWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_target_workers",
			Help: "Configured worker pool size",
		},
	)

	padelTotalMolecules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_total_molecules",
			Help: "Number of molecules in the input set (0 = unknown)",
		},
	)

	padelActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_active_workers",
			Help: "Currently running workers",
		},
	)

	padelRampProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_ramp_progress",
			Help: "Worker ramp-up progress (0.0 to 1.0)",
		},
	)

	padelRunElapsedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_run_elapsed_seconds",
			Help: "Seconds since the run started",
		},
	)

	padelRunProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_run_progress",
			Help: "Fraction of molecules processed (0.0 to 1.0, -1 = unknown)",
		},
	)

	padelMoleculesRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_molecules_remaining",
			Help: "Molecules not yet processed (-1 = unknown)",
		},
	)
)

// --- Panel 2: Throughput ---
var (
	padelMoleculesCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "padelswarm_molecules_completed_total",
			Help: "Total molecules with descriptors computed",
		},
	)

	padelMoleculesFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "padelswarm_molecules_failed_total",
			Help: "Total failed molecules by failure kind",
		},
		[]string{"kind"}, // "configuration" | "timeout" | "process" | "parse"
	)

	padelDescriptorRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "padelswarm_descriptor_rows_total",
			Help: "Total descriptor table rows produced",
		},
	)

	padelMoleculesPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_molecules_per_second",
			Help: "Molecule completion rate since run start",
		},
	)

	padelInstantMoleculesPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_instant_molecules_per_second",
			Help: "Molecule completion rate over the last stats interval",
		},
	)

	padelFailureRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_failure_rate",
			Help: "Current failure rate (failed/processed)",
		},
	)
)

// --- Panel 3: JVM Runtime Distribution ---
var (
	// Histogram for heatmaps and histogram_quantile()
	padelJVMRuntimeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "padelswarm_jvm_runtime_seconds",
			Help: "Per-molecule JVM runtime distribution",
			Buckets: []float64{
				0.5, 1, 2, 5, 10,
				20, 30, 60, 120,
				300, 600,
			},
		},
	)

	// Pre-calculated percentiles (convenience for simple panels)
	padelRuntimeP50Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_jvm_runtime_p50_seconds",
			Help: "JVM runtime 50th percentile (median)",
		},
	)

	padelRuntimeP95Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_jvm_runtime_p95_seconds",
			Help: "JVM runtime 95th percentile",
		},
	)

	padelRuntimeP99Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_jvm_runtime_p99_seconds",
			Help: "JVM runtime 99th percentile",
		},
	)

	padelRuntimeMaxSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_jvm_runtime_max_seconds",
			Help: "Maximum JVM runtime observed",
		},
	)
)

// --- Panel 4: Worker Health ---
var (
	padelBusyWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_busy_workers",
			Help: "Workers with a molecule in flight",
		},
	)

	padelIdleWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_idle_workers",
			Help: "Workers waiting for a molecule",
		},
	)

	padelSlowWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_slow_workers",
			Help: "Workers whose current molecule has run past the slow threshold",
		},
	)
)

// --- Panel 5: JVM Lifecycle ---
var (
	padelJVMStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "padelswarm_jvm_starts_total",
			Help: "Total JVM process launches",
		},
	)

	padelJVMExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "padelswarm_jvm_exits_total",
			Help: "JVM exits by exit code category",
		},
		[]string{"category"}, // "success", "error", "signal"
	)

	padelStderrExceptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "padelswarm_jvm_stderr_exceptions_total",
			Help: "Exception events classified from JVM stderr",
		},
	)
)

// --- Panel 6: Pipeline Health (Metrics System) ---
var (
	padelStatsLinesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "padelswarm_stats_lines_dropped_total",
			Help: "JVM output lines dropped (parser backpressure)",
		},
		[]string{"stream"}, // "stdout" | "stderr"
	)

	padelStatsLinesParsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "padelswarm_stats_lines_parsed_total",
			Help: "JVM output lines successfully parsed",
		},
		[]string{"stream"},
	)

	padelStatsWorkersDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_stats_workers_degraded",
			Help: "Workers with dropped stderr lines",
		},
	)

	padelStatsDropRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_stats_drop_rate",
			Help: "Overall metrics line drop rate (0.0-1.0)",
		},
	)

	padelStatsPeakDropRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_stats_peak_drop_rate",
			Help: "Peak metrics line drop rate observed",
		},
	)
)

// --- Panel 7: Scratch Workspace (set by WorkspaceWatcher) ---
var (
	padelScratchFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_scratch_files",
			Help: "Files currently in the scratch directory",
		},
	)

	padelScratchBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_scratch_bytes",
			Help: "Bytes currently in the scratch directory",
		},
	)

	padelScratchPeakBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_scratch_peak_bytes",
			Help: "Peak scratch directory size observed",
		},
	)

	padelScratchGrowthBytesPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_scratch_growth_bytes_per_second",
			Help: "Scratch directory growth rate between scans",
		},
	)

	padelScratchScanSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "padelswarm_scratch_scan_duration_seconds",
			Help: "Duration of the last scratch directory scan",
		},
	)
)

// =============================================================================
// Tier 2: Per-Worker Metrics (Optional, -prom-worker-metrics)
// =============================================================================

var (
	padelWorkerBusy        *prometheus.GaugeVec
	padelWorkerCompleted   *prometheus.GaugeVec
	padelWorkerFailed      *prometheus.GaugeVec
	padelWorkerLastRuntime *prometheus.GaugeVec
)

// initPerWorkerMetrics initializes Tier 2 metrics.
// Only called when -prom-worker-metrics is enabled.
func initPerWorkerMetrics(registry prometheus.Registerer) {
	padelWorkerBusy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "padelswarm_worker_busy",
			Help: "Whether the worker has a molecule in flight (requires -prom-worker-metrics)",
		},
		[]string{"worker_id"},
	)

	padelWorkerCompleted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "padelswarm_worker_molecules_completed",
			Help: "Per-worker completed molecules (requires -prom-worker-metrics)",
		},
		[]string{"worker_id"},
	)

	padelWorkerFailed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "padelswarm_worker_molecules_failed",
			Help: "Per-worker failed molecules (requires -prom-worker-metrics)",
		},
		[]string{"worker_id"},
	)

	padelWorkerLastRuntime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "padelswarm_worker_last_runtime_seconds",
			Help: "Per-worker runtime of the most recent molecule (requires -prom-worker-metrics)",
		},
		[]string{"worker_id"},
	)

	registry.MustRegister(padelWorkerBusy, padelWorkerCompleted, padelWorkerFailed, padelWorkerLastRuntime)
}

// =============================================================================
// Collector
// =============================================================================

// Collector manages all Prometheus metrics for the swarm.
type Collector struct {
	// Configuration
	perWorkerEnabled bool
	targetWorkers    int
	totalMolecules   int
	jarPath          string
	javaVersion      string

	// Timing
	startTime time.Time

	// Internal tracking for delta calculations
	mu                  sync.Mutex
	prevCompleted       int64
	prevRows            int64
	prevConfigFailures  int64
	prevTimeoutFailures int64
	prevProcessFailures int64
	prevParseFailures   int64
	prevExceptions      int64
	prevStderrDropped   int64
	prevStderrParsed    int64
	prevStdoutDropped   int64
	prevStdoutParsed    int64

	// Track registered worker IDs for cleanup
	registeredWorkerIDs map[int]struct{}
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	TargetWorkers    int
	TotalMolecules   int
	JarPath          string
	JavaVersion      string
	PerWorkerMetrics bool
}

// NewCollector creates a new metrics collector.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		perWorkerEnabled:    cfg.PerWorkerMetrics,
		targetWorkers:       cfg.TargetWorkers,
		totalMolecules:      cfg.TotalMolecules,
		jarPath:             cfg.JarPath,
		javaVersion:         cfg.JavaVersion,
		startTime:           time.Now(),
		registeredWorkerIDs: make(map[int]struct{}),
	}

	// Register Tier 1 metrics (always)
	registry.MustRegister(
		// Panel 1: Run Overview
		padelSwarmInfo,
		padelTargetWorkers,
		padelTotalMolecules,
		padelActiveWorkers,
		padelRampProgress,
		padelRunElapsedSeconds,
		padelRunProgress,
		padelMoleculesRemaining,

		// Panel 2: Throughput
		padelMoleculesCompletedTotal,
		padelMoleculesFailedTotal,
		padelDescriptorRowsTotal,
		padelMoleculesPerSec,
		padelInstantMoleculesPerSec,
		padelFailureRate,

		// Panel 3: JVM Runtime
		padelJVMRuntimeSeconds,
		padelRuntimeP50Seconds,
		padelRuntimeP95Seconds,
		padelRuntimeP99Seconds,
		padelRuntimeMaxSeconds,

		// Panel 4: Worker Health
		padelBusyWorkers,
		padelIdleWorkers,
		padelSlowWorkers,

		// Panel 5: JVM Lifecycle
		padelJVMStartsTotal,
		padelJVMExitsTotal,
		padelStderrExceptionsTotal,

		// Panel 6: Pipeline Health
		padelStatsLinesDroppedTotal,
		padelStatsLinesParsedTotal,
		padelStatsWorkersDegraded,
		padelStatsDropRate,
		padelStatsPeakDropRate,

		// Panel 7: Scratch Workspace
		padelScratchFiles,
		padelScratchBytes,
		padelScratchPeakBytes,
		padelScratchGrowthBytesPerSec,
		padelScratchScanSeconds,
	)

	// Register Tier 2 metrics (optional)
	if cfg.PerWorkerMetrics {
		initPerWorkerMetrics(registry)
	}

	// Set initial values
	padelSwarmInfo.WithLabelValues("1.0", cfg.JarPath, cfg.JavaVersion).Set(1)
	padelTargetWorkers.Set(float64(cfg.TargetWorkers))
	padelTotalMolecules.Set(float64(cfg.TotalMolecules))
	if cfg.TotalMolecules > 0 {
		padelMoleculesRemaining.Set(float64(cfg.TotalMolecules))
		padelRunProgress.Set(0)
	} else {
		padelMoleculesRemaining.Set(-1)
		padelRunProgress.Set(-1)
	}

	return c
}

// =============================================================================
// Update Methods
// =============================================================================

// AggregatedStatsUpdate holds stats for updating metrics.
// This is a subset of stats.AggregatedStats to avoid circular imports.
type AggregatedStatsUpdate struct {
	// Worker counts
	TotalWorkers int
	BusyWorkers  int
	IdleWorkers  int
	SlowWorkers  int

	// Molecule totals
	TotalCompleted int64
	TotalFailed    int64
	TotalRows      int64

	// Failure kinds
	ConfigFailures  int64
	TimeoutFailures int64
	ProcessFailures int64
	ParseFailures   int64
	FailureRate     float64

	// Rates
	MoleculesPerSec        float64
	InstantMoleculesPerSec float64

	// Runtime distribution
	RuntimeP50 time.Duration
	RuntimeP95 time.Duration
	RuntimeP99 time.Duration
	MaxRuntime time.Duration

	// Stderr events
	TotalExceptions int64

	// Pipeline health
	TotalLinesRead     int64
	TotalLinesDropped  int64
	WorkersWithDrops   int
	PeakDropRate       float64
	StdoutLinesRead    int64
	StdoutLinesDropped int64
	StderrLinesRead    int64
	StderrLinesDropped int64

	// Per-worker (only if enabled)
	PerWorkerStats []PerWorkerStatsUpdate
}

// PerWorkerStatsUpdate holds per-worker stats for Tier 2 metrics.
type PerWorkerStatsUpdate struct {
	WorkerID      int
	Busy          bool
	JobsCompleted int64
	JobsFailed    int64
	LastRuntime   time.Duration
}

// RecordStats updates all metrics from aggregated stats.
func (c *Collector) RecordStats(stats *AggregatedStatsUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// --- Panel 1: Run Overview ---
	padelActiveWorkers.Set(float64(stats.TotalWorkers))

	rampProgress := float64(0)
	if c.targetWorkers > 0 {
		rampProgress = float64(stats.TotalWorkers) / float64(c.targetWorkers)
		if rampProgress > 1.0 {
			rampProgress = 1.0
		}
	}
	padelRampProgress.Set(rampProgress)

	padelRunElapsedSeconds.Set(time.Since(c.startTime).Seconds())

	processed := stats.TotalCompleted + stats.TotalFailed
	if c.totalMolecules > 0 {
		remaining := int64(c.totalMolecules) - processed
		if remaining < 0 {
			remaining = 0
		}
		padelMoleculesRemaining.Set(float64(remaining))
		padelRunProgress.Set(float64(processed) / float64(c.totalMolecules))
	}

	// --- Panel 2: Throughput ---
	// Calculate deltas and add to counters
	completedDelta := stats.TotalCompleted - c.prevCompleted
	rowsDelta := stats.TotalRows - c.prevRows
	if completedDelta > 0 {
		padelMoleculesCompletedTotal.Add(float64(completedDelta))
	}
	if rowsDelta > 0 {
		padelDescriptorRowsTotal.Add(float64(rowsDelta))
	}
	c.prevCompleted = stats.TotalCompleted
	c.prevRows = stats.TotalRows

	// Failure counters by kind (delta)
	if d := stats.ConfigFailures - c.prevConfigFailures; d > 0 {
		padelMoleculesFailedTotal.WithLabelValues("configuration").Add(float64(d))
	}
	if d := stats.TimeoutFailures - c.prevTimeoutFailures; d > 0 {
		padelMoleculesFailedTotal.WithLabelValues("timeout").Add(float64(d))
	}
	if d := stats.ProcessFailures - c.prevProcessFailures; d > 0 {
		padelMoleculesFailedTotal.WithLabelValues("process").Add(float64(d))
	}
	if d := stats.ParseFailures - c.prevParseFailures; d > 0 {
		padelMoleculesFailedTotal.WithLabelValues("parse").Add(float64(d))
	}
	c.prevConfigFailures = stats.ConfigFailures
	c.prevTimeoutFailures = stats.TimeoutFailures
	c.prevProcessFailures = stats.ProcessFailures
	c.prevParseFailures = stats.ParseFailures

	padelMoleculesPerSec.Set(stats.MoleculesPerSec)
	padelInstantMoleculesPerSec.Set(stats.InstantMoleculesPerSec)
	padelFailureRate.Set(stats.FailureRate)

	// --- Panel 3: Runtime ---
	padelRuntimeP50Seconds.Set(stats.RuntimeP50.Seconds())
	padelRuntimeP95Seconds.Set(stats.RuntimeP95.Seconds())
	padelRuntimeP99Seconds.Set(stats.RuntimeP99.Seconds())
	padelRuntimeMaxSeconds.Set(stats.MaxRuntime.Seconds())

	// --- Panel 4: Worker Health ---
	padelBusyWorkers.Set(float64(stats.BusyWorkers))
	padelIdleWorkers.Set(float64(stats.IdleWorkers))
	padelSlowWorkers.Set(float64(stats.SlowWorkers))

	// --- Panel 5: Stderr events ---
	if d := stats.TotalExceptions - c.prevExceptions; d > 0 {
		padelStderrExceptionsTotal.Add(float64(d))
	}
	c.prevExceptions = stats.TotalExceptions

	// --- Panel 6: Pipeline Health ---
	// Stdout stream
	stdoutDroppedDelta := stats.StdoutLinesDropped - c.prevStdoutDropped
	stdoutParsedDelta := stats.StdoutLinesRead - stats.StdoutLinesDropped - c.prevStdoutParsed
	if stdoutDroppedDelta > 0 {
		padelStatsLinesDroppedTotal.WithLabelValues("stdout").Add(float64(stdoutDroppedDelta))
	}
	if stdoutParsedDelta > 0 {
		padelStatsLinesParsedTotal.WithLabelValues("stdout").Add(float64(stdoutParsedDelta))
	}
	c.prevStdoutDropped = stats.StdoutLinesDropped
	c.prevStdoutParsed = stats.StdoutLinesRead - stats.StdoutLinesDropped

	// Stderr stream
	stderrDroppedDelta := stats.StderrLinesDropped - c.prevStderrDropped
	stderrParsedDelta := stats.StderrLinesRead - stats.StderrLinesDropped - c.prevStderrParsed
	if stderrDroppedDelta > 0 {
		padelStatsLinesDroppedTotal.WithLabelValues("stderr").Add(float64(stderrDroppedDelta))
	}
	if stderrParsedDelta > 0 {
		padelStatsLinesParsedTotal.WithLabelValues("stderr").Add(float64(stderrParsedDelta))
	}
	c.prevStderrDropped = stats.StderrLinesDropped
	c.prevStderrParsed = stats.StderrLinesRead - stats.StderrLinesDropped

	padelStatsWorkersDegraded.Set(float64(stats.WorkersWithDrops))

	// Calculate overall drop rate
	dropRate := float64(0)
	if stats.TotalLinesRead > 0 {
		dropRate = float64(stats.TotalLinesDropped) / float64(stats.TotalLinesRead)
	}
	padelStatsDropRate.Set(dropRate)
	padelStatsPeakDropRate.Set(stats.PeakDropRate)

	// --- Tier 2: Per-worker metrics ---
	if c.perWorkerEnabled && len(stats.PerWorkerStats) > 0 {
		for _, ws := range stats.PerWorkerStats {
			workerID := strconv.Itoa(ws.WorkerID)
			busy := float64(0)
			if ws.Busy {
				busy = 1
			}
			padelWorkerBusy.WithLabelValues(workerID).Set(busy)
			padelWorkerCompleted.WithLabelValues(workerID).Set(float64(ws.JobsCompleted))
			padelWorkerFailed.WithLabelValues(workerID).Set(float64(ws.JobsFailed))
			padelWorkerLastRuntime.WithLabelValues(workerID).Set(ws.LastRuntime.Seconds())
			c.registeredWorkerIDs[ws.WorkerID] = struct{}{}
		}
	}
}

// RecordRuntime records a single JVM runtime observation to the histogram.
func (c *Collector) RecordRuntime(d time.Duration) {
	padelJVMRuntimeSeconds.Observe(d.Seconds())
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// JVMStarted records a JVM launch event.
func (c *Collector) JVMStarted() {
	padelJVMStartsTotal.Inc()
}

// RecordExit records a JVM exit event.
func (c *Collector) RecordExit(exitCode int) {
	// Categorize exit code
	category := "error"
	if exitCode == 0 {
		category = "success"
	} else if exitCode > 128 {
		category = "signal"
	}
	padelJVMExitsTotal.WithLabelValues(category).Inc()
}

// SetActiveWorkers updates the active worker count between stats ticks.
func (c *Collector) SetActiveWorkers(count int) {
	padelActiveWorkers.Set(float64(count))
}

// SetRampProgress updates the ramp-up progress between stats ticks.
func (c *Collector) SetRampProgress(progress float64) {
	padelRampProgress.Set(progress)
}

// =============================================================================
// Cleanup Methods
// =============================================================================

// RemoveWorker removes per-worker metrics for a worker.
// Only relevant when per-worker metrics are enabled.
func (c *Collector) RemoveWorker(workerID int) {
	if !c.perWorkerEnabled {
		return
	}

	c.mu.Lock()
	delete(c.registeredWorkerIDs, workerID)
	c.mu.Unlock()

	workerIDStr := strconv.Itoa(workerID)
	padelWorkerBusy.DeleteLabelValues(workerIDStr)
	padelWorkerCompleted.DeleteLabelValues(workerIDStr)
	padelWorkerFailed.DeleteLabelValues(workerIDStr)
	padelWorkerLastRuntime.DeleteLabelValues(workerIDStr)
}

// PerWorkerEnabled returns whether per-worker metrics are enabled.
func (c *Collector) PerWorkerEnabled() bool {
	return c.perWorkerEnabled
}

// StartTime returns when the collector was created.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}
