// Package stats provides per-worker and aggregated statistics for descriptor swarm runs.
//
// This file implements WorkerStats which tracks metrics for a single JVM worker:
// - Job counts (completed, failed by kind)
// - Descriptor rows produced
// - JVM runtime distribution (T-Digest for constant memory)
// - Exit code distribution
// - Pipeline health (dropped stderr lines)
package stats

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/tdigest"
)

const (
	// SlowJobThreshold is how long a single molecule may run before the
	// worker is flagged as slow in the dashboard.
	SlowJobThreshold = 60 * time.Second

	// exitCodeBuckets covers the 0-255 exit code space.
	exitCodeBuckets = 256
)

// FailureKind classifies why a descriptor job failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureConfiguration
	FailureTimeout
	FailureProcess
	FailureParse
)

// String returns the failure kind name used in logs and metrics labels.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureConfiguration:
		return "configuration"
	case FailureTimeout:
		return "timeout"
	case FailureProcess:
		return "process"
	case FailureParse:
		return "parse"
	default:
		return "unknown"
	}
}

// WorkerStats holds per-worker statistics.
//
// Thread-safe: all fields are protected by mutexes or atomics.
type WorkerStats struct {
	WorkerID  int
	StartTime time.Time

	// Job counts (atomic, lock-free)
	JobsCompleted atomic.Int64
	JobsFailed    atomic.Int64

	// Failure kinds (atomic, lock-free)
	ConfigFailures  atomic.Int64
	TimeoutFailures atomic.Int64
	ProcessFailures atomic.Int64
	ParseFailures   atomic.Int64

	// Descriptor output
	RowsProduced      atomic.Int64
	DescriptorColumns atomic.Int64 // width of the last table seen

	// JVM lifecycle. One JVM per job, so starts == jobs attempted.
	JVMStarts atomic.Int64
	// Array indexed by exit code 0-255
	exitCodeCounts [exitCodeBuckets]atomic.Int64

	// Job runtime distribution
	runtimeDigestMu sync.Mutex // TDigest is not thread-safe
	runtimeDigest   *tdigest.TDigest
	runtimeCount    atomic.Int64
	runtimeSumNS    atomic.Int64
	minRuntimeNS    atomic.Int64 // 0 = unset
	maxRuntimeNS    atomic.Int64
	lastRuntimeNS   atomic.Int64

	// Current job (0 start time = idle)
	currentSubject  atomic.Value // string
	currentJobStart atomic.Int64 // unix nanos

	// JVM stderr events
	ExceptionsSeen atomic.Int64
	FatalsSeen     atomic.Int64

	// Pipeline health (lossy-by-design metrics, atomic, lock-free)
	StdoutLinesRead    atomic.Int64
	StdoutLinesDropped atomic.Int64
	StderrLinesRead    atomic.Int64
	StderrLinesDropped atomic.Int64
	// peakDropRate uses atomic.Uint64 with bit manipulation for lock-free max operation
	peakDropRate atomic.Uint64 // math.Float64bits(peakDropRate)
}

// NewWorkerStats creates stats for a worker.
func NewWorkerStats(workerID int) *WorkerStats {
	return &WorkerStats{
		WorkerID:      workerID,
		StartTime:     time.Now(),
		runtimeDigest: tdigest.NewWithCompression(100), // ~100 centroids, ~10KB
	}
}

// --- Job Lifecycle ---

// OnJobStart marks the worker busy with the given molecule.
func (s *WorkerStats) OnJobStart(subject string) {
	s.currentSubject.Store(subject)
	s.currentJobStart.Store(time.Now().UnixNano())
}

// RecordSuccess records a completed job and the rows it produced.
func (s *WorkerStats) RecordSuccess(runtime time.Duration, rows, columns int) {
	s.JobsCompleted.Add(1)
	s.RowsProduced.Add(int64(rows))
	if columns > 0 {
		s.DescriptorColumns.Store(int64(columns))
	}
	s.recordRuntime(runtime)
	s.clearCurrentJob()
}

// RecordFailure records a failed job by kind.
func (s *WorkerStats) RecordFailure(runtime time.Duration, kind FailureKind) {
	s.JobsFailed.Add(1)
	switch kind {
	case FailureConfiguration:
		s.ConfigFailures.Add(1)
	case FailureTimeout:
		s.TimeoutFailures.Add(1)
	case FailureProcess:
		s.ProcessFailures.Add(1)
	case FailureParse:
		s.ParseFailures.Add(1)
	}
	s.recordRuntime(runtime)
	s.clearCurrentJob()
}

// AbandonJob clears the current job without counting an outcome.
// Used when shutdown interrupts a molecule mid-flight.
func (s *WorkerStats) AbandonJob() {
	s.clearCurrentJob()
}

func (s *WorkerStats) clearCurrentJob() {
	s.currentSubject.Store("")
	s.currentJobStart.Store(0)
}

// CurrentJob returns the molecule being processed and for how long.
// active is false when the worker is idle.
func (s *WorkerStats) CurrentJob() (subject string, runtime time.Duration, active bool) {
	start := s.currentJobStart.Load()
	if start == 0 {
		return "", 0, false
	}
	if v := s.currentSubject.Load(); v != nil {
		subject = v.(string)
	}
	return subject, time.Since(time.Unix(0, start)), true
}

// IsSlow returns true if the current job has been running longer than
// SlowJobThreshold.
func (s *WorkerStats) IsSlow() bool {
	_, runtime, active := s.CurrentJob()
	return active && runtime > SlowJobThreshold
}

// --- JVM Lifecycle ---

// RecordJVMStart counts a JVM launch.
func (s *WorkerStats) RecordJVMStart() {
	s.JVMStarts.Add(1)
}

// RecordExit records a JVM exit code.
// Uses atomic operations for lock-free access.
func (s *WorkerStats) RecordExit(code int) {
	if code < 0 || code >= exitCodeBuckets {
		code = exitCodeBuckets - 1
	}
	s.exitCodeCounts[code].Add(1)
}

// GetExitCodes returns a map of exit code counts.
// Only includes codes with non-zero counts.
func (s *WorkerStats) GetExitCodes() map[int]int64 {
	result := make(map[int]int64)
	for code := 0; code < exitCodeBuckets; code++ {
		if count := s.exitCodeCounts[code].Load(); count > 0 {
			result[code] = count
		}
	}
	return result
}

// --- Runtime Distribution (T-Digest for constant memory) ---

func (s *WorkerStats) recordRuntime(d time.Duration) {
	if d <= 0 {
		return
	}
	ns := int64(d)

	s.runtimeDigestMu.Lock()
	s.runtimeDigest.Add(float64(ns), 1)
	s.runtimeDigestMu.Unlock()

	s.runtimeCount.Add(1)
	s.runtimeSumNS.Add(ns)
	s.lastRuntimeNS.Store(ns)

	// Update min using CAS loop (0 means unset)
	for {
		old := s.minRuntimeNS.Load()
		if old != 0 && ns >= old {
			break
		}
		if s.minRuntimeNS.CompareAndSwap(old, ns) {
			break
		}
		// Retry on CAS failure (another goroutine updated it)
	}

	// Update max using CAS loop
	for {
		old := s.maxRuntimeNS.Load()
		if ns <= old {
			break
		}
		if s.maxRuntimeNS.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RuntimePercentile returns the given runtime quantile (0 when no jobs
// have finished yet).
func (s *WorkerStats) RuntimePercentile(q float64) time.Duration {
	if s.runtimeCount.Load() == 0 {
		return 0
	}
	s.runtimeDigestMu.Lock()
	defer s.runtimeDigestMu.Unlock()
	return time.Duration(s.runtimeDigest.Quantile(q))
}

// MeanRuntime returns the average job runtime.
func (s *WorkerStats) MeanRuntime() time.Duration {
	count := s.runtimeCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.runtimeSumNS.Load() / count)
}

// MinRuntime returns the fastest job runtime seen.
func (s *WorkerStats) MinRuntime() time.Duration {
	return time.Duration(s.minRuntimeNS.Load())
}

// MaxRuntime returns the slowest job runtime seen.
func (s *WorkerStats) MaxRuntime() time.Duration {
	return time.Duration(s.maxRuntimeNS.Load())
}

// LastRuntime returns the most recent job runtime.
func (s *WorkerStats) LastRuntime() time.Duration {
	return time.Duration(s.lastRuntimeNS.Load())
}

// --- JVM Stderr Events ---

// RecordStderrEvent counts a classified stderr event from the JVM.
func (s *WorkerStats) RecordStderrEvent(fatal bool) {
	s.ExceptionsSeen.Add(1)
	if fatal {
		s.FatalsSeen.Add(1)
	}
}

// --- Pipeline Health ---

// RecordPipelineStats accumulates one job's output pipeline totals,
// split by stream. Pipelines are created fresh per JVM invocation, so
// the arguments are that job's counts, added to the worker lifetime
// totals here. The job's own combined drop rate feeds the peak
// tracking so a single overwhelmed job is visible even after quiet
// ones dilute the lifetime rate.
// Uses atomic operations for lock-free access.
func (s *WorkerStats) RecordPipelineStats(stdoutRead, stdoutDropped, stderrRead, stderrDropped int64) {
	s.StdoutLinesRead.Add(stdoutRead)
	s.StdoutLinesDropped.Add(stdoutDropped)
	s.StderrLinesRead.Add(stderrRead)
	s.StderrLinesDropped.Add(stderrDropped)

	read := stdoutRead + stderrRead
	dropped := stdoutDropped + stderrDropped
	var jobRate float64
	if read > 0 {
		jobRate = float64(dropped) / float64(read)
	}

	// Track peak drop rate using CAS loop for lock-free max operation
	for {
		oldBits := s.peakDropRate.Load()
		oldRate := math.Float64frombits(oldBits)
		if jobRate <= oldRate {
			break // No update needed
		}
		newBits := math.Float64bits(jobRate)
		if s.peakDropRate.CompareAndSwap(oldBits, newBits) {
			break // Successfully updated
		}
		// Retry on CAS failure (another goroutine updated it)
	}
}

// CurrentDropRate returns the lifetime combined drop rate (0.0 to 1.0)
// across both streams and all jobs this worker has run.
// Uses atomic operations for lock-free access.
func (s *WorkerStats) CurrentDropRate() float64 {
	read := s.StdoutLinesRead.Load() + s.StderrLinesRead.Load()
	dropped := s.StdoutLinesDropped.Load() + s.StderrLinesDropped.Load()
	if read == 0 {
		return 0
	}
	return float64(dropped) / float64(read)
}

// MetricsDegraded returns true if drop rate exceeds threshold.
// threshold is typically 0.01 (1%) but can be configured.
func (s *WorkerStats) MetricsDegraded(threshold float64) bool {
	return s.CurrentDropRate() > threshold
}

// GetPeakDropRate returns the highest drop rate observed.
// Uses atomic operations for lock-free access.
func (s *WorkerStats) GetPeakDropRate() float64 {
	return math.Float64frombits(s.peakDropRate.Load())
}

// --- Uptime ---

// Uptime returns how long this worker has been running.
func (s *WorkerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// --- Summary ---

// Summary returns a snapshot of key metrics.
type Summary struct {
	WorkerID        int
	Uptime          time.Duration
	JobsCompleted   int64
	JobsFailed      int64
	ConfigFailures  int64
	TimeoutFailures int64
	ProcessFailures int64
	ParseFailures   int64
	RowsProduced    int64
	JVMStarts       int64
	ExitCodes       map[int]int64
	LastRuntime     time.Duration
	MinRuntime      time.Duration
	MaxRuntime      time.Duration
	MeanRuntime     time.Duration
	RuntimeP50      time.Duration
	RuntimeP95      time.Duration
	CurrentSubject  string
	CurrentRuntime  time.Duration
	Active          bool
	IsSlow          bool
	ExceptionsSeen  int64
	DropRate        float64
	PeakDropRate    float64
}

// GetSummary returns a snapshot of all key metrics.
func (s *WorkerStats) GetSummary() Summary {
	subject, currentRuntime, active := s.CurrentJob()

	return Summary{
		WorkerID:        s.WorkerID,
		Uptime:          s.Uptime(),
		JobsCompleted:   s.JobsCompleted.Load(),
		JobsFailed:      s.JobsFailed.Load(),
		ConfigFailures:  s.ConfigFailures.Load(),
		TimeoutFailures: s.TimeoutFailures.Load(),
		ProcessFailures: s.ProcessFailures.Load(),
		ParseFailures:   s.ParseFailures.Load(),
		RowsProduced:    s.RowsProduced.Load(),
		JVMStarts:       s.JVMStarts.Load(),
		ExitCodes:       s.GetExitCodes(),
		LastRuntime:     s.LastRuntime(),
		MinRuntime:      s.MinRuntime(),
		MaxRuntime:      s.MaxRuntime(),
		MeanRuntime:     s.MeanRuntime(),
		RuntimeP50:      s.RuntimePercentile(0.50),
		RuntimeP95:      s.RuntimePercentile(0.95),
		CurrentSubject:  subject,
		CurrentRuntime:  currentRuntime,
		Active:          active,
		IsSlow:          s.IsSlow(),
		ExceptionsSeen:  s.ExceptionsSeen.Load(),
		DropRate:        s.CurrentDropRate(),
		PeakDropRate:    s.GetPeakDropRate(),
	}
}
