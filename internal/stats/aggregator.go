// This file implements StatsAggregator which combines per-worker stats
// into swarm-wide aggregate metrics for the TUI, the Prometheus collector,
// and the exit summary.
package stats

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/tdigest"
	"gonum.org/v1/gonum/stat"
)

// AggregatedStats holds swarm-wide statistics.
//
// This is a snapshot - values are computed at the time of Aggregate() call.
type AggregatedStats struct {
	Timestamp time.Time

	// Worker counts
	TotalWorkers int
	BusyWorkers  int
	IdleWorkers  int
	SlowWorkers  int

	// Molecule totals
	TotalCompleted int64
	TotalFailed    int64
	TotalProcessed int64
	TotalRows      int64

	// Widest descriptor table seen across workers
	DescriptorColumns int64

	// Failure kinds
	ConfigFailures  int64
	TimeoutFailures int64
	ProcessFailures int64
	ParseFailures   int64

	// Failure rate: failed / processed
	FailureRate float64

	// Rates (per second) - calculated from aggregator start time
	MoleculesPerSec float64
	RowsPerSec      float64

	// Instantaneous rates (per second) - calculated between snapshots
	InstantMoleculesPerSec float64

	// JVM lifecycle
	TotalJVMStarts int64
	ExitCodes      map[int]int64

	// Runtime distribution across the whole swarm
	RuntimeP50    time.Duration
	RuntimeP95    time.Duration
	RuntimeP99    time.Duration
	MeanRuntime   time.Duration
	StdDevRuntime time.Duration
	MinRuntime    time.Duration
	MaxRuntime    time.Duration

	// JVM stderr events
	TotalExceptions int64
	TotalFatals     int64

	// Pipeline health (lossy-by-design)
	TotalLinesRead     int64
	TotalLinesDropped  int64
	StdoutLinesRead    int64
	StdoutLinesDropped int64
	StderrLinesRead    int64
	StderrLinesDropped int64
	WorkersWithDrops   int
	MetricsDegraded    bool
	PeakDropRate       float64

	// Per-worker summaries for detailed display
	PerWorkerSummaries []Summary
}

// rateSnapshot captures counters at a point in time for instant rate math.
type rateSnapshot struct {
	timestamp time.Time
	completed int64
	rows      int64
}

// StatsAggregator combines stats from multiple workers.
//
// Thread-safe: RWMutex for the worker map, mutex for the shared digest.
type StatsAggregator struct {
	mu      sync.RWMutex
	workers map[int]*WorkerStats

	startTime time.Time

	// Previous snapshot for calculating instantaneous rates
	prevSnapshot atomic.Value // *rateSnapshot

	// Drop rate threshold for MetricsDegraded
	dropThreshold float64

	// Peak drop rate across all workers (atomic.Uint64 holds Float64bits)
	peakDropRate atomic.Uint64

	// Swarm-wide runtime distribution. Fed directly per finished job so
	// percentiles never depend on merging per-worker digests.
	runtimeDigestMu sync.Mutex // TDigest is not thread-safe
	runtimeDigest   *tdigest.TDigest
	// Raw samples in seconds, kept for the exit report histogram. One
	// float64 per molecule, so a batch of 100k molecules costs ~800KB.
	runtimeSamples []float64
	runtimeCount   atomic.Int64
	runtimeSumNS   atomic.Int64
	minRuntimeNS   atomic.Int64 // 0 = unset
	maxRuntimeNS   atomic.Int64
}

// NewStatsAggregator creates an aggregator.
// dropThreshold is the drop rate (0.0-1.0) above which metrics are considered
// degraded. Typically 0.01 (1%).
func NewStatsAggregator(dropThreshold float64) *StatsAggregator {
	if dropThreshold <= 0 {
		dropThreshold = 0.01 // Default 1%
	}
	return &StatsAggregator{
		workers:       make(map[int]*WorkerStats),
		startTime:     time.Now(),
		dropThreshold: dropThreshold,
		runtimeDigest: tdigest.NewWithCompression(100),
	}
}

// AddWorker registers a worker's stats.
func (a *StatsAggregator) AddWorker(workerID int, stats *WorkerStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workers[workerID] = stats
}

// RemoveWorker unregisters a worker.
func (a *StatsAggregator) RemoveWorker(workerID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.workers, workerID)
}

// GetWorker returns a worker's stats.
func (a *StatsAggregator) GetWorker(workerID int) (*WorkerStats, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	stats, ok := a.workers[workerID]
	return stats, ok
}

// WorkerCount returns the number of registered workers.
func (a *StatsAggregator) WorkerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.workers)
}

// RecordRuntime feeds a finished job's runtime into the swarm-wide
// distribution. Called once per job in addition to the per-worker record.
func (a *StatsAggregator) RecordRuntime(d time.Duration) {
	if d <= 0 {
		return
	}
	ns := int64(d)

	a.runtimeDigestMu.Lock()
	a.runtimeDigest.Add(float64(ns), 1)
	a.runtimeSamples = append(a.runtimeSamples, d.Seconds())
	a.runtimeDigestMu.Unlock()

	a.runtimeCount.Add(1)
	a.runtimeSumNS.Add(ns)

	for {
		old := a.minRuntimeNS.Load()
		if old != 0 && ns >= old {
			break
		}
		if a.minRuntimeNS.CompareAndSwap(old, ns) {
			break
		}
	}

	for {
		old := a.maxRuntimeNS.Load()
		if ns <= old {
			break
		}
		if a.maxRuntimeNS.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RuntimePercentile returns a swarm-wide runtime quantile.
func (a *StatsAggregator) RuntimePercentile(q float64) time.Duration {
	if a.runtimeCount.Load() == 0 {
		return 0
	}
	a.runtimeDigestMu.Lock()
	defer a.runtimeDigestMu.Unlock()
	return time.Duration(a.runtimeDigest.Quantile(q))
}

// RuntimeSamples returns a copy of all job runtimes in seconds, in
// completion order. Feeds the exit report histogram.
func (a *StatsAggregator) RuntimeSamples() []float64 {
	a.runtimeDigestMu.Lock()
	defer a.runtimeDigestMu.Unlock()
	out := make([]float64, len(a.runtimeSamples))
	copy(out, a.runtimeSamples)
	return out
}

// Aggregate combines all worker stats into swarm-wide metrics.
func (a *StatsAggregator) Aggregate() *AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := time.Now()
	agg := &AggregatedStats{
		Timestamp:    now,
		TotalWorkers: len(a.workers),
		ExitCodes:    make(map[int]int64),
	}

	for _, w := range a.workers {
		agg.TotalCompleted += w.JobsCompleted.Load()
		agg.TotalFailed += w.JobsFailed.Load()
		agg.TotalRows += w.RowsProduced.Load()

		if cols := w.DescriptorColumns.Load(); cols > agg.DescriptorColumns {
			agg.DescriptorColumns = cols
		}

		agg.ConfigFailures += w.ConfigFailures.Load()
		agg.TimeoutFailures += w.TimeoutFailures.Load()
		agg.ProcessFailures += w.ProcessFailures.Load()
		agg.ParseFailures += w.ParseFailures.Load()

		agg.TotalJVMStarts += w.JVMStarts.Load()
		for code, count := range w.GetExitCodes() {
			agg.ExitCodes[code] += count
		}

		agg.TotalExceptions += w.ExceptionsSeen.Load()
		agg.TotalFatals += w.FatalsSeen.Load()

		stdoutRead := w.StdoutLinesRead.Load()
		stdoutDropped := w.StdoutLinesDropped.Load()
		stderrRead := w.StderrLinesRead.Load()
		stderrDropped := w.StderrLinesDropped.Load()
		agg.StdoutLinesRead += stdoutRead
		agg.StdoutLinesDropped += stdoutDropped
		agg.StderrLinesRead += stderrRead
		agg.StderrLinesDropped += stderrDropped
		agg.TotalLinesRead += stdoutRead + stderrRead
		agg.TotalLinesDropped += stdoutDropped + stderrDropped
		if stdoutDropped+stderrDropped > 0 {
			agg.WorkersWithDrops++
		}

		if peak := w.GetPeakDropRate(); peak > agg.PeakDropRate {
			agg.PeakDropRate = peak
		}

		if _, _, active := w.CurrentJob(); active {
			agg.BusyWorkers++
			if w.IsSlow() {
				agg.SlowWorkers++
			}
		} else {
			agg.IdleWorkers++
		}
	}

	agg.TotalProcessed = agg.TotalCompleted + agg.TotalFailed
	if agg.TotalProcessed > 0 {
		agg.FailureRate = float64(agg.TotalFailed) / float64(agg.TotalProcessed)
	}

	// Rates from aggregator start
	elapsed := now.Sub(a.startTime).Seconds()
	if elapsed > 0 {
		agg.MoleculesPerSec = float64(agg.TotalProcessed) / elapsed
		agg.RowsPerSec = float64(agg.TotalRows) / elapsed
	}

	// Instantaneous rates from previous snapshot
	if prev, ok := a.prevSnapshot.Load().(*rateSnapshot); ok && prev != nil {
		dt := now.Sub(prev.timestamp).Seconds()
		if dt > 0 {
			agg.InstantMoleculesPerSec = float64(agg.TotalProcessed-prev.completed) / dt
		}
	}
	a.prevSnapshot.Store(&rateSnapshot{
		timestamp: now,
		completed: agg.TotalProcessed,
		rows:      agg.TotalRows,
	})

	// Runtime distribution from the shared digest
	agg.RuntimeP50 = a.RuntimePercentile(0.50)
	agg.RuntimeP95 = a.RuntimePercentile(0.95)
	agg.RuntimeP99 = a.RuntimePercentile(0.99)
	agg.MinRuntime = time.Duration(a.minRuntimeNS.Load())
	agg.MaxRuntime = time.Duration(a.maxRuntimeNS.Load())

	a.runtimeDigestMu.Lock()
	if len(a.runtimeSamples) > 0 {
		mean := stat.Mean(a.runtimeSamples, nil)
		agg.MeanRuntime = time.Duration(mean * float64(time.Second))
		if len(a.runtimeSamples) > 1 {
			sd := stat.StdDev(a.runtimeSamples, nil)
			agg.StdDevRuntime = time.Duration(sd * float64(time.Second))
		}
	}
	a.runtimeDigestMu.Unlock()

	// Per-worker summaries, ordered by worker ID for stable display
	agg.PerWorkerSummaries = make([]Summary, 0, len(a.workers))
	for _, w := range a.workers {
		agg.PerWorkerSummaries = append(agg.PerWorkerSummaries, w.GetSummary())
	}
	sort.Slice(agg.PerWorkerSummaries, func(i, j int) bool {
		return agg.PerWorkerSummaries[i].WorkerID < agg.PerWorkerSummaries[j].WorkerID
	})

	agg.MetricsDegraded = agg.PeakDropRate > a.dropThreshold

	// Track all-time peak across Aggregate calls
	for {
		oldBits := a.peakDropRate.Load()
		oldRate := math.Float64frombits(oldBits)
		if agg.PeakDropRate <= oldRate {
			break
		}
		newBits := math.Float64bits(agg.PeakDropRate)
		if a.peakDropRate.CompareAndSwap(oldBits, newBits) {
			break
		}
	}

	return agg
}

// GetPeakDropRate returns the highest drop rate seen across all Aggregate
// calls, even if the worker that hit it has since been removed.
func (a *StatsAggregator) GetPeakDropRate() float64 {
	return math.Float64frombits(a.peakDropRate.Load())
}

// StartTime returns when the aggregator was created.
func (a *StatsAggregator) StartTime() time.Time {
	return a.startTime
}

// Elapsed returns time since the aggregator was created.
func (a *StatsAggregator) Elapsed() time.Duration {
	return time.Since(a.startTime)
}

// Reset clears all worker stats and the shared runtime distribution.
func (a *StatsAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.workers = make(map[int]*WorkerStats)
	a.startTime = time.Now()
	a.prevSnapshot.Store((*rateSnapshot)(nil))
	a.peakDropRate.Store(0)

	a.runtimeDigestMu.Lock()
	*a.runtimeDigest = *tdigest.NewWithCompression(100)
	a.runtimeSamples = nil
	a.runtimeDigestMu.Unlock()

	a.runtimeCount.Store(0)
	a.runtimeSumNS.Store(0)
	a.minRuntimeNS.Store(0)
	a.maxRuntimeNS.Store(0)
}

// ForEachWorker calls fn for each registered worker.
// Holds read lock during iteration - keep fn fast.
func (a *StatsAggregator) ForEachWorker(fn func(workerID int, stats *WorkerStats)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for id, stats := range a.workers {
		fn(id, stats)
	}
}

// GetAllWorkerSummaries returns summaries for all registered workers.
func (a *StatsAggregator) GetAllWorkerSummaries() map[int]Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	summaries := make(map[int]Summary, len(a.workers))
	for id, stats := range a.workers {
		summaries[id] = stats.GetSummary()
	}
	return summaries
}
