package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-padel-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-padel-swarm/internal/stats"
)

// Computer runs one descriptor invocation for one molecule. Satisfied
// by *descriptor.Calculator.
type Computer interface {
	ComputeJob(ctx context.Context, jobID int, mol descriptor.Molecule) (*descriptor.Result, error)
}

// PoolCallbacks contains optional callbacks for pool events.
type PoolCallbacks struct {
	// OnWorkerStarted is called when a worker goroutine begins.
	OnWorkerStarted func(workerID int)

	// OnWorkerStopped is called when a worker goroutine exits.
	OnWorkerStopped func(workerID int)

	// OnJobFinished is called once per processed molecule with the
	// job's wall time. err is nil on success. Not called for jobs
	// abandoned by cancellation.
	OnJobFinished func(jobID int, runtime time.Duration, err error)
}

// PoolConfig holds configuration for the WorkerPool.
type PoolConfig struct {
	Workers    int
	Molecules  []descriptor.Molecule
	Logger     *slog.Logger
	Aggregator *stats.StatsAggregator
	Ramp       *RampScheduler
	Callbacks  PoolCallbacks
}

// WorkerPool fans molecules out to N workers, each sequentially running
// one JVM invocation per molecule. Results land in a slice indexed by
// job ID (the molecule's input position), so the merged table preserves
// input order no matter which worker finished first.
type WorkerPool struct {
	workers    int
	molecules  []descriptor.Molecule
	logger     *slog.Logger
	aggregator *stats.StatsAggregator
	ramp       *RampScheduler
	callbacks  PoolCallbacks

	jobs    chan int
	results []*descriptor.Result
	errs    []error

	// jobID -> *stats.WorkerStats while the job is in flight, so the
	// calculator hooks can attribute JVM events to the right worker.
	owners sync.Map

	// Windowed runtime distribution. Lock-free so all workers can
	// record; the stats loop drains it each tick for instant P50/P95.
	window *stats.RuntimeHistogram

	failures *stats.FailureLog

	activeWorkers  atomic.Int64
	startedWorkers atomic.Int64
	completedJobs  atomic.Int64
	failedJobs     atomic.Int64

	wg sync.WaitGroup
}

// failureLogCapacity bounds the recent-failures ring shown in the TUI.
const failureLogCapacity = 32

// NewWorkerPool creates a pool. Run starts the workers.
func NewWorkerPool(cfg PoolConfig) *WorkerPool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	// More workers than molecules just burns heap on idle JVM slots.
	if len(cfg.Molecules) > 0 && workers > len(cfg.Molecules) {
		workers = len(cfg.Molecules)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerPool{
		workers:    workers,
		molecules:  cfg.Molecules,
		logger:     logger,
		aggregator: cfg.Aggregator,
		ramp:       cfg.Ramp,
		callbacks:  cfg.Callbacks,
		jobs:       make(chan int, len(cfg.Molecules)),
		results:    make([]*descriptor.Result, len(cfg.Molecules)),
		errs:       make([]error, len(cfg.Molecules)),
		window:     stats.NewRuntimeHistogram(),
		failures:   stats.NewFailureLog(failureLogCapacity),
	}
}

// Run launches the workers (paced by the ramp scheduler) and blocks
// until every molecule has been processed or the context is cancelled.
// On cancellation, in-flight invocations are terminated by their
// supervisors; Run still waits for every worker to come home.
func (p *WorkerPool) Run(ctx context.Context, calc Computer) error {
	for i := range p.molecules {
		p.jobs <- i
	}
	close(p.jobs)

	p.logger.Info("ramp_starting",
		"workers", p.workers,
		"molecules", len(p.molecules),
		"rate", p.ramp.Rate(),
		"estimated_duration", p.ramp.EstimatedRampDuration(p.workers).String(),
	)

	for i := 0; i < p.workers; i++ {
		if ctx.Err() != nil {
			p.logger.Info("ramp_cancelled", "started", i, "target", p.workers)
			break
		}
		if i > 0 {
			if err := p.ramp.Schedule(ctx, i); err != nil {
				p.logger.Info("ramp_cancelled", "started", i, "target", p.workers)
				break
			}
		}
		p.startWorker(ctx, i, calc)
	}

	p.wg.Wait()
	return ctx.Err()
}

// startWorker registers the worker's stats and launches its goroutine.
func (p *WorkerPool) startWorker(ctx context.Context, workerID int, calc Computer) {
	ws := stats.NewWorkerStats(workerID)
	if p.aggregator != nil {
		p.aggregator.AddWorker(workerID, ws)
	}
	p.startedWorkers.Add(1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runWorker(ctx, workerID, ws, calc)
	}()
}

// runWorker sequentially drains the job queue until it is empty or the
// context is cancelled.
func (p *WorkerPool) runWorker(ctx context.Context, workerID int, ws *stats.WorkerStats, calc Computer) {
	p.activeWorkers.Add(1)
	if p.callbacks.OnWorkerStarted != nil {
		p.callbacks.OnWorkerStarted(workerID)
	}
	p.logger.Debug("worker_started", "worker_id", workerID)

	defer func() {
		p.activeWorkers.Add(-1)
		if p.callbacks.OnWorkerStopped != nil {
			p.callbacks.OnWorkerStopped(workerID)
		}
		p.logger.Debug("worker_stopped", "worker_id", workerID)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.jobs:
			if !ok {
				return
			}
			p.runJob(ctx, jobID, ws, calc)
		}
	}
}

// runJob processes one molecule and records the outcome.
func (p *WorkerPool) runJob(ctx context.Context, jobID int, ws *stats.WorkerStats, calc Computer) {
	mol := p.molecules[jobID]

	ws.OnJobStart(mol.SMILES)
	p.owners.Store(jobID, ws)
	defer p.owners.Delete(jobID)

	start := time.Now()
	table, err := calc.ComputeJob(ctx, jobID, mol)
	runtime := time.Since(start)

	if err != nil {
		// A shutdown mid-molecule is not a molecule failure.
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			ws.AbandonJob()
			p.logger.Debug("job_abandoned", "job_id", jobID)
			return
		}

		kind := classifyFailure(err)
		ws.RecordFailure(runtime, kind)
		if p.aggregator != nil {
			p.aggregator.RecordRuntime(runtime)
		}
		p.window.Record(runtime)
		p.errs[jobID] = err
		p.failedJobs.Add(1)
		p.failures.Add(stats.FailureRecord{
			JobID:   jobID,
			Subject: mol.SMILES,
			Kind:    kind,
			Detail:  firstLine(err.Error()),
		})

		p.logger.Warn("molecule_failed",
			"job_id", jobID,
			"worker_id", ws.WorkerID,
			"smiles", truncateSubject(mol.SMILES),
			"kind", kind.String(),
			"runtime", runtime.String(),
			"error", err,
		)

		if p.callbacks.OnJobFinished != nil {
			p.callbacks.OnJobFinished(jobID, runtime, err)
		}
		return
	}

	ws.RecordSuccess(runtime, table.NumRows(), table.NumColumns())
	if p.aggregator != nil {
		p.aggregator.RecordRuntime(runtime)
	}
	p.window.Record(runtime)
	p.results[jobID] = table
	p.completedJobs.Add(1)

	p.logger.Debug("molecule_completed",
		"job_id", jobID,
		"worker_id", ws.WorkerID,
		"smiles", truncateSubject(mol.SMILES),
		"columns", table.NumColumns(),
		"runtime", runtime.String(),
	)

	if p.callbacks.OnJobFinished != nil {
		p.callbacks.OnJobFinished(jobID, runtime, nil)
	}
}

// WorkerFor returns the stats of the worker currently processing the
// given job, or nil when the job is not in flight. Used by the
// calculator hooks to attribute JVM events.
func (p *WorkerPool) WorkerFor(jobID int) *stats.WorkerStats {
	v, ok := p.owners.Load(jobID)
	if !ok {
		return nil
	}
	return v.(*stats.WorkerStats)
}

// MergedResult concatenates the per-molecule tables in input order.
// Failed molecules are simply absent. Returns an error when no
// molecule succeeded or when the jar produced mismatched headers.
func (p *WorkerPool) MergedResult() (*descriptor.Result, error) {
	var merged *descriptor.Result
	for _, r := range p.results {
		if r == nil {
			continue
		}
		if merged == nil {
			merged = descriptor.NewResult(r.Columns())
		}
		if err := merged.AppendFrom(r); err != nil {
			return nil, err
		}
	}
	if merged == nil {
		return nil, errors.New("no molecules succeeded")
	}
	return merged, nil
}

// Results returns the per-molecule tables, indexed by input position.
// Failed or unprocessed molecules are nil.
func (p *WorkerPool) Results() []*descriptor.Result {
	return p.results
}

// Errors returns the per-molecule failures, indexed by input position.
func (p *WorkerPool) Errors() []error {
	return p.errs
}

// RecentFailures returns up to n recent failures, newest first.
func (p *WorkerPool) RecentFailures(n int) []stats.FailureRecord {
	return p.failures.Recent(n)
}

// RuntimeWindow returns the drainable windowed runtime histogram.
func (p *WorkerPool) RuntimeWindow() *stats.RuntimeHistogram {
	return p.window
}

// Workers returns the effective worker count (capped at the molecule count).
func (p *WorkerPool) Workers() int {
	return p.workers
}

// ActiveWorkers returns the number of currently running workers.
func (p *WorkerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// StartedWorkers returns the number of workers launched so far.
func (p *WorkerPool) StartedWorkers() int {
	return int(p.startedWorkers.Load())
}

// CompletedJobs returns the number of molecules that succeeded.
func (p *WorkerPool) CompletedJobs() int64 {
	return p.completedJobs.Load()
}

// FailedJobs returns the number of molecules that failed.
func (p *WorkerPool) FailedJobs() int64 {
	return p.failedJobs.Load()
}

// ProcessedJobs returns completed + failed.
func (p *WorkerPool) ProcessedJobs() int64 {
	return p.completedJobs.Load() + p.failedJobs.Load()
}

// classifyFailure maps a Compute error onto the stats failure kinds.
func classifyFailure(err error) stats.FailureKind {
	var (
		confErr    *descriptor.ConfigurationError
		timeoutErr *descriptor.TimeoutError
		procErr    *descriptor.ProcessError
		parseErr   *descriptor.ParseError
	)
	switch {
	case errors.As(err, &confErr):
		return stats.FailureConfiguration
	case errors.As(err, &timeoutErr):
		return stats.FailureTimeout
	case errors.As(err, &procErr):
		return stats.FailureProcess
	case errors.As(err, &parseErr):
		return stats.FailureParse
	default:
		return stats.FailureProcess
	}
}

// truncateSubject bounds SMILES length in log lines. Macromolecule
// SMILES run to thousands of characters.
func truncateSubject(s string) string {
	const max = 48
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// firstLine trims an error message to its first line for the ring.
func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
