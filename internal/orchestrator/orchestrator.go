package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-padel-swarm/internal/config"
	"github.com/randomizedcoder/go-padel-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-padel-swarm/internal/metrics"
	"github.com/randomizedcoder/go-padel-swarm/internal/parser"
	"github.com/randomizedcoder/go-padel-swarm/internal/preflight"
	"github.com/randomizedcoder/go-padel-swarm/internal/process"
	"github.com/randomizedcoder/go-padel-swarm/internal/report"
	"github.com/randomizedcoder/go-padel-swarm/internal/stats"
	"github.com/randomizedcoder/go-padel-swarm/internal/supervisor"
	"github.com/randomizedcoder/go-padel-swarm/internal/timeseries"
	"github.com/randomizedcoder/go-padel-swarm/internal/tui"
)

// statsInterval is how often the stats loop samples the tracker,
// refreshes Prometheus, and (without the TUI) logs progress.
const statsInterval = 2 * time.Second

// Orchestrator coordinates a full descriptor run: input loading,
// preflight, the worker pool, metrics, the TUI, and the merged output
// table.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger

	ramp       *RampScheduler
	aggregator *stats.StatsAggregator
	tracker    *timeseries.CompletionTracker

	// Set during Run.
	pool           *WorkerPool
	collector      *metrics.Collector
	totalMolecules int

	startTime time.Time
}

// New creates an Orchestrator for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		config:     cfg,
		logger:     logger,
		ramp:       NewRampScheduler(cfg.RampRate, cfg.RampJitter),
		aggregator: stats.NewStatsAggregator(cfg.StatsDropThreshold),
		tracker:    timeseries.NewCompletionTracker(),
	}
}

// Run executes the descriptor run. It blocks until every molecule has
// been processed, a signal arrives, or the TUI user quits. Rows
// computed before an interrupt are still written to the output.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	molecules, err := o.loadMolecules()
	if err != nil {
		return err
	}
	o.totalMolecules = len(molecules)

	jarPath := o.config.JarPath
	if jarPath == "" {
		jarPath = process.DefaultJarPath()
	}

	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.config.Workers, o.config.JavaPath, jarPath, o.config.TempDir, o.config.HeapSize)
		preflight.PrintResults(result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	javaVersion := o.probeJavaVersion(ctx)

	o.logger.Info("run_starting",
		"molecules", o.totalMolecules,
		"workers", o.config.Workers,
		"java_version", javaVersion,
		"jar", jarPath,
		"timeout", o.config.Timeout.String(),
		"output", o.config.OutputPath,
	)

	runner := process.NewPaDELRunner(o.padelConfig(jarPath))

	workspace, err := descriptor.NewWorkspace(o.config.TempDir, o.config.KeepTemp, o.logger)
	if err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}

	// Metrics are optional; an empty address disables the whole stack.
	var (
		metricsServer *metrics.Server
		watcher       *metrics.WorkspaceWatcher
	)
	if o.config.MetricsAddr != "" {
		o.collector = metrics.NewCollector(metrics.CollectorConfig{
			TargetWorkers:    o.config.Workers,
			TotalMolecules:   o.totalMolecules,
			JarPath:          jarPath,
			JavaVersion:      javaVersion,
			PerWorkerMetrics: o.config.PromWorkerMetrics,
		})
		metricsServer = metrics.NewServer(o.config.MetricsAddr, prometheus.DefaultGatherer, o.logger)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		watcher = metrics.NewWorkspaceWatcher(workspace.Dir(), 2*time.Second, 60*time.Second, o.logger)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if watcher != nil {
		go watcher.Run(ctx)
	}

	o.pool = NewWorkerPool(PoolConfig{
		Workers:    o.config.Workers,
		Molecules:  molecules,
		Logger:     o.logger,
		Aggregator: o.aggregator,
		Ramp:       o.ramp,
		Callbacks: PoolCallbacks{
			OnWorkerStarted: o.onWorkerStarted,
			OnWorkerStopped: o.onWorkerStopped,
			OnJobFinished:   o.onJobFinished,
		},
	})

	calc, err := descriptor.NewCalculator(descriptor.CalculatorConfig{
		Runner:             runner,
		Workspace:          workspace,
		Logger:             o.logger,
		Timeout:            o.config.Timeout,
		Reap:               supervisor.ReapConfig{Grace: o.config.KillGrace},
		CaptureStderr:      o.config.StatsEnabled,
		StatsBufferSize:    o.config.StatsBufferSize,
		StatsDropThreshold: o.config.StatsDropThreshold,
		Verbose:            o.config.Verbose,
		Hooks:              o.calculatorHooks(),
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		if err := o.pool.Run(ctx, calc); err != nil {
			o.logger.Info("run_cancelled", "error", err)
		}
	}()

	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		o.statsLoop(ctx, poolDone)
	}()

	if o.useTUI() {
		model := tui.New(tui.Config{
			TargetWorkers:  o.pool.Workers(),
			TotalMolecules: o.totalMolecules,
			MetricsAddr:    o.config.MetricsAddr,
			OutputPath:     o.config.OutputPath,
			StatsSource:    o,
			Tracker:        o.tracker,
			FailureSource:  o.pool,
		})
		program := tea.NewProgram(model, tea.WithAltScreen())
		go func() {
			<-poolDone
			tui.SendQuit(program)
		}()
		if _, err := program.Run(); err != nil {
			o.logger.Warn("tui_failed", "error", err)
		}
		// The user may have quit mid-run.
		cancel()
	}

	<-poolDone
	<-statsDone

	// Final aggregate so the dump and exit summary see the whole run.
	finalStats := o.aggregator.Aggregate()
	if o.collector != nil {
		o.collector.RecordStats(o.statsUpdate(finalStats))
		o.collector.SetActiveWorkers(0)
	}

	merged, mergeErr := o.pool.MergedResult()
	var writeErr error
	if mergeErr == nil {
		if writeErr = merged.WriteFile(o.config.OutputPath); writeErr != nil {
			o.logger.Error("output_write_failed", "path", o.config.OutputPath, "error", writeErr)
		} else {
			o.logger.Info("output_written",
				"path", o.config.OutputPath,
				"rows", merged.NumRows(),
				"columns", merged.NumColumns(),
			)
		}
	} else {
		o.logger.Error("no_output", "error", mergeErr)
	}

	reportPath := ""
	if o.config.ReportPNG != "" {
		if err := report.WriteLatencyHistogram(o.config.ReportPNG, o.aggregator.RuntimeSamples()); err != nil {
			o.logger.Warn("report_failed", "path", o.config.ReportPNG, "error", err)
		} else {
			o.logger.Info("report_written", "path", o.config.ReportPNG)
			reportPath = o.config.ReportPNG
		}
	}

	if o.config.MetricsDump != "" && o.collector != nil {
		if err := metrics.DumpMetrics(o.config.MetricsDump, prometheus.DefaultGatherer); err != nil {
			o.logger.Warn("metrics_dump_failed", "path", o.config.MetricsDump, "error", err)
		}
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
		shutdownCancel()
	}

	o.printExitSummary(finalStats, reportPath)

	if writeErr != nil {
		return writeErr
	}
	return mergeErr
}

// loadMolecules gathers the input set: inline SMILES first, then the
// input file, preserving order.
func (o *Orchestrator) loadMolecules() ([]descriptor.Molecule, error) {
	molecules := make([]descriptor.Molecule, 0, len(o.config.SMILES))
	for _, s := range o.config.SMILES {
		molecules = append(molecules, descriptor.Molecule{SMILES: s})
	}
	if o.config.InputFile != "" {
		fromFile, err := descriptor.ReadMolecules(o.config.InputFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", o.config.InputFile, err)
		}
		molecules = append(molecules, fromFile...)
	}
	if len(molecules) == 0 {
		return nil, errors.New("no molecules to process")
	}
	return molecules, nil
}

// probeJavaVersion runs java -version once so the info metric and exit
// summary can report the runtime. Failure is not fatal here; the
// calculator re-checks availability and returns a proper error.
func (o *Orchestrator) probeJavaVersion(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	banner, err := process.ProbeJava(probeCtx, o.config.JavaPath)
	if err != nil {
		o.logger.Warn("java_probe_failed", "error", err)
		return "unknown"
	}
	if v := process.ParseJavaVersion(banner); v != "" {
		return v
	}
	return "unknown"
}

// padelConfig maps flag values onto the runner configuration.
func (o *Orchestrator) padelConfig(jarPath string) *process.PaDELConfig {
	return &process.PaDELConfig{
		JavaPath: o.config.JavaPath,
		JarPath:  jarPath,
		HeapSize: o.config.HeapSize,
		Headless: o.config.Headless,
		Options: process.Options{
			MaxRuntime:           o.config.MaxRuntime,
			WaitingJobs:          o.config.WaitingJobs,
			Threads:              o.config.PaDELThreads,
			MaxCompoundsPerFile:  o.config.MaxCompoundsPerFile,
			TwoD:                 o.config.TwoD,
			ThreeD:               o.config.ThreeD,
			ConfigFile:           o.config.PaDELConfigFile,
			Convert3D:            o.config.Convert3D,
			DescriptorTypes:      o.config.DescriptorTypes,
			DetectAromaticity:    o.config.DetectAromaticity,
			Fingerprints:         o.config.Fingerprints,
			Log:                  o.config.PaDELLog,
			RemoveSalt:           o.config.RemoveSalt,
			Retain3D:             o.config.Retain3D,
			RetainOrder:          o.config.RetainOrder,
			StandardizeNitro:     o.config.StandardizeNitro,
			StandardizeTautomers: o.config.StandardizeTautomers,
			TautomerList:         o.config.TautomerList,
			UseFilenameAsMolName: o.config.UseFilenameAsMolName,
		},
	}
}

// useTUI reports whether the live dashboard should run. Writing the
// descriptor table to stdout rules it out regardless of the flag.
func (o *Orchestrator) useTUI() bool {
	return o.config.TUIEnabled && !o.config.WritesToStdout()
}

// =============================================================================
// Callbacks
// =============================================================================

func (o *Orchestrator) onWorkerStarted(workerID int) {
	if o.collector == nil {
		return
	}
	o.collector.SetActiveWorkers(o.pool.ActiveWorkers())
	if target := o.pool.Workers(); target > 0 {
		o.collector.SetRampProgress(float64(o.pool.StartedWorkers()) / float64(target))
	}
}

func (o *Orchestrator) onWorkerStopped(workerID int) {
	if o.collector != nil {
		o.collector.SetActiveWorkers(o.pool.ActiveWorkers())
	}
}

func (o *Orchestrator) onJobFinished(jobID int, runtime time.Duration, err error) {
	o.tracker.AddCompleted(1)
	if o.collector != nil {
		o.collector.RecordRuntime(runtime)
	}
}

// calculatorHooks routes per-invocation JVM events to the stats of
// whichever worker owns the job, plus the Prometheus collector.
func (o *Orchestrator) calculatorHooks() descriptor.Hooks {
	return descriptor.Hooks{
		OnJVMStart: func(jobID, pid int) {
			if ws := o.pool.WorkerFor(jobID); ws != nil {
				ws.RecordJVMStart()
			}
			if o.collector != nil {
				o.collector.JVMStarted()
			}
		},
		OnJVMExit: func(jobID, exitCode int, runtime time.Duration) {
			if ws := o.pool.WorkerFor(jobID); ws != nil {
				ws.RecordExit(exitCode)
			}
			if o.collector != nil {
				o.collector.RecordExit(exitCode)
			}
		},
		OnStderrEvent: func(jobID int, ev *parser.JVMEvent) {
			if ws := o.pool.WorkerFor(jobID); ws != nil {
				ws.RecordStderrEvent(ev.Type.IsFatal())
			}
		},
		OnPipelineStats: func(jobID int, stdoutRead, stdoutDropped, stderrRead, stderrDropped int64) {
			if ws := o.pool.WorkerFor(jobID); ws != nil {
				ws.RecordPipelineStats(stdoutRead, stdoutDropped, stderrRead, stderrDropped)
			}
		},
	}
}

// =============================================================================
// Stats loop
// =============================================================================

// statsLoop periodically samples the completion tracker, refreshes the
// Prometheus collector, and (without the TUI) logs a progress line with
// windowed runtime percentiles.
func (o *Orchestrator) statsLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			o.tick()
		}
	}
}

func (o *Orchestrator) tick() {
	o.tracker.RecordSample()

	agg := o.aggregator.Aggregate()
	if o.collector != nil {
		o.collector.RecordStats(o.statsUpdate(agg))
		o.collector.SetActiveWorkers(o.pool.ActiveWorkers())
	}

	// Drain regardless of mode so the window always spans one tick.
	buckets := o.pool.RuntimeWindow().Drain()
	if o.config.TUIEnabled {
		return
	}

	eta := "unknown"
	if d, ok := o.tracker.Estimate(int64(o.totalMolecules)); ok {
		eta = d.Round(time.Second).String()
	}

	cs := o.tracker.GetStats()
	o.logger.Info("progress",
		"processed", agg.TotalProcessed,
		"total", o.totalMolecules,
		"failed", agg.TotalFailed,
		"active_workers", o.pool.ActiveWorkers(),
		"rate_60s", fmt.Sprintf("%.2f/s", cs.Rate60s),
		"window_p50", stats.RuntimePercentileFromBuckets(buckets, 0.50).Round(time.Millisecond).String(),
		"window_p95", stats.RuntimePercentileFromBuckets(buckets, 0.95).Round(time.Millisecond).String(),
		"eta", eta,
	)
}

// statsUpdate converts an aggregate into the collector's mirror struct.
func (o *Orchestrator) statsUpdate(agg *stats.AggregatedStats) *metrics.AggregatedStatsUpdate {
	u := &metrics.AggregatedStatsUpdate{
		TotalWorkers:           agg.TotalWorkers,
		BusyWorkers:            agg.BusyWorkers,
		IdleWorkers:            agg.IdleWorkers,
		SlowWorkers:            agg.SlowWorkers,
		TotalCompleted:         agg.TotalCompleted,
		TotalFailed:            agg.TotalFailed,
		TotalRows:              agg.TotalRows,
		ConfigFailures:         agg.ConfigFailures,
		TimeoutFailures:        agg.TimeoutFailures,
		ProcessFailures:        agg.ProcessFailures,
		ParseFailures:          agg.ParseFailures,
		FailureRate:            agg.FailureRate,
		MoleculesPerSec:        agg.MoleculesPerSec,
		InstantMoleculesPerSec: agg.InstantMoleculesPerSec,
		RuntimeP50:             agg.RuntimeP50,
		RuntimeP95:             agg.RuntimeP95,
		RuntimeP99:             agg.RuntimeP99,
		MaxRuntime:             agg.MaxRuntime,
		TotalExceptions:        agg.TotalExceptions,
		TotalLinesRead:         agg.TotalLinesRead,
		TotalLinesDropped:      agg.TotalLinesDropped,
		WorkersWithDrops:       agg.WorkersWithDrops,
		PeakDropRate:           agg.PeakDropRate,
		StdoutLinesRead:        agg.StdoutLinesRead,
		StdoutLinesDropped:     agg.StdoutLinesDropped,
		StderrLinesRead:        agg.StderrLinesRead,
		StderrLinesDropped:     agg.StderrLinesDropped,
	}
	if o.collector.PerWorkerEnabled() {
		u.PerWorkerStats = make([]metrics.PerWorkerStatsUpdate, 0, len(agg.PerWorkerSummaries))
		for _, s := range agg.PerWorkerSummaries {
			u.PerWorkerStats = append(u.PerWorkerStats, metrics.PerWorkerStatsUpdate{
				WorkerID:      s.WorkerID,
				Busy:          s.Active,
				JobsCompleted: s.JobsCompleted,
				JobsFailed:    s.JobsFailed,
				LastRuntime:   s.LastRuntime,
			})
		}
	}
	return u
}

// =============================================================================
// Exit summary
// =============================================================================

// printExitSummary writes the run summary. It goes to stderr when the
// descriptor table itself went to stdout.
func (o *Orchestrator) printExitSummary(agg *stats.AggregatedStats, reportPath string) {
	out := os.Stdout
	if o.config.WritesToStdout() {
		out = os.Stderr
	}
	fmt.Fprintln(out, stats.FormatExitSummary(agg, stats.SummaryConfig{
		TargetWorkers:      o.config.Workers,
		TotalMolecules:     o.totalMolecules,
		Duration:           time.Since(o.startTime),
		MetricsAddr:        o.config.MetricsAddr,
		ShowPerWorkerStats: o.config.Verbose,
		OutputPath:         o.config.OutputPath,
		ReportPNG:          reportPath,
	}))
}

// =============================================================================
// Accessors
// =============================================================================

// GetAggregatedStats returns a fresh swarm-wide snapshot. The TUI polls
// this every tick.
func (o *Orchestrator) GetAggregatedStats() *stats.AggregatedStats {
	return o.aggregator.Aggregate()
}

// Pool returns the worker pool. Nil before Run.
func (o *Orchestrator) Pool() *WorkerPool {
	return o.pool
}

// Tracker returns the completion tracker.
func (o *Orchestrator) Tracker() *timeseries.CompletionTracker {
	return o.tracker
}
