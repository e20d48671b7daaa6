package descriptor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-padel-swarm/internal/logging"
	"github.com/randomizedcoder/go-padel-swarm/internal/parser"
	"github.com/randomizedcoder/go-padel-swarm/internal/process"
	"github.com/randomizedcoder/go-padel-swarm/internal/supervisor"
)

// Hooks fan out per-invocation events so stats and metrics can observe
// calculations without this package importing either.
type Hooks struct {
	// OnJVMStart is called when a descriptor process starts.
	OnJVMStart func(jobID, pid int)

	// OnJVMExit is called when a descriptor process exits.
	OnJVMExit func(jobID, exitCode int, runtime time.Duration)

	// OnStderrEvent is called for each classified JVM stderr event.
	OnStderrEvent func(jobID int, ev *parser.JVMEvent)

	// OnPipelineStats reports output-capture health once per invocation,
	// split by stream.
	OnPipelineStats func(jobID int, stdoutRead, stdoutDropped, stderrRead, stderrDropped int64)
}

// CalculatorConfig holds configuration for creating a Calculator.
type CalculatorConfig struct {
	Runner    *process.PaDELRunner
	Workspace *Workspace
	Logger    *slog.Logger

	// Timeout is the wall-clock limit per invocation. <= 0 disables it.
	Timeout time.Duration

	// Reap paces process-group termination. Zero value gets defaults.
	Reap supervisor.ReapConfig

	// CaptureStderr classifies JVM stderr, feeding ProcessError detail
	// and the OnStderrEvent hook.
	CaptureStderr bool

	// StatsBufferSize is the per-stream line buffer between the process
	// and its parser. <= 0 gets the supervisor default.
	StatsBufferSize int

	// StatsDropThreshold is the drop rate above which a finished
	// pipeline logs at Warn. <= 0 gets the supervisor default.
	StatsDropThreshold float64

	// Verbose logs every captured JVM stderr line instead of only the
	// ones classified as warnings or errors.
	Verbose bool

	Hooks Hooks
}

// Calculator computes molecular descriptors by running one external JVM
// per invocation. Options (2D/3D/fingerprints, heap size, ...) are fixed
// at construction; each call supplies only the molecule.
type Calculator struct {
	runner        *process.PaDELRunner
	workspace     *Workspace
	logger        *slog.Logger
	timeout       time.Duration
	reap          supervisor.ReapConfig
	capture       bool
	bufferSize    int
	dropThreshold float64
	verbose       bool
	hooks         Hooks
	nextID        atomic.Int64
}

// NewCalculator validates the environment and returns a ready
// Calculator. A missing Java runtime or descriptor jar surfaces as a
// ConfigurationError here, before anything is launched or waited on.
func NewCalculator(cfg CalculatorConfig) (*Calculator, error) {
	if cfg.Runner == nil {
		return nil, errors.New("calculator needs a runner")
	}
	if cfg.Workspace == nil {
		return nil, errors.New("calculator needs a workspace")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pc := cfg.Runner.Config()
	if !process.JavaAvailable(pc.JavaPath) {
		return nil, &ConfigurationError{
			Reason: "java runtime",
			Path:   pc.JavaPath,
			Err:    exec.ErrNotFound,
		}
	}
	if _, err := process.FindJar(pc.JarPath); err != nil {
		return nil, &ConfigurationError{
			Reason: "descriptor jar",
			Path:   pc.JarPath,
			Err:    err,
		}
	}

	return &Calculator{
		runner:        cfg.Runner,
		workspace:     cfg.Workspace,
		logger:        logger,
		timeout:       cfg.Timeout,
		reap:          cfg.Reap,
		capture:       cfg.CaptureStderr,
		bufferSize:    cfg.StatsBufferSize,
		dropThreshold: cfg.StatsDropThreshold,
		verbose:       cfg.Verbose,
		hooks:         cfg.Hooks,
	}, nil
}

// Runner returns the underlying process runner.
func (c *Calculator) Runner() *process.PaDELRunner {
	return c.runner
}

// Workspace returns the scratch workspace.
func (c *Calculator) Workspace() *Workspace {
	return c.workspace
}

// Timeout returns the per-invocation wall-clock limit (0 = none).
func (c *Calculator) Timeout() time.Duration {
	return c.timeout
}

// Compute calculates descriptors for one SMILES string and returns the
// one-row table. The Name column of the row is rewritten to the SMILES
// string, matching the file-free interface callers expect.
func (c *Calculator) Compute(ctx context.Context, smiles string) (*Result, error) {
	return c.ComputeJob(ctx, int(c.nextID.Add(1)), Molecule{SMILES: smiles})
}

// ComputeJob is Compute with a caller-chosen job id (used by the worker
// pool so logs, stats, and metrics line up) and an optional molecule
// name that overrides the SMILES in the Name column.
func (c *Calculator) ComputeJob(ctx context.Context, jobID int, mol Molecule) (*Result, error) {
	if err := mol.Validate(); err != nil {
		return nil, err
	}

	scratch := c.workspace.NewScratch()
	defer c.workspace.Remove(scratch)

	if err := c.workspace.WriteInput(scratch, mol.SMILES); err != nil {
		return nil, err
	}

	job := process.Job{
		ID:         jobID,
		InputPath:  scratch.InputPath,
		OutputPath: scratch.OutputPath,
	}
	if err := c.runJob(ctx, jobID, job, mol.SMILES); err != nil {
		return nil, err
	}

	table, err := ReadFile(scratch.OutputPath)
	if err != nil {
		return nil, err
	}
	if table.NumRows() == 0 {
		return nil, &ParseError{
			Path:   scratch.OutputPath,
			Reason: "descriptor table has a header but no data rows",
		}
	}

	if table.HasColumn("Name") {
		table.SetValue(0, "Name", mol.Label())
	}

	return table, nil
}

// ComputeFile calculates descriptors for an existing molecule file (or
// a directory of molecule files). When the request has an OutputPath
// the CSV stays there; otherwise a scratch output is parsed and
// removed. Name columns are left as the jar wrote them.
func (c *Calculator) ComputeFile(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.InputPath == "" {
		return nil, errors.New("ComputeFile needs an input path; use Compute for inline SMILES")
	}

	outPath := req.OutputPath
	var scratch Scratch
	cleanup := false
	if outPath == "" {
		scratch = c.workspace.NewScratch()
		outPath = scratch.OutputPath
		cleanup = true
	}
	if cleanup {
		defer c.workspace.Remove(scratch)
	}

	jobID := int(c.nextID.Add(1))
	job := process.Job{
		ID:         jobID,
		InputPath:  req.InputPath,
		OutputPath: outPath,
	}
	if err := c.runJob(ctx, jobID, job, req.InputPath); err != nil {
		return nil, err
	}

	return ReadFile(outPath)
}

// runJob runs one descriptor process to completion and maps the
// supervisor outcome onto the typed error kinds.
func (c *Calculator) runJob(ctx context.Context, jobID int, job process.Job, subject string) error {
	var jvm *parser.JVMEventParser
	var stderrParser parser.LineParser = parser.NoopParser{}
	if c.capture {
		var emit parser.JVMEventCallback
		if h := c.hooks.OnStderrEvent; h != nil {
			emit = func(ev *parser.JVMEvent) { h(jobID, ev) }
		}
		jvm = parser.NewJVMEventParser(jobID, emit)
		// Event classification feeds stats; the stderr handler puts the
		// raw lines in the run log (all of them when verbose, otherwise
		// just warnings and errors).
		stderrParser = parser.Multi(jvm, logging.NewStderrHandler(jobID, c.logger, c.verbose))
	}

	sup := supervisor.New(supervisor.Config{
		JobID:              jobID,
		Builder:            c.runner.Bind(job),
		Logger:             c.logger,
		Timeout:            c.timeout,
		Reap:               c.reap,
		StatsEnabled:       c.capture,
		StatsBufferSize:    c.bufferSize,
		StatsDropThreshold: c.dropThreshold,
		StderrParser:       stderrParser,
		Callbacks: supervisor.Callbacks{
			OnStart: c.hooks.OnJVMStart,
			OnExit:  c.hooks.OnJVMExit,
		},
	})

	res := sup.Run(ctx)

	if h := c.hooks.OnPipelineStats; h != nil && c.capture {
		stdoutRead, stdoutDropped, stderrRead, stderrDropped := sup.PipelineStats()
		h(jobID, stdoutRead, stdoutDropped, stderrRead, stderrDropped)
	}

	switch {
	case !res.Started:
		return &ConfigurationError{
			Reason: "launch descriptor process",
			Path:   c.runner.Config().JavaPath,
			Err:    res.Err,
		}

	case res.TimedOut:
		return &TimeoutError{SMILES: subject, Timeout: c.timeout}

	case res.Canceled:
		if err := ctx.Err(); err != nil {
			return err
		}
		return res.Err

	case res.ExitCode != 0:
		perr := &ProcessError{
			SMILES:   subject,
			ExitCode: res.ExitCode,
			Err:      res.Err,
		}
		if jvm != nil {
			perr.Detail = jvm.FirstFatal()
		}
		return perr
	}

	return nil
}
