package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-padel-swarm/internal/parser"
)

// ProcessBuilder creates the executable command for one job.
// This interface allows the supervisor to be decoupled from PaDEL specifics.
type ProcessBuilder interface {
	// BuildCommand returns a ready-to-start command.
	BuildCommand(ctx context.Context) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the job state changes.
	OnStateChange func(jobID int, oldState, newState State)

	// OnStart is called when the JVM process starts.
	OnStart func(jobID int, pid int)

	// OnExit is called when the JVM process exits.
	OnExit func(jobID int, exitCode int, runtime time.Duration)
}

// Result captures the outcome of one supervised run.
type Result struct {
	// Started reports whether the process ever launched. False means
	// the failure happened while building or starting the command.
	Started bool

	// ExitCode is the process exit code; signal deaths map to 128+signal.
	ExitCode int

	// Runtime is the wall time from Start to exit.
	Runtime time.Duration

	// TimedOut is set when the per-job timeout elapsed. The process
	// group has already been reaped when Run returns with this set.
	TimedOut bool

	// Canceled is set when the outer context was canceled. The process
	// group has already been reaped when Run returns with this set.
	Canceled bool

	// Err is the Wait() error, or the build/start failure.
	Err error
}

// Supervisor runs ONE external process to completion and guarantees the
// whole process group is gone afterwards. Descriptor invocations are
// one-shot: a failed molecule is reported to the caller, never retried,
// so there is no restart loop here.
type Supervisor struct {
	jobID     int
	builder   ProcessBuilder
	logger    *slog.Logger
	callbacks Callbacks
	timeout   time.Duration
	reaper    *Reaper

	// State management
	state     State
	stateMu   sync.RWMutex
	startTime time.Time

	// Current process
	cmd   *exec.Cmd
	cmdMu sync.Mutex

	// Output capture
	statsEnabled       bool
	statsBufferSize    int
	statsDropThreshold float64

	// Parsing pipelines (created per Run)
	stdoutPipeline *parser.Pipeline
	stderrPipeline *parser.Pipeline

	// Parsers (set via Config or defaults)
	stdoutParser parser.LineParser
	stderrParser parser.LineParser
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	JobID     int
	Builder   ProcessBuilder
	Logger    *slog.Logger
	Callbacks Callbacks

	// Timeout is the wall-clock limit for the process. 0 disables it.
	Timeout time.Duration

	// Reap paces process-group termination on timeout or cancellation.
	// Zero value gets defaults.
	Reap ReapConfig

	// Output capture
	StatsEnabled       bool
	StatsBufferSize    int
	StatsDropThreshold float64

	// Parsers (optional - defaults to NoopParser)
	StdoutParser parser.LineParser
	StderrParser parser.LineParser
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	stdoutParser := cfg.StdoutParser
	if stdoutParser == nil {
		stdoutParser = parser.NoopParser{}
	}
	stderrParser := cfg.StderrParser
	if stderrParser == nil {
		stderrParser = parser.NoopParser{}
	}

	bufferSize := cfg.StatsBufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	threshold := cfg.StatsDropThreshold
	if threshold <= 0 {
		threshold = 0.01
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Supervisor{
		jobID:              cfg.JobID,
		builder:            cfg.Builder,
		logger:             logger,
		callbacks:          cfg.Callbacks,
		timeout:            cfg.Timeout,
		reaper:             NewReaper(cfg.Reap),
		state:              StateCreated,
		statsEnabled:       cfg.StatsEnabled,
		statsBufferSize:    bufferSize,
		statsDropThreshold: threshold,
		stdoutParser:       stdoutParser,
		stderrParser:       stderrParser,
	}
}

// Run starts the process and blocks until it exits, the timeout fires,
// or the context is canceled. On timeout or cancellation the process
// group gets SIGTERM, a grace period, then SIGKILL; Run does not return
// until the group is confirmed gone and the child is collected.
func (s *Supervisor) Run(ctx context.Context) Result {
	s.setState(StateStarting)

	if s.statsEnabled {
		s.stdoutPipeline = parser.NewPipeline(
			s.jobID, "stdout",
			s.statsBufferSize, s.statsDropThreshold,
		)
		s.stderrPipeline = parser.NewPipeline(
			s.jobID, "stderr",
			s.statsBufferSize, s.statsDropThreshold,
		)
	}

	cmd, err := s.builder.BuildCommand(ctx)
	if err != nil {
		s.logger.Error("failed_to_build_command",
			"job_id", s.jobID,
			"error", err,
		)
		s.setState(StateStopped)
		return Result{ExitCode: 1, Err: err}
	}

	// When capture is off, the JVM's output goes to /dev/null rather
	// than an unread pipe that would fill up and block it.
	var stdout, stderr io.ReadCloser
	if s.statsEnabled {
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			s.setState(StateStopped)
			return Result{ExitCode: 1, Err: fmt.Errorf("stdout pipe: %w", err)}
		}
		stderr, err = cmd.StderrPipe()
		if err != nil {
			s.setState(StateStopped)
			return Result{ExitCode: 1, Err: fmt.Errorf("stderr pipe: %w", err)}
		}
	}

	// Own process group so termination reaps the JVM and any children.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	s.cmdMu.Lock()
	s.cmd = cmd
	s.cmdMu.Unlock()

	s.startTime = time.Now()
	if err := cmd.Start(); err != nil {
		s.logger.Error("failed_to_start_process",
			"job_id", s.jobID,
			"error", err,
		)
		s.setState(StateStopped)
		return Result{ExitCode: 1, Err: err}
	}

	pid := cmd.Process.Pid
	pgid, pgidErr := syscall.Getpgid(pid)
	s.setState(StateRunning)

	s.logger.Debug("jvm_started",
		"job_id", s.jobID,
		"pid", pid,
		"capture_enabled", s.statsEnabled,
	)

	// Start parsing pipelines
	var parseWg sync.WaitGroup
	if s.statsEnabled {
		stdoutSource := parser.NewPipeReader(stdout, s.stdoutPipeline)
		stderrSource := parser.NewPipeReader(stderr, s.stderrPipeline)
		go stdoutSource.Run()
		go stderrSource.Run()

		parseWg.Add(2)
		go func() {
			defer parseWg.Done()
			s.stdoutPipeline.RunParser(s.stdoutParser)
		}()
		go func() {
			defer parseWg.Done()
			s.stderrPipeline.RunParser(s.stderrParser)
		}()
	}

	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(s.jobID, pid)
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	res := Result{Started: true}
	select {
	case waitErr := <-waitCh:
		res.Err = waitErr
		// Normal exit path: the group is usually gone with the leader,
		// but a forked straggler must not outlive the job.
		if pgidErr == nil && GroupAlive(pgid) {
			s.reaper.ReapGroup(pgid)
		}

	case <-timeoutCh:
		res.TimedOut = true
		s.logger.Warn("job_timeout",
			"job_id", s.jobID,
			"pid", pid,
			"timeout", s.timeout.String(),
		)
		s.terminate(pid, pgid, pgidErr)
		res.Err = <-waitCh

	case <-ctx.Done():
		res.Canceled = true
		s.logger.Debug("job_canceled",
			"job_id", s.jobID,
			"pid", pid,
		)
		s.terminate(pid, pgid, pgidErr)
		res.Err = <-waitCh
	}

	res.Runtime = time.Since(s.startTime)
	res.ExitCode = extractExitCode(res.Err)

	// Wait for parsers to drain remaining output (with timeout)
	if s.statsEnabled {
		s.drainParsers(&parseWg)
	}

	s.logger.Debug("jvm_exited",
		"job_id", s.jobID,
		"pid", pid,
		"exit_code", res.ExitCode,
		"runtime", res.Runtime.String(),
		"timed_out", res.TimedOut,
	)

	s.cmdMu.Lock()
	s.cmd = nil
	s.cmdMu.Unlock()

	s.setState(StateStopped)

	if s.callbacks.OnExit != nil {
		s.callbacks.OnExit(s.jobID, res.ExitCode, res.Runtime)
	}

	return res
}

// terminate reaps the process group, falling back to signaling the
// direct child if the group id could not be read.
func (s *Supervisor) terminate(pid, pgid int, pgidErr error) {
	if pgidErr != nil {
		// Group unknown; signal the child directly.
		syscall.Kill(pid, syscall.SIGKILL)
		return
	}
	if !s.reaper.ReapGroup(pgid) {
		s.logger.Warn("process_group_survived_sigkill",
			"job_id", s.jobID,
			"pgid", pgid,
		)
	}
}

// drainParsers waits for parsing pipelines to finish with a timeout.
func (s *Supervisor) drainParsers(parseWg *sync.WaitGroup) {
	const drainTimeout = 5 * time.Second

	done := make(chan struct{})
	go func() {
		parseWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Parsers finished normally
		s.logPipelineStats()
	case <-time.After(drainTimeout):
		s.logger.Warn("parser_drain_timeout",
			"job_id", s.jobID,
			"timeout", drainTimeout.String(),
			"reason", "parsers did not finish reading pipe data within timeout",
		)
		s.logPipelineStats()
	}
}

// logPipelineStats logs pipeline health metrics. Drops get promoted to
// a warning since they mean stderr classification may have missed the
// fatal line.
func (s *Supervisor) logPipelineStats() {
	for _, p := range []*parser.Pipeline{s.stdoutPipeline, s.stderrPipeline} {
		if p == nil {
			continue
		}
		read, dropped, parsed := p.Stats()
		level := slog.LevelDebug
		if dropped > 0 {
			level = slog.LevelWarn
		}
		s.logger.Log(context.Background(), level, "pipeline_stats",
			"job_id", s.jobID,
			"stream", p.StreamType(),
			"lines_read", read,
			"lines_dropped", dropped,
			"lines_parsed", parsed,
			"degraded", p.IsDegraded(),
		)
	}
}

// Stop terminates the supervised process from outside Run.
// It sends SIGTERM to the group, then SIGKILL if the process doesn't
// exit within the timeout.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.cmdMu.Lock()
	cmd := s.cmd
	s.cmdMu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		cmd.Process.Signal(syscall.SIGTERM)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == StateStopped {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.logger.Warn("force_killing_process",
		"job_id", s.jobID,
		"pid", pid,
	)
	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		cmd.Process.Kill()
	}
	return errors.New("process did not exit gracefully")
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(s.jobID, oldState, newState)
	}
}

// JobID returns the job ID for this supervisor.
func (s *Supervisor) JobID() int {
	return s.jobID
}

// Uptime returns the current process uptime if running, or 0 if not.
func (s *Supervisor) Uptime() time.Duration {
	if s.State() != StateRunning {
		return 0
	}
	return time.Since(s.startTime)
}

// PipelineStats returns the pipeline statistics for both streams.
// Returns zeros if capture is disabled or the pipelines haven't run.
func (s *Supervisor) PipelineStats() (stdoutRead, stdoutDropped, stderrRead, stderrDropped int64) {
	if s.stdoutPipeline != nil {
		stdoutRead, stdoutDropped, _ = s.stdoutPipeline.Stats()
	}
	if s.stderrPipeline != nil {
		stderrRead, stderrDropped, _ = s.stderrPipeline.Stats()
	}
	return
}

// IsMetricsDegraded returns true if either pipeline dropped more than
// the configured fraction of lines.
func (s *Supervisor) IsMetricsDegraded() bool {
	if s.stdoutPipeline != nil && s.stdoutPipeline.IsDegraded() {
		return true
	}
	if s.stderrPipeline != nil && s.stderrPipeline.IsDegraded() {
		return true
	}
	return false
}

// StatsEnabled returns whether output capture is enabled.
func (s *Supervisor) StatsEnabled() bool {
	return s.statsEnabled
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
