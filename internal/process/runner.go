// Package process provides abstractions for running external processes.
package process

import (
	"context"
	"os/exec"
)

// Runner creates executable commands for descriptor jobs.
// This interface allows the rest of the system to be process-agnostic.
type Runner interface {
	// BuildCommand returns a ready-to-start command for the given job.
	// The command should NOT be started yet.
	BuildCommand(ctx context.Context, job Job) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string
}

// Job identifies one descriptor invocation: where the molecule input
// lives and where the external program must write its output.
type Job struct {
	// ID is the job's index within a batch (also used for logging).
	ID int

	// InputPath is the molecule file or directory passed via -dir.
	InputPath string

	// OutputPath is the descriptor CSV path passed via -file.
	OutputPath string
}

// Result captures the outcome of a process execution.
type Result struct {
	JobID     int
	ExitCode  int
	StartTime int64 // Unix timestamp
	EndTime   int64 // Unix timestamp
	TimedOut  bool
	Error     error
}
