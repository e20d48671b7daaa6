package descriptor

import (
	"fmt"
	"time"
)

// ConfigurationError reports an unusable runtime environment: a missing
// java binary, or a missing or unreadable descriptor jar. It is always
// returned before any process has been launched, so a caller seeing it
// knows nothing ran.
type ConfigurationError struct {
	Reason string // what is misconfigured ("java runtime", "descriptor jar")
	Path   string // the offending path, if relevant
	Err    error  // underlying cause, if any
}

func (e *ConfigurationError) Error() string {
	msg := "configuration: " + e.Reason
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TimeoutError reports that a descriptor process exceeded its wall-clock
// limit and was forcibly terminated. The process group is already gone
// when this error surfaces.
type TimeoutError struct {
	SMILES  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("descriptor calculation for %q timed out after %v", e.SMILES, e.Timeout)
}

// ProcessError reports that the descriptor process exited non-zero or
// died on a signal. Detail carries the first fatal stderr line when
// capture was enabled, which usually names the JVM failure.
type ProcessError struct {
	SMILES   string
	ExitCode int
	Detail   string
	Err      error // the underlying Wait() error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("descriptor process for %q exited with code %d", e.SMILES, e.ExitCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ParseError reports missing or malformed descriptor output. A clean
// process exit does not guarantee usable output; this error covers the
// gap between "the JVM said ok" and "we got a descriptor table".
type ParseError struct {
	Path   string // output file involved, if any
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse: " + e.Reason
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
