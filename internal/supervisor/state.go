// Package supervisor manages the lifecycle of individual descriptor JVM processes.
package supervisor

// State represents the current state of a supervised job.
type State int

const (
	// StateCreated is the initial state before the job has started.
	StateCreated State = iota

	// StateStarting indicates the JVM process is being spawned.
	StateStarting

	// StateRunning indicates the JVM process is actively running.
	StateRunning

	// StateStopped indicates the job has finished, by any path.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state represents a live process
// (either running or in the process of starting).
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning
}

// IsTerminal returns true if the state is a terminal state (stopped).
func (s State) IsTerminal() bool {
	return s == StateStopped
}
