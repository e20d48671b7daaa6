package parser

import (
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// JVMEventType identifies stderr events from a PaDEL-Descriptor JVM.
type JVMEventType int

const (
	// Launcher failures (before the application runs)
	JVMEventJarNotFound   JVMEventType = iota // Error: Unable to access jarfile ...
	JVMEventClassNotFound                     // Error: Could not find or load main class ...
	JVMEventVMInitFailed                      // Error occurred during initialization of VM

	// Application failures
	JVMEventException   // Exception in thread "..." ...
	JVMEventOutOfMemory // java.lang.OutOfMemoryError: ...
	JVMEventCausedBy    // Caused by: ...
	JVMEventStackFrame  // \tat com.example.Foo.bar(Foo.java:42)

	// Non-fatal output
	JVMEventWarning      // WARNING: ...
	JVMEventGenericError // ERROR ... (PaDEL's own logging)
)

// String returns a short label for the event type.
func (t JVMEventType) String() string {
	switch t {
	case JVMEventJarNotFound:
		return "jar_not_found"
	case JVMEventClassNotFound:
		return "class_not_found"
	case JVMEventVMInitFailed:
		return "vm_init_failed"
	case JVMEventException:
		return "exception"
	case JVMEventOutOfMemory:
		return "out_of_memory"
	case JVMEventCausedBy:
		return "caused_by"
	case JVMEventStackFrame:
		return "stack_frame"
	case JVMEventWarning:
		return "warning"
	case JVMEventGenericError:
		return "error"
	default:
		return "unknown"
	}
}

// IsFatal reports whether this event type indicates the invocation is
// doomed (launcher failure, uncaught exception, or heap exhaustion).
func (t JVMEventType) IsFatal() bool {
	switch t {
	case JVMEventJarNotFound, JVMEventClassNotFound, JVMEventVMInitFailed,
		JVMEventException, JVMEventOutOfMemory:
		return true
	default:
		return false
	}
}

// JVMEvent represents a parsed stderr event.
type JVMEvent struct {
	Type      JVMEventType
	Timestamp time.Time
	Thread    string // thread name for exceptions, "" otherwise
	Class     string // exception class, "" otherwise
	Message   string // detail after the class/prefix
	Line      string // raw line
}

// Pre-compiled patterns for JVM stderr lines. These match the launcher's
// and runtime's stable message formats.
var (
	// Error: Unable to access jarfile PaDEL-Descriptor.jar
	reJarNotFound = regexp.MustCompile(`^Error: Unable to access jarfile (.+)$`)

	// Error: Could not find or load main class padeldescriptor.PaDELDescriptorApp
	reClassNotFound = regexp.MustCompile(`^Error: Could not find or load main class (\S+)`)

	// Error occurred during initialization of VM
	// Commonly followed by: Could not reserve enough space for 1048576KB object heap
	reVMInitFailed = regexp.MustCompile(`^Error occurred during initialization of VM`)

	// Exception in thread "main" java.lang.NullPointerException: message
	reException = regexp.MustCompile(`^Exception in thread "([^"]+)" ([\w.$]+)(?::\s*(.*))?$`)

	// java.lang.OutOfMemoryError: Java heap space (with or without thread prefix)
	reOutOfMemory = regexp.MustCompile(`java\.lang\.OutOfMemoryError(?::\s*(.*))?`)

	// Caused by: java.io.FileNotFoundException: molecule.smi
	reCausedBy = regexp.MustCompile(`^Caused by: ([\w.$]+)(?::\s*(.*))?$`)

	// 	at padeldescriptor.DescriptorWorker.run(DescriptorWorker.java:88)
	reStackFrame = regexp.MustCompile(`^\s+at [\w.$/]+\(`)

	// WARNING: An illegal reflective access operation has occurred
	reWarning = regexp.MustCompile(`(?i)^warning[: ]`)

	// ERROR: Cannot read molecule / plain "Error:" lines not caught above
	reGenericError = regexp.MustCompile(`(?i)^error[: ]`)
)

// JVMEventCallback is called for each parsed stderr event.
type JVMEventCallback func(*JVMEvent)

// JVMEventParser classifies JVM stderr output.
// Implements the LineParser interface.
//
// It feeds two consumers: per-job error detail (the first fatal line is
// what a ProcessError reports) and swarm-wide event counters.
type JVMEventParser struct {
	jobID    int
	callback JVMEventCallback

	// Event counters (atomic for concurrent access)
	jarNotFoundCount   atomic.Int64
	classNotFoundCount atomic.Int64
	vmInitFailedCount  atomic.Int64
	exceptionCount     atomic.Int64
	oomCount           atomic.Int64
	causedByCount      atomic.Int64
	stackFrameCount    atomic.Int64
	warningCount       atomic.Int64
	genericErrorCount  atomic.Int64

	// First and last fatal lines observed
	mu         sync.Mutex
	firstFatal string
	lastFatal  string

	// Parser stats
	linesProcessed atomic.Int64
}

// NewJVMEventParser creates a stderr classifier for one job.
// The callback may be nil.
func NewJVMEventParser(jobID int, callback JVMEventCallback) *JVMEventParser {
	return &JVMEventParser{
		jobID:    jobID,
		callback: callback,
	}
}

// ParseLine implements the LineParser interface.
func (p *JVMEventParser) ParseLine(line string) {
	p.linesProcessed.Add(1)

	// Fast path: most PaDEL stderr lines are progress chatter that
	// matches none of the patterns.
	if !strings.Contains(line, "Error") &&
		!strings.Contains(line, "ERROR") &&
		!strings.Contains(line, "error") &&
		!strings.Contains(line, "Exception") &&
		!strings.Contains(line, "OutOfMemory") &&
		!strings.Contains(line, "Caused by:") &&
		!strings.Contains(line, "WARNING") &&
		!strings.Contains(line, "Warning") &&
		!strings.HasPrefix(line, "\tat ") &&
		!strings.HasPrefix(line, "    at ") {
		return
	}

	now := time.Now()

	// OutOfMemoryError first: it often rides on an "Exception in thread"
	// line and must be classified as OOM, not a generic exception.
	if m := reOutOfMemory.FindStringSubmatch(line); m != nil {
		p.oomCount.Add(1)
		p.recordFatal(line)
		p.emit(&JVMEvent{
			Type:      JVMEventOutOfMemory,
			Timestamp: now,
			Class:     "java.lang.OutOfMemoryError",
			Message:   m[1],
			Line:      line,
		})
		return
	}

	if m := reException.FindStringSubmatch(line); m != nil {
		p.exceptionCount.Add(1)
		p.recordFatal(line)
		p.emit(&JVMEvent{
			Type:      JVMEventException,
			Timestamp: now,
			Thread:    m[1],
			Class:     m[2],
			Message:   m[3],
			Line:      line,
		})
		return
	}

	if m := reJarNotFound.FindStringSubmatch(line); m != nil {
		p.jarNotFoundCount.Add(1)
		p.recordFatal(line)
		p.emit(&JVMEvent{
			Type:      JVMEventJarNotFound,
			Timestamp: now,
			Message:   m[1],
			Line:      line,
		})
		return
	}

	if m := reClassNotFound.FindStringSubmatch(line); m != nil {
		p.classNotFoundCount.Add(1)
		p.recordFatal(line)
		p.emit(&JVMEvent{
			Type:      JVMEventClassNotFound,
			Timestamp: now,
			Class:     m[1],
			Line:      line,
		})
		return
	}

	if reVMInitFailed.MatchString(line) {
		p.vmInitFailedCount.Add(1)
		p.recordFatal(line)
		p.emit(&JVMEvent{
			Type:      JVMEventVMInitFailed,
			Timestamp: now,
			Line:      line,
		})
		return
	}

	if m := reCausedBy.FindStringSubmatch(line); m != nil {
		p.causedByCount.Add(1)
		p.emit(&JVMEvent{
			Type:      JVMEventCausedBy,
			Timestamp: now,
			Class:     m[1],
			Message:   m[2],
			Line:      line,
		})
		return
	}

	if reStackFrame.MatchString(line) {
		p.stackFrameCount.Add(1)
		// No callback for stack frames; they are counted only.
		return
	}

	if reWarning.MatchString(line) {
		p.warningCount.Add(1)
		p.emit(&JVMEvent{
			Type:      JVMEventWarning,
			Timestamp: now,
			Message:   line,
			Line:      line,
		})
		return
	}

	if reGenericError.MatchString(line) {
		p.genericErrorCount.Add(1)
		p.emit(&JVMEvent{
			Type:      JVMEventGenericError,
			Timestamp: now,
			Message:   line,
			Line:      line,
		})
		return
	}
}

func (p *JVMEventParser) emit(ev *JVMEvent) {
	if p.callback != nil {
		p.callback(ev)
	}
}

func (p *JVMEventParser) recordFatal(line string) {
	p.mu.Lock()
	if p.firstFatal == "" {
		p.firstFatal = line
	}
	p.lastFatal = line
	p.mu.Unlock()
}

// FirstFatal returns the first fatal stderr line observed, or "".
// This is the detail a ProcessError carries.
func (p *JVMEventParser) FirstFatal() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstFatal
}

// LastFatal returns the most recent fatal stderr line observed, or "".
func (p *JVMEventParser) LastFatal() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFatal
}

// JVMStats contains aggregated stderr classification counts.
type JVMStats struct {
	LinesProcessed int64

	JarNotFoundCount   int64
	ClassNotFoundCount int64
	VMInitFailedCount  int64
	ExceptionCount     int64
	OutOfMemoryCount   int64
	CausedByCount      int64
	StackFrameCount    int64
	WarningCount       int64
	GenericErrorCount  int64

	FirstFatal string
	LastFatal  string
}

// FatalCount returns the total number of fatal events.
func (s JVMStats) FatalCount() int64 {
	return s.JarNotFoundCount + s.ClassNotFoundCount + s.VMInitFailedCount +
		s.ExceptionCount + s.OutOfMemoryCount
}

// Stats returns a snapshot of the classification counters.
func (p *JVMEventParser) Stats() JVMStats {
	p.mu.Lock()
	firstFatal := p.firstFatal
	lastFatal := p.lastFatal
	p.mu.Unlock()

	return JVMStats{
		LinesProcessed:     p.linesProcessed.Load(),
		JarNotFoundCount:   p.jarNotFoundCount.Load(),
		ClassNotFoundCount: p.classNotFoundCount.Load(),
		VMInitFailedCount:  p.vmInitFailedCount.Load(),
		ExceptionCount:     p.exceptionCount.Load(),
		OutOfMemoryCount:   p.oomCount.Load(),
		CausedByCount:      p.causedByCount.Load(),
		StackFrameCount:    p.stackFrameCount.Load(),
		WarningCount:       p.warningCount.Load(),
		GenericErrorCount:  p.genericErrorCount.Load(),
		FirstFatal:         firstFatal,
		LastFatal:          lastFatal,
	}
}

// JobID returns the job ID for this parser.
func (p *JVMEventParser) JobID() int {
	return p.jobID
}
