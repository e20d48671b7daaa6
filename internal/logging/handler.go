package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of lines to buffer per worker.
	MaxBufferedLines = 100
)

// StderrHandler handles stderr output from one PaDEL JVM invocation.
// It buffers recent lines and logs them at a level matching their
// content, so JVM failures surface in the run log even when the rest
// of the chatter is suppressed.
type StderrHandler struct {
	jobID   int
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewStderrHandler creates a new stderr handler for a job.
func NewStderrHandler(jobID int, logger *slog.Logger, verbose bool) *StderrHandler {
	return &StderrHandler{
		jobID:   jobID,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads from an io.Reader and processes each line.
// This should be run in a goroutine.
func (h *StderrHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	// Stack traces produce long lines
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		line := scanner.Text()
		h.HandleLine(line)
	}
}

// ParseLine lets the handler run as a stage in a supervisor stderr
// pipeline, next to the event parser.
func (h *StderrHandler) ParseLine(line string) {
	h.HandleLine(line)
}

// HandleLine processes a single line of stderr output.
func (h *StderrHandler) HandleLine(line string) {
	// Truncate if too long
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	// Store in circular buffer
	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	// Log based on content and verbosity
	h.logLine(line)
}

// logLine logs the line at appropriate level based on content.
func (h *StderrHandler) logLine(line string) {
	// Determine log level based on content
	level := h.classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(context.Background(), level, "jvm_stderr",
		"job_id", h.jobID,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func (h *StderrHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	// Fatal JVM conditions
	if strings.Contains(lower, "outofmemoryerror") ||
		strings.Contains(lower, "stackoverflowerror") ||
		strings.Contains(lower, "could not reserve enough space") ||
		strings.Contains(lower, "could not find or load main class") ||
		strings.Contains(lower, "unable to access jarfile") {
		return slog.LevelError
	}

	// Stack trace frames follow the exception line that was already
	// surfaced, so keep them quiet
	if strings.HasPrefix(line, "\tat ") ||
		strings.HasPrefix(line, "\t... ") ||
		strings.HasPrefix(line, "Caused by:") {
		return slog.LevelDebug
	}

	// Exceptions and PaDEL per-molecule complaints
	if strings.Contains(lower, "exception") ||
		strings.Contains(lower, "error") ||
		strings.Contains(lower, "warning") {
		return slog.LevelWarn
	}

	// JVM banners ("Picked up JAVA_TOOL_OPTIONS", GC chatter)
	return slog.LevelDebug
}

// RecentLines returns the most recent lines from the buffer.
func (h *StderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// ErrorPatterns are common JVM failure patterns to extract for the exit summary.
var ErrorPatterns = []string{
	"OutOfMemoryError",
	"StackOverflowError",
	"Exception",
	"NoClassDefFoundError",
	"UnsupportedClassVersionError",
	"Unable to access jarfile",
	"Could not find or load main class",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *StderrHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)

	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}
