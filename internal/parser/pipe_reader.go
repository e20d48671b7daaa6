package parser

import (
	"bufio"
	"io"
	"sync/atomic"
)

// PipeReader reads lines from an io.Reader (a JVM stdout/stderr pipe).
// Implements the LineSource interface for uniform lifecycle management.
type PipeReader struct {
	reader   io.Reader
	pipeline *Pipeline
	closed   atomic.Bool

	// Stats (atomic for thread-safety)
	bytesRead atomic.Int64
	linesRead atomic.Int64
}

// NewPipeReader creates a new pipe-based line source.
//
// The reader is typically cmd.StdoutPipe() or cmd.StderrPipe().
func NewPipeReader(r io.Reader, pipeline *Pipeline) *PipeReader {
	return &PipeReader{
		reader:   r,
		pipeline: pipeline,
	}
}

// Run reads lines until EOF. Implements LineSource.
// MUST call pipeline.CloseChannel() on exit.
func (p *PipeReader) Run() {
	defer p.pipeline.CloseChannel()

	scanner := bufio.NewScanner(p.reader)

	// Larger buffer for long stack-trace lines
	const maxLineSize = 64 * 1024
	scanner.Buffer(make([]byte, maxLineSize), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		p.bytesRead.Add(int64(len(line) + 1)) // +1 for newline
		p.linesRead.Add(1)
		p.pipeline.FeedLine(line)
	}
}

// Close marks the reader as closed.
// Note: The underlying reader is typically closed by the process exiting.
// Implements LineSource.
func (p *PipeReader) Close() error {
	p.closed.Store(true)
	return nil
}

// Stats returns (bytesRead, linesRead, healthy).
// Implements LineSource.
func (p *PipeReader) Stats() (bytesRead int64, linesRead int64, healthy bool) {
	return p.bytesRead.Load(),
		p.linesRead.Load(),
		!p.closed.Load()
}

// Ensure PipeReader implements LineSource interface
var _ LineSource = (*PipeReader)(nil)
