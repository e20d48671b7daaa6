package stats

import (
	"sync"
	"time"
)

// FailureRecord describes one failed molecule for the live failure
// panel and the exit summary footnotes.
type FailureRecord struct {
	JobID   int
	Subject string // SMILES or input path
	Kind    FailureKind
	Detail  string // first line of the underlying error
	At      time.Time
}

// FailureLog is a bounded ring of the most recent failures. Workers
// append concurrently; the TUI reads a snapshot every tick. Old
// entries are overwritten once the ring is full.
type FailureLog struct {
	mu      sync.Mutex
	records []FailureRecord
	next    int
	total   int64
}

// NewFailureLog creates a log holding at most capacity records.
func NewFailureLog(capacity int) *FailureLog {
	if capacity <= 0 {
		capacity = 32
	}
	return &FailureLog{
		records: make([]FailureRecord, 0, capacity),
	}
}

// Add appends a failure, evicting the oldest once full.
func (l *FailureLog) Add(rec FailureRecord) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if len(l.records) < cap(l.records) {
		l.records = append(l.records, rec)
		l.next = len(l.records) % cap(l.records)
		return
	}
	l.records[l.next] = rec
	l.next = (l.next + 1) % cap(l.records)
}

// Recent returns up to n failures, newest first.
func (l *FailureLog) Recent(n int) []FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := len(l.records)
	if n > count {
		n = count
	}
	if n <= 0 {
		return nil
	}

	out := make([]FailureRecord, 0, n)
	// next points at the oldest slot once the ring has wrapped; the
	// newest entry is the slot just before it.
	idx := l.next - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			idx += count
		}
		out = append(out, l.records[idx])
		idx--
	}
	return out
}

// Total returns the number of failures ever recorded, including those
// evicted from the ring.
func (l *FailureLog) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Len returns the number of records currently held.
func (l *FailureLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
