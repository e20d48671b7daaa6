// Package timeseries provides time-windowed completion tracking for
// descriptor swarm runs.
//
// This is an internal library designed for simplicity and testability.
// It tracks cumulative completed molecules and computes rolling rates
// over configurable time windows (10s, 60s, 300s), which feed the TUI
// throughput panel and the ETA estimate.
//
// Thread-safe: AddCompleted() uses atomic int64, GetStats() acquires
// a read lock. Memory: ~10KB for 300 samples (5 minute window at
// 1 sample/sec).
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (5 minutes at 1 sample/sec)
	ringBufferSize = 300

	// Window durations for rolling rates
	window10s  = 10 * time.Second
	window60s  = 60 * time.Second
	window300s = 300 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample represents a point-in-time snapshot of cumulative completions.
type sample struct {
	timestamp time.Time
	completed int64
}

// CompletionTracker tracks cumulative completed molecules and computes
// rolling rates over configurable time windows.
//
// Usage:
//
//	tracker := NewCompletionTracker()
//	tracker.AddCompleted(1)  // Called per finished molecule (thread-safe, lock-free)
//	// ... periodic sampling (e.g., every 1s via ticker)
//	tracker.RecordSample()
//	// ... get rates for TUI/ETA
//	stats := tracker.GetStats()
type CompletionTracker struct {
	// totalCompleted is the cumulative count (atomic for lock-free AddCompleted)
	totalCompleted atomic.Int64

	// Ring buffer of samples for rolling rate calculation
	samples  []sample
	writeIdx int // Next write position in ring buffer
	mu       sync.RWMutex

	// Start time for overall rate calculation
	startTime time.Time

	// Clock for testability
	clock Clock
}

// CompletionStats contains computed rolling rates at a point in time.
type CompletionStats struct {
	// TotalCompleted is the cumulative molecules completed since start
	TotalCompleted int64

	// Rolling rates (molecules per second)
	Rate10s  float64 // Rate over last 10 seconds
	Rate60s  float64 // Rate over last 60 seconds
	Rate300s float64 // Rate over last 300 seconds (5 minutes)

	// RateOverall is the rate since tracking started
	RateOverall float64
}

// NewCompletionTracker creates a new tracker with real clock.
func NewCompletionTracker() *CompletionTracker {
	return NewCompletionTrackerWithClock(realClock{})
}

// NewCompletionTrackerWithClock creates a tracker with custom clock for testing.
func NewCompletionTrackerWithClock(clock Clock) *CompletionTracker {
	now := clock.Now()
	t := &CompletionTracker{
		samples:   make([]sample, 0, ringBufferSize),
		startTime: now,
		clock:     clock,
	}
	// Record initial sample at t=0 with 0 completions
	t.samples = append(t.samples, sample{timestamp: now, completed: 0})
	return t
}

// AddCompleted adds finished molecules to the cumulative total.
// Thread-safe and lock-free (uses atomic int64).
// Call this when a descriptor job completes.
func (t *CompletionTracker) AddCompleted(n int64) {
	if n > 0 {
		t.totalCompleted.Add(n)
	}
}

// RecordSample records the current cumulative count with a timestamp.
// Call this periodically (e.g., every 1 second via ticker).
// Thread-safe (acquires write lock on ring buffer only).
func (t *CompletionTracker) RecordSample() {
	now := t.clock.Now()
	current := t.totalCompleted.Load()

	t.mu.Lock()
	defer t.mu.Unlock()

	newSample := sample{timestamp: now, completed: current}

	if len(t.samples) < ringBufferSize {
		// Buffer not yet full - append
		t.samples = append(t.samples, newSample)
	} else {
		// Buffer full - overwrite oldest
		t.samples[t.writeIdx] = newSample
		t.writeIdx = (t.writeIdx + 1) % ringBufferSize
	}
}

// GetStats computes and returns current completion rates.
// Thread-safe (acquires read lock). Always returns valid data
// (never returns "no data" - uses available history).
func (t *CompletionTracker) GetStats() CompletionStats {
	now := t.clock.Now()
	current := t.totalCompleted.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := CompletionStats{
		TotalCompleted: current,
	}

	// Calculate overall rate
	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed > 0 {
		stats.RateOverall = float64(current) / elapsed
	}

	// Calculate rolling rates for each window
	stats.Rate10s = t.rateOverWindow(now, current, window10s)
	stats.Rate60s = t.rateOverWindow(now, current, window60s)
	stats.Rate300s = t.rateOverWindow(now, current, window300s)

	return stats
}

// Estimate returns the time remaining to finish (total - completed)
// molecules at the current rate. The 60 second window is preferred so
// a long run's early ramp-up does not skew the estimate; the overall
// rate is the fallback while the window is still warming up. The
// second return value is false when no estimate is possible yet.
func (t *CompletionTracker) Estimate(total int64) (time.Duration, bool) {
	if total <= 0 {
		return 0, false
	}

	remaining := total - t.totalCompleted.Load()
	if remaining <= 0 {
		return 0, true
	}

	stats := t.GetStats()
	rate := stats.Rate60s
	if rate <= 0 {
		rate = stats.RateOverall
	}
	if rate <= 0 {
		return 0, false
	}

	return time.Duration(float64(remaining) / rate * float64(time.Second)), true
}

// rateOverWindow calculates molecules/sec over the specified window.
// Must be called with mu held (at least RLock).
func (t *CompletionTracker) rateOverWindow(now time.Time, current int64, window time.Duration) float64 {
	if len(t.samples) == 0 {
		return 0
	}

	targetTime := now.Add(-window)

	// Find the sample closest to (but not after) targetTime
	var bestSample *sample
	var bestDiff time.Duration = -1

	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(targetTime) {
			continue // Sample is within the window, skip
		}
		diff := targetTime.Sub(s.timestamp)
		if bestDiff < 0 || diff < bestDiff {
			bestSample = s
			bestDiff = diff
		}
	}

	// If no sample before targetTime, use the oldest sample we have
	if bestSample == nil {
		bestSample = t.oldestSample()
	}

	if bestSample == nil {
		return 0
	}

	// Calculate completions and actual elapsed time
	completed := current - bestSample.completed
	actualElapsed := now.Sub(bestSample.timestamp).Seconds()

	if actualElapsed <= 0 {
		return 0 // Avoid division by zero
	}

	return float64(completed) / actualElapsed
}

// oldestSample returns the oldest sample in the ring buffer.
// Must be called with mu held.
func (t *CompletionTracker) oldestSample() *sample {
	if len(t.samples) == 0 {
		return nil
	}

	if len(t.samples) < ringBufferSize {
		// Buffer not full yet - oldest is at index 0
		return &t.samples[0]
	}

	// Buffer full - oldest is at writeIdx (next to be overwritten)
	return &t.samples[t.writeIdx]
}

// Reset clears all data and restarts tracking.
// Thread-safe.
func (t *CompletionTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalCompleted.Store(0)
	t.samples = t.samples[:0]
	t.samples = append(t.samples, sample{timestamp: now, completed: 0})
	t.writeIdx = 0
	t.startTime = now
}

// SampleCount returns the number of samples in the ring buffer.
// Useful for testing.
func (t *CompletionTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
