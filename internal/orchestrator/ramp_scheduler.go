// Package orchestrator coordinates the descriptor swarm: a ramp-paced
// worker pool that fans molecules out to one-shot JVM invocations and
// merges the per-molecule tables back in input order.
package orchestrator

import (
	"context"
	"math/rand"
	"time"
)

// JitterSource provides deterministic, per-worker jitter values.
// Using a per-worker seed ensures workers keep their relative timing
// offsets for the whole run, preventing launch synchronization.
type JitterSource struct {
	configSeed int64
}

// NewJitterSource creates a jitter source with the given config seed.
// The seed stays constant within a run but can vary between runs to
// get different timing patterns.
func NewJitterSource(configSeed int64) *JitterSource {
	return &JitterSource{
		configSeed: configSeed,
	}
}

// NewJitterSourceFromTime creates a jitter source seeded from the current time.
func NewJitterSourceFromTime() *JitterSource {
	return NewJitterSource(time.Now().UnixNano())
}

// ForWorker returns a random number generator seeded for a specific worker.
// The same workerID always produces the same sequence of values.
func (j *JitterSource) ForWorker(workerID int) *rand.Rand {
	seed := int64(workerID) ^ j.configSeed
	return rand.New(rand.NewSource(seed))
}

// WorkerJitter returns a jitter duration for a specific worker within
// [0, maxJitter).
func (j *JitterSource) WorkerJitter(workerID int, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	rng := j.ForWorker(workerID)
	return time.Duration(rng.Int63n(int64(maxJitter)))
}

// RampScheduler controls the rate at which workers are started.
// Starting a swarm of 1 GB-heap JVMs at once is a thundering herd;
// pacing the launches keeps the initial memory and CPU spike bounded,
// and per-worker jitter prevents synchronization.
type RampScheduler struct {
	rate      int           // workers per second
	maxJitter time.Duration // maximum jitter per worker
	jitter    *JitterSource // deterministic jitter source
}

// NewRampScheduler creates a new scheduler with the given rate and jitter.
func NewRampScheduler(rate int, maxJitter time.Duration) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		jitter:    NewJitterSourceFromTime(),
	}
}

// NewRampSchedulerWithSeed creates a scheduler with a specific seed for
// reproducibility.
func NewRampSchedulerWithSeed(rate int, maxJitter time.Duration, seed int64) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		jitter:    NewJitterSource(seed),
	}
}

// Schedule waits the appropriate amount of time before starting worker N.
// Returns nil on success, or the context error if cancelled.
func (r *RampScheduler) Schedule(ctx context.Context, workerID int) error {
	// rate=4 means 1 worker per 250ms
	var baseDelay time.Duration
	if r.rate > 0 {
		baseDelay = time.Second / time.Duration(r.rate)
	}

	// Per-worker jitter, capped at half the base delay so the effective
	// launch rate stays close to the configured one. With no base delay
	// the jitter applies in full; it is then the only herd protection.
	jitter := r.jitter.WorkerJitter(workerID, r.maxJitter)
	if baseDelay > 0 && jitter > baseDelay/2 {
		jitter = baseDelay / 2
	}

	totalDelay := baseDelay + jitter
	if totalDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(totalDelay):
			return nil
		}
	}

	return nil
}

// EstimatedRampDuration returns the estimated time to start all workers.
func (r *RampScheduler) EstimatedRampDuration(totalWorkers int) time.Duration {
	if r.rate <= 0 {
		return 0
	}
	baseTime := time.Duration(totalWorkers) * time.Second / time.Duration(r.rate)
	avgJitter := r.maxJitter / 2
	return baseTime + avgJitter
}

// Rate returns the configured rate (workers per second).
func (r *RampScheduler) Rate() int {
	return r.rate
}

// MaxJitter returns the configured maximum jitter.
func (r *RampScheduler) MaxJitter() time.Duration {
	return r.maxJitter
}
