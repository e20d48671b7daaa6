package supervisor

import (
	"math"
	"syscall"
	"time"
)

// ReapConfig paces the existence polling between SIGTERM and SIGKILL.
// Polling backs off so a JVM that needs a moment to flush gets cheap,
// infrequent checks while a fast exit is noticed within milliseconds.
type ReapConfig struct {
	Initial    time.Duration // First poll interval (default: 25ms)
	Max        time.Duration // Maximum poll interval (default: 250ms)
	Multiplier float64       // Interval growth per poll (default: 1.7)
	Grace      time.Duration // SIGTERM grace before SIGKILL (default: 5s)
	KillWait   time.Duration // Bound on post-SIGKILL polling (default: 2s)
}

// DefaultReapConfig returns sensible defaults for reaping.
func DefaultReapConfig() ReapConfig {
	return ReapConfig{
		Initial:    25 * time.Millisecond,
		Max:        250 * time.Millisecond,
		Multiplier: 1.7,
		Grace:      5 * time.Second,
		KillWait:   2 * time.Second,
	}
}

// Reaper terminates a process group and confirms it is gone.
type Reaper struct {
	config ReapConfig
}

// NewReaper creates a Reaper with the given configuration.
func NewReaper(cfg ReapConfig) *Reaper {
	if cfg.Initial <= 0 {
		cfg.Initial = 25 * time.Millisecond
	}
	if cfg.Max <= 0 {
		cfg.Max = 250 * time.Millisecond
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1.7
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Second
	}
	if cfg.KillWait <= 0 {
		cfg.KillWait = 2 * time.Second
	}
	return &Reaper{config: cfg}
}

// interval returns the poll interval for the nth poll (0-based):
// initial * multiplier^n, capped at max.
func (r *Reaper) interval(n int) time.Duration {
	d := float64(r.config.Initial) * math.Pow(r.config.Multiplier, float64(n))
	if d > float64(r.config.Max) {
		d = float64(r.config.Max)
	}
	return time.Duration(d)
}

// GroupAlive reports whether any process in the group still exists.
// Signal 0 performs the existence check without delivering anything.
func GroupAlive(pgid int) bool {
	return syscall.Kill(-pgid, 0) == nil
}

// ReapGroup terminates the process group: SIGTERM, paced existence
// polling for the grace period, then SIGKILL and a final bounded poll.
// Returns true once no process in the group remains.
//
// The caller must still Wait() on the direct child to collect it;
// ReapGroup only guarantees signal delivery and group death.
func (r *Reaper) ReapGroup(pgid int) bool {
	if pgid <= 0 {
		return true
	}

	if syscall.Kill(-pgid, syscall.SIGTERM) != nil {
		// ESRCH: the group is already gone.
		return !GroupAlive(pgid)
	}

	if r.pollUntilGone(pgid, r.config.Grace) {
		return true
	}

	syscall.Kill(-pgid, syscall.SIGKILL)
	return r.pollUntilGone(pgid, r.config.KillWait)
}

// pollUntilGone polls group existence with growing intervals until the
// group disappears or the deadline passes.
func (r *Reaper) pollUntilGone(pgid int, deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for n := 0; ; n++ {
		if !GroupAlive(pgid) {
			return true
		}
		d := r.interval(n)
		if remaining := time.Until(end); remaining <= 0 {
			return false
		} else if d > remaining {
			d = remaining
		}
		time.Sleep(d)
	}
}
