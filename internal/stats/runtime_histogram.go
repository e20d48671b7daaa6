package stats

import (
	"math"
	"sync/atomic"
	"time"
)

// RuntimeHistogram is a lock-free histogram of JVM wall times. Uses
// atomic counters for O(1) recording with no locks, so every worker in
// the pool can record without contending. Buckets cover 1ms to ~292
// years in logarithmic steps (64 buckets).
//
// IMPORTANT: Use Drain() not a snapshot for windowed aggregation.
// Drain() resets counters so each window only contains samples since
// the previous one; re-reading cumulative counts every tick would let
// old data dominate the percentiles.
type RuntimeHistogram struct {
	buckets [runtimeBuckets]atomic.Uint64
	count   atomic.Uint64
	sumMS   atomic.Uint64
}

const runtimeBuckets = 64

// NewRuntimeHistogram creates a new histogram.
func NewRuntimeHistogram() *RuntimeHistogram {
	return &RuntimeHistogram{}
}

// Record adds a runtime sample. Lock-free, safe for concurrent use
// from the worker hot path.
func (h *RuntimeHistogram) Record(d time.Duration) {
	bucket := h.bucketFor(d)
	h.buckets[bucket].Add(1)
	h.count.Add(1)
	h.sumMS.Add(uint64(d.Milliseconds()))
}

// bucketFor returns the bucket index for a runtime.
// Logarithmic bucketing: bucket = log2(milliseconds), so bucket 0 is
// anything up to 2ms and each bucket doubles the range.
func (h *RuntimeHistogram) bucketFor(d time.Duration) int {
	ms := float64(d.Milliseconds())
	if ms < 1 {
		return 0
	}
	bucket := int(math.Log2(ms))
	if bucket > runtimeBuckets-1 {
		bucket = runtimeBuckets - 1
	}
	return bucket
}

// Drain returns bucket counts AND RESETS them to zero atomically, so
// each aggregation window only contains samples since the last Drain.
func (h *RuntimeHistogram) Drain() [runtimeBuckets]uint64 {
	var drained [runtimeBuckets]uint64
	for i := range h.buckets {
		drained[i] = h.buckets[i].Swap(0)
	}
	h.count.Swap(0)
	h.sumMS.Swap(0)
	return drained
}

// Count returns total samples recorded since the last Drain.
func (h *RuntimeHistogram) Count() uint64 {
	return h.count.Load()
}

// SumMS returns the sum of samples in milliseconds since the last Drain.
func (h *RuntimeHistogram) SumMS() uint64 {
	return h.sumMS.Load()
}

// BucketToRuntime converts a bucket index to a representative duration
// (midpoint of the bucket in log space).
func BucketToRuntime(bucket int) time.Duration {
	ms := math.Pow(2, float64(bucket)+0.5)
	return time.Duration(ms * float64(time.Millisecond))
}

// RuntimePercentileFromBuckets computes a percentile from drained
// buckets, which can come from one histogram or be merged from several.
// Linear interpolation in log space within the matched bucket.
func RuntimePercentileFromBuckets(buckets [runtimeBuckets]uint64, p float64) time.Duration {
	var total uint64
	for _, count := range buckets {
		total += count
	}
	if total == 0 {
		return 0
	}

	target := p * float64(total)

	var cumulative uint64
	for i, count := range buckets {
		if count == 0 {
			continue
		}
		prevCumulative := cumulative
		cumulative += count

		if float64(cumulative) >= target {
			logStart := float64(i)
			logEnd := float64(i + 1)
			bucketProgress := (target - float64(prevCumulative)) / float64(count)
			logValue := logStart + bucketProgress*(logEnd-logStart)
			ms := math.Pow(2, logValue)
			return time.Duration(ms * float64(time.Millisecond))
		}
	}

	return BucketToRuntime(runtimeBuckets - 1)
}

// MergeRuntimeBuckets merges multiple drained bucket arrays into one.
func MergeRuntimeBuckets(histograms ...[runtimeBuckets]uint64) [runtimeBuckets]uint64 {
	var merged [runtimeBuckets]uint64
	for _, h := range histograms {
		for i, count := range h {
			merged[i] += count
		}
	}
	return merged
}
