package metrics

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/tdigest"
)

const (
	// Rolling window bounds for scan duration percentiles
	minScanWindow     = 10 * time.Second
	maxScanWindow     = 300 * time.Second
	defaultScanWindow = 60 * time.Second
)

// WorkspaceMetrics holds a point-in-time view of the scratch workspace.
type WorkspaceMetrics struct {
	Files      int
	TotalBytes int64
	PeakBytes  int64

	// Growth rate between the last two scans (negative = shrinking)
	GrowthBytesPerSec float64

	// Scan cost
	ScanDuration time.Duration
	ScanP50      time.Duration
	ScanMax      time.Duration

	LastUpdate time.Time
	Healthy    bool
	Error      string
}

// scanSample is a timestamped scan duration for the rolling window.
type scanSample struct {
	timestamp time.Time
	seconds   float64
}

// WorkspaceWatcher periodically scans the scratch directory where per-job
// molecule files and descriptor tables are staged, and exposes size and
// growth metrics. PaDEL leaves partial output behind when a JVM is killed
// mid-job, so unbounded growth here means cleanup is not keeping up.
type WorkspaceWatcher struct {
	dir      string
	interval time.Duration
	logger   *slog.Logger

	// Latest snapshot (atomic.Value holds *WorkspaceMetrics)
	metrics atomic.Value

	// Growth rate state. The scan loop is the only writer.
	lastBytes    atomic.Int64
	lastScanUnix atomic.Int64  // unix nanos of the previous scan, 0 = none yet
	growthRate   atomic.Uint64 // float64 bits
	peakBytes    atomic.Int64

	// Rolling window of scan durations. TDigest is not thread-safe.
	mu         sync.Mutex
	scanDigest *tdigest.TDigest
	samples    []scanSample
	windowSize time.Duration
}

// NewWorkspaceWatcher creates a watcher for the scratch directory.
// Returns nil if dir is empty (watching disabled).
func NewWorkspaceWatcher(dir string, interval, windowSize time.Duration, logger *slog.Logger) *WorkspaceWatcher {
	if dir == "" {
		return nil
	}

	if interval <= 0 {
		interval = 10 * time.Second
	}

	if windowSize <= 0 {
		windowSize = defaultScanWindow
	}
	if windowSize < minScanWindow {
		windowSize = minScanWindow
	}
	if windowSize > maxScanWindow {
		windowSize = maxScanWindow
	}

	return &WorkspaceWatcher{
		dir:        dir,
		interval:   interval,
		logger:     logger,
		scanDigest: tdigest.NewWithCompression(100),
		windowSize: windowSize,
	}
}

// Run starts the scan loop. Blocks until ctx is cancelled.
func (w *WorkspaceWatcher) Run(ctx context.Context) {
	if w == nil {
		return
	}

	w.logger.Info("workspace_watcher_starting",
		"dir", w.dir,
		"interval", w.interval,
		"window", w.windowSize)

	// Initial scan so the TUI has data immediately
	w.scan()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

// GetMetrics returns the latest snapshot. Safe to call from any goroutine.
func (w *WorkspaceWatcher) GetMetrics() WorkspaceMetrics {
	if w == nil {
		return WorkspaceMetrics{}
	}
	if m, ok := w.metrics.Load().(*WorkspaceMetrics); ok && m != nil {
		return *m
	}
	return WorkspaceMetrics{}
}

// Dir returns the watched directory (for display).
func (w *WorkspaceWatcher) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// scan walks the scratch directory once and updates the snapshot and gauges.
func (w *WorkspaceWatcher) scan() {
	start := time.Now()

	files, totalBytes, err := w.measure()
	scanDur := time.Since(start)
	now := time.Now()

	if err != nil {
		// Keep the last size values, flag unhealthy
		prev := w.GetMetrics()
		w.metrics.Store(&WorkspaceMetrics{
			Files:             prev.Files,
			TotalBytes:        prev.TotalBytes,
			PeakBytes:         w.peakBytes.Load(),
			GrowthBytesPerSec: prev.GrowthBytesPerSec,
			ScanDuration:      scanDur,
			ScanP50:           prev.ScanP50,
			ScanMax:           prev.ScanMax,
			LastUpdate:        now,
			Healthy:           false,
			Error:             err.Error(),
		})
		w.logger.Debug("workspace_scan_failed", "dir", w.dir, "error", err)
		return
	}

	// Growth rate from the previous scan
	if prevNanos := w.lastScanUnix.Load(); prevNanos > 0 {
		elapsed := float64(now.UnixNano()-prevNanos) / float64(time.Second)
		if elapsed > 0 {
			growth := float64(totalBytes-w.lastBytes.Load()) / elapsed
			storeFloat64(&w.growthRate, growth)
		}
	}
	w.lastBytes.Store(totalBytes)
	w.lastScanUnix.Store(now.UnixNano())

	if totalBytes > w.peakBytes.Load() {
		w.peakBytes.Store(totalBytes)
	}

	// Scan duration window
	w.mu.Lock()
	w.scanDigest.Add(scanDur.Seconds(), 1)
	w.samples = append(w.samples, scanSample{timestamp: now, seconds: scanDur.Seconds()})
	w.cleanupWindowLocked(now)

	p50 := time.Duration(w.scanDigest.Quantile(0.50) * float64(time.Second))
	var maxSeconds float64
	for _, s := range w.samples {
		if s.seconds > maxSeconds {
			maxSeconds = s.seconds
		}
	}
	w.mu.Unlock()

	m := &WorkspaceMetrics{
		Files:             files,
		TotalBytes:        totalBytes,
		PeakBytes:         w.peakBytes.Load(),
		GrowthBytesPerSec: loadFloat64(&w.growthRate),
		ScanDuration:      scanDur,
		ScanP50:           p50,
		ScanMax:           time.Duration(maxSeconds * float64(time.Second)),
		LastUpdate:        now,
		Healthy:           true,
	}
	w.metrics.Store(m)

	// Panel 7 gauges
	padelScratchFiles.Set(float64(files))
	padelScratchBytes.Set(float64(totalBytes))
	padelScratchPeakBytes.Set(float64(m.PeakBytes))
	padelScratchGrowthBytesPerSec.Set(m.GrowthBytesPerSec)
	padelScratchScanSeconds.Set(scanDur.Seconds())
}

// measure sums file counts and sizes under the scratch directory.
// A missing directory is not an error: the scratch root is created
// lazily on the first job and removed on cleanup.
func (w *WorkspaceWatcher) measure() (files int, totalBytes int64, err error) {
	walkErr := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				// File removed between listing and stat (job finished mid-scan)
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		files++
		totalBytes += info.Size()
		return nil
	})

	if walkErr != nil {
		return 0, 0, walkErr
	}

	return files, totalBytes, nil
}

// cleanupWindowLocked drops samples older than the window. The digest
// has no removal operation, so it is rebuilt when samples expire.
// Caller must hold w.mu.
func (w *WorkspaceWatcher) cleanupWindowLocked(now time.Time) {
	cutoff := now.Add(-w.windowSize)

	expired := 0
	for _, s := range w.samples {
		if s.timestamp.Before(cutoff) {
			expired++
		} else {
			break
		}
	}

	if expired == 0 {
		return
	}

	w.samples = w.samples[expired:]

	w.scanDigest = tdigest.NewWithCompression(100)
	for _, s := range w.samples {
		w.scanDigest.Add(s.seconds, 1)
	}
}

// storeFloat64 atomically stores a float64 into a uint64 atomic.
func storeFloat64(a *atomic.Uint64, v float64) {
	a.Store(math.Float64bits(v))
}

// loadFloat64 atomically loads a float64 from a uint64 atomic.
func loadFloat64(a *atomic.Uint64) float64 {
	return math.Float64frombits(a.Load())
}
