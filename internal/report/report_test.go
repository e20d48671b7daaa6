package report

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteLatencyHistogram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency.png")

	// Bimodal-ish spread: mostly fast molecules, a few slow outliers
	samples := []float64{
		0.8, 0.9, 1.0, 1.1, 1.2, 0.95, 1.05, 0.85,
		1.3, 0.7, 1.0, 0.9, 1.1, 0.8,
		12.5, 14.0, 180.0,
	}

	if err := WriteLatencyHistogram(path, samples); err != nil {
		t.Fatalf("WriteLatencyHistogram() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Error("report file is empty")
	}

	// PNG signature
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("report file does not look like a PNG")
	}
}

func TestWriteLatencyHistogram_SingleSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency.png")

	if err := WriteLatencyHistogram(path, []float64{1.5}); err != nil {
		t.Fatalf("WriteLatencyHistogram() with one sample error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
}

func TestWriteLatencyHistogram_NoSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency.png")

	if err := WriteLatencyHistogram(path, nil); err == nil {
		t.Error("WriteLatencyHistogram() with no samples should fail")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("no file should be written when there are no samples")
	}
}

func TestWriteLatencyHistogram_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "nested", "latency.png")

	if err := WriteLatencyHistogram(path, []float64{1.0, 2.0}); err == nil {
		t.Error("WriteLatencyHistogram() into a missing directory should fail")
	}
}
