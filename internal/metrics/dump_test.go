package metrics

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func decodeFamilies(t *testing.T, r io.Reader) map[string]*dto.MetricFamily {
	t.Helper()

	dec := expfmt.NewDecoder(r, expfmt.NewFormat(expfmt.TypeTextPlain))
	families := make(map[string]*dto.MetricFamily)
	for {
		var mf dto.MetricFamily
		if err := dec.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("decoding dump: %v", err)
		}
		families[mf.GetName()] = &mf
	}
	return families
}

func TestDumpMetrics(t *testing.T) {
	reg := newTestRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{TargetWorkers: 4, TotalMolecules: 100}, reg)
	c.JVMStarted()
	c.JVMStarted()
	c.RecordExit(0)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := DumpMetrics(path, reg); err != nil {
		t.Fatalf("DumpMetrics() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening dump: %v", err)
	}
	defer f.Close()

	families := decodeFamilies(t, f)

	// The jvm_starts counter is package-level state shared across
	// tests, so assert presence and a floor, not an exact value.
	mf, ok := families["padelswarm_jvm_starts_total"]
	if !ok {
		t.Fatal("padelswarm_jvm_starts_total missing from dump")
	}
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got < 2 {
		t.Errorf("padelswarm_jvm_starts_total = %v, want >= 2", got)
	}

	if _, ok := families["padelswarm_target_workers"]; !ok {
		t.Error("padelswarm_target_workers missing from dump")
	}
}

func TestDumpMetrics_Gzip(t *testing.T) {
	reg := newTestRegistry()
	NewCollectorWithRegistry(CollectorConfig{TargetWorkers: 2, TotalMolecules: 10}, reg)

	path := filepath.Join(t.TempDir(), "metrics.prom.gz")
	if err := DumpMetrics(path, reg); err != nil {
		t.Fatalf("DumpMetrics() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening dump: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	defer gz.Close()

	families := decodeFamilies(t, gz)
	if _, ok := families["padelswarm_target_workers"]; !ok {
		t.Error("padelswarm_target_workers missing from gzip dump")
	}
}

func TestDumpMetrics_BadPath(t *testing.T) {
	reg := newTestRegistry()
	NewCollectorWithRegistry(CollectorConfig{TargetWorkers: 1}, reg)

	path := filepath.Join(t.TempDir(), "no_such_dir", "metrics.prom")
	if err := DumpMetrics(path, reg); err == nil {
		t.Error("DumpMetrics() error = nil, want error for unwritable path")
	}
}
