package metrics

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// DumpMetrics writes a final scrape of the gatherer in Prometheus text
// format, so a run's metrics survive after the process and its /metrics
// endpoint are gone. Path "-" writes to stdout. A ".gz" suffix enables
// gzip compression.
func DumpMetrics(path string, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	if path == "-" {
		return writeFamilies(os.Stdout, path, families)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics dump: %w", err)
	}
	if err := writeFamilies(f, path, families); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFamilies(w io.Writer, path string, families []*dto.MetricFamily) error {
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		if err := encodeFamilies(gz, families); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	}
	return encodeFamilies(w, families)
}

func encodeFamilies(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
