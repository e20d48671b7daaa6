// Package report renders end-of-run artifacts.
//
// The only artifact today is a PNG histogram of per-molecule wall
// times, written when -report-png is set. The raw samples come from
// the stats aggregator, which records every completed and failed job
// runtime in seconds.
package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// histogramBins is fixed rather than derived from the sample count.
// Descriptor runtimes are heavy-tailed (3-D optimization outliers), and
// a stable bin count keeps reports from different runs comparable.
const histogramBins = 32

// WriteLatencyHistogram writes a PNG histogram of per-molecule wall
// times to path. Samples are in seconds.
func WriteLatencyHistogram(path string, samples []float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("no runtime samples to plot")
	}

	p := plot.New()
	p.Title.Text = "Per-molecule wall time"
	p.X.Label.Text = "seconds"
	p.Y.Label.Text = "molecules"
	p.Add(plotter.NewGrid())

	h, err := plotter.NewHist(plotter.Values(samples), histogramBins)
	if err != nil {
		return fmt.Errorf("building histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
