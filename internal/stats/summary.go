// This file implements the exit summary formatter which displays comprehensive
// statistics at program exit.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// TargetWorkers is the number of workers that were requested
	TargetWorkers int

	// TotalMolecules is the size of the input set
	TotalMolecules int

	// Duration is the total run duration
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// ShowPerWorkerStats enables the per-worker breakdown table
	ShowPerWorkerStats bool

	// OutputPath is where the merged descriptor table was written
	OutputPath string

	// ReportPNG is the runtime histogram path, empty if not written
	ReportPNG string
}

// FormatExitSummary formats aggregated stats for display at program exit.
//
// The summary includes:
// - Metrics degradation warning (if applicable)
// - Run information
// - Molecule statistics with rates
// - JVM runtime distribution percentiles
// - Failure breakdown and exit codes
// - Footnotes with diagnostic information
func FormatExitSummary(stats *AggregatedStats, cfg SummaryConfig) string {
	if stats == nil {
		return formatBasicSummary(cfg)
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	b.WriteString("                          go-padel-swarm Exit Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	// Metrics degradation warning (lossy-by-design feature)
	if stats.MetricsDegraded {
		b.WriteString("⚠️  METRICS DEGRADED: Parsing could not keep up with JVM stderr output\n")
		fmt.Fprintf(&b, "    Lines dropped: %s across %d workers\n",
			FormatNumber(stats.TotalLinesDropped),
			stats.WorkersWithDrops,
		)
		b.WriteString("    Consider: -stats-buffer 2000 or fewer workers for accurate metrics\n\n")
	}

	// Run info
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Workers:                %d\n", cfg.TargetWorkers)
	if cfg.TotalMolecules > 0 {
		fmt.Fprintf(&b, "Molecules:              %d of %d processed\n\n",
			stats.TotalProcessed, cfg.TotalMolecules)
	} else {
		fmt.Fprintf(&b, "Molecules:              %d processed\n\n", stats.TotalProcessed)
	}

	// Molecule statistics
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
	b.WriteString("                             Molecule Statistics\n")
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

	perWorker := int64(1)
	if stats.TotalWorkers > 0 {
		perWorker = int64(stats.TotalWorkers)
	}

	fmt.Fprintf(&b, "  %-20s %12s %12s %12s\n", "Outcome", "Total", "Rate (/sec)", "Per Worker")
	b.WriteString("  " + strings.Repeat("─", 58) + "\n")
	fmt.Fprintf(&b, "  %-20s %12s %12.2f %12d\n",
		"Completed",
		FormatNumber(stats.TotalCompleted),
		stats.MoleculesPerSec*(1-stats.FailureRate),
		stats.TotalCompleted/perWorker,
	)
	if stats.TotalFailed > 0 {
		fmt.Fprintf(&b, "  %-20s %12s %12s %12d\n",
			"Failed",
			FormatNumber(stats.TotalFailed),
			"-",
			stats.TotalFailed/perWorker,
		)
	}
	fmt.Fprintf(&b, "\n  Descriptor Rows:      %s", FormatNumber(stats.TotalRows))
	if stats.DescriptorColumns > 0 {
		fmt.Fprintf(&b, "  (%d columns)", stats.DescriptorColumns)
	}
	b.WriteString("\n\n")

	// Runtime distribution
	if stats.RuntimeP50 > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                          JVM Runtime Distribution\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  Mean:                 %s", FormatMs(stats.MeanRuntime))
		if stats.StdDevRuntime > 0 {
			fmt.Fprintf(&b, "  (stddev %s)", FormatMs(stats.StdDevRuntime))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "  Min / Max:            %s / %s\n",
			FormatMs(stats.MinRuntime), FormatMs(stats.MaxRuntime))
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatMs(stats.RuntimeP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatMs(stats.RuntimeP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatMs(stats.RuntimeP99))
		b.WriteString("\n")
	}

	// Failures
	if stats.TotalFailed > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                                 Failures\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		if stats.ConfigFailures > 0 {
			fmt.Fprintf(&b, "  Configuration:        %d\n", stats.ConfigFailures)
		}
		if stats.TimeoutFailures > 0 {
			fmt.Fprintf(&b, "  Timeouts:             %d\n", stats.TimeoutFailures)
		}
		if stats.ProcessFailures > 0 {
			fmt.Fprintf(&b, "  Process errors:       %d\n", stats.ProcessFailures)
		}
		if stats.ParseFailures > 0 {
			fmt.Fprintf(&b, "  Parse errors:         %d\n", stats.ParseFailures)
		}
		fmt.Fprintf(&b, "  Failure Rate:         %.2f%%\n\n", stats.FailureRate*100)
	}

	// JVM lifecycle and exit codes
	if stats.TotalJVMStarts > 0 || len(stats.ExitCodes) > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                               JVM Lifecycle\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  JVM Starts:           %d\n", stats.TotalJVMStarts)
		if stats.TotalExceptions > 0 {
			fmt.Fprintf(&b, "  Stderr Exceptions:    %d\n", stats.TotalExceptions)
		}
		b.WriteString("\n")

		if len(stats.ExitCodes) > 0 {
			// Sort exit codes for consistent output
			codes := make([]int, 0, len(stats.ExitCodes))
			for code := range stats.ExitCodes {
				codes = append(codes, code)
			}
			sort.Ints(codes)

			b.WriteString("  Exit Codes:\n")
			for _, code := range codes {
				count := stats.ExitCodes[code]
				label := exitCodeLabel(code)
				fmt.Fprintf(&b, "  %3d %-16s %d\n", code, label, count)
			}
			b.WriteString("\n")
		}
	}

	// Per-worker breakdown
	if cfg.ShowPerWorkerStats && len(stats.PerWorkerSummaries) > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                                Per Worker\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		fmt.Fprintf(&b, "  %-8s %10s %10s %12s %12s\n",
			"Worker", "Completed", "Failed", "Mean", "P95")
		b.WriteString("  " + strings.Repeat("─", 58) + "\n")
		for _, s := range stats.PerWorkerSummaries {
			fmt.Fprintf(&b, "  %-8d %10d %10d %12s %12s\n",
				s.WorkerID,
				s.JobsCompleted,
				s.JobsFailed,
				FormatMs(s.MeanRuntime),
				FormatMs(s.RuntimeP95),
			)
		}
		b.WriteString("\n")
	}

	// Footnotes (diagnostic information)
	footnotes := renderFootnotes(stats)
	if footnotes != "" {
		b.WriteString(footnotes)
	}

	// Output locations
	if cfg.OutputPath != "" && cfg.OutputPath != "-" {
		fmt.Fprintf(&b, "Descriptor table: %s\n", cfg.OutputPath)
	}
	if cfg.ReportPNG != "" {
		fmt.Fprintf(&b, "Runtime histogram: %s\n", cfg.ReportPNG)
	}

	// Metrics endpoint
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// formatBasicSummary formats a basic summary when stats are not available.
func formatBasicSummary(cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	b.WriteString("                          go-padel-swarm Exit Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Workers:                %d\n\n", cfg.TargetWorkers)

	b.WriteString("(Stats collection was disabled - use -stats to enable detailed metrics)\n\n")

	if cfg.OutputPath != "" && cfg.OutputPath != "-" {
		fmt.Fprintf(&b, "Descriptor table: %s\n", cfg.OutputPath)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// renderFootnotes adds diagnostic info that doesn't belong in main metrics.
func renderFootnotes(stats *AggregatedStats) string {
	var footnotes []string

	// Only mention fatal stderr events if any were observed
	if stats.TotalFatals > 0 {
		footnotes = append(footnotes, fmt.Sprintf(
			"[1] Fatal JVM stderr events: %d (OutOfMemoryError, missing jar, VM init failures)",
			stats.TotalFatals))
	}

	// Include peak drop rate if any drops occurred
	if stats.PeakDropRate > 0 {
		footnotes = append(footnotes, fmt.Sprintf(
			"[2] Peak metrics drop rate: %.1f%%",
			stats.PeakDropRate*100))
	}

	if len(footnotes) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
	b.WriteString("                                 Footnotes\n")
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")
	for _, fn := range footnotes {
		fmt.Fprintf(&b, "  %s\n", fn)
	}
	b.WriteString("\n")
	return b.String()
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatRate formats a rate with appropriate precision.
func FormatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}
