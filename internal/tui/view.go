package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// recentFailureRows is how many individual failure records the summary
// view shows below the failure counters.
const recentFailureRows = 5

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main summary dashboard.
func (m Model) renderSummaryView() string {
	var sections []string

	// Header
	sections = append(sections, m.renderHeader())

	// Progress section
	sections = append(sections, m.renderProgress())

	// Stats sections (only if we have stats)
	if m.stats != nil {
		sections = append(sections, m.renderThroughputStats())
		sections = append(sections, m.renderRuntimeStats())
		sections = append(sections, m.renderWorkerHealth())

		// Failures section (only if anything has failed)
		if m.hasFailures() {
			sections = append(sections, m.renderFailureStats())
		}
	}

	// Footer
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders per-worker details.
func (m Model) renderDetailedView() string {
	var sections []string

	// Header
	sections = append(sections, m.renderHeader())

	// Per-worker table
	sections = append(sections, m.renderWorkerTable())

	// Footer
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	// Pipeline status indicator
	metricsLabel := GetMetricsLabel(m.DropRate())

	// Build header line
	header := fmt.Sprintf(
		" go-padel-swarm │ %s │ Workers: %d/%d │ Elapsed: %s ",
		metricsLabel,
		m.ActiveWorkers(),
		m.targetWorkers,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	progress := m.RunProgress()

	// Progress bar
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(progress, barWidth)

	// Status text
	var status string
	switch {
	case progress >= 1.0:
		status = statusOK.Render("✓ All molecules processed")
	case m.RampProgress() < 1.0:
		status = statusInfo.Render(fmt.Sprintf("Ramping up... %d/%d workers", m.ActiveWorkers(), m.targetWorkers))
	default:
		status = statusInfo.Render(fmt.Sprintf("Calculating descriptors... %s/%s molecules",
			formatNumber(m.Processed()), formatNumber(int64(m.totalMolecules))))
	}

	lines := []string{
		sectionHeaderStyle.Render("Run Progress"),
		progressBar,
		status,
	}

	// Rolling rate and ETA, once the tracker has data
	if m.tracker != nil && progress < 1.0 {
		cs := m.tracker.GetStats()
		rate := cs.Rate10s
		if rate == 0 {
			rate = cs.Rate60s
		}
		line := formatCompletionRate(rate, cs.TotalCompleted)
		if eta, ok := m.ETA(); ok {
			line += "  ETA " + formatDuration(eta)
		}
		lines = append(lines, dimStyle.Render(line))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Throughput Statistics
// =============================================================================

func (m Model) renderThroughputStats() string {
	if m.stats == nil {
		return ""
	}

	s := m.stats

	// Build rows
	rows := []string{
		renderStatRow("Completed", formatNumber(s.TotalCompleted), formatRate(s.MoleculesPerSec)),
		renderStatRow("Failed", formatNumber(s.TotalFailed), formatPercent(s.FailureRate)),
		renderStatRow("Descriptor Rows", formatNumber(s.TotalRows), formatRate(s.RowsPerSec)),
		RenderKeyValueWide("Descriptor Columns", fmt.Sprintf("%d", s.DescriptorColumns)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Throughput")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func renderStatRow(label, value, rate string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelWideStyle.Render(label+":"),
		valueStyle.Width(12).Render(value),
		mutedStyle.Render(" ("),
		valueStyle.Render(rate),
		mutedStyle.Render(")"),
	)
}

// =============================================================================
// Runtime Statistics
// =============================================================================

func (m Model) renderRuntimeStats() string {
	if m.stats == nil || m.stats.RuntimeP50 == 0 {
		return ""
	}

	s := m.stats

	rows := []string{
		renderRuntimeRow("P50 (median)", s.RuntimeP50),
		renderRuntimeRow("P95", s.RuntimeP95),
		renderRuntimeRow("P99", s.RuntimeP99),
		renderRuntimeRow("Max", s.MaxRuntime),
	}

	// Note about the estimator
	note := dimStyle.Render("* t-digest over all completed molecules")

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Molecule Runtime *")}, rows...)...,
	)
	content = lipgloss.JoinVertical(lipgloss.Left, content, note)

	return boxStyle.Width(m.width - 2).Render(content)
}

func renderRuntimeRow(label string, d time.Duration) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(formatRuntime(d)),
	)
}

// =============================================================================
// Worker Health
// =============================================================================

func (m Model) renderWorkerHealth() string {
	if m.stats == nil {
		return ""
	}

	s := m.stats

	// Busy/idle distribution
	var dist string
	if s.TotalWorkers > 0 {
		busyPct := float64(s.BusyWorkers) / float64(s.TotalWorkers) * 100
		dist = fmt.Sprintf("%d busy (%.0f%%), %d idle", s.BusyWorkers, busyPct, s.IdleWorkers)
	} else {
		dist = "N/A"
	}

	// Slow workers
	slowStyle := valueStyle
	if s.SlowWorkers > 0 {
		slowStyle = valueWarnStyle
	}
	slow := slowStyle.Render(fmt.Sprintf("%d", s.SlowWorkers))

	// JVM exceptions seen on stderr
	excStyle := valueStyle
	if s.TotalExceptions > 0 {
		excStyle = valueBadStyle
	}
	exceptions := excStyle.Render(formatNumber(s.TotalExceptions))

	rows := []string{
		RenderKeyValue("Worker Distribution", dist),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Slow Workers:"),
			slow,
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("JVM Starts:"),
			valueStyle.Render(formatNumber(s.TotalJVMStarts)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Exceptions:"),
			exceptions,
		),
	}

	// Stderr pipeline degradation, if any worker is dropping lines
	if s.MetricsDegraded {
		rows = append(rows,
			lipgloss.JoinHorizontal(lipgloss.Left,
				labelStyle.Render("Stderr Pipeline:"),
				valueWarnStyle.Render(fmt.Sprintf("dropping lines (peak %s)", formatPercent(s.PeakDropRate))),
			),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Worker Health")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Failure Statistics
// =============================================================================

func (m Model) hasFailures() bool {
	if m.stats == nil {
		return false
	}
	return m.stats.TotalFailed > 0 || len(m.failures) > 0
}

func (m Model) renderFailureStats() string {
	if m.stats == nil {
		return ""
	}

	s := m.stats

	var rows []string

	// Failure kind counters
	kinds := []struct {
		label string
		count int64
	}{
		{"Configuration", s.ConfigFailures},
		{"Timeouts", s.TimeoutFailures},
		{"Process Exits", s.ProcessFailures},
		{"Parse Errors", s.ParseFailures},
	}
	for _, k := range kinds {
		if k.count == 0 {
			continue
		}
		rows = append(rows,
			lipgloss.JoinHorizontal(lipgloss.Left,
				labelStyle.Render(k.label+":"),
				valueBadStyle.Render(fmt.Sprintf("%d", k.count)),
			),
		)
	}

	// Failure rate
	failureRateStyle := GetFailureRateStyle(s.FailureRate)
	rows = append(rows,
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Failure Rate:"),
			failureRateStyle.Render(formatPercent(s.FailureRate)),
		),
	)

	// Most recent individual failures
	for _, rec := range m.failures {
		subject := rec.Subject
		if len(subject) > 24 {
			subject = subject[:21] + "..."
		}
		line := fmt.Sprintf("#%d %s %s: %s", rec.JobID, subject, rec.Kind, rec.Detail)
		maxLen := m.width - 8
		if maxLen > 10 && len(line) > maxLen {
			line = line[:maxLen-3] + "..."
		}
		rows = append(rows, dimStyle.Render(line))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Failures")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Worker Table (Detailed View)
// =============================================================================

func (m Model) renderWorkerTable() string {
	if m.stats == nil || len(m.stats.PerWorkerSummaries) == 0 {
		return boxStyle.Width(m.width - 2).Render(
			dimStyle.Render("No per-worker data available. Press 'd' to toggle."),
		)
	}

	// Table header
	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-6s %-8s %-8s %-10s %-10s %-8s %s",
			"ID", "Done", "Failed", "Mean", "P95", "JVMs", "Current"),
	)

	// Table rows (limit to fit screen)
	maxRows := m.height - 10
	if maxRows < 5 {
		maxRows = 5
	}

	var rows []string
	for i, w := range m.stats.PerWorkerSummaries {
		if i >= maxRows {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("... and %d more workers", len(m.stats.PerWorkerSummaries)-maxRows)))
			break
		}

		rowStyle := tableRowEvenStyle
		if i%2 == 1 {
			rowStyle = tableRowOddStyle
		}

		// What the worker is chewing on right now
		current := "-"
		if w.Active {
			current = w.CurrentSubject
			if len(current) > 20 {
				current = current[:17] + "..."
			}
			current = fmt.Sprintf("%s (%s)", current, formatRuntime(w.CurrentRuntime))
		}
		if w.IsSlow {
			current += "  [slow]"
		}

		row := fmt.Sprintf("%-6d %-8s %-8s %-10s %-10s %-8s %s",
			w.WorkerID,
			formatNumber(w.JobsCompleted),
			formatNumber(w.JobsFailed),
			formatRuntime(w.MeanRuntime),
			formatRuntime(w.RuntimeP95),
			formatNumber(w.JVMStarts),
			current,
		)
		rows = append(rows, rowStyle.Render(row))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{
			sectionHeaderStyle.Render("Per-Worker Statistics"),
			header,
		}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	// Keyboard shortcuts
	shortcuts := []string{
		"q: quit",
		"d: toggle details",
		"r: refresh",
	}

	// Output path (truncated if needed)
	out := m.outputPath
	maxOutLen := m.width - 60
	if len(out) > maxOutLen && maxOutLen > 10 {
		out = out[:maxOutLen-3] + "..."
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := dimStyle.Render("Output: " + out)

	// Pad to fill width
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}
