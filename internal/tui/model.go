package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-padel-swarm/internal/stats"
	"github.com/randomizedcoder/go-padel-swarm/internal/timeseries"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatsMsg carries updated statistics.
type StatsMsg struct {
	Stats *stats.AggregatedStats
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	targetWorkers  int
	totalMolecules int
	metricsAddr    string
	outputPath     string

	// Current state
	stats        *stats.AggregatedStats
	failures     []stats.FailureRecord
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	// Stats source (for fetching updates)
	statsSource StatsSource

	// Failure source (optional - for the recent failures panel)
	failureSource FailureSource

	// Completion tracker (optional - for rolling rate and ETA)
	tracker *timeseries.CompletionTracker

	// Quit flag
	quitting bool
}

// StatsSource provides aggregated statistics.
type StatsSource interface {
	GetAggregatedStats() *stats.AggregatedStats
}

// FailureSource provides recent per-molecule failures.
// This is optional - if not provided, the failures panel only shows
// kind counters.
type FailureSource interface {
	RecentFailures(n int) []stats.FailureRecord
}

// Config holds TUI configuration.
type Config struct {
	TargetWorkers  int
	TotalMolecules int
	MetricsAddr    string
	OutputPath     string
	StatsSource    StatsSource
	FailureSource  FailureSource
	Tracker        *timeseries.CompletionTracker
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		targetWorkers:  cfg.TargetWorkers,
		totalMolecules: cfg.TotalMolecules,
		metricsAddr:    cfg.MetricsAddr,
		outputPath:     cfg.OutputPath,
		statsSource:    cfg.StatsSource,
		failureSource:  cfg.FailureSource,
		tracker:        cfg.Tracker,
		startTime:      time.Now(),
		lastUpdate:     time.Now(),
		width:          80,
		height:         24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	// Note: tea.WithAltScreen() is passed when creating the program,
	// so we don't need tea.EnterAltScreen here.
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			// Force refresh
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		// Fetch latest stats
		if m.statsSource != nil {
			m.stats = m.statsSource.GetAggregatedStats()
		}
		if m.failureSource != nil {
			m.failures = m.failureSource.RecentFailures(recentFailureRows)
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case StatsMsg:
		m.stats = msg.Stats
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView && m.stats != nil && len(m.stats.PerWorkerSummaries) > 0 {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// ActiveWorkers returns the current worker count.
func (m Model) ActiveWorkers() int {
	if m.stats == nil {
		return 0
	}
	return m.stats.TotalWorkers
}

// TargetWorkers returns the target worker count.
func (m Model) TargetWorkers() int {
	return m.targetWorkers
}

// Processed returns the number of molecules processed so far.
func (m Model) Processed() int64 {
	if m.stats == nil {
		return 0
	}
	return m.stats.TotalProcessed
}

// RunProgress returns the completion progress (0.0 to 1.0).
func (m Model) RunProgress() float64 {
	if m.totalMolecules == 0 {
		return 0
	}
	p := float64(m.Processed()) / float64(m.totalMolecules)
	if p > 1.0 {
		p = 1.0
	}
	return p
}

// RampProgress returns the worker ramp-up progress (0.0 to 1.0).
func (m Model) RampProgress() float64 {
	if m.targetWorkers == 0 {
		return 0
	}
	return float64(m.ActiveWorkers()) / float64(m.targetWorkers)
}

// DropRate returns the current pipeline drop rate.
func (m Model) DropRate() float64 {
	if m.stats == nil || m.stats.TotalLinesRead == 0 {
		return 0
	}
	return float64(m.stats.TotalLinesDropped) / float64(m.stats.TotalLinesRead)
}

// ETA returns the estimated time to completion, false when the rate is
// still unknown.
func (m Model) ETA() (time.Duration, bool) {
	if m.tracker == nil {
		return 0, false
	}
	return m.tracker.Estimate(int64(m.totalMolecules))
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStats sends a stats update to the TUI.
func SendStats(p *tea.Program, stats *stats.AggregatedStats) {
	if p != nil {
		p.Send(StatsMsg{Stats: stats})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a number with K/M suffixes.
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatRuntime formats a per-molecule wall time. JVM runtimes span
// milliseconds (cached classes, trivial molecules) to minutes (3-D
// optimization), so pick the unit by magnitude.
func formatRuntime(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.1fm", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
}

// formatRate formats a rate with appropriate precision.
func formatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// formatCompletionRate formats a completion rate with + prefix and a
// stalled indicator. If the rate is 0 but count > 0, shows
// "calculating..." to indicate data exists but no rate yet (e.g. first
// TUI tick).
func formatCompletionRate(rate float64, count int64) string {
	if rate >= 1000 {
		return fmt.Sprintf("+%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("+%.1f/s", rate)
	}
	if rate > 0 {
		return fmt.Sprintf("+%.2f/s", rate)
	}
	if count > 0 {
		return "(calculating...)"
	}
	return "(stalled)"
}

// formatPercent formats a percentage.
func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
