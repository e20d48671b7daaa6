package tui

import (
	"strings"
	"testing"
)

// =============================================================================
// Tests: GetMetricsStatus
// =============================================================================

func TestGetMetricsStatus(t *testing.T) {
	tests := []struct {
		name     string
		dropRate float64
		want     MetricsStatus
	}{
		{"no drops", 0, MetricsStatusOK},
		{"tiny drops", 0.001, MetricsStatusDegraded},
		{"1% drops", 0.01, MetricsStatusDegraded},
		{"5% drops", 0.05, MetricsStatusDegraded},
		{"10% drops", 0.10, MetricsStatusDegraded},
		{"11% drops", 0.11, MetricsStatusSeverelyDegraded},
		{"50% drops", 0.50, MetricsStatusSeverelyDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetMetricsStatus(tt.dropRate); got != tt.want {
				t.Errorf("GetMetricsStatus(%v) = %v, want %v", tt.dropRate, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: GetMetricsLabel
// =============================================================================

func TestGetMetricsLabel(t *testing.T) {
	tests := []struct {
		name       string
		dropRate   float64
		wantSubstr string
	}{
		{"ok", 0, "Metrics"},
		{"degraded", 0.05, "degraded"},
		{"severely degraded", 0.15, "severely degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetMetricsLabel(tt.dropRate)
			if !strings.Contains(got, tt.wantSubstr) {
				t.Errorf("GetMetricsLabel(%v) = %q, want to contain %q", tt.dropRate, got, tt.wantSubstr)
			}
		})
	}
}

// =============================================================================
// Tests: GetFailureRateStyle
// =============================================================================

func TestGetFailureRateStyle(t *testing.T) {
	tests := []struct {
		name        string
		failureRate float64
	}{
		{"zero", 0},
		{"low", 0.005},
		{"high", 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := GetFailureRateStyle(tt.failureRate)
			// Just verify it returns a style
			_ = style
		})
	}
}

// =============================================================================
// Tests: RenderKeyValue
// =============================================================================

func TestRenderKeyValue(t *testing.T) {
	result := RenderKeyValue("Label", "Value")

	if !strings.Contains(result, "Label") {
		t.Error("result should contain label")
	}
	if !strings.Contains(result, "Value") {
		t.Error("result should contain value")
	}
}

func TestRenderKeyValueWide(t *testing.T) {
	result := RenderKeyValueWide("Wide Label", "Value")

	if !strings.Contains(result, "Wide Label") {
		t.Error("result should contain label")
	}
	if !strings.Contains(result, "Value") {
		t.Error("result should contain value")
	}
}

// =============================================================================
// Tests: RenderProgressBar
// =============================================================================

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		width    int
	}{
		{"0%", 0, 20},
		{"50%", 0.5, 20},
		{"100%", 1.0, 20},
		{"narrow", 0.5, 5},
		{"wide", 0.5, 50},
		{"over 100%", 1.5, 20},
		{"negative", -0.1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderProgressBar(tt.progress, tt.width)
			if result == "" {
				t.Error("RenderProgressBar returned empty string")
			}
			// Should contain percentage
			if !strings.Contains(result, "%") {
				t.Error("result should contain percentage")
			}
		})
	}
}

// =============================================================================
// Tests: repeatChar
// =============================================================================

func TestRepeatChar(t *testing.T) {
	tests := []struct {
		char  rune
		count int
		want  string
	}{
		{'x', 0, ""},
		{'x', 1, "x"},
		{'x', 5, "xxxxx"},
		{'█', 3, "███"},
		{'x', -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := repeatChar(tt.char, tt.count); got != tt.want {
				t.Errorf("repeatChar(%q, %d) = %q, want %q", tt.char, tt.count, got, tt.want)
			}
		})
	}
}
