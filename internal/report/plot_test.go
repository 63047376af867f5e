package report

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlotLines(t *testing.T) {
	var buf bytes.Buffer
	err := PlotLines(&buf, "Trend", []Line{{Name: "a", Values: []float64{1, 2, 3}}}, PlotOptions{
		Width:   40,
		Height:  4,
		XLabels: [2]string{"L", "R"},
	})
	if err != nil {
		t.Fatalf("PlotLines failed: %v", err)
	}
	lines := outputLines(&buf)
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != "Trend" {
		t.Fatalf("unexpected title %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "3.00 ┤ ") {
		t.Fatalf("expected top axis label, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[4], "   0 ┤ ") {
		t.Fatalf("expected zero axis label, got %q", lines[4])
	}
	if !strings.Contains(lines[5], "L") || !strings.HasSuffix(lines[5], "R") {
		t.Fatalf("expected x labels, got %q", lines[5])
	}
}

func TestPlotLinesMultipleSeriesHaveLegend(t *testing.T) {
	var buf bytes.Buffer
	err := PlotLines(&buf, "Two", []Line{
		{Name: "a", Values: []float64{1, 2}},
		{Name: "b", Values: []float64{2, 1}},
	}, PlotOptions{Width: 30, Height: 3})
	if err != nil {
		t.Fatalf("PlotLines failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Legend: a (solid)  b (dashed)") {
		t.Fatalf("expected legend, got %q", buf.String())
	}
}

func TestPlotLinesNoData(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotLines(&buf, "Empty", nil, PlotOptions{Width: 30}); err != nil {
		t.Fatalf("PlotLines failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no data)") {
		t.Fatalf("expected no data marker")
	}
}

func TestResample(t *testing.T) {
	got := resample([]float64{1, 3, 5, 7}, 2)
	if got[0] != 2 || got[1] != 6 {
		t.Fatalf("unexpected squeeze %v", got)
	}
	got = resample([]float64{0, 10}, 3)
	if got[0] != 0 || got[1] != 5 || got[2] != 10 {
		t.Fatalf("unexpected stretch %v", got)
	}
}
