package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Bar is one labeled row of a row chart.
type Bar struct {
	Label    string
	Value    float64
	Selected bool
}

// Segment widths resolve to eighths of a cell.
var partialBlocks = []string{"", "▏", "▎", "▍", "▌", "▋", "▊", "▉"}

const (
	maxLabelWidth = 24
	selectedMark  = "*"
)

// barString renders v as a horizontal bar scaled so top fills width cells.
func barString(v, top float64, width int) string {
	if top <= 0 || v <= 0 || width <= 0 {
		return ""
	}
	eighths := int(math.Round(v / top * float64(width*8)))
	eighths = min(eighths, width*8)
	return strings.Repeat("█", eighths/8) + partialBlocks[eighths%8]
}

// RowChart renders one horizontal bar per entry scaled to the largest value.
// format renders the value column.
func RowChart(w io.Writer, title string, bars []Bar, width int, format func(float64) string) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	if len(bars) == 0 {
		_, err := fmt.Fprint(w, "(no data)\n\n")
		return err
	}
	labelWidth, valueWidth := 0, 0
	top := 0.0
	values := make([]string, len(bars))
	for i, b := range bars {
		labelWidth = max(labelWidth, runewidth.StringWidth(barLabel(b)))
		values[i] = format(b.Value)
		valueWidth = max(valueWidth, runewidth.StringWidth(values[i]))
		top = math.Max(top, b.Value)
	}
	labelWidth = min(labelWidth, maxLabelWidth)
	if width <= 0 {
		width = terminalWidth()
	}
	barWidth := max(width-labelWidth-valueWidth-2, minPlotWidth)
	for i, b := range bars {
		line := fmt.Sprintf("%s %s %s",
			runewidth.FillRight(truncate(barLabel(b), labelWidth), labelWidth),
			runewidth.FillLeft(values[i], valueWidth),
			barString(b.Value, top, barWidth))
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func barLabel(b Bar) string {
	label := b.Label
	if label == "" {
		label = "(blank)"
	}
	if b.Selected {
		return selectedMark + label
	}
	return " " + label
}

// StackSeries is one named layer of a stacked bar chart. Values line up with
// the chart's keys.
type StackSeries struct {
	Name   string
	Values []float64
}

var stackGlyphs = []string{"█", "▓", "▒", "░"}

// StackedBars renders one horizontal bar per key, each split into the
// layers' values. Every series must carry one value per key.
func StackedBars(w io.Writer, title string, keys []string, series []StackSeries, width int, useColor bool) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for _, s := range series {
		if len(s.Values) != len(keys) {
			return fmt.Errorf("series %q has %d values for %d keys", s.Name, len(s.Values), len(keys))
		}
	}
	if len(keys) == 0 || len(series) == 0 {
		_, err := fmt.Fprint(w, "(no data)\n\n")
		return err
	}
	totals := make([]float64, len(keys))
	labelWidth, valueWidth := 0, 0
	top := 0.0
	for i, k := range keys {
		for _, s := range series {
			totals[i] += s.Values[i]
		}
		top = math.Max(top, totals[i])
		labelWidth = max(labelWidth, runewidth.StringWidth(k))
		valueWidth = max(valueWidth, runewidth.StringWidth(FormatSI(totals[i])))
	}
	labelWidth = min(labelWidth, maxLabelWidth)
	if width <= 0 {
		width = terminalWidth()
	}
	barWidth := max(width-labelWidth-valueWidth-2, minPlotWidth)

	for i, k := range keys {
		var bar strings.Builder
		// Cumulative rounding keeps the stacked bar's length equal to the
		// bar of its total.
		cum, drawn := 0.0, 0
		for si, s := range series {
			cum += s.Values[i]
			end := 0
			if top > 0 {
				end = int(math.Round(cum / top * float64(barWidth)))
			}
			cells := end - drawn
			drawn = end
			if cells <= 0 {
				continue
			}
			seg := strings.Repeat(stackGlyphs[si%len(stackGlyphs)], cells)
			if useColor {
				seg = palette[si%len(palette)] + seg + colorReset
			}
			bar.WriteString(seg)
		}
		line := fmt.Sprintf("%s %s %s",
			runewidth.FillRight(truncate(k, labelWidth), labelWidth),
			runewidth.FillLeft(FormatSI(totals[i]), valueWidth),
			bar.String())
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	parts := make([]string, len(series))
	for si, s := range series {
		label := stackGlyphs[si%len(stackGlyphs)] + " " + s.Name
		if useColor {
			label = palette[si%len(palette)] + label + colorReset
		}
		parts[si] = label
	}
	_, err := fmt.Fprintf(w, "Legend: %s\n\n", strings.Join(parts, "  "))
	return err
}
