// Package report renders dashboard snapshots as plain terminal text.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Line is a named series of values plotted left to right.
type Line struct {
	Name   string
	Values []float64
}

type lineStyle struct {
	name   string
	period int
	on     int
}

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 10
	axisSeparator       = " ┤ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
}

var palette = []string{
	"\x1b[36m",
	"\x1b[35m",
	"\x1b[33m",
	"\x1b[32m",
	"\x1b[34m",
}

// PlotOptions sizes a braille plot. XLabels, when set, are printed under the
// left and right edges of the plot.
type PlotOptions struct {
	Width   int
	Height  int
	Color   bool
	XLabels [2]string
}

// PlotLines renders series on a shared scale from zero to the largest value.
func PlotLines(w io.Writer, title string, lines []Line, opts PlotOptions) error {
	lines = nonEmptyLines(lines)
	if len(lines) == 0 {
		_, err := fmt.Fprintf(w, "%s\n(no data)\n\n", title)
		return err
	}
	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	top := 0.0
	for _, l := range lines {
		for _, v := range l.Values {
			top = math.Max(top, v)
		}
	}
	if top == 0 {
		top = 1
	}
	labels := axisLabels(height, top)
	axisWidth := 0
	for _, l := range labels {
		axisWidth = max(axisWidth, runewidth.StringWidth(l))
	}
	width := opts.Width
	if width <= 0 {
		width = terminalWidth()
	}
	width = max(width-axisWidth-runewidth.StringWidth(axisSeparator), minPlotWidth)

	dots := height * 4
	layers := make([][][]uint8, len(lines))
	for li, l := range lines {
		layers[li] = makeCells(height, width)
		style := lineStyles[li%len(lineStyles)]
		prevX, prevY := -1, -1
		for x, v := range resample(l.Values, width) {
			px, py := x*2, valueToRow(v, top, dots)
			if prevX < 0 {
				if style.shouldPlot(px) {
					setBrailleDot(layers[li], px, py)
				}
			} else {
				drawLine(prevX, prevY, px, py, func(dx, dy int) {
					if style.shouldPlot(dx) {
						setBrailleDot(layers[li], dx, dy)
					}
				})
			}
			prevX, prevY = px, py
		}
	}

	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(labels[y], axisWidth))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, layer := composeCell(layers, x, y)
			ch := rune(0x2800 + int(mask))
			if opts.Color && layer >= 0 {
				row.WriteString(palette[layer%len(palette)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if opts.XLabels != [2]string{} {
		left, right := opts.XLabels[0], opts.XLabels[1]
		gap := max(width-runewidth.StringWidth(left)-runewidth.StringWidth(right), 1)
		if _, err := fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", axisWidth+runewidth.StringWidth(axisSeparator)), left, strings.Repeat(" ", gap), right); err != nil {
			return err
		}
	}
	if len(lines) > 1 {
		if _, err := fmt.Fprintln(w, legend(lines, opts.Color)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func nonEmptyLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if len(l.Values) > 0 {
			out = append(out, l)
		}
	}
	return out
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether w is a terminal that accepts ANSI colors.
// NO_COLOR always wins.
func ShouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func axisLabels(height int, top float64) []string {
	labels := make([]string, height)
	labels[0] = FormatSI(top)
	if height > 2 {
		labels[height/2] = FormatSI(top * float64(height-1-height/2) / float64(height-1))
	}
	if height > 1 {
		labels[height-1] = "0"
	}
	return labels
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return cells
}

// composeCell merges every layer's dots; the first layer with a dot owns
// the cell color.
func composeCell(layers [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	owner := -1
	for i, cells := range layers {
		m := cells[y][x]
		if m == 0 {
			continue
		}
		if owner < 0 {
			owner = i
		}
		mask |= m
	}
	return mask, owner
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	return x%ls.period < ls.on
}

// resample stretches or squeezes values to width points. Squeezing keeps
// each window's mean; stretching interpolates linearly.
func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == width:
		copy(out, values)
	case n > width:
		for i := range out {
			start := i * n / width
			end := max((i+1)*n/width, start+1)
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := min(int(pos), n-2)
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func valueToRow(v, top float64, dots int) int {
	if dots <= 1 {
		return 0
	}
	row := int(math.Round((1 - v/top) * float64(dots-1)))
	return min(max(row, 0), dots-1)
}

func legend(lines []Line, useColor bool) string {
	parts := make([]string, 0, len(lines))
	for i, l := range lines {
		label := fmt.Sprintf("%s (%s)", l.Name, lineStyles[i%len(lineStyles)].name)
		if useColor {
			label = palette[i%len(palette)] + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

// drawLine walks Bresenham's line from (x0,y0) to (x1,y1).
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Braille cells are 2 dots wide and 4 tall; dotBits maps (x, y) within a
// cell to its bit in the U+2800 block.
var dotBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func setBrailleDot(cells [][]uint8, x, y int) {
	cy, cx := y/4, x/2
	if x < 0 || y < 0 || cy >= len(cells) || cx >= len(cells[cy]) {
		return
	}
	cells[cy][cx] |= dotBits[x%2][y%4]
}
