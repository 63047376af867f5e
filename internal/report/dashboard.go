package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/verte-zerg/donordash/internal/crossfilter"
	"github.com/verte-zerg/donordash/internal/donors"
	"github.com/verte-zerg/donordash/internal/model"
)

// Options controls dashboard rendering.
type Options struct {
	Width      int
	PlotHeight int
	TopStates  int
	Color      bool
}

// RenderDashboard prints every chart of a snapshot in dashboard order.
func RenderDashboard(w io.Writer, snap donors.Snapshot, opts Options) error {
	if err := RenderNumbers(w, snap); err != nil {
		return err
	}
	if err := RenderTimeline(w, snap, opts); err != nil {
		return err
	}
	if err := RowChart(w, "Projects by resource type",
		bars(snap.ProjectsByResourceType, snap.Selected[donors.DimResourceType]), opts.Width, formatInt); err != nil {
		return err
	}
	if err := RowChart(w, "Projects by poverty level",
		bars(snap.ProjectsByPovertyLevel, snap.Selected[donors.DimPovertyLevel]), opts.Width, formatInt); err != nil {
		return err
	}
	if err := RenderPovertyStack(w, snap, opts); err != nil {
		return err
	}
	if err := RowChart(w, "Donations by grade level",
		bars(snap.DonationsByGrade, snap.Selected[donors.DimGradeLevel]), opts.Width, FormatSI); err != nil {
		return err
	}
	if err := RenderGradeRanks(w, snap, opts); err != nil {
		return err
	}
	return RenderStates(w, snap, opts)
}

// RenderNumbers prints the number displays and active filters.
func RenderNumbers(w io.Writer, snap donors.Snapshot) error {
	if _, err := fmt.Fprintf(w, "Projects: %s   Total donations: $%s\n",
		FormatCount(snap.ProjectCount), FormatSI(snap.TotalDonations)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Filters: %s\n\n", DescribeFilters(snap.Filters))
	return err
}

// DescribeFilters joins active filter descriptions, or returns "none".
func DescribeFilters(filters []donors.ActiveFilter) string {
	if len(filters) == 0 {
		return "none"
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.Dimension + " = " + f.Description
	}
	return strings.Join(parts, "; ")
}

// RenderTimeline plots projects per month. Months without any project in
// the dataset plot as zero.
func RenderTimeline(w io.Writer, snap donors.Snapshot, opts Options) error {
	values, first, last := denseMonths(snap.ProjectsByDate)
	title := "Projects by date posted"
	if snap.HasDates {
		title = fmt.Sprintf("%s (%s to %s)", title, snap.MinDate, snap.MaxDate)
	}
	plot := PlotOptions{Width: opts.Width, Height: opts.PlotHeight, Color: opts.Color}
	if len(values) > 0 {
		plot.XLabels = [2]string{first.String(), last.String()}
	}
	return PlotLines(w, title, []Line{{Name: "projects", Values: values}}, plot)
}

func denseMonths(buckets []crossfilter.Bucket[model.Month]) ([]float64, model.Month, model.Month) {
	if len(buckets) == 0 {
		return nil, 0, 0
	}
	first, last := buckets[0].Key, buckets[len(buckets)-1].Key
	values := make([]float64, int(last-first)+1)
	for _, b := range buckets {
		values[b.Key-first] = b.Value
	}
	return values, first, last
}

// RenderPovertyStack prints donations per resource type stacked by poverty tier.
func RenderPovertyStack(w io.Writer, snap donors.Snapshot, opts Options) error {
	var keys []string
	series := make([]StackSeries, 0, len(snap.PovertyStack))
	for i, s := range snap.PovertyStack {
		values := make([]float64, len(s.Buckets))
		for j, b := range s.Buckets {
			if i == 0 {
				keys = append(keys, displayKey(b.Key))
			}
			values[j] = b.Value
		}
		series = append(series, StackSeries{Name: s.Name, Values: values})
	}
	return StackedBars(w, "Donations by resource type and poverty level", keys, series, opts.Width, opts.Color)
}

// RenderGradeRanks plots donations over the ordinal grade bands.
func RenderGradeRanks(w io.Writer, snap donors.Snapshot, opts Options) error {
	bands := model.GradeBands()
	values := make([]float64, len(bands))
	for _, b := range snap.DonationsByGradeRank {
		if b.Key >= 1 && b.Key <= len(bands) {
			values[b.Key-1] = b.Value
		}
	}
	plot := PlotOptions{
		Width:   opts.Width,
		Height:  opts.PlotHeight,
		Color:   opts.Color,
		XLabels: [2]string{bands[0], bands[len(bands)-1]},
	}
	return PlotLines(w, "Donations by grade band", []Line{{Name: "donations", Values: values}}, plot)
}

// RenderStates prints the state table, largest totals first. TopStates
// limits the rows; zero shows every state.
func RenderStates(w io.Writer, snap donors.Snapshot, opts Options) error {
	buckets := slices.Clone(snap.DonationsByState)
	slices.SortStableFunc(buckets, func(a, b crossfilter.Bucket[string]) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
	title := "Donations by state"
	if opts.TopStates > 0 && len(buckets) > opts.TopStates {
		buckets = buckets[:opts.TopStates]
		title = fmt.Sprintf("%s (top %d)", title, opts.TopStates)
	}
	selected := snap.Selected[donors.DimState]
	states := make([]StateValue, len(buckets))
	for i, b := range buckets {
		states[i] = StateValue{Code: displayKey(b.Key), Value: b.Value, Selected: slices.Contains(selected, b.Key)}
	}
	return Choropleth(w, title, states, snap.MaxStateTotal, opts.Color)
}

func bars(buckets []crossfilter.Bucket[string], selected []string) []Bar {
	out := make([]Bar, len(buckets))
	for i, b := range buckets {
		out[i] = Bar{Label: displayKey(b.Key), Value: b.Value, Selected: slices.Contains(selected, b.Key)}
	}
	return out
}

func displayKey(k string) string {
	if k == "" {
		return "(blank)"
	}
	return k
}

func formatInt(v float64) string {
	return FormatCount(int(v))
}
