package donors

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/verte-zerg/donordash/internal/crossfilter"
	"github.com/verte-zerg/donordash/internal/model"
)

// Dimension names.
const (
	DimDate           = "date"
	DimResourceType   = "resource_type"
	DimPovertyLevel   = "poverty_level"
	DimState          = "state"
	DimTotalDonations = "total_donations"
	DimGradeLevel     = "grade_level"
	DimGradeRank      = "grade_rank"
)

// ErrUnknownDimension is returned for dimension names the dashboard does not know.
var ErrUnknownDimension = errors.New("unknown dimension")

// Dashboard owns the cross-filter engine and every chart's dimension and group.
type Dashboard struct {
	cf *crossfilter.Crossfilter[model.Project]

	date         *crossfilter.Dimension[model.Project, model.Month]
	resourceType *crossfilter.Dimension[model.Project, string]
	povertyLevel *crossfilter.Dimension[model.Project, string]
	state        *crossfilter.Dimension[model.Project, string]
	donations    *crossfilter.Dimension[model.Project, float64]
	gradeLevel   *crossfilter.Dimension[model.Project, string]
	gradeRank    *crossfilter.Dimension[model.Project, int]

	projectsByDate         *crossfilter.Group[model.Project, model.Month]
	projectsByResourceType *crossfilter.Group[model.Project, string]
	projectsByPovertyLevel *crossfilter.Group[model.Project, string]
	donationsByState       *crossfilter.Group[model.Project, string]
	donationsByGrade       *crossfilter.Group[model.Project, string]
	donationsByGradeRank   *crossfilter.Group[model.Project, int]
	povertyStack           []crossfilter.Layer[model.Project, string]

	projectCount   *crossfilter.GroupAll[model.Project]
	totalDonations *crossfilter.GroupAll[model.Project]
}

// StackTiers lists the poverty tiers stacked per resource type, bottom first.
var StackTiers = []model.PovertyLevel{
	model.PovertyHigh,
	model.PovertyLow,
	model.PovertyMinimal,
	model.PovertyModerate,
}

func donationsOf(p model.Project) float64 { return p.TotalDonations }

// NewDashboard indexes projects and builds every chart's group.
func NewDashboard(projects []model.Project) (*Dashboard, error) {
	cf := crossfilter.New(projects)
	d := &Dashboard{cf: cf}

	var err error
	if d.date, err = crossfilter.NewDimension(cf, DimDate, func(p model.Project) model.Month { return p.DatePosted }); err != nil {
		return nil, err
	}
	if d.resourceType, err = crossfilter.NewDimension(cf, DimResourceType, func(p model.Project) string { return p.ResourceType }); err != nil {
		return nil, err
	}
	if d.povertyLevel, err = crossfilter.NewDimension(cf, DimPovertyLevel, func(p model.Project) string { return string(p.PovertyLevel) }); err != nil {
		return nil, err
	}
	if d.state, err = crossfilter.NewDimension(cf, DimState, func(p model.Project) string { return p.SchoolState }); err != nil {
		return nil, err
	}
	if d.donations, err = crossfilter.NewDimension(cf, DimTotalDonations, donationsOf); err != nil {
		return nil, err
	}
	if d.gradeLevel, err = crossfilter.NewDimension(cf, DimGradeLevel, func(p model.Project) string { return p.GradeLevel }); err != nil {
		return nil, err
	}
	if d.gradeRank, err = crossfilter.NewDimension(cf, DimGradeRank, func(p model.Project) int { return model.GradeRank(p.GradeLevel) }); err != nil {
		return nil, err
	}

	count := crossfilter.ReduceCount[model.Project]()
	sum := crossfilter.ReduceSum(donationsOf)

	d.projectsByDate = d.date.Group(count)
	d.projectsByResourceType = d.resourceType.Group(count)
	d.projectsByPovertyLevel = d.povertyLevel.Group(count)
	d.donationsByState = d.state.Group(sum)
	d.donationsByGrade = d.gradeLevel.Group(sum)
	d.donationsByGradeRank = d.gradeRank.Group(sum)
	for _, tier := range StackTiers {
		d.povertyStack = append(d.povertyStack, crossfilter.Layer[model.Project, string]{
			Name: tierLabel(tier),
			Group: d.resourceType.Group(crossfilter.ReduceSumIf(func(p model.Project) bool {
				return p.PovertyLevel == tier
			}, donationsOf)),
		})
	}

	d.projectCount = cf.GroupAll(count)
	d.totalDonations = cf.GroupAll(sum)
	return d, nil
}

func tierLabel(tier model.PovertyLevel) string {
	s := string(tier)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + " Poverty"
}

// Size returns the number of loaded projects.
func (d *Dashboard) Size() int {
	return d.cf.Size()
}

// FilterDate keeps projects posted in [from, to).
func (d *Dashboard) FilterDate(from, to model.Month) error {
	return d.date.FilterRange(from, to)
}

// DateFilter returns the active date range with an inclusive upper month.
func (d *Dashboard) DateFilter() (from, to model.Month, ok bool) {
	f := d.date.Filter()
	if f.Kind != crossfilter.KindRange {
		return 0, 0, false
	}
	return f.Lo, f.Hi - 1, true
}

// FilterDonations keeps projects whose total donations are in [lo, hi).
func (d *Dashboard) FilterDonations(lo, hi float64) error {
	return d.donations.FilterRange(lo, hi)
}

// FilterGradeRank keeps projects whose grade rank is in [lo, hi).
func (d *Dashboard) FilterGradeRank(lo, hi int) error {
	return d.gradeRank.FilterRange(lo, hi)
}

func (d *Dashboard) categorical(name string) (*crossfilter.Dimension[model.Project, string], error) {
	switch name {
	case DimResourceType:
		return d.resourceType, nil
	case DimPovertyLevel:
		return d.povertyLevel, nil
	case DimState:
		return d.state, nil
	case DimGradeLevel:
		return d.gradeLevel, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, name)
}

// Select replaces the selection of a categorical dimension. An empty
// selection clears its filter.
func (d *Dashboard) Select(name string, keys ...string) error {
	dim, err := d.categorical(name)
	if err != nil {
		return err
	}
	dim.FilterIn(keys...)
	return nil
}

// Toggle adds key to or removes it from a categorical dimension's selection.
func (d *Dashboard) Toggle(name, key string) error {
	dim, err := d.categorical(name)
	if err != nil {
		return err
	}
	selected := dim.Filter().Values
	if i := slices.Index(selected, key); i >= 0 {
		selected = slices.Delete(selected, i, i+1)
	} else {
		selected = append(selected, key)
	}
	dim.FilterIn(selected...)
	return nil
}

// ToggleResourceType toggles a resource type in the selection.
func (d *Dashboard) ToggleResourceType(key string) error { return d.Toggle(DimResourceType, key) }

// TogglePovertyLevel toggles a poverty level in the selection.
func (d *Dashboard) TogglePovertyLevel(key string) error { return d.Toggle(DimPovertyLevel, key) }

// ToggleState toggles a state in the selection.
func (d *Dashboard) ToggleState(key string) error { return d.Toggle(DimState, key) }

// ToggleGrade toggles a grade level in the selection.
func (d *Dashboard) ToggleGrade(key string) error { return d.Toggle(DimGradeLevel, key) }

// Selected returns the selected keys of a categorical dimension.
func (d *Dashboard) Selected(name string) ([]string, error) {
	dim, err := d.categorical(name)
	if err != nil {
		return nil, err
	}
	return dim.Filter().Values, nil
}

// ClearFilter clears one dimension's filter.
func (d *Dashboard) ClearFilter(name string) error {
	switch name {
	case DimDate:
		d.date.ClearFilter()
	case DimTotalDonations:
		d.donations.ClearFilter()
	case DimGradeRank:
		d.gradeRank.ClearFilter()
	default:
		dim, err := d.categorical(name)
		if err != nil {
			return err
		}
		dim.ClearFilter()
	}
	return nil
}

// ClearAll clears every filter.
func (d *Dashboard) ClearAll() {
	d.date.ClearFilter()
	d.resourceType.ClearFilter()
	d.povertyLevel.ClearFilter()
	d.state.ClearFilter()
	d.donations.ClearFilter()
	d.gradeLevel.ClearFilter()
	d.gradeRank.ClearFilter()
}

// DateRange returns the earliest and latest posting month among projects
// passing every filter except the date filter.
func (d *Dashboard) DateRange() (lo, hi model.Month, ok bool) {
	bottom := d.date.Bottom(1)
	top := d.date.Top(1)
	if len(bottom) == 0 || len(top) == 0 {
		return 0, 0, false
	}
	return bottom[0].DatePosted, top[0].DatePosted, true
}

// MaxStateTotal returns the largest per-state donation total, the upper
// bound of the choropleth color domain.
func (d *Dashboard) MaxStateTotal() float64 {
	top := d.donationsByState.Top(1)
	if len(top) == 0 {
		return 0
	}
	return top[0].Value
}

// ActiveFilter describes one active dimension filter.
type ActiveFilter struct {
	Dimension   string
	Description string
}

// Snapshot is an immutable copy of every chart's data.
type Snapshot struct {
	ProjectCount   int
	TotalDonations float64

	ProjectsByDate         []crossfilter.Bucket[model.Month]
	ProjectsByResourceType []crossfilter.Bucket[string]
	ProjectsByPovertyLevel []crossfilter.Bucket[string]
	DonationsByState       []crossfilter.Bucket[string]
	DonationsByGrade       []crossfilter.Bucket[string]
	DonationsByGradeRank   []crossfilter.Bucket[int]
	PovertyStack           []crossfilter.Series[string]

	MinDate       model.Month
	MaxDate       model.Month
	HasDates      bool
	MaxStateTotal float64

	Filters  []ActiveFilter
	Selected map[string][]string
}

// Snapshot copies the current state of every chart.
func (d *Dashboard) Snapshot() (Snapshot, error) {
	stack, err := crossfilter.Stack(d.povertyStack...)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		ProjectCount:           int(d.projectCount.Value()),
		TotalDonations:         d.totalDonations.Value(),
		ProjectsByDate:         d.projectsByDate.All(),
		ProjectsByResourceType: d.projectsByResourceType.All(),
		ProjectsByPovertyLevel: d.projectsByPovertyLevel.All(),
		DonationsByState:       d.donationsByState.All(),
		DonationsByGrade:       d.donationsByGrade.All(),
		DonationsByGradeRank:   d.donationsByGradeRank.All(),
		PovertyStack:           stack,
		MaxStateTotal:          d.MaxStateTotal(),
		Filters:                d.ActiveFilters(),
		Selected: map[string][]string{
			DimResourceType: d.resourceType.Filter().Values,
			DimPovertyLevel: d.povertyLevel.Filter().Values,
			DimState:        d.state.Filter().Values,
			DimGradeLevel:   d.gradeLevel.Filter().Values,
		},
	}
	s.MinDate, s.MaxDate, s.HasDates = d.DateRange()
	return s, nil
}

// ActiveFilters describes every active filter in dimension order.
func (d *Dashboard) ActiveFilters() []ActiveFilter {
	var out []ActiveFilter
	add := func(name, desc string) {
		if desc != "" {
			out = append(out, ActiveFilter{Dimension: name, Description: desc})
		}
	}
	add(DimDate, describe(d.date.Filter(), func(m model.Month) string { return m.String() }, func(m model.Month) string { return (m - 1).String() }))
	add(DimResourceType, describe(d.resourceType.Filter(), identity, identity))
	add(DimPovertyLevel, describe(d.povertyLevel.Filter(), identity, identity))
	add(DimState, describe(d.state.Filter(), identity, identity))
	add(DimTotalDonations, describe(d.donations.Filter(), formatAmount, func(v float64) string { return "<" + formatAmount(v) }))
	add(DimGradeLevel, describe(d.gradeLevel.Filter(), identity, identity))
	add(DimGradeRank, describe(d.gradeRank.Filter(), strconv.Itoa, func(r int) string { return strconv.Itoa(r - 1) }))
	return out
}

func identity(s string) string { return s }

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// describe renders a filter. upper formats the exclusive upper bound of a
// range as shown to users: the last included value for discrete keys.
func describe[K cmp.Ordered](f crossfilter.Filter[K], format, upper func(K) string) string {
	switch f.Kind {
	case crossfilter.KindExact, crossfilter.KindSet:
		parts := make([]string, len(f.Values))
		for i, v := range f.Values {
			parts[i] = format(v)
		}
		return strings.Join(parts, ", ")
	case crossfilter.KindRange:
		return fmt.Sprintf("%s to %s", format(f.Lo), upper(f.Hi))
	case crossfilter.KindFunc:
		return "custom"
	}
	return ""
}
