// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Month is a calendar month encoded as year*12 + (month-1), so months sort
// and subtract as plain integers.
type Month int

// MonthOf truncates t to its month.
func MonthOf(t time.Time) Month {
	return Month(t.Year()*12 + int(t.Month()) - 1)
}

// MonthFor builds a Month from a year and a 1-based month.
func MonthFor(year int, month time.Month) Month {
	return Month(year*12 + int(month) - 1)
}

// Time returns the first day of the month at midnight UTC.
func (m Month) Time() time.Time {
	return time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Year returns the calendar year.
func (m Month) Year() int {
	return floorDiv(int(m), 12)
}

// Month returns the calendar month.
func (m Month) Month() time.Month {
	return time.Month(int(m)-floorDiv(int(m), 12)*12) + 1
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), int(m.Month()))
}

// ParseMonth parses YYYY-MM or YYYY-MM-DD.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid month %q (expected YYYY-MM)", s)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// PovertyLevel is the poverty tier of a school. Unrecognized values are
// kept verbatim (lowercased) so they form their own bucket.
type PovertyLevel string

// Known poverty tiers.
const (
	PovertyHigh     PovertyLevel = "high"
	PovertyModerate PovertyLevel = "moderate"
	PovertyLow      PovertyLevel = "low"
	PovertyMinimal  PovertyLevel = "minimal"
	PovertyUnknown  PovertyLevel = "unknown"
)

// ParsePovertyLevel normalizes raw values such as "High Poverty".
func ParsePovertyLevel(raw string) PovertyLevel {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimSpace(strings.TrimSuffix(v, "poverty"))
	if v == "" {
		return PovertyUnknown
	}
	return PovertyLevel(v)
}

// gradeRanks orders grade bands for the ordinal grade chart.
var gradeRanks = map[string]int{
	"Grades PreK-2": 1,
	"Grades 3-5":    2,
	"Grades 6-8":    3,
	"Grades 9-12":   4,
}

// GradeRank maps a grade band to its ordinal rank; unknown bands rank 0.
func GradeRank(grade string) int {
	return gradeRanks[grade]
}

// GradeBands returns the known grade bands in rank order.
func GradeBands() []string {
	out := make([]string, len(gradeRanks))
	for band, rank := range gradeRanks {
		out[rank-1] = band
	}
	return out
}

// Project is one charitable project record. Values never change after load.
type Project struct {
	DatePosted     Month
	ResourceType   string
	PovertyLevel   PovertyLevel
	SchoolState    string
	TotalDonations float64
	GradeLevel     string
}

// Settings holds resolved dashboard settings.
type Settings struct {
	DataPath   string
	Format     string `validate:"omitempty,oneof=csv json"`
	Dataset    string
	DBPath     string
	PlotHeight int `validate:"min=3,max=60"`
	TopStates  int `validate:"min=0"`
	Color      bool
}

// ReportFilters selects the filters applied by the report command.
type ReportFilters struct {
	From      *Month
	To        *Month
	States    []string
	Poverty   []string
	Resources []string
	Grades    []string
}

// DatasetInfo describes a dataset stored in the local cache.
type DatasetInfo struct {
	ID         int64
	Name       string
	Source     string
	ImportedAt time.Time
	Rows       int
}
