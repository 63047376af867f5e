package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// shadeColors is the ten-step blue scale of the state map, light to dark.
var shadeColors = []string{
	"#E2F2FF", "#C4E4FF", "#9ED2FF", "#81C5FF", "#6BBAFF",
	"#51AEFF", "#36A2FF", "#1E96FF", "#0089FF", "#0061B5",
}

// StateValue is one state's aggregate.
type StateValue struct {
	Code     string
	Value    float64
	Selected bool
}

// ShadeIndex maps v onto the color domain [0, top] as one of the ten
// shades. Values at top take the darkest shade.
func ShadeIndex(v, top float64) int {
	if top <= 0 || v <= 0 {
		return 0
	}
	i := int(math.Floor(v / top * float64(len(shadeColors))))
	return min(max(i, 0), len(shadeColors)-1)
}

// Choropleth renders states as a table shaded over [0, top]. Codes are
// joined against the built-in state name table; unknown codes are shown
// as given.
func Choropleth(w io.Writer, title string, states []StateValue, top float64, useColor bool) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	if len(states) == 0 {
		_, err := fmt.Fprint(w, "(no data)\n\n")
		return err
	}
	rows := make([][]string, 0, len(states))
	for _, s := range states {
		mark := " "
		if s.Selected {
			mark = selectedMark
		}
		rows = append(rows, []string{
			mark + s.Code,
			StateName(s.Code),
			FormatDollars(s.Value),
			shadeGauge(ShadeIndex(s.Value, top), useColor),
		})
	}
	for _, line := range formatTable([]string{" State", "Name", "Donations", "Shade"}, rows, map[int]bool{2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Scale: 0 to %s\n\n", FormatDollars(top))
	return err
}

func shadeGauge(idx int, useColor bool) string {
	gauge := strings.Repeat("■", idx+1) + strings.Repeat("·", len(shadeColors)-idx-1)
	if !useColor {
		return gauge
	}
	return trueColor(shadeColors[idx]) + gauge + colorReset
}

func trueColor(hex string) string {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", v>>16&0xff, v>>8&0xff, v&0xff)
}

var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// StateName returns the full name of a two-letter state code, or code
// itself when unknown.
func StateName(code string) string {
	if name, ok := stateNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}
