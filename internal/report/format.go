package report

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var siPrefixes = []string{"", "k", "M", "G", "T"}

// FormatCount formats an integer with digit grouping, e.g. 1,234,567.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatDollars rounds v to whole dollars with digit grouping.
func FormatDollars(v float64) string {
	return "$" + printer.Sprintf("%d", int64(math.Round(v)))
}

// FormatSI formats v with three significant digits and an SI suffix,
// e.g. 1.23M or 12.3k.
func FormatSI(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	exp := 0
	for exp < len(siPrefixes)-1 && v >= 1000 {
		v /= 1000
		exp++
	}
	decimals := siDecimals(v)
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if rounded >= 1000 && exp < len(siPrefixes)-1 {
		v = rounded / 1000
		exp++
		decimals = siDecimals(v)
	}
	return sign + strconv.FormatFloat(v, 'f', decimals, 64) + siPrefixes[exp]
}

func siDecimals(v float64) int {
	switch {
	case v >= 100:
		return 0
	case v >= 10:
		return 1
	default:
		return 2
	}
}
