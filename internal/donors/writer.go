package donors

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/donordash/internal/model"
)

// WriteCSV writes projects in the layout ReadCSV accepts. Dates are written
// as the first day of their month.
func WriteCSV(w io.Writer, projects []model.Project) error {
	writer := csv.NewWriter(w)
	header := []string{FieldDatePosted, FieldResourceType, FieldPovertyLevel, FieldSchoolState, FieldTotalDonations, FieldGradeLevel}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range projects {
		poverty := ""
		if p.PovertyLevel != model.PovertyUnknown {
			poverty = string(p.PovertyLevel) + " poverty"
		}
		row := []string{
			p.DatePosted.Time().Format("2006-01-02"),
			p.ResourceType,
			poverty,
			p.SchoolState,
			strconv.FormatFloat(p.TotalDonations, 'f', -1, 64),
			p.GradeLevel,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
