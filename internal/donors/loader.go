// Package donors loads charitable project records and wires them into a
// cross-filtered dashboard.
package donors

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/donordash/internal/model"
)

// Input formats accepted by LoadFile.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Field names of a raw project record.
const (
	FieldDatePosted     = "date_posted"
	FieldResourceType   = "resource_type"
	FieldPovertyLevel   = "poverty_level"
	FieldSchoolState    = "school_state"
	FieldTotalDonations = "total_donations"
	FieldGradeLevel     = "grade_level"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// DataFormatError reports a raw value that cannot be normalized.
type DataFormatError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("row %d: invalid %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// RawProject is a project record as read from CSV or JSON, before
// normalization.
type RawProject struct {
	DatePosted     string
	ResourceType   string
	PovertyLevel   string
	SchoolState    string
	TotalDonations string
	GradeLevel     string
}

// LoadFile reads and normalizes a dataset. An empty format is inferred from
// the file extension.
func LoadFile(ctx context.Context, path, format string) ([]model.Project, error) {
	start := time.Now()
	if format == "" {
		format = FormatFromPath(path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only dataset.
			_ = cerr
		}
	}()

	var raws []RawProject
	switch format {
	case FormatCSV:
		raws, err = ReadCSV(file)
	case FormatJSON:
		raws, err = ReadJSON(file)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", format)
	}
	if err != nil {
		return nil, err
	}
	projects, err := Normalize(ctx, raws)
	if err != nil {
		return nil, err
	}
	slog.Debug("dataset loaded", "path", path, "format", format, "rows", len(projects), "elapsed", time.Since(start))
	return projects, nil
}

// FormatFromPath infers the dataset format from a file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// ReadCSV reads raw projects from a CSV with a header row. Columns are
// matched by name; unknown columns are ignored.
func ReadCSV(r io.Reader) ([]RawProject, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range headers {
		cols[toSnakeCase(h)] = i
	}
	for _, required := range []string{FieldDatePosted, FieldTotalDonations} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV is missing column %q", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var raws []RawProject
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		raws = append(raws, RawProject{
			DatePosted:     field(row, FieldDatePosted),
			ResourceType:   field(row, FieldResourceType),
			PovertyLevel:   field(row, FieldPovertyLevel),
			SchoolState:    field(row, FieldSchoolState),
			TotalDonations: field(row, FieldTotalDonations),
			GradeLevel:     field(row, FieldGradeLevel),
		})
	}
	return raws, nil
}

type jsonProject struct {
	DatePosted     json.RawMessage `json:"date_posted"`
	ResourceType   json.RawMessage `json:"resource_type"`
	PovertyLevel   json.RawMessage `json:"poverty_level"`
	SchoolState    json.RawMessage `json:"school_state"`
	TotalDonations json.RawMessage `json:"total_donations"`
	GradeLevel     json.RawMessage `json:"grade_level"`
}

// ReadJSON reads raw projects from a JSON array of objects. Values may be
// strings, numbers, or null.
func ReadJSON(r io.Reader) ([]RawProject, error) {
	var rows []jsonProject
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode JSON dataset: %w", err)
	}
	raws := make([]RawProject, len(rows))
	for i, row := range rows {
		fields := []struct {
			name string
			raw  json.RawMessage
			dst  *string
		}{
			{FieldDatePosted, row.DatePosted, &raws[i].DatePosted},
			{FieldResourceType, row.ResourceType, &raws[i].ResourceType},
			{FieldPovertyLevel, row.PovertyLevel, &raws[i].PovertyLevel},
			{FieldSchoolState, row.SchoolState, &raws[i].SchoolState},
			{FieldTotalDonations, row.TotalDonations, &raws[i].TotalDonations},
			{FieldGradeLevel, row.GradeLevel, &raws[i].GradeLevel},
		}
		for _, f := range fields {
			v, numeric, err := jsonScalar(f.raw)
			if err == nil && numeric && f.name == FieldDatePosted {
				v, err = epochMillisDate(v)
			}
			if err != nil {
				return nil, &DataFormatError{Row: i + 1, Field: f.name, Value: string(f.raw), Err: err}
			}
			*f.dst = v
		}
	}
	return raws, nil
}

// jsonScalar returns the text of a string, number or null value and
// whether it was a number.
func jsonScalar(raw json.RawMessage) (string, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false, fmt.Errorf("expected string or number")
	}
	return n.String(), true, nil
}

// epochMillisDate converts a numeric date, as pandas writes datetimes to
// JSON by default, into an RFC 3339 timestamp.
func epochMillisDate(v string) (string, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return "", errors.New("numeric date is not integer epoch milliseconds")
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339), nil
}

// Normalize converts raw records into projects. Rows are parsed in parallel
// chunks; any malformed row fails the whole load.
func Normalize(ctx context.Context, raws []RawProject) ([]model.Project, error) {
	projects := make([]model.Project, len(raws))
	if len(raws) == 0 {
		return projects, nil
	}
	workers := runtime.NumCPU()
	chunk := (len(raws) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(raws); start += chunk {
		end := min(start+chunk, len(raws))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p, err := normalizeRow(i+1, raws[i])
				if err != nil {
					return err
				}
				projects[i] = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return projects, nil
}

func normalizeRow(row int, raw RawProject) (model.Project, error) {
	month, err := parseDatePosted(raw.DatePosted)
	if err != nil {
		return model.Project{}, &DataFormatError{Row: row, Field: FieldDatePosted, Value: raw.DatePosted, Err: err}
	}
	donations, err := parseDonations(raw.TotalDonations)
	if err != nil {
		return model.Project{}, &DataFormatError{Row: row, Field: FieldTotalDonations, Value: raw.TotalDonations, Err: err}
	}
	return model.Project{
		DatePosted:     month,
		ResourceType:   strings.TrimSpace(raw.ResourceType),
		PovertyLevel:   model.ParsePovertyLevel(raw.PovertyLevel),
		SchoolState:    strings.TrimSpace(raw.SchoolState),
		TotalDonations: donations,
		GradeLevel:     strings.TrimSpace(raw.GradeLevel),
	}, nil
}

func parseDatePosted(s string) (model.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.MonthOf(t), nil
		}
	}
	return 0, errors.New("unrecognized date format")
}

func parseDonations(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	if v < 0 {
		return 0, errors.New("negative amount")
	}
	return v, nil
}

func toSnakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}
