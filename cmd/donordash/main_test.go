package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/donordash/internal/config"
	"github.com/verte-zerg/donordash/internal/donors"
	"github.com/verte-zerg/donordash/internal/model"
)

func resetReportFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		reportFrom, reportTo = "", ""
		reportStates, reportPoverty, reportResources, reportGrades = nil, nil, nil, nil
	})
}

func TestParseReportFilters(t *testing.T) {
	resetReportFlags(t)
	reportFrom = "2014-01"
	reportTo = "2014-03"
	reportStates = []string{" ca", "", "ny"}
	reportPoverty = []string{"High Poverty"}
	f, err := parseReportFilters()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.From == nil || *f.From != model.MonthFor(2014, time.January) {
		t.Fatalf("unexpected from %v", f.From)
	}
	if f.To == nil || *f.To != model.MonthFor(2014, time.March) {
		t.Fatalf("unexpected to %v", f.To)
	}
	if strings.Join(f.States, ",") != "CA,NY" {
		t.Fatalf("unexpected states %v", f.States)
	}
	if len(f.Poverty) != 1 || f.Poverty[0] != "high" {
		t.Fatalf("unexpected poverty %v", f.Poverty)
	}
}

func TestParseReportFiltersRejectsInvertedRange(t *testing.T) {
	resetReportFlags(t)
	reportFrom = "2014-05"
	reportTo = "2014-01"
	if _, err := parseReportFilters(); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestApplyReportFilters(t *testing.T) {
	dash, err := donors.NewDashboard([]model.Project{
		{DatePosted: model.MonthFor(2014, time.January), ResourceType: "Books", PovertyLevel: model.PovertyHigh, SchoolState: "CA", TotalDonations: 100},
		{DatePosted: model.MonthFor(2014, time.March), ResourceType: "Technology", PovertyLevel: model.PovertyLow, SchoolState: "NY", TotalDonations: 50},
		{DatePosted: model.MonthFor(2014, time.March), ResourceType: "Books", PovertyLevel: model.PovertyMinimal, SchoolState: "CA", TotalDonations: 25},
	})
	if err != nil {
		t.Fatalf("new dashboard: %v", err)
	}
	from := model.MonthFor(2014, time.March)
	if err := applyReportFilters(dash, model.ReportFilters{From: &from, States: []string{"CA"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap, err := dash.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.ProjectCount != 1 || snap.TotalDonations != 25 {
		t.Fatalf("expected one CA project from March, got %d / %v", snap.ProjectCount, snap.TotalDonations)
	}
}

func TestApplyReportFiltersFromAfterLastMonth(t *testing.T) {
	dash, err := donors.NewDashboard([]model.Project{
		{DatePosted: model.MonthFor(2014, time.January), ResourceType: "Books", SchoolState: "CA", TotalDonations: 100},
		{DatePosted: model.MonthFor(2014, time.March), ResourceType: "Books", SchoolState: "NY", TotalDonations: 50},
	})
	if err != nil {
		t.Fatalf("new dashboard: %v", err)
	}
	from := model.MonthFor(2015, time.June)
	if err := applyReportFilters(dash, model.ReportFilters{From: &from}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap, err := dash.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.ProjectCount != 0 || snap.TotalDonations != 0 {
		t.Fatalf("expected an empty report, got %d / %v", snap.ProjectCount, snap.TotalDonations)
	}

	dash.ClearAll()
	to := model.MonthFor(2013, time.June)
	if err := applyReportFilters(dash, model.ReportFilters{To: &to}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if snap, _ := dash.Snapshot(); snap.ProjectCount != 0 {
		t.Fatalf("expected an empty report, got %d", snap.ProjectCount)
	}
}

func TestResolveSettingsValidatesFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Cleanup(func() {
		dataPath, dataFormat, datasetName = "", "", ""
		plotHeight, topStates = defaultPlotHeight, defaultTopStates
	})

	root := newRootCmd()
	if err := root.ParseFlags([]string{"--format", "xml", "--plot-height", "2"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	_, err := resolveSettings(root)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "Format") || !strings.Contains(err.Error(), "PlotHeight") {
		t.Fatalf("expected both fields reported, got %v", err)
	}

	if err := root.ParseFlags([]string{"--format", "json", "--plot-height", "10"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	settings, err := resolveSettings(root)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if settings.Format != "json" || settings.PlotHeight != 10 {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}

func TestApplyConfigHonorsChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	var data string
	var height int
	cmd.Flags().StringVar(&data, "data", "", "")
	cmd.Flags().IntVar(&height, "plot-height", 8, "")
	if err := cmd.Flags().Set("data", "flag.csv"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	fileData, fileHeight := "file.csv", 12
	applyStringConfig(cmd, "data", &data, &fileData)
	applyIntConfig(cmd, "plot-height", &height, &fileHeight)
	if data != "flag.csv" {
		t.Fatalf("flag should win over config, got %q", data)
	}
	if height != 12 {
		t.Fatalf("config should fill unset flag, got %d", height)
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	var cfg config.FileConfig
	if _, err := toml.Decode(defaultConfigTemplate(), &cfg); err != nil {
		t.Fatalf("template should be valid TOML: %v", err)
	}
	if cfg.Data.Path != nil || cfg.Dashboard.PlotHeight != nil {
		t.Fatalf("template values should be commented out")
	}
}

func TestReportCommandFromFile(t *testing.T) {
	resetReportFlags(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	path := filepath.Join(t.TempDir(), "projects.csv")
	csv := "date_posted,resource_type,poverty_level,school_state,total_donations,grade_level\n" +
		"2014-01-05,Books,high poverty,CA,100,Grades PreK-2\n" +
		"2014-03-10,Technology,low poverty,NY,50,Grades 3-5\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	t.Cleanup(func() {
		dataPath, dataFormat, datasetName = "", "", ""
		plotHeight, topStates, reportWidth = defaultPlotHeight, defaultTopStates, 0
	})

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"report", "--data", path, "--state", "NY", "--width", "60"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"Projects: 1", "Filters: state = NY", "*NY"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in report:\n%s", want, out.String())
		}
	}
}

func TestSampleCommandWritesLoadableCSV(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "sample.csv")
	root := newRootCmd()
	root.SetArgs([]string{"sample", "--rows", "50", "--seed", "3", "--out", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	projects, err := donors.LoadFile(context.Background(), path, "")
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if len(projects) != 50 {
		t.Fatalf("expected 50 projects, got %d", len(projects))
	}
}
