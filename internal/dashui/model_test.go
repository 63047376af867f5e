package dashui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/donordash/internal/donors"
	"github.com/verte-zerg/donordash/internal/model"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	d, err := donors.NewDashboard([]model.Project{
		{DatePosted: model.MonthFor(2014, time.January), ResourceType: "Books", PovertyLevel: model.PovertyHigh, SchoolState: "CA", TotalDonations: 100, GradeLevel: "Grades PreK-2"},
		{DatePosted: model.MonthFor(2014, time.March), ResourceType: "Technology", PovertyLevel: model.PovertyLow, SchoolState: "NY", TotalDonations: 50, GradeLevel: "Grades 3-5"},
		{DatePosted: model.MonthFor(2014, time.March), ResourceType: "Books", PovertyLevel: model.PovertyMinimal, SchoolState: "CA", TotalDonations: 25, GradeLevel: "Grades 3-5"},
	})
	if err != nil {
		t.Fatalf("new dashboard: %v", err)
	}
	m := NewModel(d, model.Settings{PlotHeight: 4})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func press(m *Model, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m.Update(msg)
	}
}

func TestToggleStateFiltersOtherCharts(t *testing.T) {
	m := newTestModel(t)
	press(m, "right", "right", "right")
	if m.activeTab != tabStates {
		t.Fatalf("expected states tab, got %d", m.activeTab)
	}
	if got := m.keys[tabStates]; len(got) != 2 || got[0] != "CA" {
		t.Fatalf("expected states ordered by donations, got %v", got)
	}

	press(m, "enter")
	snap := m.Snapshot()
	if snap.ProjectCount != 2 || snap.TotalDonations != 125 {
		t.Fatalf("expected CA filter, got count=%d total=%v", snap.ProjectCount, snap.TotalDonations)
	}
	if sel := snap.Selected[donors.DimState]; len(sel) != 1 || sel[0] != "CA" {
		t.Fatalf("unexpected selection %v", sel)
	}

	press(m, "enter")
	if got := m.Snapshot().ProjectCount; got != 3 {
		t.Fatalf("expected toggle off to restore 3 projects, got %d", got)
	}
}

func TestClearAll(t *testing.T) {
	m := newTestModel(t)
	press(m, "right", "enter")
	if got := m.Snapshot().ProjectCount; got == 3 {
		t.Fatalf("expected a resource filter to apply")
	}
	press(m, "C")
	snap := m.Snapshot()
	if snap.ProjectCount != 3 || len(snap.Filters) != 0 {
		t.Fatalf("expected all filters cleared, got %+v", snap.Filters)
	}
}

func TestDateRangeForm(t *testing.T) {
	m := newTestModel(t)
	press(m, "/", "2014-03", "enter")
	if m.rangeMode {
		t.Fatalf("expected form to close, error %q", m.rangeError)
	}
	snap := m.Snapshot()
	if snap.ProjectCount != 2 {
		t.Fatalf("expected 2 projects from 2014-03, got %d", snap.ProjectCount)
	}
	if len(snap.Filters) != 1 || snap.Filters[0].Description != "2014-03 to 2014-03" {
		t.Fatalf("unexpected filters %+v", snap.Filters)
	}

	press(m, "c")
	if got := m.Snapshot().ProjectCount; got != 3 {
		t.Fatalf("expected c on overview to clear dates, got %d", got)
	}
}

func TestDateRangeFormRejectsInvertedRange(t *testing.T) {
	m := newTestModel(t)
	press(m, "/", "2014-03", "tab", "2014-01", "enter")
	if !m.rangeMode || m.rangeError == "" {
		t.Fatalf("expected form to stay open with an error")
	}
	if got := m.Snapshot().ProjectCount; got != 3 {
		t.Fatalf("expected no filter change, got %d", got)
	}
	press(m, "esc")
	if m.rangeMode {
		t.Fatalf("expected esc to close the form")
	}
}

func TestViewRendersTabsAndSummary(t *testing.T) {
	m := newTestModel(t)
	view := m.View()
	for _, want := range []string{"Overview", "States", "Projects: 3"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
	if lines := strings.Split(view, "\n"); len(lines) != 40 {
		t.Fatalf("expected view to fill 40 lines, got %d", len(lines))
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateLine("abc", 6); got != "abc" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
