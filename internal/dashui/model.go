// Package dashui provides the Bubble Tea dashboard interface.
package dashui

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/donordash/internal/crossfilter"
	"github.com/verte-zerg/donordash/internal/donors"
	"github.com/verte-zerg/donordash/internal/model"
	"github.com/verte-zerg/donordash/internal/report"
)

const (
	tabOverview = iota
	tabResources
	tabPoverty
	tabStates
	tabGrades
)

const defaultPlotHeight = 8

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#0089FF"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ED2FF")).Bold(true)
)

type tabSpec struct {
	title string
	dim   string
}

// Model implements the Bubble Tea dashboard.
type Model struct {
	dash     *donors.Dashboard
	settings model.Settings

	snap   donors.Snapshot
	errMsg string

	tabs      []tabSpec
	activeTab int
	overview  viewport.Model
	tables    map[int]*table.Model
	keys      map[int][]string

	width  int
	height int

	rangeMode   bool
	rangeInputs []textinput.Model
	rangeIndex  int
	rangeError  string
}

// NewModel constructs a dashboard UI over d.
func NewModel(d *donors.Dashboard, settings model.Settings) *Model {
	if settings.PlotHeight <= 0 {
		settings.PlotHeight = defaultPlotHeight
	}
	m := &Model{
		dash:     d,
		settings: settings,
		tabs: []tabSpec{
			{title: "Overview"},
			{title: "Resources", dim: donors.DimResourceType},
			{title: "Poverty", dim: donors.DimPovertyLevel},
			{title: "States", dim: donors.DimState},
			{title: "Grades", dim: donors.DimGradeLevel},
		},
		overview: viewport.New(0, 0),
		tables:   map[int]*table.Model{},
		keys:     map[int][]string{},
	}
	for i, tab := range m.tabs {
		if tab.dim == "" {
			continue
		}
		t := table.New(table.WithStyles(tableStyles()))
		m.tables[i] = &t
	}
	m.rangeInputs = []textinput.Model{
		newRangeInput("From (YYYY-MM): "),
		newRangeInput("To (YYYY-MM): "),
	}
	m.refresh()
	return m
}

// Snapshot returns the data currently on screen.
func (m *Model) Snapshot() donors.Snapshot {
	return m.snap
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.rangeMode {
			return m.updateRange(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.tables[m.activeTab]
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		m.moveTab(-1)
		return m, tea.ClearScreen
	case "right", "l":
		m.moveTab(1)
		return m, tea.ClearScreen
	case "enter", " ":
		m.toggleCursor()
		return m, nil
	case "c":
		m.clearCurrent()
		return m, nil
	case "C":
		m.dash.ClearAll()
		m.refresh()
		return m, nil
	case "/":
		return m.startRange()
	case "g", "home":
		if t != nil {
			t.GotoTop()
		} else {
			m.overview.GotoTop()
		}
		return m, nil
	case "G", "end":
		if t != nil {
			t.GotoBottom()
		} else {
			m.overview.GotoBottom()
		}
		return m, nil
	}
	var cmd tea.Cmd
	if t != nil {
		*t, cmd = t.Update(msg)
		return m, cmd
	}
	m.overview, cmd = m.overview.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func newRangeInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = len("2006-01")
	input.Placeholder = "YYYY-MM"
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(lipgloss.Height(activeNavStyle.Render("X")), 1)
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.rangeMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(m.height-headerHeight-footerHeight, 1)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	for i, t := range m.tables {
		t.SetColumns(m.columns(i))
		t.SetWidth(m.width)
		t.SetHeight(max(bodyHeight-1, 1))
	}
	for i := range m.rangeInputs {
		promptWidth := lipgloss.Width(m.rangeInputs[i].Prompt)
		m.rangeInputs[i].Width = max(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	for i, t := range m.tables {
		if i == m.activeTab {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

// refresh re-reads every group after a filter change.
func (m *Model) refresh() {
	snap, err := m.dash.Snapshot()
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.snap = snap
	m.renderContents()
}

func (m *Model) renderContents() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.snap, width, m.settings.PlotHeight, m.settings.Color))
	for i, t := range m.tables {
		keys, rows := m.rows(i)
		m.keys[i] = keys
		t.SetColumns(m.columns(i))
		t.SetRows(rows)
	}
}

func (m *Model) toggleCursor() {
	t := m.tables[m.activeTab]
	if t == nil {
		return
	}
	keys := m.keys[m.activeTab]
	idx := t.Cursor()
	if idx < 0 || idx >= len(keys) {
		return
	}
	if err := m.dash.Toggle(m.tabs[m.activeTab].dim, keys[idx]); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.refresh()
}

func (m *Model) clearCurrent() {
	dim := m.tabs[m.activeTab].dim
	if dim == "" {
		dim = donors.DimDate
	}
	if err := m.dash.ClearFilter(dim); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.refresh()
}

func (m *Model) columns(tab int) []table.Column {
	width := max(m.width, 40)
	switch tab {
	case tabStates:
		return []table.Column{
			{Title: " ", Width: 1},
			{Title: "State", Width: 5},
			{Title: "Name", Width: max(width-44, 12)},
			{Title: "Donations", Width: 14},
			{Title: "Shade", Width: 10},
		}
	case tabResources, tabPoverty:
		return []table.Column{
			{Title: " ", Width: 1},
			{Title: m.tabs[tab].title, Width: max(width-22, 12)},
			{Title: "Projects", Width: 12},
		}
	default:
		return []table.Column{
			{Title: " ", Width: 1},
			{Title: "Grade level", Width: max(width-22, 12)},
			{Title: "Donations", Width: 14},
		}
	}
}

// rows returns table rows for a tab and the bucket key behind each row.
// States are ordered by donations, largest first; other tabs keep key order.
func (m *Model) rows(tab int) ([]string, []table.Row) {
	var buckets []crossfilter.Bucket[string]
	format := func(v float64) string { return report.FormatCount(int(v)) }
	switch tab {
	case tabResources:
		buckets = m.snap.ProjectsByResourceType
	case tabPoverty:
		buckets = m.snap.ProjectsByPovertyLevel
	case tabStates:
		buckets = slices.Clone(m.snap.DonationsByState)
		slices.SortStableFunc(buckets, func(a, b crossfilter.Bucket[string]) int {
			switch {
			case a.Value > b.Value:
				return -1
			case a.Value < b.Value:
				return 1
			}
			return 0
		})
		format = report.FormatDollars
	case tabGrades:
		buckets = m.snap.DonationsByGrade
		format = report.FormatDollars
	}
	selected := m.snap.Selected[m.tabs[tab].dim]
	keys := make([]string, len(buckets))
	rows := make([]table.Row, len(buckets))
	for i, b := range buckets {
		keys[i] = b.Key
		mark := " "
		if slices.Contains(selected, b.Key) {
			mark = "*"
		}
		label := b.Key
		if label == "" {
			label = "(blank)"
		}
		if tab == tabStates {
			shade := report.ShadeIndex(b.Value, m.snap.MaxStateTotal)
			rows[i] = table.Row{mark, label, report.StateName(b.Key), format(b.Value), strings.Repeat("■", shade+1)}
			continue
		}
		rows[i] = table.Row{mark, label, format(b.Value)}
	}
	return keys, rows
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		PaddingLeft(0)
	styles.Cell = styles.Cell.PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#1E3A5F")).
		Bold(true)
	return styles
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		title := tab.title
		if tab.dim != "" && len(m.snap.Selected[tab.dim]) > 0 {
			title += "*"
		}
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(title))
		} else {
			parts = append(parts, inactiveNavStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Projects: %s  Donations: $%s  Filters: %s",
		report.FormatCount(m.snap.ProjectCount),
		report.FormatSI(m.snap.TotalDonations),
		report.DescribeFilters(m.snap.Filters))
	return tabs + "\n" + padLine(headerStyle.Render(truncateLine(summary, m.width)), m.width)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down  Dates: /  Clear dates: c  Clear all: C  Quit: q"
	if m.tabs[m.activeTab].dim != "" {
		help = "Nav: left/right  Move: up/down  Toggle: enter  Clear: c  Clear all: C  Dates: /  Quit: q"
	}
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderFooter() string {
	if m.rangeMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderBody() string {
	if m.rangeMode {
		return m.renderRangeForm()
	}
	if t := m.tables[m.activeTab]; t != nil {
		if len(t.Rows()) == 0 {
			return "No data."
		}
		return t.View()
	}
	return m.overview.View()
}

func renderOverview(snap donors.Snapshot, width, plotHeight int, color bool) string {
	posted := "n/a"
	if snap.HasDates {
		posted = fmt.Sprintf("%s to %s", snap.MinDate, snap.MaxDate)
	}
	cards := []string{
		metricCard("Projects", report.FormatCount(snap.ProjectCount)),
		metricCard("Total donations", "$"+report.FormatSI(snap.TotalDonations)),
		metricCard("Posted", posted),
	}
	var summary string
	if width < 60 {
		summary = lipgloss.JoinVertical(lipgloss.Left, cards...)
	} else {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	if len(snap.Filters) > 0 {
		summary += "\n" + selectedStyle.Render("Filters: "+report.DescribeFilters(snap.Filters))
	}

	var buf bytes.Buffer
	opts := report.Options{Width: width, PlotHeight: plotHeight, Color: color}
	for _, render := range []func() error{
		func() error { return report.RenderTimeline(&buf, snap, opts) },
		func() error { return report.RenderPovertyStack(&buf, snap, opts) },
		func() error { return report.RenderGradeRanks(&buf, snap, opts) },
	} {
		if err := render(); err != nil {
			return fmt.Sprintf("Failed to render charts: %v", err)
		}
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func (m *Model) startRange() (tea.Model, tea.Cmd) {
	m.rangeMode = true
	m.rangeError = ""
	from, to, ok := m.dash.DateFilter()
	if ok {
		m.rangeInputs[0].SetValue(from.String())
		m.rangeInputs[1].SetValue(to.String())
	} else {
		m.rangeInputs[0].SetValue("")
		m.rangeInputs[1].SetValue("")
	}
	return m, m.setRangeIndex(0)
}

func (m *Model) updateRange(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.rangeMode = false
		m.rangeError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyRange(); err != nil {
			m.rangeError = err.Error()
			return m, nil
		}
		m.rangeMode = false
		m.rangeError = ""
		m.refresh()
		return m, nil
	case tea.KeyTab:
		return m, m.setRangeIndex(m.rangeIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setRangeIndex(m.rangeIndex - 1)
	}
	var cmd tea.Cmd
	m.rangeInputs[m.rangeIndex], cmd = m.rangeInputs[m.rangeIndex].Update(msg)
	return m, cmd
}

func (m *Model) setRangeIndex(idx int) tea.Cmd {
	count := len(m.rangeInputs)
	m.rangeIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.rangeInputs {
		if i == m.rangeIndex {
			cmd = m.rangeInputs[i].Focus()
		} else {
			m.rangeInputs[i].Blur()
		}
	}
	return cmd
}

// applyRange filters the date dimension to the inclusive months entered.
// Both fields empty clears the filter; one empty field falls back to the
// matching end of the data.
func (m *Model) applyRange() error {
	fromInput := strings.TrimSpace(m.rangeInputs[0].Value())
	toInput := strings.TrimSpace(m.rangeInputs[1].Value())
	if fromInput == "" && toInput == "" {
		return m.dash.ClearFilter(donors.DimDate)
	}
	lo, hi, ok := m.dash.DateRange()
	if !ok {
		return fmt.Errorf("no dates to filter")
	}
	from, to := lo, hi
	var err error
	if fromInput != "" {
		if from, err = model.ParseMonth(fromInput); err != nil {
			return err
		}
	}
	if toInput != "" {
		if to, err = model.ParseMonth(toInput); err != nil {
			return err
		}
	}
	if from > to {
		return fmt.Errorf("from month %s is after to month %s", from, to)
	}
	return m.dash.FilterDate(from, to+1)
}

func (m *Model) renderRangeForm() string {
	lines := []string{"Date posted (enter to apply, esc to cancel, both empty clears)"}
	for _, input := range m.rangeInputs {
		lines = append(lines, input.View())
	}
	if m.rangeError != "" {
		lines = append(lines, errorStyle.Render(m.rangeError))
	}
	return strings.Join(lines, "\n")
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
