// Package statsui provides the Bubble Tea stage report viewer.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/popkit/internal/model"
	"github.com/verte-zerg/popkit/internal/stage"
	"github.com/verte-zerg/popkit/internal/stats"
)

const (
	tabOverview = iota
	tabStages
	tabPairs
	tabCurves
)

const (
	plotHeight        = 10
	defaultCurveCount = 5
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3A8FC8"))
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
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	priorityStyles  = map[stage.Priority]lipgloss.Style{
		stage.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF7A45")).Bold(true),
		stage.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("#FADB14")),
		stage.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")),
	}
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3A8FC8")).
			Padding(1, 2)
)

// PlaySource loads play history for the viewer.
type PlaySource interface {
	ListPlays(ctx context.Context, filter model.PlayFilter) ([]model.Play, error)
}

// StaticPlays is a PlaySource over plays already in memory.
type StaticPlays []model.Play

// ListPlays filters the plays in memory.
func (p StaticPlays) ListPlays(_ context.Context, filter model.PlayFilter) ([]model.Play, error) {
	return model.FilterPlays(p, filter), nil
}

// Model implements the Bubble Tea stage report viewer.
type Model struct {
	source   PlaySource
	analyzer *stage.Analyzer
	cfg      model.AnalyzeConfig

	cmp    stage.Comparison
	plays  map[string][]model.Play
	errMsg string

	tabs        []string
	activeTab   int
	viewports   []viewport.Model
	stageTable  table.Model
	stageLayout tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string

	curveSelection       []string
	curveSelectionCustom bool

	stageInputMode bool
	stageInput     textinput.Model
}

type tableLayout struct {
	width  int
	height int
}

// NewModel constructs a stage report viewer and loads the first report.
func NewModel(src PlaySource, analyzer *stage.Analyzer, cfg model.AnalyzeConfig) *Model {
	m := &Model{
		source:   src,
		analyzer: analyzer,
		cfg:      cfg,
		tabs:     []string{"Overview", "Stages", "Pairs", "Curves"},
	}
	if m.cfg.CurveWindow < 1 {
		m.cfg.CurveWindow = 5
	}
	m.initInputs()
	m.initStageInput()
	m.stageTable = table.New(table.WithStyles(stageTableStyles()))
	m.initViewports()
	m.refreshReport()
	return m
}

// Comparison returns the report currently shown.
func (m *Model) Comparison() stage.Comparison {
	return m.cmp
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
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (msg.String() == "q" && !m.filterMode && !m.stageInputMode) {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.stageInputMode {
			return m.updateStageInput(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.renderTabContents()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.renderTabContents()
			return m, nil
		case "r":
			m.refreshReport()
			return m, nil
		case "/":
			return m.startFilter()
		case "enter":
			if m.activeTab == tabCurves {
				return m.startStageInput()
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabStages {
				m.stageTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabStages {
				m.stageTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabStages {
				var cmd tea.Cmd
				m.stageTable, cmd = m.stageTable.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.stageInputMode {
		return fitLines(m.renderStageModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newInput("Stages (comma separated): "),
		newInput("Since (YYYY-MM-DD): "),
		newInput("Last plays per stage: "),
		newInput("Curve window: "),
	}
	m.setInputsFromConfig()
}

func (m *Model) initStageInput() {
	m.stageInput = newInput("Stages: ")
	m.stageInput.Placeholder = "stage_1,stage_2"
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[0].SetValue(strings.Join(m.cfg.Stages, ","))
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[1].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[2].SetValue("")
	}
	m.filterInputs[3].SetValue(strconv.Itoa(m.cfg.CurveWindow))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.setStageTableSize(m.width, bodyHeight)
	for i := range m.filterInputs {
		m.filterInputs[i].Width = max(10, m.width-lipgloss.Width(m.filterInputs[i].Prompt)-2)
	}
	m.stageInput.Width = max(10, modalInnerWidth(m.width)-lipgloss.Width(m.stageInput.Prompt))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	if m.activeTab == tabStages {
		m.stageTable.Focus()
	} else {
		m.stageTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	return padLines(m.renderTabs(), m.width) + "\n" + padLines(m.renderFilterSummary(), m.width)
}

func (m *Model) renderFilterSummary() string {
	stages := "all"
	if len(m.cfg.Stages) > 0 {
		stages = strings.Join(m.cfg.Stages, ",")
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Settings: stages=%s  since=%s  last=%s  window=%d", stages, since, last, m.cfg.CurveWindow)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Reload: r  Quit: q"
	if m.activeTab == tabCurves {
		help = "Nav: left/right  Scroll: up/down/pgup/pgdn  Pick stages: enter  Window: -/=  Settings: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabStages {
		if len(m.cmp.Stages) == 0 {
			return fitLines("No plays found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.stageTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshReport() {
	plays, err := m.source.ListPlays(context.Background(), m.cfg.PlayFilter)
	if err != nil {
		m.errMsg = err.Error()
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load plays.")
		}
		return
	}
	m.errMsg = ""
	m.plays = model.GroupByStage(plays)
	m.cmp = m.analyzer.Compare(m.plays)
	if !m.curveSelectionCustom {
		m.curveSelection = busiestStages(m.cmp, defaultCurveCount)
	}
	m.applyStageTable()
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.cmp, width))
	m.viewports[tabPairs].SetContent(renderPairs(m.cmp, width))
	m.viewports[tabCurves].SetContent(renderCurves(m.plays, m.curveSelection, m.cfg.CurveWindow, width))
}

func renderOverview(cmp stage.Comparison, width int) string {
	if len(cmp.Stages) == 0 {
		return "No plays found."
	}
	plays := 0
	for _, st := range cmp.Summary {
		plays += st.PlayCount
	}
	cards := []string{
		metricCard("Stages", strconv.Itoa(len(cmp.Stages))),
		metricCard("Plays", strconv.Itoa(plays)),
		metricCard("Avg Score", fmt.Sprintf("%.0f", cmp.Trends.Performance.AverageScore.Mean)),
		metricCard("Avg Accuracy", fmt.Sprintf("%.1f%%", cmp.Trends.Performance.AverageAccuracy.Mean*100)),
		metricCard("Consistency", fmt.Sprintf("%.2f", cmp.Trends.ConsistencyAcrossStages)),
	}
	if cmp.Trends.Mastery != nil {
		cards = append(cards, metricCard("Mastery", fmt.Sprintf("%.1f", cmp.Trends.Mastery.Overall)))
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		half := (len(cards) + 1) / 2
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[:half]...)
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[half:]...)
		summary = lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}

	lines := []string{summary, ""}
	if len(cmp.Trends.Strongest) > 0 {
		lines = append(lines, "Strongest: "+rankings(cmp.Trends.Strongest))
	}
	if len(cmp.Trends.Weakest) > 0 {
		lines = append(lines, "Weakest:   "+rankings(cmp.Trends.Weakest))
	}
	if len(cmp.Recommendations) > 0 {
		lines = append(lines, "", "Recommendations")
		for _, r := range cmp.Recommendations {
			style, ok := priorityStyles[r.Priority]
			if !ok {
				style = headerStyle
			}
			tag := fmt.Sprintf("[%s] ", r.Priority)
			wrapped := wrapText(tag+r.Message, width, strings.Repeat(" ", runewidth.StringWidth(tag)))
			wrapped[0] = style.Render(strings.TrimSpace(tag)) + " " + strings.TrimPrefix(wrapped[0], tag)
			lines = append(lines, wrapped...)
		}
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func rankings(rs []stage.Ranking) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = fmt.Sprintf("%s (%.1f)", r.ID, r.Rating)
	}
	return strings.Join(parts, ", ")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderPairs(cmp stage.Comparison, width int) string {
	if len(cmp.Individual) == 0 {
		return "Pairwise comparisons need at least two stages."
	}
	lines := append([]string{headerStyle.Render("p-values, * marks a significant difference")}, stage.PairTable(cmp).Lines()...)
	keys := make([]string, 0, len(cmp.Individual))
	for k := range cmp.Individual {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pc := cmp.Individual[k]
		if len(pc.Recommendations) == 0 {
			continue
		}
		lines = append(lines, "", k)
		for _, r := range pc.Recommendations {
			lines = append(lines, wrapText("  - "+r, width, "    ")...)
		}
	}
	return strings.Join(lines, "\n")
}

func renderCurves(plays map[string][]model.Play, selection []string, window, width int) string {
	if len(plays) == 0 {
		return "No plays found."
	}
	if len(selection) == 0 {
		return "No stages selected. Press Enter to pick stages."
	}
	var series []stats.Series
	for _, id := range selection {
		group := plays[id]
		if len(group) == 0 {
			continue
		}
		scores := make([]float64, len(group))
		for i, p := range group {
			scores[i] = p.Score
		}
		series = append(series, stats.Series{Name: id, Values: stats.MovingAverage(scores, window)})
	}
	if len(series) == 0 {
		return "Selected stages have no plays."
	}
	var buf bytes.Buffer
	title := fmt.Sprintf("Score (moving average, window %d)", window)
	if err := stats.PlotSeriesWithColor(&buf, title, series, stats.PlotWidthFor(width), plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// busiestStages returns up to n stage ids with the most plays.
func busiestStages(cmp stage.Comparison, n int) []string {
	ids := append([]string(nil), cmp.Stages...)
	sort.SliceStable(ids, func(i, j int) bool {
		return cmp.Summary[ids[i]].PlayCount > cmp.Summary[ids[j]].PlayCount
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func (m *Model) applyStageTable() {
	cols, rows := stageTableData(stage.SummaryTable(m.cmp))
	m.stageTable.SetRows(nil)
	m.stageTable.SetColumns(cols)
	m.stageTable.SetRows(rows)
	m.stageLayout = tableLayout{}
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.setStageTableSize(width, bodyHeight)
}

// stageTableData converts a text table into bubbles columns sized to fit
// the widest cell.
func stageTableData(t stats.Table) ([]table.Column, []table.Row) {
	cols := make([]table.Column, len(t.Headers))
	for i, h := range t.Headers {
		cols[i] = table.Column{Title: h, Width: runewidth.StringWidth(h)}
	}
	rows := make([]table.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		for i, cell := range r {
			if i < len(cols) {
				cols[i].Width = max(cols[i].Width, runewidth.StringWidth(cell))
			}
		}
		rows = append(rows, table.Row(r))
	}
	return cols, rows
}

func (m *Model) setStageTableSize(width, height int) {
	viewportHeight := max(1, height-1)
	if m.stageLayout.width == width && m.stageLayout.height == viewportHeight {
		return
	}
	m.stageLayout = tableLayout{width: width, height: viewportHeight}
	m.stageTable.SetWidth(width)
	m.stageTable.SetHeight(viewportHeight)
}

func stageTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	cfg, err := parseFilter(
		m.filterInputs[0].Value(),
		m.filterInputs[1].Value(),
		m.filterInputs[2].Value(),
		m.filterInputs[3].Value(),
	)
	if err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}

func parseFilter(stagesInput, sinceInput, lastInput, windowInput string) (model.AnalyzeConfig, error) {
	var cfg model.AnalyzeConfig
	cfg.Stages = splitStages(stagesInput)

	if s := strings.TrimSpace(sinceInput); s != "" {
		parsed, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return cfg, fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		cfg.Since = &parsed
	}
	if s := strings.TrimSpace(lastInput); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			return cfg, fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		cfg.Last = parsed
	}
	cfg.CurveWindow = 5
	if s := strings.TrimSpace(windowInput); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			return cfg, fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		cfg.CurveWindow = parsed
	}
	return cfg, nil
}

func splitStages(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (m *Model) startStageInput() (tea.Model, tea.Cmd) {
	m.stageInputMode = true
	m.stageInput.SetValue(strings.Join(m.curveSelection, ","))
	return m, m.stageInput.Focus()
}

func (m *Model) updateStageInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stageInputMode = false
		return m, nil
	case tea.KeyEnter:
		if stages := splitStages(m.stageInput.Value()); len(stages) > 0 {
			m.curveSelection = stages
			m.curveSelectionCustom = true
		} else {
			m.curveSelection = busiestStages(m.cmp, defaultCurveCount)
			m.curveSelectionCustom = false
		}
		m.stageInputMode = false
		m.renderTabContents()
		return m, nil
	}
	var cmd tea.Cmd
	m.stageInput, cmd = m.stageInput.Update(msg)
	return m, cmd
}

func (m *Model) renderStageModal() string {
	body := []string{
		cardValueStyle.Render("Select Stages"),
		m.stageInput.View(),
		headerStyle.Render("Comma separated stage ids. Empty picks the busiest stages."),
		headerStyle.Render("Enter to apply / Esc to cancel"),
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	return (n/5 + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func modalWidth(width int) int {
	return max(40, min(width-4, 80))
}

func modalInnerWidth(width int) int {
	// 2 border + 4 padding
	return max(10, modalWidth(width)-6)
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
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
