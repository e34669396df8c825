package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab identifies one screen of the console.
type Tab int

const (
	TabDashboard Tab = iota
	TabStrategy
	TabOptimize
	TabAnomaly
	tabCount
)

func (t Tab) title() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabStrategy:
		return "Strategy"
	case TabOptimize:
		return "Optimize"
	case TabAnomaly:
		return "Anomaly"
	}
	return "?"
}

// tabForDigit maps the number keys 1..n onto tabs.
func tabForDigit(s string) (Tab, bool) {
	if len(s) != 1 || s[0] < '1' || s[0] >= '1'+byte(tabCount) {
		return 0, false
	}
	return Tab(s[0] - '1'), true
}

// owner reports which screen a fetched-data message belongs to, so results
// land on their screen even while another tab is shown.
func owner(msg tea.Msg) (Tab, bool) {
	switch msg.(type) {
	case premiumMsg, premiumErrMsg, monitorMsg, monitorErrMsg, dashTickMsg:
		return TabDashboard, true
	case strategyHistoryMsg, strategyErrMsg, strategyAnalyzedMsg, spinner.TickMsg:
		return TabStrategy, true
	case optimizeReportMsg, optimizeErrMsg:
		return TabOptimize, true
	case anomalyReportMsg, anomalyErrMsg:
		return TabAnomaly, true
	}
	return 0, false
}

// AppModel is the console root: a tab bar over four screens and a status line.
type AppModel struct {
	services  Services
	activeTab Tab
	dashboard DashboardModel
	strategy  StrategyModel
	optimize  OptimizeModel
	anomaly   AnomalyModel
	width     int
	height    int
	quitting  bool
}

func NewAppModel(svc Services) AppModel {
	return AppModel{
		services:  svc,
		dashboard: NewDashboardModel(svc),
		strategy:  NewStrategyModel(svc),
		optimize:  NewOptimizeModel(svc),
		anomaly:   NewAnomalyModel(svc),
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.dashboard.Init(), m.strategy.Init(), m.optimize.Init(), m.anomaly.Init())
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.SetSize(size.Width, size.Height)
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(k, DefaultKeyMap.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if next, ok := m.navigate(k); ok {
			m.activeTab = next
			return m, nil
		}
	}

	target, ok := owner(msg)
	if !ok {
		target = m.activeTab
	}
	var cmd tea.Cmd
	m, cmd = m.updateScreen(target, msg)
	return m, cmd
}

// navigate resolves tab switching keys to the tab they select.
func (m AppModel) navigate(k tea.KeyMsg) (Tab, bool) {
	switch {
	case key.Matches(k, DefaultKeyMap.Tab):
		return (m.activeTab + 1) % tabCount, true
	case key.Matches(k, DefaultKeyMap.ShiftTab):
		return (m.activeTab + tabCount - 1) % tabCount, true
	}
	return tabForDigit(k.String())
}

func (m AppModel) updateScreen(t Tab, msg tea.Msg) (AppModel, tea.Cmd) {
	var cmd tea.Cmd
	switch t {
	case TabDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case TabStrategy:
		m.strategy, cmd = m.strategy.Update(msg)
	case TabOptimize:
		m.optimize, cmd = m.optimize.Update(msg)
	case TabAnomaly:
		m.anomaly, cmd = m.anomaly.Update(msg)
	}
	return m, cmd
}

func (m AppModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var body string
	switch m.activeTab {
	case TabDashboard:
		body = m.dashboard.View()
	case TabStrategy:
		body = m.strategy.View()
	case TabOptimize:
		body = m.optimize.View()
	case TabAnomaly:
		body = m.anomaly.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.tabBar(), body, m.statusLine())
}

// SetSize records the terminal size and hands each screen the area left
// between the tab bar and the status line.
func (m *AppModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	inner := h - 3
	m.dashboard.SetSize(w, inner)
	m.strategy.SetSize(w, inner)
	m.optimize.SetSize(w, inner)
	m.anomaly.SetSize(w, inner)
}

func (m AppModel) ActiveTab() Tab { return m.activeTab }

func (m AppModel) tabBar() string {
	cells := make([]string, 0, tabCount)
	for t := Tab(0); t < tabCount; t++ {
		label := string(rune('1'+t)) + ":" + t.title()
		if t == TabAnomaly && m.anomaly.Flagged() > 0 {
			label += "!"
		}
		style := InactiveTabStyle
		if t == m.activeTab {
			style = ActiveTabStyle
		}
		cells = append(cells, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m AppModel) statusLine() string {
	parts := []string{"tab/1-4 switch", "R refresh", "q quit"}
	if r := m.dashboard.Monitor(); r != nil {
		parts = append([]string{"now " + FormatAction(r.Action)}, parts...)
	}
	return SubtextStyle.Render(" " + strings.Join(parts, "  ·  "))
}
