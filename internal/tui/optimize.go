package tui

import (
	"context"
	"fmt"
	"strings"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/series"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Optimize message types.
type optimizeReportMsg struct {
	report backtest.Report
	found  bool
}
type optimizeErrMsg struct{ err error }

const (
	optimizeViewBest   = 0
	optimizeViewTrials = 1
)

// OptimizeModel shows the optimizer's best parameters and top trials.
type OptimizeModel struct {
	services   Services
	report     backtest.Report
	found      bool
	activeView int
	loading    bool
	running    bool
	err        error
	width      int
	height     int
}

func NewOptimizeModel(svc Services) OptimizeModel {
	return OptimizeModel{
		services: svc,
		loading:  true,
	}
}

func (m OptimizeModel) Init() tea.Cmd {
	return m.fetchLatestCmd()
}

func (m OptimizeModel) Update(msg tea.Msg) (OptimizeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case optimizeReportMsg:
		m.report = msg.report
		m.found = msg.found
		m.loading = false
		m.running = false
		m.err = nil
		return m, nil

	case optimizeErrMsg:
		m.err = msg.err
		m.loading = false
		m.running = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.ToggleView):
			m.activeView = 1 - m.activeView
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchLatestCmd()

		case key.Matches(msg, DefaultKeyMap.RunOptimize):
			if m.running {
				return m, nil
			}
			m.running = true
			return m, m.runCmd()
		}
	}

	return m, nil
}

func (m OptimizeModel) View() string {
	var sections []string

	viewLabel := "[Best]  Trials"
	if m.activeView == optimizeViewTrials {
		viewLabel = " Best  [Trials]"
	}
	sections = append(sections, HeaderStyle.Render("  Threshold Optimizer")+"  "+SubtextStyle.Render(viewLabel))
	sections = append(sections, "")

	if m.running {
		sections = append(sections, SubtextStyle.Render("  Running grid search..."))
	}

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading optimizer report..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if !m.found {
		sections = append(sections, SubtextStyle.Render("  No optimizer report yet. Press o to run one."))
	} else if m.activeView == optimizeViewBest {
		sections = append(sections, m.renderBestView()...)
	} else {
		sections = append(sections, m.renderTrialsView()...)
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [v] toggle view  [o] run  [R] refresh"))

	return strings.Join(sections, "\n")
}

func (m *OptimizeModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// ActiveView returns the current view index (for testing).
func (m OptimizeModel) ActiveView() int { return m.activeView }

// Found reports whether a report has been loaded.
func (m OptimizeModel) Found() bool { return m.found }

func (m OptimizeModel) renderBestView() []string {
	r := m.report
	barWidth := m.width/3 - 5
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 30 {
		barWidth = 30
	}

	lines := []string{
		HeaderStyle.Render(fmt.Sprintf("  Best of %d combinations (score %s)",
			r.TotalCombinations, series.Format(r.BestScore, series.DisplayPlaces))),
		"",
		"  " + RenderBarChart("Return %", r.BestResult.TotalReturn, 100, barWidth),
		"  " + RenderBarChart("Win rate %", r.BestResult.WinRate, 100, barWidth),
		"  " + RenderBarChart("Drawdown %", r.BestResult.MaxDrawdown, 100, barWidth),
		fmt.Sprintf("  %-14s %d", "Trades", r.BestResult.Trades),
		"",
		HeaderStyle.Render("  Parameters"),
	}
	for _, p := range paramRows(r.BestParams) {
		lines = append(lines, fmt.Sprintf("  %-24s %s", p.name, series.Format(p.value, 3)))
	}
	return lines
}

func (m OptimizeModel) renderTrialsView() []string {
	if len(m.report.TopResults) == 0 {
		return []string{SubtextStyle.Render("  No trials recorded.")}
	}

	lines := []string{
		HeaderStyle.Render("  Top Trials"),
		"",
		SubtextStyle.Render(fmt.Sprintf("  %-3s %8s %8s %8s %6s   %-5s %-5s %-5s %-5s %-5s %-5s %-5s",
			"#", "Return", "WinRate", "MDD", "Trades", "bTC", "sTC", "MACD", "RSI", "BB", "MA", "Adj")),
		SubtextStyle.Render("  " + strings.Repeat("─", 85)),
	}

	maxRows := m.height - 10
	if maxRows < 5 {
		maxRows = 5
	}
	count := len(m.report.TopResults)
	if count > maxRows {
		count = maxRows
	}

	for i := 0; i < count; i++ {
		t := m.report.TopResults[i]
		p := t.Params
		lines = append(lines, fmt.Sprintf("  %-3d %8s %8s %8s %6d   %-5s %-5s %-5s %-5s %-5s %-5s %-5s",
			i+1,
			series.Format(t.Result.TotalReturn, series.DisplayPlaces),
			series.Format(t.Result.WinRate, series.DisplayPlaces),
			series.Format(t.Result.MaxDrawdown, series.DisplayPlaces),
			t.Result.Trades,
			series.Format(p.BuyTrendCoefficient, series.DisplayPlaces),
			series.Format(p.SellTrendCoefficient, series.DisplayPlaces),
			series.Format(p.MACDWeight, series.DisplayPlaces),
			series.Format(p.RSIWeight, series.DisplayPlaces),
			series.Format(p.BBWeight, series.DisplayPlaces),
			series.Format(p.MAWeight, series.DisplayPlaces),
			series.Format(p.AdjustmentFactor, series.DisplayPlaces),
		))
	}

	if len(m.report.TopResults) > maxRows {
		lines = append(lines, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d of %d trials", count, len(m.report.TopResults)),
		))
	}
	return lines
}

type paramRow struct {
	name  string
	value float64
}

func paramRows(p backtest.Params) []paramRow {
	return []paramRow{
		{"buy_trend_coefficient", p.BuyTrendCoefficient},
		{"sell_trend_coefficient", p.SellTrendCoefficient},
		{"macd_weight", p.MACDWeight},
		{"rsi_weight", p.RSIWeight},
		{"bb_weight", p.BBWeight},
		{"ma_weight", p.MAWeight},
		{"adjustment_factor", p.AdjustmentFactor},
	}
}

func (m OptimizeModel) fetchLatestCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Optimize == nil {
			return optimizeErrMsg{err: fmt.Errorf("optimizer not available")}
		}
		report, found, err := m.services.Optimize.Latest(context.Background())
		if err != nil {
			return optimizeErrMsg{err: err}
		}
		return optimizeReportMsg{report: report, found: found}
	}
}

func (m OptimizeModel) runCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Optimize == nil {
			return optimizeErrMsg{err: fmt.Errorf("optimizer not available")}
		}
		report, err := m.services.Optimize.Run(context.Background())
		if err != nil {
			return optimizeErrMsg{err: err}
		}
		return optimizeReportMsg{report: report, found: true}
	}
}
