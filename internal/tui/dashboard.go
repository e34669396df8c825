package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
	"kimchi-signal/internal/service"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	dashboardDays  = 30
	dashboardTick  = 30 * time.Second
	bandTableLimit = 7
)

// Dashboard message types.
type monitorMsg domain.MonitorResult
type monitorErrMsg struct{ err error }
type premiumMsg struct {
	premium    domain.TimeSeries
	thresholds domain.ThresholdSeries
}
type premiumErrMsg struct{ err error }
type dashTickMsg time.Time

// DashboardModel shows the live monitor result next to the recent premium and band.
type DashboardModel struct {
	services   Services
	monitor    *domain.MonitorResult
	monitorErr error
	premium    domain.TimeSeries
	thresholds domain.ThresholdSeries
	loading    bool
	err        error
	width      int
	height     int
}

func NewDashboardModel(svc Services) DashboardModel {
	return DashboardModel{
		services: svc,
		loading:  true,
	}
}

// Init fires initial data fetch commands.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchPremiumCmd(),
		m.fetchMonitorCmd(),
		m.tickCmd(),
	)
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case premiumMsg:
		m.premium = msg.premium
		m.thresholds = msg.thresholds
		m.loading = false
		m.err = nil
		return m, nil

	case premiumErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case monitorMsg:
		res := domain.MonitorResult(msg)
		m.monitor = &res
		m.monitorErr = nil
		return m, nil

	case monitorErrMsg:
		// Non-critical; the stored series still render.
		m.monitorErr = msg.err
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(
			m.fetchPremiumCmd(),
			m.fetchMonitorCmd(),
			m.tickCmd(),
		)

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Refresh) {
			return m, tea.Batch(m.fetchPremiumCmd(), m.fetchMonitorCmd())
		}
	}

	return m, nil
}

func (m DashboardModel) View() string {
	if m.loading && len(m.premium) == 0 {
		return SubtextStyle.Render("Loading premium data...")
	}
	if m.err != nil && len(m.premium) == 0 {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	leftWidth := m.width/2 - 2
	if leftWidth < 40 {
		leftWidth = 40
	}
	rightWidth := m.width - leftWidth - 4
	if rightWidth < 30 {
		rightWidth = 30
	}

	monitorBox := BorderStyle.Width(leftWidth).Render(m.renderMonitor())
	premiumBox := BorderStyle.Width(rightWidth).Render(m.renderPremium(rightWidth - 4))
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, monitorBox, premiumBox)

	bandBox := BorderStyle.Width(m.width - 2).Render(m.renderBands())
	return lipgloss.JoinVertical(lipgloss.Left, topRow, bandBox)
}

func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Monitor returns the last monitor result (for testing).
func (m DashboardModel) Monitor() *domain.MonitorResult { return m.monitor }

// Premium returns the loaded premium series (for testing).
func (m DashboardModel) Premium() domain.TimeSeries { return m.premium }

func (m DashboardModel) renderMonitor() string {
	lines := []string{HeaderStyle.Render("  Monitor")}
	switch {
	case m.monitor != nil:
		r := m.monitor
		lines = append(lines,
			fmt.Sprintf("  USDT     %s", formatKRW(r.USDTPrice)),
			fmt.Sprintf("  Buy at   %s", formatKRW(r.BuyPrice)),
			fmt.Sprintf("  Sell at  %s", formatKRW(r.SellPrice)),
			fmt.Sprintf("  Action   %s", FormatAction(r.Action)),
			SubtextStyle.Render("  strategy "+r.LatestStrategyDate),
		)
		if r.Premium != nil {
			lines = append(lines, fmt.Sprintf("  Premium  %s  %s", FormatPremium(*r.Premium), SubtextStyle.Render(r.PremiumDate)))
		}
	case errors.Is(m.monitorErr, service.ErrNoStrategy):
		lines = append(lines, SubtextStyle.Render("  No strategy yet. Run an analysis from the Strategy tab."))
	case m.monitorErr != nil:
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  %v", m.monitorErr)))
	default:
		lines = append(lines, SubtextStyle.Render("  Checking live price..."))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderPremium(width int) string {
	lines := []string{HeaderStyle.Render(fmt.Sprintf("  Kimchi Premium (%dd)", dashboardDays))}
	date, latest, ok := m.premium.Latest()
	if !ok {
		lines = append(lines, SubtextStyle.Render("  No premium data"))
		return strings.Join(lines, "\n")
	}
	lines = append(lines,
		fmt.Sprintf("  %s  %s", date, FormatPremium(latest)),
		"  "+Sparkline(m.premium, width),
	)
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderBands() string {
	lines := []string{
		HeaderStyle.Render("  Threshold Band"),
		SubtextStyle.Render("  Date         Premium      Buy     Sell    Trend"),
		SubtextStyle.Render("  " + strings.Repeat("─", 50)),
	}

	dates := m.thresholds.Dates()
	if len(dates) == 0 {
		lines = append(lines, SubtextStyle.Render("  No thresholds computed"))
		return strings.Join(lines, "\n")
	}
	if len(dates) > bandTableLimit {
		dates = dates[len(dates)-bandTableLimit:]
	}
	for i := len(dates) - 1; i >= 0; i-- {
		d := dates[i]
		rec := m.thresholds[d]
		premium := "-"
		if v, ok := m.premium[d]; ok {
			premium = series.Format(v, series.DisplayPlaces)
		}
		lines = append(lines, fmt.Sprintf("  %s %8s %8s %8s %8s",
			d,
			premium,
			series.Format(rec.BuyThreshold, series.DisplayPlaces),
			series.Format(rec.SellThreshold, series.DisplayPlaces),
			series.Format(rec.Trend, series.DisplayPlaces),
		))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) fetchPremiumCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Pipeline == nil {
			return premiumErrMsg{err: fmt.Errorf("pipeline service not available")}
		}
		ctx := context.Background()
		premium, err := m.services.Pipeline.Series(ctx, domain.SeriesPremium, dashboardDays)
		if err != nil {
			return premiumErrMsg{err: err}
		}
		thresholds, err := m.services.Pipeline.Thresholds(ctx, dashboardDays)
		if err != nil {
			return premiumErrMsg{err: err}
		}
		return premiumMsg{premium: premium, thresholds: thresholds}
	}
}

func (m DashboardModel) fetchMonitorCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Monitor == nil {
			return monitorErrMsg{err: fmt.Errorf("monitor service not available")}
		}
		res, err := m.services.Monitor.Check(context.Background())
		if err != nil {
			return monitorErrMsg{err: err}
		}
		return monitorMsg(res)
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(dashboardTick, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
