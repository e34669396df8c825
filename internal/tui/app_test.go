package tui

import (
	"context"
	"strings"
	"testing"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"
	"kimchi-signal/internal/strategy"

	tea "github.com/charmbracelet/bubbletea"
)

// --- stub services ---

type stubSeriesQuerier struct {
	premium    domain.TimeSeries
	thresholds domain.ThresholdSeries
	err        error
}

func (s *stubSeriesQuerier) Series(ctx context.Context, name string, days int) (domain.TimeSeries, error) {
	return s.premium, s.err
}

func (s *stubSeriesQuerier) Thresholds(ctx context.Context, days int) (domain.ThresholdSeries, error) {
	return s.thresholds, s.err
}

type stubStrategyQuerier struct {
	history []domain.StrategyRecord
	outcome strategy.Outcome
	forced  bool
	err     error
}

func (s *stubStrategyQuerier) History(ctx context.Context, limit int) ([]domain.StrategyRecord, error) {
	return s.history, s.err
}

func (s *stubStrategyQuerier) Analyze(ctx context.Context, force bool) (strategy.Outcome, error) {
	s.forced = force
	return s.outcome, s.err
}

type stubMonitorQuerier struct {
	result domain.MonitorResult
	err    error
}

func (s *stubMonitorQuerier) Check(ctx context.Context) (domain.MonitorResult, error) {
	return s.result, s.err
}

type stubOptimizeQuerier struct {
	latest backtest.Report
	found  bool
	ran    bool
	err    error
}

func (s *stubOptimizeQuerier) Latest(ctx context.Context) (backtest.Report, bool, error) {
	return s.latest, s.found, s.err
}

func (s *stubOptimizeQuerier) Run(ctx context.Context) (backtest.Report, error) {
	s.ran = true
	return s.latest, s.err
}

type stubAnomalyQuerier struct {
	report service.AnomalyReport
	days   int
	err    error
}

func (s *stubAnomalyQuerier) Scan(ctx context.Context, days int) (service.AnomalyReport, error) {
	s.days = days
	return s.report, s.err
}

func testServices() Services {
	return Services{
		Pipeline: &stubSeriesQuerier{},
		Strategy: &stubStrategyQuerier{},
		Monitor:  &stubMonitorQuerier{},
		Optimize: &stubOptimizeQuerier{},
		Anomaly:  &stubAnomalyQuerier{},
	}
}

func TestAppModelInitialTab(t *testing.T) {
	m := NewAppModel(testServices())
	if m.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard, got %d", m.ActiveTab())
	}
}

func TestAppModelTabSwitchByNumber(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	app := updated.(AppModel)
	if app.ActiveTab() != TabStrategy {
		t.Fatalf("expected TabStrategy after pressing 2, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	app = updated.(AppModel)
	if app.ActiveTab() != TabOptimize {
		t.Fatalf("expected TabOptimize after pressing 3, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'4'}})
	app = updated.(AppModel)
	if app.ActiveTab() != TabAnomaly {
		t.Fatalf("expected TabAnomaly after pressing 4, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'5'}})
	app = updated.(AppModel)
	if app.ActiveTab() != TabAnomaly {
		t.Fatalf("expected 5 to be ignored, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}})
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard after pressing 1, got %d", app.ActiveTab())
	}
}

func TestAppModelTabSwitchByTab(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	app := updated.(AppModel)
	if app.ActiveTab() != TabStrategy {
		t.Fatalf("expected TabStrategy after Tab, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard after Shift+Tab, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = updated.(AppModel)
	if app.ActiveTab() != TabAnomaly {
		t.Fatalf("expected wrap to TabAnomaly, got %d", app.ActiveTab())
	}
}

func TestAppModelRoutesDataToOwningScreen(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	// History arrives while the dashboard is active.
	updated, _ := m.Update(strategyHistoryMsg{{AnalysisDate: "2024-01-03"}})
	app := updated.(AppModel)
	if len(app.strategy.History()) != 1 {
		t.Fatalf("expected strategy screen to receive history, got %d", len(app.strategy.History()))
	}
}

func TestAppModelMarksFlaggedAnomalies(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(anomalyReportMsg{Scores: []service.AnomalyScore{
		{Date: "2024-01-04", Premium: 4.5, Score: 0.71, Anomalous: true},
	}})
	app := updated.(AppModel)
	if !strings.Contains(app.tabBar(), "4:Anomaly!") {
		t.Fatalf("expected flagged marker in tab bar, got %q", app.tabBar())
	}
}

func TestTabForDigit(t *testing.T) {
	tests := []struct {
		in   string
		want Tab
		ok   bool
	}{
		{"1", TabDashboard, true},
		{"4", TabAnomaly, true},
		{"0", 0, false},
		{"5", 0, false},
		{"12", 0, false},
		{"tab", 0, false},
	}
	for _, tt := range tests {
		got, ok := tabForDigit(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("tabForDigit(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAppModelWindowResize(t *testing.T) {
	m := NewAppModel(testServices())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	app := updated.(AppModel)
	if app.width != 100 || app.height != 50 {
		t.Fatalf("expected 100x50, got %dx%d", app.width, app.height)
	}
}

func TestAppModelQuit(t *testing.T) {
	m := NewAppModel(testServices())

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	app := updated.(AppModel)
	if cmd == nil || app.View() != "Goodbye!\n" {
		t.Fatal("expected quit command and goodbye view")
	}
}

func TestAppModelViewRendersWithoutPanic(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	for _, tab := range []Tab{TabDashboard, TabStrategy, TabOptimize, TabAnomaly} {
		m.activeTab = tab
		view := m.View()
		if view == "" {
			t.Fatalf("expected non-empty view for tab %d", tab)
		}
	}
}
