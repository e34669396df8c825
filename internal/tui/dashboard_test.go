package tui

import (
	"strings"
	"testing"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"
)

func TestDashboardUpdatePremiumMsg(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(premiumMsg{
		premium:    domain.TimeSeries{"2024-01-03": 1.2, "2024-01-04": 2.5},
		thresholds: domain.ThresholdSeries{"2024-01-04": {BuyThreshold: 0.5, SellThreshold: 2.5}},
	})
	if len(updated.Premium()) != 2 {
		t.Fatalf("expected 2 premium points, got %d", len(updated.Premium()))
	}
	if updated.loading {
		t.Fatal("expected loading to clear")
	}
}

func TestDashboardUpdateMonitorMsg(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(monitorMsg(domain.MonitorResult{USDTPrice: 1335, Action: domain.ActionBuy}))
	if updated.Monitor() == nil || updated.Monitor().Action != domain.ActionBuy {
		t.Fatalf("expected buy result, got %+v", updated.Monitor())
	}
}

func TestDashboardFetchCommands(t *testing.T) {
	premium := 1.5
	svc := Services{
		Pipeline: &stubSeriesQuerier{premium: domain.TimeSeries{"2024-01-04": 1.5}},
		Monitor:  &stubMonitorQuerier{result: domain.MonitorResult{Action: domain.ActionHold, Premium: &premium}},
	}
	m := NewDashboardModel(svc)

	if msg, ok := m.fetchPremiumCmd()().(premiumMsg); !ok || msg.premium["2024-01-04"] != 1.5 {
		t.Fatalf("expected premium message, got %#v", m.fetchPremiumCmd()())
	}
	if _, ok := m.fetchMonitorCmd()().(monitorMsg); !ok {
		t.Fatal("expected monitor message")
	}

	empty := NewDashboardModel(Services{})
	if _, ok := empty.fetchPremiumCmd()().(premiumErrMsg); !ok {
		t.Fatal("expected error without pipeline")
	}
	if _, ok := empty.fetchMonitorCmd()().(monitorErrMsg); !ok {
		t.Fatal("expected error without monitor")
	}
}

func TestDashboardViewEmpty(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)
	m.loading = false

	if view := m.View(); view == "" {
		t.Fatal("expected non-empty view")
	}
}

func TestDashboardViewWithData(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)

	premium := 2.5
	m.premium = domain.TimeSeries{"2024-01-03": 1.2, "2024-01-04": 2.5}
	m.thresholds = domain.ThresholdSeries{"2024-01-04": {BuyThreshold: 0.44, SellThreshold: 2.67, Trend: 0.1}}
	m.monitor = &domain.MonitorResult{USDTPrice: 1335.5, BuyPrice: 1330, SellPrice: 1370, Action: domain.ActionSell, Premium: &premium, PremiumDate: "2024-01-04"}
	m.loading = false

	view := m.View()
	for _, want := range []string{"2024-01-04", "SELL", "₩1,335.50", "2.67"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestDashboardViewWithoutStrategy(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)
	m.premium = domain.TimeSeries{"2024-01-04": 2.5}
	m.loading = false

	updated, _ := m.Update(monitorErrMsg{err: service.ErrNoStrategy})
	if !strings.Contains(updated.View(), "No strategy yet") {
		t.Fatal("expected no-strategy hint")
	}
}
