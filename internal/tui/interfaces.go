package tui

import (
	"context"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"
	"kimchi-signal/internal/strategy"
)

// SeriesQuerier provides stored series and threshold bands to the TUI.
type SeriesQuerier interface {
	Series(ctx context.Context, name string, days int) (domain.TimeSeries, error)
	Thresholds(ctx context.Context, days int) (domain.ThresholdSeries, error)
}

// StrategyQuerier provides strategy history and on-demand analysis.
type StrategyQuerier interface {
	History(ctx context.Context, limit int) ([]domain.StrategyRecord, error)
	Analyze(ctx context.Context, force bool) (strategy.Outcome, error)
}

// MonitorQuerier compares the live USDT price with the latest strategy.
type MonitorQuerier interface {
	Check(ctx context.Context) (domain.MonitorResult, error)
}

// OptimizeQuerier exposes the optimizer's last report and a fresh run.
type OptimizeQuerier interface {
	Latest(ctx context.Context) (backtest.Report, bool, error)
	Run(ctx context.Context) (backtest.Report, error)
}

// AnomalyQuerier scores recent premium days against the stored history.
type AnomalyQuerier interface {
	Scan(ctx context.Context, days int) (service.AnomalyReport, error)
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Pipeline SeriesQuerier
	Strategy StrategyQuerier
	Monitor  MonitorQuerier
	Optimize OptimizeQuerier
	Anomaly  AnomalyQuerier
}
