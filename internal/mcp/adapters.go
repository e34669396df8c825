package mcp

import (
	"context"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"
	"kimchi-signal/internal/strategy"
)

// PipelineReader exposes stored series and the refresh passes.
type PipelineReader interface {
	Series(ctx context.Context, name string, days int) (domain.TimeSeries, error)
	Thresholds(ctx context.Context, days int) (domain.ThresholdSeries, error)
	RefreshAll(ctx context.Context, days int) error
	RefreshRates(ctx context.Context, days int) (domain.TimeSeries, error)
	RefreshUSDT(ctx context.Context, days int) (domain.TimeSeries, error)
	RefreshBTC(ctx context.Context, days int) (map[string]domain.TimeSeries, error)
	RefreshPremium(ctx context.Context, days int) (service.PremiumRefresh, error)
}

// StrategyReaderWriter exposes strategy history and the analysis pass.
type StrategyReaderWriter interface {
	History(ctx context.Context, limit int) ([]domain.StrategyRecord, error)
	Latest(ctx context.Context) (domain.StrategyRecord, error)
	Analyze(ctx context.Context, force bool) (strategy.Outcome, error)
}

type MonitorReader interface {
	Check(ctx context.Context) (domain.MonitorResult, error)
}

type AnomalyScanner interface {
	Scan(ctx context.Context, days int) (service.AnomalyReport, error)
}

// OptimizeReader returns the last persisted optimizer report, if any.
type OptimizeReader interface {
	Latest(ctx context.Context) (backtest.Report, bool, error)
}

// Services groups the backends the MCP surface reads from. Nil members make
// their tools return an unavailable error.
type Services struct {
	Pipeline PipelineReader
	Strategy StrategyReaderWriter
	Monitor  MonitorReader
	Anomaly  AnomalyScanner
	Optimize OptimizeReader
}
