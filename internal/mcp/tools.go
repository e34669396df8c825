package mcp

import (
	"context"
	"fmt"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
	"kimchi-signal/internal/strategy"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, svc Services) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "series_get",
		Description: "Get a stored daily series (premium, USDT, rate, BTC) keyed by KST date",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in seriesGetInput) (*mcp.CallToolResult, seriesGetOutput, error) {
		if svc.Pipeline == nil {
			return nil, seriesGetOutput{}, fmt.Errorf("pipeline service unavailable")
		}
		name, err := normalizeSeriesName(in.Name)
		if err != nil {
			return nil, seriesGetOutput{}, err
		}
		days := normalizeDays(in.Days, defaultSeriesDays)
		ts, err := svc.Pipeline.Series(ctx, name, days)
		if err != nil {
			return nil, seriesGetOutput{}, err
		}
		return nil, seriesGetOutput{Name: name, Days: days, Data: series.RoundSeries(ts)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "thresholds_get",
		Description: "Get the buy/sell premium thresholds per KST date",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in thresholdsGetInput) (*mcp.CallToolResult, thresholdsGetOutput, error) {
		if svc.Pipeline == nil {
			return nil, thresholdsGetOutput{}, fmt.Errorf("pipeline service unavailable")
		}
		days := normalizeDays(in.Days, defaultSeriesDays)
		ts, err := svc.Pipeline.Thresholds(ctx, days)
		if err != nil {
			return nil, thresholdsGetOutput{}, err
		}
		return nil, thresholdsGetOutput{Days: days, Data: series.RoundThresholds(ts)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "strategy_list",
		Description: "List stored strategy records, newest first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in strategyListInput) (*mcp.CallToolResult, strategyListOutput, error) {
		if svc.Strategy == nil {
			return nil, strategyListOutput{}, fmt.Errorf("strategy service unavailable")
		}
		history, err := svc.Strategy.History(ctx, normalizeStrategyLimit(in.Limit))
		if err != nil {
			return nil, strategyListOutput{}, err
		}
		return nil, strategyListOutput{Strategies: history}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "strategy_analyze",
		Description: "Generate today's buy/sell strategy with the language model; skipped when today's record exists unless force is set",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in strategyAnalyzeInput) (*mcp.CallToolResult, strategyAnalyzeOutput, error) {
		if svc.Strategy == nil {
			return nil, strategyAnalyzeOutput{}, fmt.Errorf("strategy service unavailable")
		}
		outcome, err := svc.Strategy.Analyze(ctx, in.Force)
		if err != nil {
			return nil, strategyAnalyzeOutput{}, err
		}
		_, parsed := outcome.Result.(strategy.Parsed)
		return nil, strategyAnalyzeOutput{
			Today:    outcome.Today,
			Skipped:  outcome.Skipped,
			Parsed:   parsed,
			Strategy: outcome.Record,
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "monitoring_check",
		Description: "Compare the live KRW-USDT price with the latest strategy and return buy, sell or hold",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ monitoringCheckInput) (*mcp.CallToolResult, monitoringCheckOutput, error) {
		if svc.Monitor == nil {
			return nil, monitoringCheckOutput{}, fmt.Errorf("monitor service unavailable")
		}
		result, err := svc.Monitor.Check(ctx)
		if err != nil {
			return nil, monitoringCheckOutput{}, err
		}
		return nil, monitoringCheckOutput{Result: roundMonitorResult(result)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pipeline_refresh",
		Description: "Fetch upstream prices and rates, merge them into the store and recompute premium thresholds",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in pipelineRefreshInput) (*mcp.CallToolResult, pipelineRefreshOutput, error) {
		if svc.Pipeline == nil {
			return nil, pipelineRefreshOutput{}, fmt.Errorf("pipeline service unavailable")
		}
		target, err := normalizeRefreshTarget(in.Target)
		if err != nil {
			return nil, pipelineRefreshOutput{}, err
		}
		out := pipelineRefreshOutput{Target: target, Days: normalizeDays(in.Days, 1)}
		if err := runRefresh(ctx, svc.Pipeline, &out); err != nil {
			return nil, pipelineRefreshOutput{}, err
		}
		return nil, out, nil
	})
}

func registerAnalyticsTools(server *mcp.Server, svc Services) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "anomaly_scan",
		Description: "Score recent kimchi premium days with an isolation forest fitted on the stored history",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in anomalyScanInput) (*mcp.CallToolResult, anomalyScanOutput, error) {
		if svc.Anomaly == nil {
			return nil, anomalyScanOutput{}, fmt.Errorf("anomaly service unavailable")
		}
		report, err := svc.Anomaly.Scan(ctx, normalizeAnomalyDays(in.Days))
		if err != nil {
			return nil, anomalyScanOutput{}, err
		}
		return nil, anomalyOutput(report), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "optimize_latest",
		Description: "Return the last threshold optimizer report: best parameters, their backtest and the top trials",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ optimizeLatestInput) (*mcp.CallToolResult, optimizeLatestOutput, error) {
		if svc.Optimize == nil {
			return nil, optimizeLatestOutput{}, fmt.Errorf("optimize service unavailable")
		}
		report, found, err := svc.Optimize.Latest(ctx)
		if err != nil {
			return nil, optimizeLatestOutput{}, err
		}
		if !found {
			return nil, optimizeLatestOutput{}, nil
		}
		return nil, optimizeLatestOutput{Found: true, Report: &report}, nil
	})
}

func runRefresh(ctx context.Context, pipeline PipelineReader, out *pipelineRefreshOutput) error {
	switch out.Target {
	case refreshRates:
		ts, err := pipeline.RefreshRates(ctx, out.Days)
		if err != nil {
			return err
		}
		out.Series = map[string]domain.TimeSeries{domain.SeriesRate: series.RoundSeries(ts)}
	case refreshUSDT:
		ts, err := pipeline.RefreshUSDT(ctx, out.Days)
		if err != nil {
			return err
		}
		out.Series = map[string]domain.TimeSeries{domain.SeriesUSDT: series.RoundSeries(ts)}
	case refreshBTC:
		all, err := pipeline.RefreshBTC(ctx, out.Days)
		if err != nil {
			return err
		}
		out.Series = make(map[string]domain.TimeSeries, len(all))
		for name, ts := range all {
			out.Series[name] = series.RoundSeries(ts)
		}
	case refreshPremium:
		res, err := pipeline.RefreshPremium(ctx, out.Days)
		if err != nil {
			return err
		}
		out.Series = map[string]domain.TimeSeries{domain.SeriesPremium: series.RoundSeries(res.Premium)}
		out.Thresholds = series.RoundThresholds(res.Thresholds)
	default:
		return pipeline.RefreshAll(ctx, out.Days)
	}
	return nil
}
