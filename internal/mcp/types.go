package mcp

import (
	"fmt"
	"strings"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
	"kimchi-signal/internal/service"
)

const (
	defaultSeriesDays    = 30
	defaultStrategyLimit = 10
	maxStrategyLimit     = 365
	maxAnomalyDays       = 365
)

const (
	refreshAll     = "all"
	refreshRates   = "rates"
	refreshUSDT    = "usdt"
	refreshBTC     = "btc"
	refreshPremium = "premium"
)

var refreshTargets = []string{refreshAll, refreshRates, refreshUSDT, refreshBTC, refreshPremium}

type seriesGetInput struct {
	Name string `json:"name" jsonschema:"series name: kimchi-premium, usdt-history, rate-history, btc-krw-history, btc-usdt-history"`
	Days int    `json:"days,omitempty" jsonschema:"number of trailing days to return, default 30, max 1000"`
}

type seriesGetOutput struct {
	Name string            `json:"name"`
	Days int               `json:"days"`
	Data domain.TimeSeries `json:"data"`
}

type thresholdsGetInput struct {
	Days int `json:"days,omitempty" jsonschema:"number of trailing days to return, default 30, max 1000"`
}

type thresholdsGetOutput struct {
	Days int                    `json:"days"`
	Data domain.ThresholdSeries `json:"data"`
}

type thresholdLatestOutput struct {
	Date      string                  `json:"date,omitempty"`
	Threshold *domain.ThresholdRecord `json:"threshold,omitempty"`
}

type strategyListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of records to return, newest first, max 365"`
}

type strategyListOutput struct {
	Strategies []domain.StrategyRecord `json:"strategies"`
}

type strategyAnalyzeInput struct {
	Force bool `json:"force,omitempty" jsonschema:"regenerate even if today's record exists"`
}

type strategyAnalyzeOutput struct {
	Today    string                 `json:"today"`
	Skipped  bool                   `json:"skipped"`
	Parsed   bool                   `json:"parsed"`
	Strategy *domain.StrategyRecord `json:"strategy,omitempty"`
}

type monitoringCheckInput struct{}

type monitoringCheckOutput struct {
	Result domain.MonitorResult `json:"result"`
}

type pipelineRefreshInput struct {
	Target string `json:"target,omitempty" jsonschema:"what to refresh: all, rates, usdt, btc, premium (default all)"`
	Days   int    `json:"days,omitempty" jsonschema:"lookback in days, default 1, max 1000"`
}

type pipelineRefreshOutput struct {
	Target     string                       `json:"target"`
	Days       int                          `json:"days"`
	Series     map[string]domain.TimeSeries `json:"series,omitempty"`
	Thresholds domain.ThresholdSeries       `json:"thresholds,omitempty"`
}

type anomalyScanInput struct {
	Days int `json:"days,omitempty" jsonschema:"number of recent premium days to score, default 14, max 365"`
}

type anomalyScanOutput struct {
	Report    service.AnomalyReport `json:"report"`
	Anomalous []string              `json:"anomalous_dates"`
}

type optimizeLatestInput struct{}

type optimizeLatestOutput struct {
	Found  bool             `json:"found"`
	Report *backtest.Report `json:"report,omitempty"`
}

func normalizeSeriesName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("series name is required")
	}
	if !domain.IsSupportedSeries(name) {
		return "", fmt.Errorf("unsupported series: %s", name)
	}
	return name, nil
}

func normalizeDays(days, def int) int {
	if days <= 0 {
		return def
	}
	if days > service.MaxRefreshDays {
		return service.MaxRefreshDays
	}
	return days
}

func normalizeStrategyLimit(limit int) int {
	if limit <= 0 {
		return defaultStrategyLimit
	}
	if limit > maxStrategyLimit {
		return maxStrategyLimit
	}
	return limit
}

func normalizeRefreshTarget(target string) (string, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return refreshAll, nil
	}
	for _, t := range refreshTargets {
		if target == t {
			return target, nil
		}
	}
	return "", fmt.Errorf("unsupported refresh target: %s", target)
}

func normalizeAnomalyDays(days int) int {
	if days <= 0 {
		return service.DefaultAnomalyDays
	}
	if days > maxAnomalyDays {
		return maxAnomalyDays
	}
	return days
}

// anomalyOutput rounds the report for display and lists the flagged dates,
// newest first like the scores.
func anomalyOutput(r service.AnomalyReport) anomalyScanOutput {
	out := anomalyScanOutput{Report: r, Anomalous: []string{}}
	out.Report.Scores = make([]service.AnomalyScore, len(r.Scores))
	for i, s := range r.Scores {
		s.Premium = series.Round(s.Premium, series.DisplayPlaces)
		s.Score = series.Round(s.Score, 3)
		out.Report.Scores[i] = s
		if s.Anomalous {
			out.Anomalous = append(out.Anomalous, s.Date)
		}
	}
	return out
}

func roundMonitorResult(r domain.MonitorResult) domain.MonitorResult {
	r.USDTPrice = series.Round(r.USDTPrice, series.DisplayPlaces)
	r.BuyPrice = series.Round(r.BuyPrice, series.DisplayPlaces)
	r.SellPrice = series.Round(r.SellPrice, series.DisplayPlaces)
	if r.Threshold != nil {
		rounded := series.RoundThresholds(domain.ThresholdSeries{r.ThresholdDate: *r.Threshold})[r.ThresholdDate]
		r.Threshold = &rounded
	}
	if r.Premium != nil {
		p := series.Round(*r.Premium, series.DisplayPlaces)
		r.Premium = &p
	}
	return r
}
