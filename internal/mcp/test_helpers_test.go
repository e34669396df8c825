package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"kimchi-signal/internal/backtest"
	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/service"
	"kimchi-signal/internal/strategy"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubPipeline struct {
	mu         sync.Mutex
	series     map[string]domain.TimeSeries
	thresholds domain.ThresholdSeries

	lastName    string
	lastDays    int
	refreshed   []string
	refreshDays int
}

func (s *stubPipeline) Series(ctx context.Context, name string, days int) (domain.TimeSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastName = name
	s.lastDays = days
	return s.series[name].Clone(), nil
}

func (s *stubPipeline) Thresholds(ctx context.Context, days int) (domain.ThresholdSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDays = days
	return s.thresholds, nil
}

func (s *stubPipeline) record(target string, days int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = append(s.refreshed, target)
	s.refreshDays = days
}

func (s *stubPipeline) RefreshAll(ctx context.Context, days int) error {
	s.record(refreshAll, days)
	return nil
}

func (s *stubPipeline) RefreshRates(ctx context.Context, days int) (domain.TimeSeries, error) {
	s.record(refreshRates, days)
	return s.series[domain.SeriesRate].Clone(), nil
}

func (s *stubPipeline) RefreshUSDT(ctx context.Context, days int) (domain.TimeSeries, error) {
	s.record(refreshUSDT, days)
	return s.series[domain.SeriesUSDT].Clone(), nil
}

func (s *stubPipeline) RefreshBTC(ctx context.Context, days int) (map[string]domain.TimeSeries, error) {
	s.record(refreshBTC, days)
	return map[string]domain.TimeSeries{domain.SeriesBTCKRW: {}, domain.SeriesBTCUSDT: {}}, nil
}

func (s *stubPipeline) RefreshPremium(ctx context.Context, days int) (service.PremiumRefresh, error) {
	s.record(refreshPremium, days)
	return service.PremiumRefresh{Premium: s.series[domain.SeriesPremium].Clone(), Thresholds: s.thresholds}, nil
}

type stubStrategy struct {
	mu        sync.Mutex
	history   []domain.StrategyRecord
	lastLimit int
	forced    bool
	err       error
}

func (s *stubStrategy) History(ctx context.Context, limit int) ([]domain.StrategyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	if limit < len(s.history) {
		return append([]domain.StrategyRecord(nil), s.history[:limit]...), nil
	}
	return append([]domain.StrategyRecord(nil), s.history...), nil
}

func (s *stubStrategy) Latest(ctx context.Context) (domain.StrategyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.StrategyRecord{}, s.err
	}
	if len(s.history) == 0 {
		return domain.StrategyRecord{}, service.ErrNoStrategy
	}
	return s.history[0], nil
}

func (s *stubStrategy) Analyze(ctx context.Context, force bool) (strategy.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = force
	if !force && len(s.history) > 0 && s.history[0].AnalysisDate == "2024-01-04" {
		return strategy.Outcome{Today: "2024-01-04", Skipped: true, History: s.history}, nil
	}
	rec := domain.StrategyRecord{AnalysisDate: "2024-01-04", BuyPrice: 1340, SellPrice: 1380, Summary: "range"}
	return strategy.Outcome{Today: "2024-01-04", Record: &rec, Result: strategy.Parsed{Record: rec}}, nil
}

type stubMonitor struct {
	result domain.MonitorResult
	err    error
}

func (s *stubMonitor) Check(ctx context.Context) (domain.MonitorResult, error) {
	return s.result, s.err
}

type stubAnomaly struct {
	lastDays int
	err      error
}

func (s *stubAnomaly) Scan(ctx context.Context, days int) (service.AnomalyReport, error) {
	s.lastDays = days
	if s.err != nil {
		return service.AnomalyReport{}, s.err
	}
	return service.AnomalyReport{
		Days:      days,
		Threshold: 0.6,
		TrainedOn: 59,
		Scores: []service.AnomalyScore{
			{Date: "2024-01-04", Premium: 4.56789, Score: 0.71234, Anomalous: true},
			{Date: "2024-01-03", Premium: 1.5, Score: 0.41, Anomalous: false},
		},
	}, nil
}

type stubOptimize struct {
	report backtest.Report
	found  bool
}

func (s *stubOptimize) Latest(ctx context.Context) (backtest.Report, bool, error) {
	return s.report, s.found, nil
}

func testServer() (*sdkmcp.Server, *stubPipeline, *stubStrategy) {
	pipeline := &stubPipeline{
		series: map[string]domain.TimeSeries{
			domain.SeriesPremium: {"2024-01-03": 1.23456, "2024-01-04": 2.5},
			domain.SeriesRate:    {"2024-01-04": 1300.129},
			domain.SeriesUSDT:    {"2024-01-04": 1335},
		},
		thresholds: domain.ThresholdSeries{
			"2024-01-03": {BuyThreshold: 0.5, SellThreshold: 2.5},
			"2024-01-04": {BuyThreshold: 0.4444, SellThreshold: 2.6666},
		},
	}
	strategies := &stubStrategy{history: []domain.StrategyRecord{
		{AnalysisDate: "2024-01-03", BuyPrice: 1330, SellPrice: 1370},
		{AnalysisDate: "2024-01-02", BuyPrice: 1320, SellPrice: 1360},
	}}
	premium := 1.23456
	monitor := &stubMonitor{result: domain.MonitorResult{
		USDTPrice: 1335.555, BuyPrice: 1330, SellPrice: 1370, Action: domain.ActionHold,
		LatestStrategyDate: "2024-01-03", PremiumDate: "2024-01-04", Premium: &premium,
	}}

	svc := Services{
		Pipeline: pipeline,
		Strategy: strategies,
		Monitor:  monitor,
		Anomaly:  &stubAnomaly{},
		Optimize: &stubOptimize{found: true, report: backtest.Report{BestScore: 12.5, TotalCombinations: 500}},
	}
	srv := NewServer(nil, svc, ServerConfig{RequestTimeout: time.Second})
	return srv, pipeline, strategies
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}

func decodeStructured(result *sdkmcp.CallToolResult, out any) error {
	body, err := json.Marshal(result.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
