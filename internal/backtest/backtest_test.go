package backtest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/signal"
)

const rate = 1300.0

// premiumSeries builds usdt/rate histories whose USDT premium follows values.
func premiumSeries(values []float64) (usdt, fx domain.TimeSeries) {
	usdt = make(domain.TimeSeries)
	fx = make(domain.TimeSeries)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, domain.Canonical)
	for i, p := range values {
		d := domain.DateKey(start.AddDate(0, 0, i))
		fx[d] = rate
		usdt[d] = rate * (1 + p/100)
	}
	return usdt, fx
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRunNoTradesInsideBand(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 1.0
	}
	usdt, fx := premiumSeries(values)

	res, err := Run(usdt, fx, signal.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Trades != 0 || res.TotalReturn != 0 || res.MaxDrawdown != 0 || res.WinRate != 0 {
		t.Fatalf("expected flat result, got %+v", res)
	}
}

func TestRunBuysLowSellsHigh(t *testing.T) {
	usdt, fx := premiumSeries([]float64{0, 0, 0, 0, 0, 3})

	res, err := Run(usdt, fx, signal.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Trades != 2 {
		t.Fatalf("expected a round trip, got %+v", res)
	}
	if !almostEqual(res.TotalReturn, 3) {
		t.Fatalf("expected 3%% return, got %v", res.TotalReturn)
	}
	if res.WinRate != 50 {
		t.Fatalf("expected one winning exit out of two trades, got %v", res.WinRate)
	}
	if !almostEqual(res.MaxDrawdown, 0) {
		t.Fatalf("expected no drawdown, got %v", res.MaxDrawdown)
	}
	if !almostEqual(res.Score(), 3.2) {
		t.Fatalf("unexpected score %v", res.Score())
	}
}

func TestRunTracksDrawdownOfOpenPosition(t *testing.T) {
	// Bought at premium 0; USDT then falls 1% while the position is open.
	usdt, fx := premiumSeries([]float64{0, 0, 0, 0, 0, -1})

	res, err := Run(usdt, fx, signal.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Trades != 1 {
		t.Fatalf("expected only the entry, got %+v", res)
	}
	if !almostEqual(res.MaxDrawdown, 1) || !almostEqual(res.TotalReturn, -1) {
		t.Fatalf("expected 1%% drawdown and loss, got %+v", res)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	usdt, fx := premiumSeries([]float64{0, 0, 0, 0, 0})
	cfg := signal.DefaultConfig()
	cfg.WindowSize = 0
	if _, err := Run(usdt, fx, cfg); err == nil {
		t.Fatal("expected config error")
	}
}

func TestScore(t *testing.T) {
	r := Result{TotalReturn: 10, MaxDrawdown: 4, Trades: 5}
	if !almostEqual(r.Score(), 8.5) {
		t.Fatalf("expected 8.5, got %v", r.Score())
	}
}

func TestDefaultGridCombinations(t *testing.T) {
	combos := DefaultGrid().Combinations(DefaultMaxCombinations)
	if len(combos) != 500 {
		t.Fatalf("expected 500 combinations, got %d", len(combos))
	}

	first := combos[0]
	if first.BuyTrendCoefficient != 0.05 || first.MAWeight != 0.05 || first.AdjustmentFactor != 0.02 {
		t.Fatalf("unexpected first combination %+v", first)
	}
	// The innermost axis varies fastest.
	if combos[8].MAWeight != 0.1 || combos[8].AdjustmentFactor != 0.02 {
		t.Fatalf("unexpected ninth combination %+v", combos[8])
	}
	last := combos[499]
	if last.BBWeight != 0.5 || last.MAWeight != 0.4 || last.AdjustmentFactor != 0.1 || last.BuyTrendCoefficient != 0.05 {
		t.Fatalf("unexpected last combination %+v", last)
	}
}

func TestCombinationsEmptyAxis(t *testing.T) {
	g := DefaultGrid()
	g.RSIWeight = nil
	if got := g.Combinations(10); got != nil {
		t.Fatalf("expected no combinations, got %d", len(got))
	}
}

func TestParamsApplyRoundTrip(t *testing.T) {
	p := Params{BuyTrendCoefficient: 1, SellTrendCoefficient: 2, MACDWeight: 0.1, RSIWeight: 0.2, BBWeight: 0.3, MAWeight: 0.4, AdjustmentFactor: 0.05}
	cfg := p.Apply(signal.DefaultConfig())
	if got := ParamsFrom(cfg); got != p {
		t.Fatalf("expected %+v, got %+v", p, got)
	}
	if cfg.WindowSize != 5 {
		t.Fatalf("apply must not touch other fields")
	}
}

func TestOptimize(t *testing.T) {
	usdt, fx := premiumSeries([]float64{0, 0, 0, 0, 0, 3, 3, 0, 0, 0, 0, 3})
	grid := Grid{
		BuyTrendCoefficient:  []float64{0.1, 0.5},
		SellTrendCoefficient: []float64{0.1, 0.5},
		MACDWeight:           []float64{0.3},
		RSIWeight:            []float64{0.25},
		BBWeight:             []float64{0.25},
		MAWeight:             []float64{0.2},
		AdjustmentFactor:     []float64{0.2},
	}

	report, err := Optimize(context.Background(), usdt, fx, signal.DefaultConfig(), Options{Grid: grid, TopN: 3, Workers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalCombinations != 4 {
		t.Fatalf("expected 4 combinations, got %d", report.TotalCombinations)
	}
	if len(report.TopResults) != 3 {
		t.Fatalf("expected top 3, got %d", len(report.TopResults))
	}
	for i := 1; i < len(report.TopResults); i++ {
		if report.TopResults[i].Result.TotalReturn > report.TopResults[i-1].Result.TotalReturn {
			t.Fatalf("top results not ordered by return: %+v", report.TopResults)
		}
	}
	if !almostEqual(report.BestScore, report.BestResult.Score()) {
		t.Fatalf("best score mismatch")
	}
	for _, tr := range report.TopResults {
		if tr.Result.Score() > report.BestScore {
			t.Fatalf("trial %+v beats reported best", tr)
		}
	}
}

func TestOptimizeHonoursCancellation(t *testing.T) {
	usdt, fx := premiumSeries([]float64{0, 0, 0, 0, 0, 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Optimize(ctx, usdt, fx, signal.DefaultConfig(), Options{MaxCombinations: 20})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func ExampleGrid_Combinations() {
	g := Grid{
		BuyTrendCoefficient:  []float64{0.1},
		SellTrendCoefficient: []float64{0.1},
		MACDWeight:           []float64{0.3},
		RSIWeight:            []float64{0.25},
		BBWeight:             []float64{0.25},
		MAWeight:             []float64{0.2},
		AdjustmentFactor:     []float64{0.1, 0.2, 0.3},
	}
	for _, p := range g.Combinations(2) {
		fmt.Println(p.AdjustmentFactor)
	}
	// Output:
	// 0.1
	// 0.2
}
