// Package backtest replays the threshold engine over stored USDT and FX history
// and grid-searches the engine's tunables.
package backtest

import (
	"fmt"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
	"kimchi-signal/internal/signal"
)

const StartingCapital = 10000.0

// Params are the engine settings the optimizer varies.
type Params struct {
	BuyTrendCoefficient  float64 `json:"buy_trend_coefficient"`
	SellTrendCoefficient float64 `json:"sell_trend_coefficient"`
	MACDWeight           float64 `json:"macd_weight"`
	RSIWeight            float64 `json:"rsi_weight"`
	BBWeight             float64 `json:"bb_weight"`
	MAWeight             float64 `json:"ma_weight"`
	AdjustmentFactor     float64 `json:"adjustment_factor"`
}

// Apply overlays p on cfg.
func (p Params) Apply(cfg signal.Config) signal.Config {
	cfg.BuyTrendCoefficient = p.BuyTrendCoefficient
	cfg.SellTrendCoefficient = p.SellTrendCoefficient
	cfg.MACDWeight = p.MACDWeight
	cfg.RSIWeight = p.RSIWeight
	cfg.BBWeight = p.BBWeight
	cfg.MAWeight = p.MAWeight
	cfg.AdjustmentFactor = p.AdjustmentFactor
	return cfg
}

func ParamsFrom(cfg signal.Config) Params {
	return Params{
		BuyTrendCoefficient:  cfg.BuyTrendCoefficient,
		SellTrendCoefficient: cfg.SellTrendCoefficient,
		MACDWeight:           cfg.MACDWeight,
		RSIWeight:            cfg.RSIWeight,
		BBWeight:             cfg.BBWeight,
		MAWeight:             cfg.MAWeight,
		AdjustmentFactor:     cfg.AdjustmentFactor,
	}
}

// Result summarizes one backtest. Percentages are in percent units.
type Result struct {
	TotalReturn float64 `json:"total_return"`
	Trades      int     `json:"trades"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Score ranks results: return, penalized by half the drawdown, plus a small
// bonus per trade.
func (r Result) Score() float64 {
	return r.TotalReturn - r.MaxDrawdown*0.5 + float64(r.Trades)*0.1
}

// Run trades the USDT premium against the threshold band computed with cfg.
// The premium is (usdt - rate) / rate * 100: the FX rate is the reference leg and
// the KRW price of USDT the converted one at a conversion of 1. The strategy goes
// all-in when the premium is at or below the buy threshold and exits when it is
// at or above the sell threshold.
func Run(usdt, rate domain.TimeSeries, cfg signal.Config) (Result, error) {
	premium := series.ComputePremium(rate, usdt, series.Constant(usdt, 1.0))
	thresholds, err := signal.ComputeThresholds(premium, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("backtest thresholds: %w", err)
	}

	var (
		cash      = StartingCapital
		position  float64
		costBasis float64
		trades    int
		wins      int
		peak      = StartingCapital
		maxDD     float64
		lastPrice float64
	)

	for _, d := range premium.Dates() {
		price := usdt[d]
		lastPrice = price
		th, ok := thresholds[d]
		if ok {
			p := premium[d]
			switch {
			case position == 0 && p <= th.BuyThreshold:
				position = cash / price
				costBasis = cash
				cash = 0
				trades++
			case position > 0 && p >= th.SellThreshold:
				proceeds := position * price
				if proceeds > costBasis {
					wins++
				}
				cash = proceeds
				position = 0
				trades++
			}
		}

		value := cash + position*price
		if value > peak {
			peak = value
		}
		if dd := (peak - value) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	final := cash + position*lastPrice
	res := Result{
		TotalReturn: (final - StartingCapital) / StartingCapital * 100,
		Trades:      trades,
		MaxDrawdown: maxDD * 100,
	}
	if trades > 0 {
		res.WinRate = float64(wins) / float64(trades) * 100
	}
	return res, nil
}
