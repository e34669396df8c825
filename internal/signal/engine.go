package signal

import (
	"fmt"
	"math"

	"kimchi-signal/internal/domain"

	"github.com/markcheno/go-talib"
)

// Engine derives the adaptive buy/sell threshold band from a premium series.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("threshold config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// ComputeThresholds is a one-shot helper around NewEngine + Compute.
func ComputeThresholds(premium domain.TimeSeries, cfg Config) (domain.ThresholdSeries, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return e.Compute(premium), nil
}

// Compute runs one ascending pass over the premium dates. A record is emitted for
// every date whose trailing window is full; fewer dates than the window yield an
// empty result.
func (e *Engine) Compute(premium domain.TimeSeries) domain.ThresholdSeries {
	cfg := e.cfg
	out := make(domain.ThresholdSeries)

	dates := premium.Dates()
	if len(dates) < cfg.WindowSize {
		return out
	}

	current := newWindow(cfg.WindowSize)
	previous := newWindow(cfg.WindowSize)
	history := make([]float64, 0, len(dates))

	var prior *domain.ThresholdRecord
	for _, d := range dates {
		v := premium[d]
		if isValid(v) {
			history = append(history, v)
		}
		if evicted, ok := current.push(v); ok {
			previous.push(evicted)
		}
		if !current.full() {
			continue
		}

		ma := current.mean()
		trend := 0.0
		if previous.full() {
			trend = ma - previous.mean()
		}

		buy := cfg.BaseBuy - trend*cfg.BuyTrendCoefficient
		sell := cfg.BaseSell + trend*cfg.SellTrendCoefficient

		if len(history) >= cfg.OverlayMinHistory {
			ov := computeOverlay(history[len(history)-cfg.OverlayMinHistory:], cfg)
			buy, sell = applyOverlay(buy, sell, ov, cfg)
		}

		buy = boundBuy(buy, cfg.BaseBuy)

		if prior != nil {
			buy = clampChange(buy, prior.BuyThreshold, cfg.MaxChangeRate)
			sell = clampChange(sell, prior.SellThreshold, cfg.MaxChangeRate)
		}

		rec := domain.ThresholdRecord{
			BuyThreshold:   buy,
			SellThreshold:  sell,
			Trend:          trend,
			MovingAverage5: ma,
		}
		out[d] = rec
		prior = &rec
	}
	return out
}

// window is a fixed-size trailing window that tracks the sum and count of its
// valid entries.
type window struct {
	size  int
	vals  []float64
	sum   float64
	valid int
}

func newWindow(size int) *window {
	return &window{size: size, vals: make([]float64, 0, size+1)}
}

// push appends v and returns the entry that fell out, if any.
func (w *window) push(v float64) (float64, bool) {
	w.vals = append(w.vals, v)
	if isValid(v) {
		w.sum += v
		w.valid++
	}
	if len(w.vals) <= w.size {
		return 0, false
	}
	out := w.vals[0]
	w.vals = w.vals[1:]
	if isValid(out) {
		w.sum -= out
		w.valid--
	}
	return out, true
}

func (w *window) full() bool {
	return len(w.vals) == w.size
}

// mean is 0 when the window holds no valid entry.
func (w *window) mean() float64 {
	if w.valid == 0 {
		return 0
	}
	return w.sum / float64(w.valid)
}

func isValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type overlay struct {
	macd  int
	rsi   int
	band  int
	cross int

	composite  float64
	volatility float64
}

// computeOverlay scores the trailing values with four directional signals. +1 is
// bullish. A flat slice carries no information and scores zero.
func computeOverlay(values []float64, cfg Config) overlay {
	last := len(values) - 1

	upper, _, lower := talib.BBands(values, cfg.BandPeriod, cfg.BandK, cfg.BandK, talib.SMA)
	width := upper[last] - lower[last]
	if !(width > 0) || !isValid(width) {
		return overlay{}
	}

	_, _, hist := talib.Macd(values, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	rsi := talib.Rsi(values, cfg.RSIPeriod)
	short := talib.Sma(values, cfg.ShortMA)
	long := talib.Sma(values, cfg.LongMA)

	ov := overlay{
		macd:  sign(hist[last]),
		rsi:   rsiSignal(rsi[last], cfg.RSIOversold, cfg.RSIOverbought),
		band:  bandSignal(values[last], upper[last], lower[last]),
		cross: sign(short[last] - long[last]),
	}
	ov.composite = float64(ov.macd)*cfg.MACDWeight +
		float64(ov.rsi)*cfg.RSIWeight +
		float64(ov.band)*cfg.BBWeight +
		float64(ov.cross)*cfg.MAWeight

	// Band half-width over k is the window's standard deviation, in premium points.
	ov.volatility = math.Min(width/(2*cfg.BandK), cfg.VolatilityCap)
	return ov
}

// applyOverlay moves buy down and sell up for a bullish composite, scaled by volatility.
func applyOverlay(buy, sell float64, ov overlay, cfg Config) (float64, float64) {
	shift := ov.composite * cfg.AdjustmentFactor * (1 + ov.volatility)
	return buy - shift, sell + shift
}

func rsiSignal(rsi, oversold, overbought float64) int {
	switch {
	case rsi < oversold:
		return 1
	case rsi > overbought:
		return -1
	}
	return 0
}

// bandSignal reads a close below the lower band as a rebound setup.
func bandSignal(v, upper, lower float64) int {
	switch {
	case v < lower:
		return 1
	case v > upper:
		return -1
	}
	return 0
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func boundBuy(buy, base float64) float64 {
	lo, hi := base*0.2, base*5.0
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Max(lo, math.Min(hi, buy))
}

// clampChange keeps v within rate*|prior| of prior. A zero prior pins v to zero.
func clampChange(v, prior, rate float64) float64 {
	delta := math.Abs(prior) * rate
	return math.Max(prior-delta, math.Min(prior+delta, v))
}

