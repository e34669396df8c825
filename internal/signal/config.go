package signal

import "fmt"

// Config carries every tunable of the threshold engine. Start from DefaultConfig and
// override; the engine keeps no state between calls.
type Config struct {
	WindowSize int `yaml:"window_size" toml:"window_size" json:"window_size"`

	BaseBuy  float64 `yaml:"base_buy" toml:"base_buy" json:"base_buy"`
	BaseSell float64 `yaml:"base_sell" toml:"base_sell" json:"base_sell"`

	BuyTrendCoefficient  float64 `yaml:"buy_trend_coefficient" toml:"buy_trend_coefficient" json:"buy_trend_coefficient"`
	SellTrendCoefficient float64 `yaml:"sell_trend_coefficient" toml:"sell_trend_coefficient" json:"sell_trend_coefficient"`

	// OverlayMinHistory is both the number of valid values required before the
	// composite overlay applies and the length of the trailing slice it reads.
	OverlayMinHistory int     `yaml:"overlay_min_history" toml:"overlay_min_history" json:"overlay_min_history"`
	MACDWeight        float64 `yaml:"macd_weight" toml:"macd_weight" json:"macd_weight"`
	RSIWeight         float64 `yaml:"rsi_weight" toml:"rsi_weight" json:"rsi_weight"`
	BBWeight          float64 `yaml:"bb_weight" toml:"bb_weight" json:"bb_weight"`
	MAWeight          float64 `yaml:"ma_weight" toml:"ma_weight" json:"ma_weight"`
	AdjustmentFactor  float64 `yaml:"adjustment_factor" toml:"adjustment_factor" json:"adjustment_factor"`
	VolatilityCap     float64 `yaml:"volatility_cap" toml:"volatility_cap" json:"volatility_cap"`

	MACDFast      int     `yaml:"macd_fast" toml:"macd_fast" json:"macd_fast"`
	MACDSlow      int     `yaml:"macd_slow" toml:"macd_slow" json:"macd_slow"`
	MACDSignal    int     `yaml:"macd_signal" toml:"macd_signal" json:"macd_signal"`
	RSIPeriod     int     `yaml:"rsi_period" toml:"rsi_period" json:"rsi_period"`
	RSIOversold   float64 `yaml:"rsi_oversold" toml:"rsi_oversold" json:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought" toml:"rsi_overbought" json:"rsi_overbought"`
	BandPeriod    int     `yaml:"band_period" toml:"band_period" json:"band_period"`
	BandK         float64 `yaml:"band_k" toml:"band_k" json:"band_k"`
	ShortMA       int     `yaml:"short_ma" toml:"short_ma" json:"short_ma"`
	LongMA        int     `yaml:"long_ma" toml:"long_ma" json:"long_ma"`

	MaxChangeRate float64 `yaml:"max_change_rate" toml:"max_change_rate" json:"max_change_rate"`
}

func DefaultConfig() Config {
	return Config{
		WindowSize:           5,
		BaseBuy:              0.5,
		BaseSell:             2.5,
		BuyTrendCoefficient:  0.5,
		SellTrendCoefficient: 0.5,
		OverlayMinHistory:    20,
		MACDWeight:           0.3,
		RSIWeight:            0.25,
		BBWeight:             0.25,
		MAWeight:             0.2,
		AdjustmentFactor:     0.2,
		VolatilityCap:        1.0,
		MACDFast:             6,
		MACDSlow:             13,
		MACDSignal:           5,
		RSIPeriod:            14,
		RSIOversold:          30,
		RSIOverbought:        70,
		BandPeriod:           20,
		BandK:                2.0,
		ShortMA:              5,
		LongMA:               20,
		MaxChangeRate:        0.3,
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", c.WindowSize)
	}
	if c.MaxChangeRate < 0 {
		return fmt.Errorf("max_change_rate must not be negative, got %v", c.MaxChangeRate)
	}
	if c.MACDFast <= 0 || c.MACDSlow <= 0 || c.MACDSignal <= 0 {
		return fmt.Errorf("macd periods must be positive")
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("macd_fast (%d) must be below macd_slow (%d)", c.MACDFast, c.MACDSlow)
	}
	if c.RSIPeriod < 2 || c.BandPeriod < 2 || c.ShortMA < 1 || c.LongMA < 2 {
		return fmt.Errorf("indicator periods too small")
	}
	if c.ShortMA >= c.LongMA {
		return fmt.Errorf("short_ma (%d) must be below long_ma (%d)", c.ShortMA, c.LongMA)
	}
	if c.BandK <= 0 {
		return fmt.Errorf("band_k must be positive, got %v", c.BandK)
	}
	if c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("rsi_oversold must be below rsi_overbought")
	}
	if c.OverlayMinHistory < c.overlayLookback() {
		return fmt.Errorf("overlay_min_history %d is shorter than the indicators need (%d)", c.OverlayMinHistory, c.overlayLookback())
	}
	return nil
}

// overlayLookback is the shortest slice on which every overlay indicator has a
// defined last value.
func (c Config) overlayLookback() int {
	n := c.MACDSlow + c.MACDSignal - 1
	if c.RSIPeriod+1 > n {
		n = c.RSIPeriod + 1
	}
	if c.BandPeriod > n {
		n = c.BandPeriod
	}
	if c.LongMA > n {
		n = c.LongMA
	}
	return n
}
