package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Stored series names. Each maps to one blob in the store.
const (
	SeriesPremium = "kimchi-premium"
	SeriesUSDT    = "usdt-history"
	SeriesRate    = "rate-history"
	SeriesBTCKRW  = "btc-krw-history"
	SeriesBTCUSDT = "btc-usdt-history"
)

var SupportedSeries = []string{SeriesPremium, SeriesUSDT, SeriesRate, SeriesBTCKRW, SeriesBTCUSDT}

func IsSupportedSeries(name string) bool {
	for _, s := range SupportedSeries {
		if s == name {
			return true
		}
	}
	return false
}

// TimeSeries maps a canonical date (YYYY-MM-DD) to a value.
type TimeSeries map[string]float64

func (ts TimeSeries) Clone() TimeSeries {
	out := make(TimeSeries, len(ts))
	for d, v := range ts {
		out[d] = v
	}
	return out
}

// Dates returns the keys in ascending order.
func (ts TimeSeries) Dates() []string {
	dates := make([]string, 0, len(ts))
	for d := range ts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Latest returns the most recent entry.
func (ts TimeSeries) Latest() (string, float64, bool) {
	if len(ts) == 0 {
		return "", 0, false
	}
	latest := ""
	for d := range ts {
		if d > latest {
			latest = d
		}
	}
	return latest, ts[latest], true
}

// Since keeps entries dated on or after from.
func (ts TimeSeries) Since(from string) TimeSeries {
	out := make(TimeSeries)
	for d, v := range ts {
		if d >= from {
			out[d] = v
		}
	}
	return out
}

type ThresholdRecord struct {
	BuyThreshold   float64 `json:"buy_threshold"`
	SellThreshold  float64 `json:"sell_threshold"`
	Trend          float64 `json:"trend"`
	MovingAverage5 float64 `json:"moving_average_5"`
}

// Crossed reports a band where buy is not below sell.
func (r ThresholdRecord) Crossed() bool {
	return r.BuyThreshold >= r.SellThreshold
}

type ThresholdSeries map[string]ThresholdRecord

func (ts ThresholdSeries) Dates() []string {
	dates := make([]string, 0, len(ts))
	for d := range ts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func (ts ThresholdSeries) Latest() (string, ThresholdRecord, bool) {
	dates := ts.Dates()
	if len(dates) == 0 {
		return "", ThresholdRecord{}, false
	}
	last := dates[len(dates)-1]
	return last, ts[last], true
}

func (ts ThresholdSeries) Since(from string) ThresholdSeries {
	out := make(ThresholdSeries)
	for d, r := range ts {
		if d >= from {
			out[d] = r
		}
	}
	return out
}

// StrategyRecord is one day's recommendation. Fields the model returns beyond the
// known ones are kept in Extra and written back unchanged.
type StrategyRecord struct {
	AnalysisDate   string  `json:"analysis_date"`
	BuyPrice       float64 `json:"buy_price"`
	SellPrice      float64 `json:"sell_price"`
	ExpectedReturn float64 `json:"expected_return"`
	Summary        string  `json:"summary"`

	Extra map[string]json.RawMessage `json:"-"`
}

var strategyKnownFields = map[string]struct{}{
	"analysis_date":   {},
	"buy_price":       {},
	"sell_price":      {},
	"expected_return": {},
	"summary":         {},
}

// MarshalJSON writes the known fields and then Extra. An Extra entry named after
// a known field is a value that could not be read as a number and wins.
func (r StrategyRecord) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"analysis_date":   r.AnalysisDate,
		"buy_price":       r.BuyPrice,
		"sell_price":      r.SellPrice,
		"expected_return": r.ExpectedReturn,
		"summary":         r.Summary,
	}
	for k, v := range r.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts numeric fields as JSON numbers or numeric strings
// ("1,380.5", "3.2%") since model output is not consistent about it.
func (r *StrategyRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var rec StrategyRecord
	var err error
	if v, ok := raw["analysis_date"]; ok {
		if rec.AnalysisDate, err = decodeString(v); err != nil {
			return fmt.Errorf("analysis_date: %w", err)
		}
	}
	// A number the model wrote in a shape we cannot read stays in Extra under
	// its own key, so the record keeps its original text when written back.
	unread := make(map[string]json.RawMessage)
	for key, dst := range map[string]*float64{
		"buy_price":       &rec.BuyPrice,
		"sell_price":      &rec.SellPrice,
		"expected_return": &rec.ExpectedReturn,
	} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if *dst, err = decodeNumber(v); err != nil {
			*dst = 0
			unread[key] = v
		}
	}
	if v, ok := raw["summary"]; ok {
		if rec.Summary, err = decodeString(v); err != nil {
			return fmt.Errorf("summary: %w", err)
		}
	}

	for k, v := range raw {
		if _, known := strategyKnownFields[k]; known {
			if _, bad := unread[k]; !bad {
				continue
			}
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = v
	}

	*r = rec
	return nil
}

func decodeString(raw json.RawMessage) (string, error) {
	if string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	// Non-string summaries (objects, arrays) are kept as their JSON text.
	return string(raw), nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	if string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	s = strings.TrimSpace(s)
	for _, unit := range []string{"%", "원", "KRW"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, unit))
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// MonitorAction is the recommendation derived from a live price and the latest strategy.
type MonitorAction string

const (
	ActionBuy  MonitorAction = "buy"
	ActionSell MonitorAction = "sell"
	ActionHold MonitorAction = "hold"
)

type MonitorResult struct {
	USDTPrice          float64          `json:"usdt_price"`
	BuyPrice           float64          `json:"buy_price"`
	SellPrice          float64          `json:"sell_price"`
	Action             MonitorAction    `json:"action"`
	LatestStrategyDate string           `json:"latest_strategy_date"`
	ThresholdDate      string           `json:"threshold_date,omitempty"`
	Threshold          *ThresholdRecord `json:"threshold,omitempty"`
	PremiumDate        string           `json:"premium_date,omitempty"`
	Premium            *float64         `json:"premium,omitempty"`
}
