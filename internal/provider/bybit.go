package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kimchi-signal/internal/domain"
)

const (
	DefaultBybitBaseURL = "https://api.bybit.com"
	SymbolBTCUSDT       = "BTCUSDT"

	bybitMaxLimit = 1000
)

// BybitKline fetches daily spot closes.
type BybitKline struct {
	BaseURL string
	Symbol  string
	Client  *http.Client
}

func NewBybitKline(baseURL, symbol string) *BybitKline {
	if baseURL == "" {
		baseURL = DefaultBybitBaseURL
	}
	return &BybitKline{BaseURL: strings.TrimRight(baseURL, "/"), Symbol: symbol, Client: newHTTPClient()}
}

type bybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]json.RawMessage `json:"list"`
	} `json:"result"`
}

func (b *BybitKline) Fetch(ctx context.Context, lookback int) (domain.TimeSeries, error) {
	limit := lookback
	if limit <= 0 {
		limit = 1
	}
	if limit > bybitMaxLimit {
		limit = bybitMaxLimit
	}
	endpoint := fmt.Sprintf("%s/v5/market/kline?category=spot&symbol=%s&interval=D&limit=%d",
		b.BaseURL, url.QueryEscape(b.Symbol), limit)

	var resp bybitKlineResponse
	if err := getJSON(ctx, b.Client, endpoint, "bybit", &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit api error %d: %s", resp.RetCode, resp.RetMsg)
	}

	out := make(domain.TimeSeries, len(resp.Result.List))
	for _, item := range resp.Result.List {
		if len(item) < 5 {
			continue
		}
		openMs, err := rawInt(item[0])
		if err != nil {
			return nil, fmt.Errorf("bybit open time: %w", err)
		}
		closePrice, err := rawFloat(item[4])
		if err != nil {
			return nil, fmt.Errorf("bybit close: %w", err)
		}
		if closePrice <= 0 {
			continue
		}
		out[domain.DateKey(time.UnixMilli(openMs))] = closePrice
	}
	return out, nil
}

// Bybit encodes numbers as strings; accept both.
func rawInt(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	var n int64
	err := json.Unmarshal(raw, &n)
	return n, err
}

func rawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}
