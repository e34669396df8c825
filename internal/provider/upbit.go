package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"kimchi-signal/internal/domain"
)

const (
	DefaultUpbitBaseURL = "https://api.upbit.com"
	MarketKRWUSDT       = "KRW-USDT"
	MarketKRWBTC        = "KRW-BTC"

	upbitMaxCount = 200
)

// UpbitCandles fetches daily candles for one KRW market.
type UpbitCandles struct {
	BaseURL string
	Market  string
	Client  *http.Client
}

func NewUpbitCandles(baseURL, market string) *UpbitCandles {
	if baseURL == "" {
		baseURL = DefaultUpbitBaseURL
	}
	return &UpbitCandles{BaseURL: strings.TrimRight(baseURL, "/"), Market: market, Client: newHTTPClient()}
}

type upbitCandle struct {
	CandleDateTimeKST string  `json:"candle_date_time_kst"`
	TradePrice        float64 `json:"trade_price"`
}

func (u *UpbitCandles) Fetch(ctx context.Context, lookback int) (domain.TimeSeries, error) {
	count := lookback
	if count <= 0 {
		count = 1
	}
	if count > upbitMaxCount {
		count = upbitMaxCount
	}
	endpoint := fmt.Sprintf("%s/v1/candles/days?market=%s&count=%d", u.BaseURL, url.QueryEscape(u.Market), count)

	var candles []upbitCandle
	if err := getJSON(ctx, u.Client, endpoint, "upbit "+u.Market, &candles); err != nil {
		return nil, err
	}

	out := make(domain.TimeSeries, len(candles))
	for _, c := range candles {
		if len(c.CandleDateTimeKST) < len(domain.DateLayout) || c.TradePrice <= 0 {
			continue
		}
		out[c.CandleDateTimeKST[:len(domain.DateLayout)]] = c.TradePrice
	}
	return out, nil
}

// UpbitTicker reads the live trade price of one market.
type UpbitTicker struct {
	BaseURL string
	Market  string
	Client  *http.Client
}

func NewUpbitTicker(baseURL, market string) *UpbitTicker {
	if baseURL == "" {
		baseURL = DefaultUpbitBaseURL
	}
	return &UpbitTicker{BaseURL: strings.TrimRight(baseURL, "/"), Market: market, Client: newHTTPClient()}
}

func (u *UpbitTicker) Price(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/v1/ticker?markets=%s", u.BaseURL, url.QueryEscape(u.Market))

	var tickers []struct {
		Market     string  `json:"market"`
		TradePrice float64 `json:"trade_price"`
	}
	if err := getJSON(ctx, u.Client, endpoint, "upbit ticker", &tickers); err != nil {
		return 0, err
	}
	if len(tickers) == 0 || tickers[0].TradePrice <= 0 {
		return 0, fmt.Errorf("upbit ticker: no price for %s", u.Market)
	}
	return tickers[0].TradePrice, nil
}
