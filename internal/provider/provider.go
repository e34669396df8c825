// Package provider fetches daily series from upstream market APIs and
// normalizes them into domain.TimeSeries keyed by canonical date.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kimchi-signal/internal/domain"
)

// Fetcher returns up to lookback daily values ending today. Fewer dates than
// requested is not an error.
type Fetcher interface {
	Fetch(ctx context.Context, lookback int) (domain.TimeSeries, error)
}

// PriceSource returns a live price.
type PriceSource interface {
	Price(ctx context.Context) (float64, error)
}

const defaultTimeout = 15 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func getBody(ctx context.Context, client *http.Client, url, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", source, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s: status %d, body: %s", source, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func getJSON(ctx context.Context, client *http.Client, url, source string, dst any) error {
	body, err := getBody(ctx, client, url, source)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s decode: %w", source, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
