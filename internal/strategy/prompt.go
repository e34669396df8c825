package strategy

import (
	"fmt"
	"strings"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
)

const (
	placeholderUSDT    = "{{usdtHistory}}"
	placeholderRate    = "{{rateHistory}}"
	placeholderPremium = "{{kimchiPremiumHistory}}"
)

// DefaultPromptTemplate is used when the store holds no template.
const DefaultPromptTemplate = `Analyze the KRW-USDT market using the daily series below and propose today's trading band.

USDT price history (KRW, most recent first):
{{usdtHistory}}

USD/KRW exchange rate history:
{{rateHistory}}

Kimchi premium history (percent):
{{kimchiPremiumHistory}}

Reply with a single JSON object and nothing else:
{"analysis_date": "YYYY-MM-DD", "buy_price": number, "sell_price": number, "expected_return": number, "summary": "short rationale"}`

// PromptInputs are the series substituted into the template.
type PromptInputs struct {
	Template string
	USDT     domain.TimeSeries
	Rate     domain.TimeSeries
	Premium  domain.TimeSeries
}

// RenderPrompt substitutes every placeholder with the descending JSON of its series.
func RenderPrompt(in PromptInputs) (string, error) {
	tmpl := in.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultPromptTemplate
	}

	usdt, err := series.MarshalDescending(in.USDT)
	if err != nil {
		return "", fmt.Errorf("encode usdt history: %w", err)
	}
	rate, err := series.MarshalDescending(in.Rate)
	if err != nil {
		return "", fmt.Errorf("encode rate history: %w", err)
	}
	premium, err := series.MarshalDescending(in.Premium)
	if err != nil {
		return "", fmt.Errorf("encode premium history: %w", err)
	}

	r := strings.NewReplacer(
		placeholderUSDT, string(usdt),
		placeholderRate, string(rate),
		placeholderPremium, string(premium),
	)
	return r.Replace(tmpl), nil
}
