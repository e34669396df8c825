package tui

import (
	"fmt"
	"math"
	"strings"

	"kimchi-signal/internal/domain"
	"kimchi-signal/internal/series"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// FormatAction renders a monitor action with its color.
func FormatAction(a domain.MonitorAction) string {
	switch a {
	case domain.ActionBuy:
		return ActionBuyStyle.Render("BUY")
	case domain.ActionSell:
		return ActionSellStyle.Render("SELL")
	default:
		return ActionHoldStyle.Render("HOLD")
	}
}

// FormatPremium renders a premium percentage, red when positive.
func FormatPremium(v float64) string {
	style := PremiumZeroStyle
	sign := ""
	if v > 0 {
		style = PremiumUpStyle
		sign = "+"
	} else if v < 0 {
		style = PremiumDownStyle
	}
	return style.Render(sign + series.Format(v, series.DisplayPlaces) + "%")
}

// FormatStrategy renders a strategy record as a single line.
func FormatStrategy(r domain.StrategyRecord) string {
	return fmt.Sprintf("%s  buy %s  sell %s  exp %s%%",
		r.AnalysisDate,
		formatKRW(r.BuyPrice),
		formatKRW(r.SellPrice),
		series.Format(r.ExpectedReturn, series.DisplayPlaces),
	)
}

// Sparkline renders the last width values of ts in date order.
func Sparkline(ts domain.TimeSeries, width int) string {
	if width <= 0 {
		width = 30
	}
	dates := ts.Dates()
	if len(dates) > width {
		dates = dates[len(dates)-width:]
	}
	values := make([]float64, 0, len(dates))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range dates {
		v := ts[d]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(values) == 0 {
		return SubtextStyle.Render("no data")
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkRunes)-1)))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// RenderBarChart renders an ASCII bar of value against full.
func RenderBarChart(label string, value, full float64, barWidth int) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	ratio := 0.0
	if full > 0 {
		ratio = value / full
	}
	ratio = math.Max(0, math.Min(1, ratio))
	filled := int(math.Round(ratio * float64(barWidth)))
	empty := barWidth - filled

	style := ScoreGoodStyle
	if ratio < 0.4 {
		style = ScoreBadStyle
	} else if ratio < 0.7 {
		style = ScoreOkStyle
	}

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%-14s %s %s", label, bar, series.Format(value, series.DisplayPlaces))
}

func formatKRW(v float64) string {
	s := series.Format(math.Abs(v), series.DisplayPlaces)
	whole, frac, _ := strings.Cut(s, ".")
	out := "₩" + addCommas(whole) + "." + frac
	if v < 0 && s != series.Format(0, series.DisplayPlaces) {
		out = "-" + out
	}
	return out
}

func addCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	return result.String()
}
