package chart

import (
	"fmt"
	"io"
	"math"

	"kimchi-signal/internal/series"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderPremiumHTML writes an interactive page with the premium and its buy/sell
// band. Days without a value are left as gaps.
func (r *Renderer) RenderPremiumHTML(w io.Writer, in Input) error {
	dates := in.Premium.Dates()
	if len(dates) < 2 {
		return fmt.Errorf("need at least 2 premium points to render chart")
	}

	buy := make([]float64, len(dates))
	sell := make([]float64, len(dates))
	for i, d := range dates {
		buy[i], sell[i] = math.NaN(), math.NaN()
		if rec, ok := in.Thresholds[d]; ok {
			buy[i], sell[i] = rec.BuyThreshold, rec.SellThreshold
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Kimchi Premium", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Kimchi Premium",
			Subtitle: fmt.Sprintf("%s ~ %s", dates[0], dates[len(dates)-1]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%"}),
	)
	line.SetXAxis(dates).
		AddSeries("Premium", lineData(align(dates, in.Premium))).
		AddSeries("Buy", lineData(buy)).
		AddSeries("Sell", lineData(sell))

	return line.Render(w)
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if finite(v) {
			out[i] = opts.LineData{Value: series.Round(v, series.DisplayPlaces)}
		} else {
			out[i] = opts.LineData{Value: nil}
		}
	}
	return out
}
