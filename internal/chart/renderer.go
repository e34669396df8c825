package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"kimchi-signal/internal/domain"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartDays       = 120
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colPremium    = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colBuy        = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colSell       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colUSDT       = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colRate       = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colMarker     = color.RGBA{R: 58, G: 64, B: 90, A: 255}
)

// Input is the data behind a premium chart. Premium drives the date axis; the
// other series are plotted on the dates they share with it.
type Input struct {
	Premium    domain.TimeSeries
	Thresholds domain.ThresholdSeries
	USDT       domain.TimeSeries
	Rate       domain.TimeSeries
}

type Image struct {
	MimeType string
	Width    int
	Height   int
	Bytes    []byte
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderPremiumChart draws the premium against its buy/sell band, with the
// USDT price and FX rate in a lower panel. Days where the premium sits outside
// the band get a marker.
func (r *Renderer) RenderPremiumChart(in Input) (*Image, error) {
	dates := in.Premium.Dates()
	if len(dates) < 2 {
		return nil, fmt.Errorf("need at least 2 premium points to render chart")
	}
	if len(dates) > maxChartDays {
		dates = dates[len(dates)-maxChartDays:]
	}

	premium := align(dates, in.Premium)
	buy := make([]float64, len(dates))
	sell := make([]float64, len(dates))
	for i, d := range dates {
		rec, ok := in.Thresholds[d]
		if !ok {
			buy[i], sell[i] = math.NaN(), math.NaN()
			continue
		}
		buy[i], sell[i] = rec.BuyThreshold, rec.SellThreshold
	}

	c := newCanvas(defaultChartWidth, defaultChartHeight, colBackground)

	lo, hi := finiteBounds(premium, buy, sell)
	upperRect := image.Rect(60, 20, defaultChartWidth-20, defaultChartHeight*68/100)
	upper := panel{canvas: c, rect: upperRect, lo: lo, hi: hi, numPoint: len(dates)}
	upper.grid(8, 6, colGrid)
	if lo < 0 && hi > 0 {
		upper.level(0, colGrid)
	}
	upper.polyline(buy, colBuy)
	upper.polyline(sell, colSell)
	upper.polyline(premium, colPremium)
	markBandExits(upper, premium, buy, sell)
	upper.vertical(len(dates)-1, colMarker)

	usdt := align(dates, in.USDT)
	rate := align(dates, in.Rate)
	lo, hi = finiteBounds(usdt, rate)
	lowerRect := image.Rect(60, upperRect.Max.Y+16, defaultChartWidth-20, defaultChartHeight-30)
	lower := panel{canvas: c, rect: lowerRect, lo: lo, hi: hi, numPoint: len(dates)}
	lower.grid(8, 3, colGrid)
	lower.polyline(rate, colRate)
	lower.polyline(usdt, colUSDT)

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.RGBA); err != nil {
		return nil, err
	}
	return &Image{
		MimeType: "image/png",
		Width:    defaultChartWidth,
		Height:   defaultChartHeight,
		Bytes:    buf.Bytes(),
	}, nil
}

// align maps ts onto dates, NaN where ts has no value.
func align(dates []string, ts domain.TimeSeries) []float64 {
	out := make([]float64, len(dates))
	for i, d := range dates {
		v, ok := ts[d]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// markBandExits dots the days where the premium is at or beyond the band.
func markBandExits(p panel, premium, buy, sell []float64) {
	for i, v := range premium {
		if !finite(v) {
			continue
		}
		switch {
		case finite(buy[i]) && v <= buy[i]:
			p.dot(p.at(i, v), 3, colBuy)
		case finite(sell[i]) && v >= sell[i]:
			p.dot(p.at(i, v), 3, colSell)
		}
	}
}

// finiteBounds spans every finite value across all series, padded by 5%.
func finiteBounds(series ...[]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, values := range series {
		for _, v := range values {
			if finite(v) {
				lo, hi = min(lo, v), max(hi, v)
			}
		}
	}
	switch {
	case lo > hi:
		return 0, 1
	case lo == hi:
		return lo, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
